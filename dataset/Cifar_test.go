package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCIFAR10Batch writes a CIFAR-10 binary batch of the given
// labelled records, each with a constant pixel value.
func writeCIFAR10Batch(t *testing.T, path string, labels []byte,
	pixel byte) {
	t.Helper()
	var buf []byte
	for _, label := range labels {
		buf = append(buf, label)
		for i := 0; i < cifarPixels; i++ {
			buf = append(buf, pixel)
		}
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestLoadCIFAR10(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cifar-10-batches-bin")
	require.NoError(t, os.Mkdir(dir, 0o755))

	for i := 1; i <= 5; i++ {
		writeCIFAR10Batch(t,
			filepath.Join(dir, "data_batch_"+string(rune('0'+i))+".bin"),
			[]byte{byte(i), byte(9 - i)}, byte(i*10))
	}
	writeCIFAR10Batch(t, filepath.Join(dir, "test_batch.bin"),
		[]byte{7}, 255)

	t.Run("train", func(t *testing.T) {
		ds, err := LoadCIFAR10(root, true)
		require.NoError(t, err)

		assert.Equal(t, 10, ds.Len())
		assert.Equal(t, 10, ds.NumClasses)
		assert.Equal(t, cifarPixels, ds.Features())
		assert.Equal(t, 1, ds.Samples[0].Label)
		assert.InDelta(t, 10.0/255.0, ds.Samples[0].Image.Pixels[0], 1e-12)
	})

	t.Run("test", func(t *testing.T) {
		ds, err := LoadCIFAR10(root, false)
		require.NoError(t, err)

		assert.Equal(t, 1, ds.Len())
		assert.Equal(t, 7, ds.Samples[0].Label)
		assert.Equal(t, 1.0, ds.Samples[0].Image.Pixels[0])
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadCIFAR10(t.TempDir(), true)
		assert.Error(t, err)
	})
}

func TestLoadCIFAR100UsesFineLabel(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cifar-100-binary")
	require.NoError(t, os.Mkdir(dir, 0o755))

	// One record: coarse label 3, fine label 42.
	record := append([]byte{3, 42}, make([]byte, cifarPixels)...)
	require.NoError(t,
		os.WriteFile(filepath.Join(dir, "train.bin"), record, 0o644))

	ds, err := LoadCIFAR100(root, true)
	require.NoError(t, err)

	require.Equal(t, 1, ds.Len())
	assert.Equal(t, 42, ds.Samples[0].Label)
	assert.Equal(t, 100, ds.NumClasses)
}

func TestReadCIFARFileTruncatedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := readCIFARFile(path, 1, 0)
	assert.Error(t, err)
}

func TestLoadUnknownDataset(t *testing.T) {
	_, err := Load("imagenet", t.TempDir(), true)
	assert.Error(t, err)
}
