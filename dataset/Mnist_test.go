package dataset

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeIDXImages writes a gzipped IDX3 file of count constant-valued
// height×width images.
func writeIDXImages(t *testing.T, path string, count, height,
	width int) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, v := range []uint32{idxImagesMagic, uint32(count),
		uint32(height), uint32(width)} {
		require.NoError(t, binary.Write(gz, binary.BigEndian, v))
	}
	for i := 0; i < count; i++ {
		img := bytes.Repeat([]byte{byte(i * 10)}, height*width)
		_, err := gz.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeIDXLabels(t *testing.T, path string, labels []byte) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, v := range []uint32{idxLabelsMagic, uint32(len(labels))} {
		require.NoError(t, binary.Write(gz, binary.BigEndian, v))
	}
	_, err := gz.Write(labels)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadIDXImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.gz")
	writeIDXImages(t, path, 3, 4, 5)

	images, height, width, err := readIDXImages(path)
	require.NoError(t, err)

	assert.Equal(t, 4, height)
	assert.Equal(t, 5, width)
	require.Len(t, images, 3)
	assert.Len(t, images[0], 20)
	assert.InDelta(t, 10.0/255.0, images[1][0], 1e-12)
}

func TestReadIDXImagesBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels-as-images.gz")
	writeIDXLabels(t, path, []byte{1, 2})

	_, _, _, err := readIDXImages(path)
	assert.Error(t, err)
}

func TestReadIDXLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.gz")
	writeIDXLabels(t, path, []byte{3, 1, 4})

	labels, err := readIDXLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 1, 4}, labels)
}

func TestVerifyDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	content := []byte("checkpoint payload")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	good := fmt.Sprintf("%x", sha256.Sum256(content))
	assert.NoError(t, VerifyDigest(path, good))

	t.Run("mismatch", func(t *testing.T) {
		err := VerifyDigest(path, fmt.Sprintf("%x",
			sha256.Sum256([]byte("tampered"))))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		err := VerifyDigest(filepath.Join(t.TempDir(), "nope"), good)
		assert.Error(t, err)
	})
}

func TestLoadMNISTRejectsUnknownFiles(t *testing.T) {
	// Fabricated files cannot carry the canonical digests, so loading
	// must fail before parsing.
	root := t.TempDir()
	writeIDXImages(t, filepath.Join(root, mnistTrainImages), 1, 28, 28)
	writeIDXLabels(t, filepath.Join(root, mnistTrainLabels), []byte{0})

	_, err := LoadMNIST(root, true)
	assert.Error(t, err)
}
