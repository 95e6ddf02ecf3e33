package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangqiang102938/pdiff/network"
)

func TestFileNameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		index int
		acc   float64
		seed  uint64
		tag   string
	}{
		{"typical", 1, 1.0, 40, "stl10_resnet18"},
		{"index zero", 0, 1.0, 40, "first"},
		{"fractional accuracy", 123, 0.8734, 40, "run"},
		{"tag with underscores", 300, 0.5, 7, "numberckpt_001"},
		{"index wider than the padding", 12345, 0.25, 40, "long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := FileName(tt.index, tt.acc, tt.seed, tt.tag)
			e, err := ParseName(name)
			require.NoError(t, err)

			assert.Equal(t, tt.index, e.Index)
			assert.InDelta(t, tt.acc, e.Acc, 1e-4)
			assert.Equal(t, tt.seed, e.Seed)
			assert.Equal(t, tt.tag, e.Tag)
		})
	}
}

func TestFileNameFormat(t *testing.T) {
	assert.Equal(t, "0001_acc1.0000_seed0040_tag.bin",
		FileName(1, 1.0, 40, "tag"))
}

func TestParseNameRejectsForeignFiles(t *testing.T) {
	for _, name := range []string{
		"origin.bin", "readme.txt", "0001_acc1.0000.bin", "0001.bin",
	} {
		_, err := ParseName(name)
		assert.Error(t, err, "name %v should not parse", name)
	}
}

func TestListSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		FileName(2, 1.0, 40, "a"),
		FileName(1, 1.0, 40, "a"),
		FileName(10, 1.0, 40, "a"),
		"notes.txt",
	} {
		require.NoError(t,
			os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	entries, err := List(dir)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 2, 10},
		[]int{entries[0].Index, entries[1].Index, entries[2].Index})
}

func TestWriterDue(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		skip     int
		batchIdx int
		perPass  int
		want     bool
	}{
		{"within skip window", 1, 2, 0, 100, false},
		{"last skipped batch", 1, 2, 1, 100, false},
		{"first batch past skip", 1, 2, 2, 100, true},
		{"every batch at interval 1", 1, 2, 57, 100, true},
		{"interval 10 misses", 10, 2, 57, 100, false},
		{"interval 10 hits", 10, 2, 59, 100, true},
		{"last batch of pass always due", 10, 2, 99, 100, true},
		{"no skip", 1, 0, 0, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Writer{
				Dir:         t.TempDir(),
				Interval:    tt.interval,
				SkipBatches: tt.skip,
				Quota:       10,
			}
			assert.Equal(t, tt.want, w.Due(tt.batchIdx, tt.perPass))
		})
	}
}

func TestWriterQuota(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{
		Dir:      dir,
		Interval: 1,
		Quota:    3,
		Seed:     40,
		Tag:      "quota",
	}
	snap := Snapshot{Params: []Param{
		{Name: "hidden0.norm.weight", Shape: []int{2},
			Data: []float32{1, 2}},
	}}

	for i := 0; i < 3; i++ {
		assert.False(t, w.Exhausted())
		_, err := w.Save(snap, 1.0)
		require.NoError(t, err)
	}
	assert.True(t, w.Exhausted())
	assert.Equal(t, 3, w.Saved())

	// Saves past the quota fail, and Due goes quiet.
	_, err := w.Save(snap, 1.0)
	assert.Error(t, err)
	assert.False(t, w.Due(50, 100))

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, uint64(40), e.Seed)
		assert.Equal(t, "quota", e.Tag)
	}
}

func TestSnapshotTakeApply(t *testing.T) {
	net, err := network.NewClassifier(4, 2, 1, []int{6, 6},
		network.NewGlorotU(1.0), 40)
	require.NoError(t, err)

	names := net.LastNormNames(2)
	require.Equal(t, []string{
		"hidden0.norm.weight", "hidden0.norm.bias",
		"hidden1.norm.weight", "hidden1.norm.bias",
	}, names)

	snap, err := Take(net, names)
	require.NoError(t, err)
	require.Len(t, snap.Params, 4)
	assert.Equal(t, names, snap.Names())

	// Norm scales start at one, shifts at zero.
	for _, v := range snap.Params[0].Data {
		assert.Equal(t, float32(1), v)
	}
	for _, v := range snap.Params[1].Data {
		assert.Equal(t, float32(0), v)
	}

	// Applying onto a fresh classifier restores the values.
	path := filepath.Join(t.TempDir(), FileName(1, 1.0, 40, "t"))
	require.NoError(t, snap.WriteFile(path))
	restored, err := ReadSnapshot(path)
	require.NoError(t, err)

	other, err := network.NewClassifier(4, 2, 1, []int{6, 6},
		network.NewGlorotU(1.0), 40)
	require.NoError(t, err)
	require.NoError(t, restored.Apply(other))

	for _, name := range names {
		learnable, err := other.ByName(name)
		require.NoError(t, err)
		source, err := net.ByName(name)
		require.NoError(t, err)
		assert.Equal(t, source.Node.Value().Data(),
			learnable.Node.Value().Data(), "%v not restored", name)
	}
}

func TestSnapshotTakeUnknownName(t *testing.T) {
	net, err := network.NewClassifier(4, 2, 1, []int{6},
		network.NewGlorotU(1.0), 40)
	require.NoError(t, err)

	_, err = Take(net, []string{"hidden9.norm.weight"})
	assert.Error(t, err)
}

func TestSnapshotApplyMismatchLeavesNetUntouched(t *testing.T) {
	net, err := network.NewClassifier(4, 2, 1, []int{6},
		network.NewGlorotU(1.0), 40)
	require.NoError(t, err)

	before, err := Take(net, []string{"hidden0.norm.weight"})
	require.NoError(t, err)

	bad := Snapshot{Params: []Param{
		// Good param first; the bad one must prevent both from
		// landing.
		{Name: "hidden0.norm.weight", Shape: []int{6},
			Data: []float32{9, 9, 9, 9, 9, 9}},
		{Name: "hidden0.norm.bias", Shape: []int{3},
			Data: []float32{9, 9, 9}},
	}}
	assert.Error(t, bad.Apply(net))

	after, err := Take(net, []string{"hidden0.norm.weight"})
	require.NoError(t, err)
	assert.Equal(t, before.Params[0].Data, after.Params[0].Data)
}

func TestReselect(t *testing.T) {
	src := t.TempDir()
	first := FileName(1, 1.0, 40, "src")
	require.NoError(t, os.WriteFile(filepath.Join(src, first),
		[]byte("first checkpoint"), 0o644))
	require.NoError(t,
		os.WriteFile(filepath.Join(src, FileName(2, 1.0, 40, "src")),
			[]byte("second checkpoint"), 0o644))

	dst := filepath.Join(t.TempDir(), "checkpoint")
	require.NoError(t, Reselect(src, dst, 1))

	origin, err := os.ReadFile(filepath.Join(dst, OriginName))
	require.NoError(t, err)
	repeat, err := os.ReadFile(filepath.Join(dst, RepeatName))
	require.NoError(t, err)

	// Both names hold byte-exact copies of the first checkpoint.
	assert.Equal(t, []byte("first checkpoint"), origin)
	assert.Equal(t, []byte("first checkpoint"), repeat)
}

func TestReselectEmptySource(t *testing.T) {
	err := Reselect(t.TempDir(), t.TempDir(), 1)
	assert.Error(t, err)
}
