package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func testMeta() RunMeta {
	return RunMeta{
		Tag:          "numberckpt_001",
		Dataset:      "cifar10",
		Seed:         40,
		LearningRate: 0.05,
		Quota:        300,
	}
}

func TestCreateRunAndList(t *testing.T) {
	r := openTestRegistry(t)

	id, err := r.CreateRun(testMeta())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := r.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "numberckpt_001", run.Tag)
	assert.Equal(t, "cifar10", run.Dataset)
	assert.Equal(t, uint64(40), run.Seed)
	assert.Equal(t, 0.05, run.LearnRate)
	assert.Equal(t, 300, run.Quota)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRecordAndListCheckpoints(t *testing.T) {
	r := openTestRegistry(t)
	id, err := r.CreateRun(testMeta())
	require.NoError(t, err)

	for i := 3; i >= 1; i-- {
		err := r.RecordCheckpoint(CheckpointRecord{
			RunID: id,
			Index: i,
			Acc:   1.0,
			Seed:  40,
			Tag:   "numberckpt_001",
			Path:  "checkpoint/file.bin",
			Bytes: int64(100 * i),
		})
		require.NoError(t, err)
	}

	recs, err := r.Checkpoints(id)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Returned in save order regardless of insertion order.
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.Index)
		assert.Equal(t, id, rec.RunID)
	}
}

func TestDuplicateIndexRejected(t *testing.T) {
	r := openTestRegistry(t)
	id, err := r.CreateRun(testMeta())
	require.NoError(t, err)

	rec := CheckpointRecord{RunID: id, Index: 1, Acc: 1.0, Seed: 40,
		Tag: "t", Path: "p", Bytes: 1}
	require.NoError(t, r.RecordCheckpoint(rec))
	assert.Error(t, r.RecordCheckpoint(rec))
}

func TestStats(t *testing.T) {
	r := openTestRegistry(t)
	id, err := r.CreateRun(testMeta())
	require.NoError(t, err)

	t.Run("empty run", func(t *testing.T) {
		s, err := r.Stats(id)
		require.NoError(t, err)
		assert.Equal(t, 0, s.Count)
	})

	for i := 1; i <= 4; i++ {
		require.NoError(t, r.RecordCheckpoint(CheckpointRecord{
			RunID: id, Index: i, Acc: 1.0, Seed: 40, Tag: "t",
			Path: "p", Bytes: 200,
		}))
	}

	s, err := r.Stats(id)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 200.0, s.MeanBytes)
	assert.Equal(t, 1, s.FirstIndex)
	assert.Equal(t, 4, s.LastIndex)
}

func TestUnknownRun(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.Checkpoints("no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Stats("no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	r, err := Open(path)
	require.NoError(t, err)
	id, err := r.CreateRun(testMeta())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}
