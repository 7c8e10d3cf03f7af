package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStorage(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleState("0xabc")))

	_, err = os.Stat(filepath.Join(dir, "0xabc.json"))
	assert.True(t, os.IsNotExist(err), "save should be buffered")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(dir, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "0xabc")
	require.NoError(t, err)
	assertSameState(t, sampleState("0xabc"), got)
}

func TestFileStorageDebouncedWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir, 5*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), sampleState("0xabc")))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "0xabc.json"))
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestFileStorageLoadDuringFlushSeesLatestSave(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStorage(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer s.Close()

	for round := 0; round < 20; round++ {
		older := sampleState("0xabc")
		older.Progress.BotsMinted = 2 * round
		require.NoError(t, s.Save(ctx, older))
		require.NoError(t, s.flush())

		newer := sampleState("0xabc")
		newer.Progress.BotsMinted = 2*round + 1
		require.NoError(t, s.Save(ctx, newer))

		flushed := make(chan error, 1)
		go func() { flushed <- s.flush() }()

		for i := 0; i < 50; i++ {
			got, err := s.Load(ctx, "0xabc")
			require.NoError(t, err)
			require.Equal(t, newer.Progress.BotsMinted, got.Progress.BotsMinted, "round %d read %d", round, i)
		}
		require.NoError(t, <-flushed)

		got, err := s.Load(ctx, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, newer.Progress.BotsMinted, got.Progress.BotsMinted)
	}
}

func TestFileStorageSaveDuringFlushIsKept(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStorage(dir, time.Hour)
	require.NoError(t, err)

	first := sampleState("0xabc")
	first.Progress.BotsMinted = 1
	require.NoError(t, s.Save(ctx, first))

	flushed := make(chan error, 1)
	go func() { flushed <- s.flush() }()

	second := sampleState("0xabc")
	second.Progress.BotsMinted = 2
	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, <-flushed)
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(dir, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Progress.BotsMinted)
}

func TestFileStorageCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0xabc.json"), []byte("{not json"), 0o644))

	s, err := NewFileStorage(dir, time.Hour)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestFileStorageRejectsPathLikeIDs(t *testing.T) {
	s, err := NewFileStorage(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer s.Close()

	for _, id := range []string{"", "../etc", "a/b", `a\b`} {
		st := sampleState(id)
		assert.Error(t, s.Save(context.Background(), st), id)
	}
}
