package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"ticket-kiosk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileJournal_RecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := NewFileJournal(path)
	require.NoError(t, err)

	first := NewEvent("s1", "keyboard", "123456789012345", model.OutcomeGranted)
	second := NewEvent("s1", "keyboard", "123456789012345", model.OutcomeAlreadyUsed)
	require.NoError(t, j.Record(context.Background(), first))
	require.NoError(t, j.Record(context.Background(), second))
	require.NoError(t, j.Close())

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "granted", events[0].Outcome)
	assert.Equal(t, "already_used", events[1].Outcome)
	assert.Equal(t, "keyboard", events[1].Source)
}

func TestFileJournal_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	for i := 0; i < 2; i++ {
		j, err := NewFileJournal(path)
		require.NoError(t, err)
		require.NoError(t, j.Record(context.Background(), NewEvent("s", "stdin", "x", model.OutcomeMalformed)))
		require.NoError(t, j.Close())
	}

	events, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFileJournal_ConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := NewFileJournal(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Record(context.Background(), NewEvent("s", "stdin", "c", model.OutcomeUnknown)))
		}()
	}
	wg.Wait()
	require.NoError(t, j.Close())

	events, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 50)
}

func TestNewFileJournal_BadPath(t *testing.T) {
	_, err := NewFileJournal(filepath.Join(t.TempDir(), "missing", "journal.jsonl"))
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	j := NewNop()
	assert.NoError(t, j.Record(context.Background(), Event{}))
	assert.NoError(t, j.Close())
}
