package translog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "logs", "transaction_log.jsonl"))
	require.NoError(t, err)
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openTemp(t)

	for i, ok := range []bool{true, false, true, true} {
		require.NoError(t, l.Append(Record{
			ToolName:   "move_file",
			Parameters: map[string]any{"i": i},
			Success:    ok,
		}))
		require.NoError(t, l.Append(Record{ToolName: "rename_file", Success: true}))
	}

	recent, err := l.Recent("move_file", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.EqualValues(t, 3, recent[0].Parameters["i"])
	assert.EqualValues(t, 2, recent[1].Parameters["i"])
	assert.EqualValues(t, 1, recent[2].Parameters["i"])
	assert.False(t, recent[0].Timestamp.IsZero())

	all, err := l.Recent("", 100)
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, "rename_file", all[0].ToolName)
}

func TestCorruptLinesAreSkipped(t *testing.T) {
	l := openTemp(t)
	require.NoError(t, l.Append(Record{ToolName: "a", Success: true}))

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, l.Append(Record{ToolName: "a", Success: false}))

	all, err := l.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Success)
	assert.False(t, all[1].Success)
}

func TestMissingLog(t *testing.T) {
	l := openTemp(t)
	_, err := l.Recent("x", 5)
	assert.ErrorIs(t, err, ErrNoLog)
}

func TestObserversAndConcurrentAppends(t *testing.T) {
	l := openTemp(t)
	var mu sync.Mutex
	seen := 0
	l.OnAppend(func(Record) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append(Record{ToolName: "execute_shell_command", Success: true}))
		}()
	}
	wg.Wait()

	all, err := l.All()
	require.NoError(t, err)
	assert.Len(t, all, 25)
	assert.Equal(t, 25, seen)
}
