package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func setupTestHistoryManager(t *testing.T, opts ...Option) *HistoryManager {
	t.Helper()
	clock := &stepClock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	hm, err := NewHistoryManager(filepath.Join(t.TempDir(), "history.db"), nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = hm.Close() })
	return hm
}

func queries(entries []HistoryEntry) []string {
	return lo.Map(entries, func(e HistoryEntry, _ int) string { return e.Query })
}

func TestAddAndGet(t *testing.T) {
	t.Run("returns entries oldest first", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		for _, q := range []string{"list files", "show disk usage", "find large files"} {
			_, err := hm.Add("com.apple.Terminal:101", HistoryEntry{Query: q, Response: "ls"})
			require.NoError(t, err)
		}

		entries, err := hm.Get("com.apple.Terminal:101", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"list files", "show disk usage", "find large files"}, queries(entries))
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		for i := range 5 {
			_, err := hm.Add("k:1", HistoryEntry{Query: "q" + strconv.Itoa(i)})
			require.NoError(t, err)
		}

		entries, err := hm.Get("k:1", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"q3", "q4"}, queries(entries))
	})

	t.Run("keys are isolated", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		_, err := hm.Add("com.apple.Terminal:101", HistoryEntry{Query: "tab one"})
		require.NoError(t, err)
		_, err = hm.Add("com.apple.Terminal:202", HistoryEntry{Query: "tab two"})
		require.NoError(t, err)

		entries, err := hm.Get("com.apple.Terminal:202", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"tab two"}, queries(entries))

		entries, err = hm.Get("com.apple.Terminal:303", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("stamps entries and keeps terminal snapshot", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		added, err := hm.Add("k:1", HistoryEntry{
			Query:    "why did this fail",
			Response: "npm install",
			Terminal: TerminalSnapshot{Cwd: "/tmp/app", ShellType: "zsh", VisibleOutput: "npm ERR!"},
			IsError:  true,
		})
		require.NoError(t, err)
		assert.NotZero(t, added.ID)
		assert.Equal(t, int64(1_700_000_001_000), added.Timestamp)

		entries, err := hm.Get("k:1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, TerminalSnapshot{Cwd: "/tmp/app", ShellType: "zsh", VisibleOutput: "npm ERR!"}, entries[0].Terminal)
		assert.True(t, entries[0].IsError)
		assert.Equal(t, "k:1", entries[0].WindowKey)
	})

	t.Run("explicit timestamp is kept", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		added, err := hm.Add("k:1", HistoryEntry{Query: "q", Timestamp: 42})
		require.NoError(t, err)
		assert.Equal(t, int64(42), added.Timestamp)
	})

	t.Run("empty key is rejected", func(t *testing.T) {
		hm := setupTestHistoryManager(t)

		_, err := hm.Add("", HistoryEntry{Query: "q"})
		assert.Error(t, err)
	})
}

func TestCaps(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		hm := setupTestHistoryManager(t)
		assert.Equal(t, DefaultMaxEntriesPerKey, hm.maxEntriesPerKey)
		assert.Equal(t, DefaultMaxKeys, hm.maxKeys)
	})

	t.Run("non-positive limits keep defaults", func(t *testing.T) {
		hm := setupTestHistoryManager(t, WithLimits(0, -1))
		assert.Equal(t, DefaultMaxEntriesPerKey, hm.maxEntriesPerKey)
		assert.Equal(t, DefaultMaxKeys, hm.maxKeys)
	})

	t.Run("trims oldest entries beyond the per-key cap", func(t *testing.T) {
		hm := setupTestHistoryManager(t, WithLimits(3, 10))

		for i := range 5 {
			_, err := hm.Add("k:1", HistoryEntry{Query: "q" + strconv.Itoa(i)})
			require.NoError(t, err)
		}

		entries, err := hm.Get("k:1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"q2", "q3", "q4"}, queries(entries))
	})

	t.Run("evicts the least recently updated key", func(t *testing.T) {
		hm := setupTestHistoryManager(t, WithLimits(3, 2))

		add := func(key, query string) {
			_, err := hm.Add(key, HistoryEntry{Query: query})
			require.NoError(t, err)
		}

		add("a:1", "first")
		add("b:2", "second")
		add("c:3", "third")

		keys, err := hm.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"b:2", "c:3"}, lo.Map(keys, func(k KeySummary, _ int) string { return k.WindowKey }))

		// Touching b makes c the oldest.
		add("b:2", "fourth")
		add("d:4", "fifth")

		keys, err = hm.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"b:2", "d:4"}, lo.Map(keys, func(k KeySummary, _ int) string { return k.WindowKey }))
		assert.Equal(t, 2, keys[0].Entries)

		entries, err := hm.Get("c:3", 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("key just added is never evicted", func(t *testing.T) {
		hm := setupTestHistoryManager(t, WithLimits(3, 1))

		_, err := hm.Add("a:1", HistoryEntry{Query: "newer", Timestamp: 2_000})
		require.NoError(t, err)
		_, err = hm.Add("b:2", HistoryEntry{Query: "older", Timestamp: 1_000})
		require.NoError(t, err)

		keys, err := hm.Keys()
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "b:2", keys[0].WindowKey)
	})
}

func TestDeleteAndReset(t *testing.T) {
	hm := setupTestHistoryManager(t)

	_, err := hm.Add("a:1", HistoryEntry{Query: "one"})
	require.NoError(t, err)
	_, err = hm.Add("b:2", HistoryEntry{Query: "two"})
	require.NoError(t, err)

	require.NoError(t, hm.DeleteKey("a:1"))
	assert.Error(t, hm.DeleteKey("a:1"))

	keys, err := hm.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, hm.ResetHistory())
	keys, err = hm.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	hm, err := NewHistoryManager(dbPath, nil)
	require.NoError(t, err)
	_, err = hm.Add("k:1", HistoryEntry{Query: "persisted"})
	require.NoError(t, err)
	require.NoError(t, hm.Close())

	data, err := os.ReadFile(filepath.Join(dir, "history_schema_version"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(historySchemaVersion), string(data))

	t.Run("reopening keeps entries", func(t *testing.T) {
		hm, err := NewHistoryManager(dbPath, nil)
		require.NoError(t, err)
		defer hm.Close()

		entries, err := hm.Get("k:1", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"persisted"}, queries(entries))
	})

	t.Run("stale marker migrates again", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "history_schema_version"), []byte("0"), 0644))

		hm, err := NewHistoryManager(dbPath, nil)
		require.NoError(t, err)
		defer hm.Close()

		data, err := os.ReadFile(filepath.Join(dir, "history_schema_version"))
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(historySchemaVersion), string(data))
	})
}

func TestEntryJSON(t *testing.T) {
	data, err := json.Marshal(HistoryEntry{
		ID:        7,
		WindowKey: "k:1",
		Query:     "q",
		Response:  "r",
		Timestamp: 10,
		Terminal:  TerminalSnapshot{Cwd: "/tmp"},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": "q",
		"response": "r",
		"timestamp": 10,
		"terminal_context": {"cwd": "/tmp"},
		"is_error": false
	}`, string(data))
}
