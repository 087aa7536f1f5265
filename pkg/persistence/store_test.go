package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scicontent/pkg/logx"
)

// setupTestStore opens a store in a temp dir with a clock that advances one
// millisecond per call, so updated_at ordering is deterministic.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"),
		WithClock(clock),
		WithLogger(logx.NewLoggerWithWriter("test", &bytes.Buffer{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	id, err := store.Create(ctx, "researcher")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for i, role := range []string{"user", "prompt", "assistant"} {
		require.NoError(t, store.Append(ctx, id, Message{Role: role, Stage: "ResearchAgent", Content: fmt.Sprintf("m%d", i)}))
	}

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultAppName, sess.AppName)
	assert.Equal(t, "researcher", sess.UserID)
	assert.Equal(t, SessionStatusActive, sess.Status)
	require.Len(t, sess.Messages, 3)
	for i, m := range sess.Messages {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Content)
	}
	assert.Equal(t, "user", sess.Messages[0].Role)
	assert.True(t, sess.UpdatedAt.After(sess.CreatedAt))

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), id)

	err = store.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound, "repeated delete reports the missing id")
}

func TestDeleteDropsSessionLock(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	id, err := store.Create(ctx, "u")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, id, Message{Role: "user", Content: "x"}))
	_, held := store.locks.Load(id)
	require.True(t, held)

	require.NoError(t, store.Delete(ctx, id))
	_, held = store.locks.Load(id)
	assert.False(t, held, "deleted session keeps no lock")

	assert.ErrorIs(t, store.Append(ctx, "ghost", Message{Role: "user", Content: "x"}), ErrSessionNotFound)
	assert.ErrorIs(t, store.SaveResult(ctx, "ghost", "", SessionStatusFailed, nil), ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "ghost"), ErrSessionNotFound)
	_, held = store.locks.Load("ghost")
	assert.False(t, held, "unknown ids leave no lock behind")

	// The id can be reused and locks again.
	require.NoError(t, store.CreateWithID(ctx, id, "u"))
	require.NoError(t, store.Append(ctx, id, Message{Role: "user", Content: "again"}))
	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "again", sess.Messages[0].Content)
}

func TestCreateWithIDRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.CreateWithID(ctx, "fixed-id", "u"))
	err := store.CreateWithID(ctx, "fixed-id", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.Error(t, store.CreateWithID(ctx, " ", "u"))

	ok, err := store.Exists(ctx, "fixed-id")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppendToUnknownSession(t *testing.T) {
	store := setupTestStore(t)
	err := store.Append(context.Background(), "ghost", Message{Role: "user", Content: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

type orderedState struct{}

func (orderedState) MarshalJSON() ([]byte, error) {
	return []byte(`{"zeta":"1","alpha":"2"}`), nil
}

func TestSaveResultKeepsStateVerbatim(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	id, err := store.Create(ctx, "u")
	require.NoError(t, err)

	require.NoError(t, store.SaveResult(ctx, id, "attention", SessionStatusCompleted, orderedState{}))

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "attention", sess.Topic)
	assert.Equal(t, SessionStatusCompleted, sess.Status)
	assert.Equal(t, `{"zeta":"1","alpha":"2"}`, string(sess.State))

	assert.ErrorIs(t, store.SaveResult(ctx, "ghost", "", SessionStatusFailed, nil), ErrSessionNotFound)
}

func TestListOrdersByRecencyAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.CreateWithID(ctx, "a", "u"))
	require.NoError(t, store.CreateWithID(ctx, "b", "u"))
	require.NoError(t, store.CreateWithID(ctx, "c", "u"))
	require.NoError(t, store.Append(ctx, "a", Message{Role: "user", Content: "x"}))
	require.NoError(t, store.Append(ctx, "a", Message{Role: "assistant", Content: "y"}))

	first, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, 2, first[0].MessageCount)
	assert.Equal(t, "c", first[1].ID)
	assert.Equal(t, "b", first[2].ID)
	assert.Zero(t, first[2].MessageCount)

	second, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := Open(ctx, filepath.Join(t.TempDir(), "s.db"), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	for _, id := range []string{"m", "b", "x"} {
		require.NoError(t, store.CreateWithID(ctx, id, "u"))
	}
	list, err := store.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b", "m", "x"}, ids)
}

func TestConcurrentAppendsToOneSession(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	id, err := store.Create(ctx, "u")
	require.NoError(t, err)
	other, err := store.Create(ctx, "u")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, id, Message{Role: "user", Content: fmt.Sprintf("%d", i)}))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, other, Message{Role: "user", Content: fmt.Sprintf("%d", i)}))
		}(i)
	}
	wg.Wait()

	for _, sid := range []string{id, other} {
		sess, err := store.Get(ctx, sid)
		require.NoError(t, err)
		assert.Len(t, sess.Messages, n)
	}
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.CreateWithID(ctx, "keep", "u"))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := GetSchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	ok, err := store.Exists(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrateFromVersionOne(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (
		id TEXT PRIMARY KEY, app_name TEXT NOT NULL, user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active', created_at TEXT NOT NULL, updated_at TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT, session_id TEXT NOT NULL, role TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '', content TEXT NOT NULL, created_at TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = GetSchemaVersion(ctx, db)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(ctx, db, 1))
	require.NoError(t, db.Close())

	store, err := Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := GetSchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	id, err := store.Create(ctx, "u")
	require.NoError(t, err)
	require.NoError(t, store.SaveResult(ctx, id, "topic", SessionStatusCompleted, map[string]string{"k": "v"}))
}

func TestFormatSummaries(t *testing.T) {
	assert.Equal(t, "No sessions found.", FormatSummaries(nil))

	long := "a-session-id-that-is-much-longer-than-forty-characters"
	table := FormatSummaries([]*Summary{
		{ID: "4f1c", UserID: "Ada", MessageCount: 11, UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)},
		{ID: long, UserID: "a-rather-long-user-name"},
	})
	assert.Contains(t, table, "Session ID")
	assert.Contains(t, table, "2025-03-01 12:00:00")
	assert.Contains(t, table, "11")
	assert.NotContains(t, table, long)
	assert.Contains(t, table, long[:37]+"...")
	assert.Contains(t, table, "User                   ", "user column widens to the longest name")
}
