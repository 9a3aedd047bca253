package eval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/evalkit/internal/fs"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "state", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func materializeForIndex(t *testing.T, now time.Time, tasks ...Task) *Summary {
	t.Helper()
	m := NewMaterializer(fs.NewMockFS(), "out", DefaultTemplates())
	summary, err := m.Run(context.Background(), tasks, now)
	require.NoError(t, err)
	return summary
}

func TestPromptDigest(t *testing.T) {
	a := PromptDigest([]byte("Fix bug"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, PromptDigest([]byte("Fix bug")))
	assert.NotEqual(t, a, PromptDigest([]byte("Fix bugs")))
}

func TestNewDatabaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())
}

func TestRecordSession(t *testing.T) {
	db := newTestDatabase(t)
	summary := materializeForIndex(t, fixedNow, Task{ID: "T1", Prompt: "Fix bug"}, Task{ID: "T2", Prompt: "Add tests"})

	record, err := db.RecordSession(summary, "out", "eval/tasks.yaml")
	require.NoError(t, err)

	parsed, err := uuidParse(record.UUID)
	require.NoError(t, err)
	assert.Equal(t, 7, parsed)
	assert.Equal(t, "2025-06-07_08-09-10", record.ID)
	assert.Equal(t, 2, record.TaskCount)

	got, err := db.GetSessionByTimestamp("out", "2025-06-07_08-09-10")
	require.NoError(t, err)
	assert.Equal(t, record.UUID, got.UUID)
	assert.Equal(t, AbsPath(summary.Session.Dir), got.Dir)
	assert.True(t, filepath.IsAbs(got.Dir))
	assert.Equal(t, AbsPath("out"), got.OutputRoot)
	assert.Equal(t, "eval/tasks.yaml", got.TasksPath)
	assert.True(t, fixedNow.Equal(got.CreatedAt))

	tasks, err := db.ListTasks(record.UUID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "T1", tasks[0].TaskID)
	assert.Equal(t, "T2", tasks[1].TaskID)
	assert.Equal(t, StatusPending, tasks[0].Status)
	assert.Equal(t, AbsPath(summary.Artifacts[0].Dir), tasks[0].Dir)
	assert.Equal(t, PromptDigest([]byte(summary.Artifacts[0].DevPrompt)), tasks[0].PromptDigest)

	digests, err := db.Digests(record.UUID)
	require.NoError(t, err)
	assert.Equal(t, tasks[1].PromptDigest, digests["T2"])
}

func TestRecordSessionRejectsNil(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.RecordSession(nil, "out", "")
	assert.Error(t, err)
}

func TestListSessionsNewestFirst(t *testing.T) {
	db := newTestDatabase(t)

	older := materializeForIndex(t, fixedNow, Task{ID: "T1", Prompt: "a"})
	newer := materializeForIndex(t, fixedNow.Add(time.Hour), Task{ID: "T1", Prompt: "a"})
	_, err := db.RecordSession(older, "out", "")
	require.NoError(t, err)
	_, err = db.RecordSession(newer, "out", "")
	require.NoError(t, err)

	sessions, err := db.ListSessions("out", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-06-07_09-09-10", sessions[0].ID)
	assert.Equal(t, "2025-06-07_08-09-10", sessions[1].ID)

	sessions, err = db.ListSessions("out", 1)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGetSessionByTimestampMissing(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetSessionByTimestamp("out", "1999-01-01_00-00-00")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSessionsAreScopedToOutputRoot(t *testing.T) {
	db := newTestDatabase(t)
	summary := materializeForIndex(t, fixedNow, Task{ID: "T1", Prompt: "Fix bug"})
	_, err := db.RecordSession(summary, "out", "")
	require.NoError(t, err)

	sessions, err := db.ListSessions("elsewhere", 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = db.GetSessionByTimestamp("elsewhere", "2025-06-07_08-09-10")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Relative and absolute spellings of the same root match.
	sessions, err = db.ListSessions(AbsPath("out"), 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRecordSessionReplacesSameDirectory(t *testing.T) {
	db := newTestDatabase(t)
	summary := materializeForIndex(t, fixedNow, Task{ID: "T1", Prompt: "Fix bug"})

	first, err := db.RecordSession(summary, "out", "")
	require.NoError(t, err)
	second, err := db.RecordSession(summary, "out", "")
	require.NoError(t, err)

	sessions, err := db.ListSessions("out", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.UUID, sessions[0].UUID)

	tasks, err := db.ListTasks(first.UUID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpdateTaskStatus(t *testing.T) {
	db := newTestDatabase(t)
	summary := materializeForIndex(t, fixedNow, Task{ID: "T1", Prompt: "Fix bug"})
	record, err := db.RecordSession(summary, "out", "")
	require.NoError(t, err)

	require.NoError(t, db.UpdateTaskStatus(record.UUID, "T1", StatusPass))
	tasks, err := db.ListTasks(record.UUID)
	require.NoError(t, err)
	assert.Equal(t, StatusPass, tasks[0].Status)

	assert.Error(t, db.UpdateTaskStatus(record.UUID, "T1", Status("done")))
	assert.True(t, errors.Is(db.UpdateTaskStatus(record.UUID, "T9", StatusFail), ErrNotFound))
}

func uuidParse(s string) (int, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return 0, err
	}
	return int(id.Version()), nil
}
