package eval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/codefionn/evalkit/internal/config"
	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/fs"
	"github.com/codefionn/evalkit/internal/logger"
)

// LatestSession selects the newest session wherever a session id is accepted.
const LatestSession = "latest"

// ErrInvalidSessionID is returned for ids that are not a session timestamp.
var ErrInvalidSessionID = errors.New("invalid session id")

// Service ties the materializer, the filesystem and the optional session
// index together for the CLI and the HTTP server.
type Service struct {
	cfg          *config.Config
	fs           fs.FileSystem
	materializer *Materializer
	db           *Database
	log          *logger.Logger
	mu           sync.Mutex
}

// NewService creates a service for cfg. When the index cannot be opened it
// is disabled and a warning is logged; sessions are then discovered on disk.
func NewService(cfg *config.Config, fsys fs.FileSystem) *Service {
	s := &Service{
		cfg:          cfg,
		fs:           fsys,
		materializer: NewMaterializer(fsys, cfg.OutputRoot, NewTemplates(cfg)),
		log:          logger.Global().WithPrefix("service"),
	}

	if !cfg.DisableIndex && cfg.IndexPath != "" {
		db, err := NewDatabase(cfg.IndexPath)
		if err != nil {
			s.log.Warn("session index disabled: %v", err)
		} else {
			s.db = db
		}
	}
	return s
}

// Close releases the index.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// FS returns the filesystem artifacts are read from.
func (s *Service) FS() fs.FileSystem {
	return s.fs
}

// Index returns the session index, or nil when it is disabled.
func (s *Service) Index() *Database {
	return s.db
}

// Materialize loads the configured task file and materializes it for now.
// Recording the session in the index is best effort.
func (s *Service) Materialize(ctx context.Context, now time.Time) (*Summary, error) {
	tasks, err := LoadTasks(s.cfg.TasksPath)
	if err != nil {
		return nil, err
	}
	return s.MaterializeTasks(ctx, tasks, now)
}

// MaterializeTasks runs the materializer over tasks and records the result.
func (s *Service) MaterializeTasks(ctx context.Context, tasks []Task, now time.Time) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.materializer.Run(ctx, tasks, now)
	if err != nil {
		return nil, err
	}

	if s.db != nil {
		if _, err := s.db.RecordSession(summary, s.cfg.OutputRoot, s.cfg.TasksPath); err != nil {
			s.log.Warn("failed to index session %s: %v", summary.Session.ID, err)
		}
	}
	return summary, nil
}

// Sessions lists the sessions on disk under the output root, newest first.
// Sessions the index knows about carry their index record; the others are
// still listed, without a UUID.
func (s *Service) Sessions(ctx context.Context) ([]*SessionRecord, error) {
	sessions, err := s.scanSessions(ctx)
	if err != nil || s.db == nil || len(sessions) == 0 {
		return sessions, err
	}

	indexed, err := s.db.ListSessions(s.cfg.OutputRoot, 0)
	if err != nil {
		s.log.Warn("failed to list indexed sessions: %v", err)
		return sessions, nil
	}

	byID := make(map[string]*SessionRecord, len(indexed))
	for _, record := range indexed {
		if _, seen := byID[record.ID]; !seen {
			byID[record.ID] = record
		}
	}
	for i, session := range sessions {
		if record, ok := byID[session.ID]; ok {
			sessions[i] = record
		}
	}
	return sessions, nil
}

// scanSessions discovers session directories under the output root.
func (s *Service) scanSessions(ctx context.Context) ([]*SessionRecord, error) {
	exists, err := s.fs.Exists(ctx, s.cfg.OutputRoot)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	entries, err := s.fs.ListDir(ctx, s.cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.cfg.OutputRoot, err)
	}

	var sessions []*SessionRecord
	for _, entry := range entries {
		name := filepath.Base(entry.Path)
		created, ok := parseSessionID(name)
		if !entry.IsDir || !ok {
			continue
		}
		sessions = append(sessions, &SessionRecord{
			ID:        name,
			Dir:       filepath.Join(s.cfg.OutputRoot, name),
			CreatedAt: created,
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	return sessions, nil
}

// Session resolves a session id, or LatestSession / "" for the newest one.
func (s *Service) Session(ctx context.Context, ts string) (*SessionRecord, error) {
	if ts == "" || ts == LatestSession {
		sessions, err := s.Sessions(ctx)
		if err != nil {
			return nil, err
		}
		if len(sessions) == 0 {
			return nil, fmt.Errorf("no sessions in %s: %w", s.cfg.OutputRoot, ErrNotFound)
		}
		return sessions[0], nil
	}

	created, ok := parseSessionID(ts)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrInvalidSessionID, ts)
	}

	dir := filepath.Join(s.cfg.OutputRoot, ts)
	info, err := s.fs.Stat(ctx, dir)
	if err != nil || !info.IsDir {
		return nil, fmt.Errorf("session %s: %w", ts, ErrNotFound)
	}

	if s.db != nil {
		record, err := s.db.GetSessionByTimestamp(s.cfg.OutputRoot, ts)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("failed to look up session %s: %v", ts, err)
		}
	}
	return &SessionRecord{ID: ts, Dir: dir, CreatedAt: created}, nil
}

// TaskDir resolves the directory of one task in a session.
func (s *Service) TaskDir(ctx context.Context, ts, taskID string) (string, error) {
	if reason := checkTaskID(taskID); reason != "" {
		return "", &ValidationError{Index: -1, TaskID: taskID, Field: "id", Reason: reason}
	}

	session, err := s.Session(ctx, ts)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(session.Dir, taskID)
	info, err := s.fs.Stat(ctx, dir)
	if err != nil || !info.IsDir {
		return "", fmt.Errorf("task %s in session %s: %w", taskID, session.ID, ErrNotFound)
	}
	return dir, nil
}

// Digests returns the prompt digests recorded for a session, or nil when
// the index does not know it.
func (s *Service) Digests(session *SessionRecord) map[string]string {
	if s.db == nil || session.UUID == "" {
		return nil
	}
	digests, err := s.db.Digests(session.UUID)
	if err != nil {
		s.log.Warn("failed to load digests for %s: %v", session.ID, err)
		return nil
	}
	return digests
}

// SyncStatuses copies the status from every result.json of a session into
// the index and returns the updated rows.
func (s *Service) SyncStatuses(ctx context.Context, ts string) ([]*TaskRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("session index is disabled")
	}

	session, err := s.Session(ctx, ts)
	if err != nil {
		return nil, err
	}
	if session.UUID == "" {
		return nil, fmt.Errorf("session %s is not indexed: %w", session.ID, ErrNotFound)
	}

	tasks, err := s.db.ListTasks(session.UUID)
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		data, err := s.fs.ReadFile(ctx, filepath.Join(task.Dir, consts.ResultFile))
		if err != nil {
			s.log.Warn("skipping %s: %v", task.TaskID, err)
			continue
		}
		status := Status(gjson.GetBytes(data, "status").String())
		if !status.Valid() {
			s.log.Warn("skipping %s: unknown status %q", task.TaskID, status)
			continue
		}
		if status == task.Status {
			continue
		}
		if err := s.db.UpdateTaskStatus(session.UUID, task.TaskID, status); err != nil {
			return nil, err
		}
		task.Status = status
	}
	return tasks, nil
}

func parseSessionID(id string) (time.Time, bool) {
	t, err := time.ParseInLocation(consts.SessionIDLayout, id, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
