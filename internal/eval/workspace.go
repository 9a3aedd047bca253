package eval

import (
	"context"
	"path/filepath"
	"time"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/fs"
	"github.com/codefionn/evalkit/internal/logger"
)

// Session is one run's worth of materialized tasks.
type Session struct {
	ID        string
	Dir       string
	Tasks     []Task
	CreatedAt time.Time
}

// ArtifactSet is everything generated for one task.
type ArtifactSet struct {
	TaskID       string
	Dir          string
	DevPrompt    string
	ReviewPrompt string
	Checklist    string
	Result       ResultRecord
	ResultJSON   []byte
}

// Files lists the artifact paths in write order.
func (a *ArtifactSet) Files() []string {
	return []string{
		filepath.Join(a.Dir, consts.DevPromptFile),
		filepath.Join(a.Dir, consts.ReviewPromptFile),
		filepath.Join(a.Dir, consts.ChecklistFile),
		filepath.Join(a.Dir, consts.ResultFile),
	}
}

// Summary is what a finished run reports to its caller.
type Summary struct {
	Session    *Session
	Artifacts  []*ArtifactSet
	ReadmePath string
	Lines      []string
}

// SessionID formats now as a sortable directory name.
func SessionID(now time.Time) string {
	return now.Format(consts.SessionIDLayout)
}

// Materializer expands task lists into session directories.
type Materializer struct {
	fs         fs.FileSystem
	outputRoot string
	templates  Templates
	log        *logger.Logger
}

// NewMaterializer creates a materializer writing below outputRoot.
func NewMaterializer(fsys fs.FileSystem, outputRoot string, templates Templates) *Materializer {
	return &Materializer{
		fs:         fsys,
		outputRoot: outputRoot,
		templates:  templates,
		log:        logger.Global().WithPrefix("materializer"),
	}
}

// OutputRoot returns the directory sessions are created in.
func (m *Materializer) OutputRoot() string {
	return m.outputRoot
}

// Run validates tasks, creates a session for now, materializes every task in
// input order and writes the session summary. The first error aborts the
// run; directories already created are left in place.
func (m *Materializer) Run(ctx context.Context, tasks []Task, now time.Time) (*Summary, error) {
	if err := ValidateTasks(tasks); err != nil {
		return nil, err
	}

	session, err := m.CreateSession(ctx, tasks, now)
	if err != nil {
		return nil, err
	}

	sets := make([]*ArtifactSet, 0, len(session.Tasks))
	for _, task := range session.Tasks {
		set, err := m.MaterializeTask(ctx, session, task)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	return m.FinalizeSession(ctx, session, sets)
}

// CreateSession creates the session directory. An existing directory for
// the same second is an error.
func (m *Materializer) CreateSession(ctx context.Context, tasks []Task, now time.Time) (*Session, error) {
	if err := m.fs.MkdirAll(ctx, m.outputRoot, consts.DirPerm); err != nil {
		return nil, &IOError{Op: "create output root", Path: m.outputRoot, Err: err}
	}

	id := SessionID(now)
	dir := filepath.Join(m.outputRoot, id)
	if err := m.fs.Mkdir(ctx, dir, consts.DirPerm); err != nil {
		return nil, &IOError{Op: "create session directory", Path: dir, Err: err}
	}

	m.log.Info("created session %s with %d tasks", dir, len(tasks))

	return &Session{
		ID:        id,
		Dir:       dir,
		Tasks:     append([]Task(nil), tasks...),
		CreatedAt: now,
	}, nil
}

// MaterializeTask writes the four artifacts for task into its own directory
// below the session. The task is validated before anything is created.
func (m *Materializer) MaterializeTask(ctx context.Context, session *Session, task Task) (*ArtifactSet, error) {
	if err := ValidateTask(task); err != nil {
		return nil, err
	}

	set := &ArtifactSet{
		TaskID:       task.ID,
		Dir:          filepath.Join(session.Dir, task.ID),
		DevPrompt:    m.templates.DevPrompt(task),
		ReviewPrompt: m.templates.ReviewPrompt(task.ID),
		Checklist:    m.templates.Checklist(task.ID),
		Result:       m.templates.PendingResult(task.ID),
	}

	resultJSON, err := set.Result.Encode()
	if err != nil {
		return nil, &IOError{Op: "encode result", Path: task.ID, Err: err}
	}
	set.ResultJSON = resultJSON

	if err := m.fs.Mkdir(ctx, set.Dir, consts.DirPerm); err != nil {
		return nil, &IOError{Op: "create task directory", Path: set.Dir, Err: err}
	}

	contents := [][]byte{
		[]byte(set.DevPrompt),
		[]byte(set.ReviewPrompt),
		[]byte(set.Checklist),
		set.ResultJSON,
	}
	for i, path := range set.Files() {
		if err := m.fs.WriteFile(ctx, path, contents[i]); err != nil {
			return nil, &IOError{Op: "write", Path: path, Err: err}
		}
	}

	m.log.Debug("materialized task %s in %s", task.ID, set.Dir)
	return set, nil
}

// FinalizeSession writes _README.md listing every task in the given order.
func (m *Materializer) FinalizeSession(ctx context.Context, session *Session, sets []*ArtifactSet) (*Summary, error) {
	lines := make([]string, 0, len(sets))
	for _, set := range sets {
		lines = append(lines, SummaryLine(set.TaskID, set.Dir))
	}

	readme := filepath.Join(session.Dir, consts.SessionReadme)
	if err := m.fs.WriteFile(ctx, readme, []byte(m.templates.Readme(session.ID, lines))); err != nil {
		return nil, &IOError{Op: "write", Path: readme, Err: err}
	}

	m.log.Info("finalized session %s", session.Dir)

	return &Summary{
		Session:    session,
		Artifacts:  sets,
		ReadmePath: readme,
		Lines:      lines,
	}, nil
}
