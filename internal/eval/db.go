package eval

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when an index lookup matches nothing.
var ErrNotFound = errors.New("not found")

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	UUID       string    `db:"uuid" json:"uuid"`
	ID         string    `db:"timestamp_id" json:"timestamp_id"`
	OutputRoot string    `db:"output_root" json:"output_root"`
	Dir        string    `db:"directory" json:"directory"`
	TasksPath  string    `db:"tasks_path" json:"tasks_path"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	TaskCount  int       `db:"task_count" json:"task_count"`
}

// TaskRecord is one row of the session_tasks table.
type TaskRecord struct {
	SessionUUID  string    `db:"session_uuid" json:"session_uuid"`
	TaskID       string    `db:"task_id" json:"task_id"`
	Dir          string    `db:"directory" json:"directory"`
	Status       Status    `db:"status" json:"status"`
	PromptDigest string    `db:"prompt_digest" json:"prompt_digest"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PromptDigest is the xxhash64 of a prompt body in hex.
func PromptDigest(prompt []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(prompt))
}

// Database is the SQLite session index
type Database struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewDatabase opens (and creates if needed) the index at dbPath
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{db: db, dbPath: dbPath, now: time.Now}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Path returns the database file path
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		uuid TEXT PRIMARY KEY,
		timestamp_id TEXT NOT NULL,
		output_root TEXT NOT NULL DEFAULT '',
		directory TEXT NOT NULL UNIQUE,
		tasks_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		task_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_tasks (
		session_uuid TEXT NOT NULL,
		task_id TEXT NOT NULL,
		directory TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		prompt_digest TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (session_uuid, task_id),
		FOREIGN KEY (session_uuid) REFERENCES sessions(uuid) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp_id);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create initial schema: %w", err)
	}

	if err := d.autoMigrateTable("sessions", &SessionRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate sessions: %w", err)
	}
	if err := d.autoMigrateTable("session_tasks", &TaskRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate session_tasks: %w", err)
	}
	// Indexes created before output_root existed only gain the column
	// through auto-migration.
	if _, err := d.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_root ON sessions(output_root, timestamp_id)"); err != nil {
		return fmt.Errorf("failed to create output root index: %w", err)
	}
	return nil
}

// autoMigrateTable adds columns for db-tagged fields the table lacks.
func (d *Database) autoMigrateTable(tableName string, model interface{}) error {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	existing, err := d.columns(tableName)
	if err != nil {
		return err
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		column := strings.Split(tag, ",")[0]
		if existing[strings.ToLower(column)] {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", tableName, column, sqliteType(field.Type))
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to add column %s: %w", column, err)
		}
	}
	return nil
}

func (d *Database) columns(tableName string) (map[string]bool, error) {
	rows, err := d.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			dtype     string
			notnull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dtype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns[strings.ToLower(name)] = true
	}
	return columns, rows.Err()
}

func sqliteType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return "DATETIME"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8,
		reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		return "INTEGER"
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.Float64, reflect.Float32:
		return "REAL"
	default:
		return "TEXT"
	}
}

// RecordSession stores a finished session under outputRoot and one row per
// task. Directories are stored as absolute paths so the index stays valid
// from any working directory.
func (d *Database) RecordSession(summary *Summary, outputRoot, tasksPath string) (*SessionRecord, error) {
	if summary == nil || summary.Session == nil {
		return nil, fmt.Errorf("summary cannot be nil")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session uuid: %w", err)
	}

	record := &SessionRecord{
		UUID:       id.String(),
		ID:         summary.Session.ID,
		OutputRoot: AbsPath(outputRoot),
		Dir:        AbsPath(summary.Session.Dir),
		TasksPath:  tasksPath,
		CreatedAt:  summary.Session.CreatedAt.UTC(),
		TaskCount:  len(summary.Artifacts),
	}

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// A directory that was deleted and materialized again replaces its
	// stale row.
	if _, err := tx.Exec(`DELETE FROM sessions WHERE directory = ?`, record.Dir); err != nil {
		return nil, fmt.Errorf("failed to replace session: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO sessions (uuid, timestamp_id, output_root, directory, tasks_path, created_at, task_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.UUID, record.ID, record.OutputRoot, record.Dir, record.TasksPath, record.CreatedAt, record.TaskCount); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	updated := d.now().UTC()
	for _, set := range summary.Artifacts {
		if _, err := tx.Exec(`
			INSERT INTO session_tasks (session_uuid, task_id, directory, status, prompt_digest, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, record.UUID, set.TaskID, AbsPath(set.Dir), string(set.Result.Status), PromptDigest([]byte(set.DevPrompt)), updated); err != nil {
			return nil, fmt.Errorf("failed to insert task %s: %w", set.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return record, nil
}

const sessionColumns = "uuid, timestamp_id, output_root, directory, tasks_path, created_at, task_count"

func scanSession(row interface{ Scan(...interface{}) error }) (*SessionRecord, error) {
	s := &SessionRecord{}
	if err := row.Scan(&s.UUID, &s.ID, &s.OutputRoot, &s.Dir, &s.TasksPath, &s.CreatedAt, &s.TaskCount); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns the sessions recorded under outputRoot, newest
// first. limit <= 0 means all.
func (d *Database) ListSessions(outputRoot string, limit int) ([]*SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE output_root = ?
		ORDER BY created_at DESC, uuid DESC
	`
	args := []interface{}{AbsPath(outputRoot)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSessionByTimestamp returns the newest session recorded under
// outputRoot with id ts.
func (d *Database) GetSessionByTimestamp(outputRoot, ts string) (*SessionRecord, error) {
	s, err := scanSession(d.db.QueryRow(`SELECT `+sessionColumns+`
		FROM sessions WHERE output_root = ? AND timestamp_id = ?
		ORDER BY uuid DESC LIMIT 1
	`, AbsPath(outputRoot), ts))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", ts, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AbsPath returns path made absolute, or cleaned when the working
// directory is unknown.
func AbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// ListTasks returns a session's tasks in materialization order.
func (d *Database) ListTasks(sessionUUID string) ([]*TaskRecord, error) {
	rows, err := d.db.Query(`
		SELECT session_uuid, task_id, directory, status, prompt_digest, updated_at
		FROM session_tasks WHERE session_uuid = ?
		ORDER BY rowid
	`, sessionUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*TaskRecord
	for rows.Next() {
		t := &TaskRecord{}
		var status string
		if err := rows.Scan(&t.SessionUUID, &t.TaskID, &t.Dir, &status, &t.PromptDigest, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = Status(status)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Digests maps task id to prompt digest for a session.
func (d *Database) Digests(sessionUUID string) (map[string]string, error) {
	tasks, err := d.ListTasks(sessionUUID)
	if err != nil {
		return nil, err
	}
	digests := make(map[string]string, len(tasks))
	for _, t := range tasks {
		digests[t.TaskID] = t.PromptDigest
	}
	return digests, nil
}

// UpdateTaskStatus stores the status last seen in a task's result.json.
func (d *Database) UpdateTaskStatus(sessionUUID, taskID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	result, err := d.db.Exec(`
		UPDATE session_tasks SET status = ?, updated_at = ?
		WHERE session_uuid = ? AND task_id = ?
	`, string(status), d.now().UTC(), sessionUUID, taskID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s in session %s: %w", taskID, sessionUUID, ErrNotFound)
	}
	return nil
}
