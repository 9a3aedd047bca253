package eval

import "fmt"

// ParseError reports a task source that is missing or malformed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse tasks: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse tasks from %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a task record that cannot be materialized.
type ValidationError struct {
	Index  int // position in the task list, -1 when unknown
	TaskID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	where := "task"
	if e.Index >= 0 {
		where = fmt.Sprintf("task %d", e.Index)
	}
	if e.TaskID != "" {
		where = fmt.Sprintf("%s (%q)", where, e.TaskID)
	}
	return fmt.Sprintf("%s: %s %s", where, e.Field, e.Reason)
}

// IOError reports a directory or file operation that failed while
// materializing a session.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
