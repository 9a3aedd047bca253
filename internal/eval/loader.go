package eval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codefionn/evalkit/internal/consts"
)

// Task source formats accepted by ParseTasks.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// FormatForPath picks the task source format from a file extension. Anything
// that is not .json is read as YAML.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// taskFile is the wrapped form `tasks: [...]`, accepted next to a bare list.
type taskFile struct {
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// LoadTasks reads, parses and validates the task list at path.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	tasks, err := ParseTasks(data, FormatForPath(path))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return tasks, nil
}

// ParseTasks decodes a task list and validates every record. The result
// keeps input order.
func ParseTasks(data []byte, format string) ([]Task, error) {
	var (
		tasks []Task
		err   error
	)

	switch format {
	case FormatJSON:
		tasks, err = parseJSONTasks(data)
	case FormatYAML:
		tasks, err = parseYAMLTasks(data)
	default:
		return nil, &ParseError{Err: fmt.Errorf("unsupported task format %q", format)}
	}
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	if err := ValidateTasks(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func parseYAMLTasks(data []byte) ([]Task, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("document is empty")
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var tasks []Task
		if err := root.Decode(&tasks); err != nil {
			return nil, err
		}
		return nonNil(tasks), nil
	case yaml.MappingNode:
		var wrapped taskFile
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		if !hasYAMLKey(root, "tasks") {
			return nil, errors.New(`expected a list of tasks or a "tasks" key`)
		}
		return nonNil(wrapped.Tasks), nil
	default:
		return nil, fmt.Errorf("line %d: expected a list of tasks", root.Line)
	}
}

func hasYAMLKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

func parseJSONTasks(data []byte) ([]Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("document is empty")
	}

	switch trimmed[0] {
	case '[':
		var tasks []Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, err
		}
		return nonNil(tasks), nil
	case '{':
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		raw, ok := wrapped["tasks"]
		if !ok {
			return nil, errors.New(`expected a list of tasks or a "tasks" key`)
		}
		var tasks []Task
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return nil, err
		}
		return nonNil(tasks), nil
	default:
		return nil, errors.New("expected a list of tasks")
	}
}

func nonNil(tasks []Task) []Task {
	if tasks == nil {
		return []Task{}
	}
	return tasks
}

// ValidateTasks checks every task and rejects duplicate ids.
func ValidateTasks(tasks []Task) error {
	seen := make(map[string]int, len(tasks))
	for i, task := range tasks {
		if err := validateTask(i, task); err != nil {
			return err
		}
		if first, dup := seen[task.ID]; dup {
			return &ValidationError{
				Index:  i,
				TaskID: task.ID,
				Field:  "id",
				Reason: fmt.Sprintf("duplicates task %d", first),
			}
		}
		seen[task.ID] = i
	}
	return nil
}

// ValidateTask checks a single task outside of a list.
func ValidateTask(task Task) error {
	return validateTask(-1, task)
}

func validateTask(index int, task Task) error {
	if reason := checkTaskID(task.ID); reason != "" {
		return &ValidationError{Index: index, TaskID: task.ID, Field: "id", Reason: reason}
	}
	if strings.TrimSpace(task.Prompt) == "" {
		return &ValidationError{Index: index, TaskID: task.ID, Field: "prompt", Reason: "is required"}
	}
	return nil
}

// checkTaskID returns why id cannot name a task directory, or "" if it can.
// Ids are never rewritten: anything outside [A-Za-z0-9._-] is refused, as
// are names that start with "." or "_" (the latter is reserved for session
// files such as _README.md).
func checkTaskID(id string) string {
	switch {
	case id == "":
		return "is required"
	case len(id) > consts.MaxTaskIDLength:
		return fmt.Sprintf("is longer than %d bytes", consts.MaxTaskIDLength)
	case id[0] == '.':
		return "must not start with '.'"
	case id[0] == '_':
		return "must not start with '_'"
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Sprintf("contains %q; only letters, digits, '.', '_' and '-' are allowed", r)
		}
	}
	return ""
}
