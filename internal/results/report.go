package results

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/fs"
)

// Counter counts tokens in a text.
type Counter interface {
	Count(text string) int
}

// TaskReport is the per-task row of a session report.
type TaskReport struct {
	TaskID             string              `json:"task_id"`
	Dir                string              `json:"directory"`
	Status             eval.Status         `json:"status,omitempty"`
	Tokens             eval.TokensEstimate `json:"tokens_estimate"`
	ToolCalls          eval.ToolCalls      `json:"tool_calls"`
	Notes              string              `json:"notes"`
	ChecklistDone      int                 `json:"checklist_done"`
	ChecklistTotal     int                 `json:"checklist_total"`
	PromptTokens       int                 `json:"prompt_tokens"`
	ReviewPromptTokens int                 `json:"review_prompt_tokens"`
	PromptModified     bool                `json:"prompt_modified"`
	Error              string              `json:"error,omitempty"`
}

// SessionReport aggregates the task reports of one session.
type SessionReport struct {
	SessionID string              `json:"session_id"`
	Dir       string              `json:"directory"`
	Tasks     []*TaskReport       `json:"tasks"`
	Counts    map[eval.Status]int `json:"counts"`
	Invalid   int                 `json:"invalid"`
	Tokens    eval.TokensEstimate `json:"tokens_estimate"`
	PassRate  float64             `json:"pass_rate"`
}

// Report builds the report of sessionDir. Tasks follow the order of the
// session's _README.md, or directory order when it is missing. digests maps
// task id to the prompt digest recorded at materialization and may be nil.
func Report(ctx context.Context, fsys fs.FileSystem, sessionDir string, counter Counter, digests map[string]string) (*SessionReport, error) {
	ids, err := taskOrder(ctx, fsys, sessionDir)
	if err != nil {
		return nil, err
	}

	report := &SessionReport{
		SessionID: filepath.Base(sessionDir),
		Dir:       sessionDir,
		Tasks:     make([]*TaskReport, 0, len(ids)),
		Counts:    make(map[eval.Status]int, len(eval.Statuses)),
	}
	for _, status := range eval.Statuses {
		report.Counts[status] = 0
	}

	for _, id := range ids {
		task := ReportTask(ctx, fsys, filepath.Join(sessionDir, id), id, counter, digests[id])
		report.Tasks = append(report.Tasks, task)
		if task.Error != "" {
			report.Invalid++
			continue
		}
		report.Counts[task.Status]++
		report.Tokens.Dev += task.Tokens.Dev
		report.Tokens.Review += task.Tokens.Review
	}

	if len(report.Tasks) > 0 {
		report.PassRate = float64(report.Counts[eval.StatusPass]) / float64(len(report.Tasks))
	}
	return report, nil
}

// ReportTask builds the report of a single task directory. Read failures
// are recorded in Error instead of being returned.
func ReportTask(ctx context.Context, fsys fs.FileSystem, taskDir, taskID string, counter Counter, digest string) *TaskReport {
	task := &TaskReport{TaskID: taskID, Dir: taskDir}

	var errs []error

	record, err := Read(ctx, fsys, taskDir)
	if err != nil {
		errs = append(errs, err)
	} else {
		task.Status = record.Status
		task.Tokens = record.TokensEstimate
		task.ToolCalls = record.ToolCalls
		task.Notes = record.Notes
	}

	if done, total, err := ReadChecklist(ctx, fsys, taskDir); err != nil {
		errs = append(errs, err)
	} else {
		task.ChecklistDone, task.ChecklistTotal = done, total
	}

	if prompt, err := fsys.ReadFile(ctx, filepath.Join(taskDir, consts.DevPromptFile)); err != nil {
		errs = append(errs, err)
	} else {
		task.PromptTokens = counter.Count(string(prompt))
		task.PromptModified = digest != "" && eval.PromptDigest(prompt) != digest
	}

	if review, err := fsys.ReadFile(ctx, filepath.Join(taskDir, consts.ReviewPromptFile)); err != nil {
		errs = append(errs, err)
	} else {
		task.ReviewPromptTokens = counter.Count(string(review))
	}

	if len(errs) > 0 {
		task.Error = errors.Join(errs...).Error()
	}
	return task
}

// taskOrder lists the task ids of a session.
func taskOrder(ctx context.Context, fsys fs.FileSystem, sessionDir string) ([]string, error) {
	entries, err := fsys.ListDir(ctx, sessionDir)
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]bool, len(entries))
	var fallback []string
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		name := filepath.Base(entry.Path)
		dirs[name] = true
		fallback = append(fallback, name)
	}

	readme, err := fsys.ReadFile(ctx, filepath.Join(sessionDir, consts.SessionReadme))
	if err != nil {
		return fallback, nil
	}

	ids := readmeTaskIDs(readme)
	ordered := make([]string, 0, len(fallback))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if dirs[id] && !seen[id] {
			ordered = append(ordered, id)
			seen[id] = true
		}
	}
	// Directories missing from the listing go last.
	for _, id := range fallback {
		if !seen[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered, nil
}

// readmeTaskIDs extracts ids from the "- <id> → <dir>" listing.
func readmeTaskIDs(readme []byte) []string {
	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(readme))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		id, _, ok := strings.Cut(strings.TrimPrefix(line, "- "), " → ")
		if ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
