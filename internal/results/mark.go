package results

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/fs"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Update lists the fields Mark changes. Nil and empty fields are left as
// they are in the file.
type Update struct {
	Status       eval.Status
	Notes        *string
	DevTokens    *int
	ReviewTokens *int
	ToolCalls    []eval.ToolCallCount
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Status == "" && u.Notes == nil && u.DevTokens == nil && u.ReviewTokens == nil && len(u.ToolCalls) == 0
}

// Mark applies u to the result.json of taskDir in place. Keys the update
// does not touch keep their value and position. The file is replaced
// atomically.
func Mark(ctx context.Context, fsys fs.FileSystem, taskDir string, u Update) (eval.ResultRecord, error) {
	path := Path(taskDir)
	data, err := fsys.ReadFile(ctx, path)
	if err != nil {
		return eval.ResultRecord{}, err
	}

	updated, err := Apply(data, u)
	if err != nil {
		return eval.ResultRecord{}, fmt.Errorf("%s: %w", path, err)
	}

	if err := fsys.WriteFile(ctx, path, updated); err != nil {
		return eval.ResultRecord{}, &eval.IOError{Op: "write", Path: path, Err: err}
	}
	return Parse(updated)
}

// Apply returns data with u applied.
func Apply(data []byte, u Update) ([]byte, error) {
	current, err := Parse(data)
	if err != nil {
		return nil, err
	}

	out := data
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, value)
	}

	if u.Status != "" {
		next, perr := eval.ParseStatus(string(u.Status))
		if perr != nil {
			return nil, perr
		}
		if !current.Status.CanTransition(next) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
		}
		set("status", string(next))
	}
	if u.Notes != nil {
		set("notes", *u.Notes)
	}
	if u.DevTokens != nil {
		if *u.DevTokens < 0 {
			return nil, fmt.Errorf("dev tokens must not be negative")
		}
		set("tokens_estimate.dev", *u.DevTokens)
	}
	if u.ReviewTokens != nil {
		if *u.ReviewTokens < 0 {
			return nil, fmt.Errorf("review tokens must not be negative")
		}
		set("tokens_estimate.review", *u.ReviewTokens)
	}
	for _, tc := range u.ToolCalls {
		if tc.Name == "" {
			return nil, fmt.Errorf("tool call name must not be empty")
		}
		if tc.Count < 0 {
			return nil, fmt.Errorf("tool call %s must not be negative", tc.Name)
		}
		set("tool_calls."+escapeKey(tc.Name), tc.Count)
	}
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(out) {
		return nil, ErrInvalidJSON
	}
	return out, nil
}

// escapeKey makes name usable as a single path component.
func escapeKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
