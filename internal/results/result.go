// Package results reads and updates the result records of materialized
// tasks and aggregates them into session reports.
package results

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/eval"
	"github.com/codefionn/evalkit/internal/fs"
)

// ErrInvalidJSON is returned for a result.json that is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Path returns the result.json path of a task directory.
func Path(taskDir string) string {
	return filepath.Join(taskDir, consts.ResultFile)
}

// Read loads the result record of a task directory. Missing keys keep their
// zero value; extra keys are ignored.
func Read(ctx context.Context, fsys fs.FileSystem, taskDir string) (eval.ResultRecord, error) {
	data, err := fsys.ReadFile(ctx, Path(taskDir))
	if err != nil {
		return eval.ResultRecord{}, err
	}
	return Parse(data)
}

// Parse decodes a result record with gjson.
func Parse(data []byte) (eval.ResultRecord, error) {
	if !gjson.ValidBytes(data) {
		return eval.ResultRecord{}, ErrInvalidJSON
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return eval.ResultRecord{}, fmt.Errorf("%w: expected an object", ErrInvalidJSON)
	}

	record := eval.ResultRecord{
		TaskID: root.Get("task_id").String(),
		Notes:  root.Get("notes").String(),
		TokensEstimate: eval.TokensEstimate{
			Dev:    int(root.Get("tokens_estimate.dev").Int()),
			Review: int(root.Get("tokens_estimate.review").Int()),
		},
		ToolCalls: eval.ToolCalls{},
	}

	status, err := eval.ParseStatus(root.Get("status").String())
	if err != nil {
		return eval.ResultRecord{}, err
	}
	record.Status = status

	root.Get("tool_calls").ForEach(func(key, value gjson.Result) bool {
		record.ToolCalls = append(record.ToolCalls, eval.ToolCallCount{
			Name:  key.String(),
			Count: int(value.Int()),
		})
		return true
	})

	return record, nil
}
