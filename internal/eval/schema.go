package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Task is a unit of work to be expanded into prompt artifacts.
type Task struct {
	ID     string `json:"id" yaml:"id"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Status is the lifecycle state of a result record.
type Status string

const (
	StatusPending Status = "pending"
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusPartial Status = "partial"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusPass, StatusFail, StatusPartial}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q (want one of pending, pass, fail, partial)", s)
	}
	return status, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPass, StatusFail, StatusPartial:
		return true
	}
	return false
}

// Terminal reports whether s is an outcome recorded by a human.
func (s Status) Terminal() bool {
	return s == StatusPass || s == StatusFail || s == StatusPartial
}

// CanTransition reports whether a record in state s may move to next.
// Records leave pending once and never return to it; outcomes may be
// corrected.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Terminal() {
		return false
	}
	return true
}

// TokensEstimate holds rough token counts for the two agent passes.
type TokensEstimate struct {
	Dev    int `json:"dev"`
	Review int `json:"review"`
}

// ToolCallCount is a single named counter.
type ToolCallCount struct {
	Name  string
	Count int
}

// ToolCalls is an ordered set of counters. It encodes as a JSON object whose
// keys keep their configured order.
type ToolCalls []ToolCallCount

// NewToolCalls returns zeroed counters for names.
func NewToolCalls(names []string) ToolCalls {
	calls := make(ToolCalls, 0, len(names))
	for _, name := range names {
		calls = append(calls, ToolCallCount{Name: name})
	}
	return calls
}

// Get returns the count for name, or zero.
func (tc ToolCalls) Get(name string) int {
	for _, c := range tc {
		if c.Name == name {
			return c.Count
		}
	}
	return 0
}

// Total sums all counters.
func (tc ToolCalls) Total() int {
	total := 0
	for _, c := range tc {
		total += c.Count
	}
	return total
}

func (tc ToolCalls) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range tc {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", c.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (tc *ToolCalls) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tool_calls must be an object")
	}

	calls := ToolCalls{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("tool_calls[%q]: %w", key, err)
		}
		calls = append(calls, ToolCallCount{Name: key, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*tc = calls
	return nil
}

// ResultRecord is the content of result.json.
type ResultRecord struct {
	TaskID         string         `json:"task_id"`
	Status         Status         `json:"status"`
	TokensEstimate TokensEstimate `json:"tokens_estimate"`
	ToolCalls      ToolCalls      `json:"tool_calls"`
	Notes          string         `json:"notes"`
}

// NewPendingResult returns the record written for a freshly materialized task.
func NewPendingResult(taskID string, toolCalls []string) ResultRecord {
	return ResultRecord{
		TaskID:    taskID,
		Status:    StatusPending,
		ToolCalls: NewToolCalls(toolCalls),
	}
}

// Encode renders the record as two-space indented JSON with a trailing
// newline. Key order is fixed by the struct and by ToolCalls.
func (r ResultRecord) Encode() ([]byte, error) {
	if r.ToolCalls == nil {
		r.ToolCalls = ToolCalls{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeResult parses a result.json document.
func DecodeResult(data []byte) (ResultRecord, error) {
	var r ResultRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return ResultRecord{}, err
	}
	if !r.Status.Valid() {
		return ResultRecord{}, fmt.Errorf("unknown status %q", r.Status)
	}
	return r, nil
}

func marshalNoEscape(v string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
