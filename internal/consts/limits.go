package consts

import "time"

// Session layout
const (
	// SessionIDLayout formats a session timestamp as a sortable directory name
	SessionIDLayout = "2006-01-02_15-04-05"
	// SessionReadme is the session-level summary file
	SessionReadme = "_README.md"
	// DevPromptFile holds the developer agent prompt
	DevPromptFile = "prompt.txt"
	// ReviewPromptFile holds the reviewer agent prompt
	ReviewPromptFile = "review_prompt.txt"
	// ChecklistFile holds the acceptance checklist
	ChecklistFile = "checklist.md"
	// ResultFile holds the mutable result record
	ResultFile = "result.json"
)

// Task id limits
const (
	// MaxTaskIDLength is the longest accepted task id in bytes
	MaxTaskIDLength = 128
)

// File permissions
const (
	DirPerm  = 0755
	FilePerm = 0644
)

// Buffer sizes for various operations
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
)

// Timeouts for various operations
const (
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout60Seconds is a 60 second timeout (1 minute)
	Timeout60Seconds = 60 * time.Second
)

// Result watcher debounce
const (
	// WatchDebounce coalesces bursts of writes to a single result file
	WatchDebounce = 200 * time.Millisecond
)
