package core

import "time"

type MemoryType string

const (
	MemoryNote       MemoryType = "note"
	MemoryFact       MemoryType = "fact"
	MemoryPreference MemoryType = "preference"
	MemoryTask       MemoryType = "task"
	MemoryContext    MemoryType = "context"
)

// ValidMemoryType reports whether t is one of the known entry types.
func ValidMemoryType(t MemoryType) bool {
	switch t {
	case MemoryNote, MemoryFact, MemoryPreference, MemoryTask, MemoryContext:
		return true
	}
	return false
}

// MemoryEntry is one line of an instance's JSONL log.
type MemoryEntry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Type         MemoryType     `json:"type"`
	Content      string         `json:"content"`
	Tags         []string       `json:"tags"`
	Importance   float64        `json:"importance"`
	Source       string         `json:"source"`
	LastAccessed time.Time      `json:"last_accessed"`
	AccessCount  int            `json:"access_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ChatSession is one saved conversation, written whole to a single JSON file
// and immutable afterwards.
type ChatSession struct {
	SessionID    string         `json:"session_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Messages     []Message      `json:"messages"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	MessageCount int            `json:"message_count"`
}
