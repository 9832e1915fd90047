package captions

import (
	"strings"
	"sync"

	"github.com/orufy/signbridge/internal/protocol"
)

// Snapshot is the UI-facing view of the caption buffers.
type Snapshot struct {
	Live     string   `json:"live"`
	Words    []string `json:"words"`
	History  []string `json:"history"`
	LastSeen int64    `json:"last_seen_ms"`
}

// Router classifies inbound captions by granularity and maintains the
// three-tier buffers. The upstream recognizer revises its guess
// continuously: live text is a transient guess, word text is
// word-confirmed, and only sentence promotions are final. History is
// append-only and never deduplicated.
type Router struct {
	mu       sync.Mutex
	live     string
	words    []string
	history  []string
	lastSeen int64
}

func NewRouter() *Router {
	return &Router{}
}

// Apply folds one caption envelope into the buffers and returns the
// resulting snapshot.
//
//   - live: replaces the live buffer.
//   - word: replaces the word buffer and clears the live guess.
//   - sentence: promotes the joined word buffer (or, if empty, the
//     envelope's own text) to history, then clears both lower tiers.
func (r *Router) Apply(c protocol.Caption) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen = c.TimestampMS

	switch c.Level {
	case protocol.LevelLive:
		r.live = c.Text
	case protocol.LevelWord:
		r.words = strings.Fields(c.Text)
		r.live = ""
	case protocol.LevelSentence:
		entry := strings.Join(r.words, " ")
		if entry == "" {
			entry = c.Text
		}
		if entry != "" {
			r.history = append(r.history, entry)
		}
		r.words = nil
		r.live = ""
	}
	return r.snapshotLocked()
}

func (r *Router) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Reset clears all transient buffers; history survives only as the
// returned value.
func (r *Router) Reset() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.history
	r.live = ""
	r.words = nil
	r.history = nil
	return history
}

func (r *Router) snapshotLocked() Snapshot {
	words := make([]string, len(r.words))
	copy(words, r.words)
	history := make([]string, len(r.history))
	copy(history, r.history)
	return Snapshot{Live: r.live, Words: words, History: history, LastSeen: r.lastSeen}
}
