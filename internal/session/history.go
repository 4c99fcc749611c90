package session

import "sync"

// promptPreviewLen bounds the prompt text kept per history entry.
const promptPreviewLen = 120

// historyRing keeps the most recent terminal sessions, newest first.
type historyRing struct {
	mu      sync.Mutex
	limit   int
	entries []HistoryEntry
}

func newHistoryRing(limit int) *historyRing {
	if limit <= 0 {
		limit = 100
	}
	return &historyRing{limit: limit}
}

func (h *historyRing) add(e HistoryEntry) {
	if len(e.Prompt) > promptPreviewLen {
		e.Prompt = e.Prompt[:promptPreviewLen] + "..."
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]HistoryEntry{e}, h.entries...)
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// list returns up to limit entries, newest first. limit <= 0 means all.
func (h *historyRing) list(limit int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}
