package headless

import "sync"

// history is a browser's session history. Committing a new entry drops any
// forward entries.
type history struct {
	mu      sync.Mutex
	entries []string
	index   int
}

func newHistory() *history {
	return &history{index: -1}
}

func (h *history) push(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], url)
	h.index = len(h.entries) - 1
}

// replace overwrites the current entry, or pushes when history is empty.
func (h *history) replace(url string) {
	h.mu.Lock()
	if h.index < 0 {
		h.mu.Unlock()
		h.push(url)
		return
	}
	h.entries[h.index] = url
	h.mu.Unlock()
}

// peek returns the entry delta steps from the current one.
func (h *history) peek(delta int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index + delta
	if i < 0 || i >= len(h.entries) {
		return "", false
	}
	return h.entries[i], true
}

// move makes the entry delta steps away current.
func (h *history) move(delta int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.index + delta
	if i < 0 || i >= len(h.entries) {
		return false
	}
	h.index = i
	return true
}

func (h *history) canGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

func (h *history) canGoForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index >= 0 && h.index < len(h.entries)-1
}

func (h *history) current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		return ""
	}
	return h.entries[h.index]
}
