package router

import "sync"

// History is the navigation stack of the app. Push adds an entry, Replace
// overwrites the current one so Back never returns to it.
type History struct {
	mu      sync.Mutex
	entries []string
}

// NewHistory starts a history at path
func NewHistory(start string) *History {
	return &History{entries: []string{Clean(start)}}
}

// Navigate pushes path; it lets History act as the session store's navigator
func (h *History) Navigate(path string) {
	h.Push(path)
}

// Push adds path on top
func (h *History) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Clean(path))
}

// Replace overwrites the current entry
func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[len(h.entries)-1] = Clean(path)
}

// Back pops the current entry and returns the one below it
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) < 2 {
		return h.entries[0], false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// Current returns the path on top
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Entries returns a copy of the stack, oldest first
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}
