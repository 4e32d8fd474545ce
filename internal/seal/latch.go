package seal

import "sync"

// Latch remembers the last payload delivered so a code held in front of
// the camera is handled once. Only a different payload re-arms it.
type Latch struct {
	mu   sync.Mutex
	last string
}

// Observe reports whether text differs from the last delivered payload and,
// if so, records it.
func (l *Latch) Observe(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if text == "" || text == l.last {
		return false
	}
	l.last = text
	return true
}

// Last returns the last delivered payload.
func (l *Latch) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Reset forgets the last payload.
func (l *Latch) Reset() {
	l.mu.Lock()
	l.last = ""
	l.mu.Unlock()
}
