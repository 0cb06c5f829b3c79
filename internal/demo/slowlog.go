package demo

import (
	"strings"
	"sync"
	"time"

	"github.com/qedis-go/qedis/slowlog"
)

// SlowEntry records one command that ran past the configured threshold.
type SlowEntry struct {
	Duration time.Duration
	Command  string
}

// SlowLog is a bounded, in-memory ring of slow commands, the demo
// package's stand-in for the reference implementation's QSlowLog.
type SlowLog struct {
	threshold time.Duration
	capacity  int

	mu      sync.Mutex
	entries []SlowEntry
}

// NewSlowLog returns a SlowLog recording commands that run at least
// thresholdMicros microseconds, keeping at most capacity entries.
func NewSlowLog(thresholdMicros int64, capacity int) *SlowLog {
	if capacity < 1 {
		capacity = 1
	}
	return &SlowLog{
		threshold: time.Duration(thresholdMicros) * time.Microsecond,
		capacity:  capacity,
	}
}

type slowToken struct{ start time.Time }

// Begin satisfies slowlog.SlowLog.
func (s *SlowLog) Begin() slowlog.Token {
	return slowToken{start: time.Now()}
}

// EndAndStat satisfies slowlog.SlowLog.
func (s *SlowLog) EndAndStat(tok slowlog.Token, argv [][]byte) {
	t, ok := tok.(slowToken)
	if !ok {
		return
	}
	elapsed := time.Since(t.start)
	if elapsed < s.threshold {
		return
	}

	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = string(a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, SlowEntry{Duration: elapsed, Command: strings.Join(parts, " ")})
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
}

// Entries returns a snapshot of recorded slow commands, oldest first.
func (s *SlowLog) Entries() []SlowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SlowEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
