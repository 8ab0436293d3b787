package session

import "sync"

// Status is the session-level activity state. A turn and a background job
// are mutually exclusive: a turn runs only from Idle, a job claims the
// session by moving Idle to Blocked.
type Status int

const (
	StatusIdle Status = iota
	StatusProcessing
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusProcessing:
		return "processing"
	case StatusBlocked:
		return "blocked"
	}
	return "unknown"
}

// State owns the single-flight rule. It replaces a bare shared boolean with
// an explicit enum plus reason, so the invariant is mechanically checkable.
type State struct {
	mu     sync.Mutex
	status Status
	reason string
}

func NewState() *State {
	return &State{status: StatusIdle}
}

func (s *State) Snapshot() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.reason
}

// BeginTurn claims the session for one user turn. Refused while a
// background job is blocking or another turn is in flight; the returned
// reason feeds the paused notice.
func (s *State) BeginTurn() (reason string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusIdle:
		s.status = StatusProcessing
		return "", true
	case StatusBlocked:
		return s.reason, false
	default:
		return "Previous turn still processing.", false
	}
}

func (s *State) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusProcessing {
		s.status = StatusIdle
		s.reason = ""
	}
}

// TryBlock claims the session for a background job chain. Only succeeds
// from Idle, which is what keeps jobs and turns single-flight.
func (s *State) TryBlock(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusIdle {
		return false
	}
	s.status = StatusBlocked
	s.reason = reason
	return true
}

// SetBlockedReason updates the user-visible reason while already blocked,
// e.g. when a critical retry reports a failure or the chain moves to the
// next job.
func (s *State) SetBlockedReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusBlocked {
		s.reason = reason
	}
}

func (s *State) Unblock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusBlocked {
		s.status = StatusIdle
		s.reason = ""
	}
}
