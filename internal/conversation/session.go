package conversation

import (
	"sync"
	"time"
)

// Stage is the coarse conversational phase used to condition the greeting
// directive. It only ever moves forward.
type Stage string

const (
	StageInitial Stage = "initial"
	StageActive  Stage = "active"
)

// DefaultHistoryLimit caps retained messages per session, both roles counted.
const DefaultHistoryLimit = 10

// Session holds the mutable per-chat state: the bounded message history and
// the conversation stage. Sessions are owned exclusively by the Store.
type Session struct {
	identity string

	// turnMu serializes whole turns for one chat identity. Independent
	// identities never contend on it.
	turnMu sync.Mutex

	mu           sync.Mutex
	stage        Stage
	history      []ChatMessage
	limit        int
	paid         bool
	lastActivity time.Time
}

// Identity returns the stable chat key this session belongs to.
func (s *Session) Identity() string {
	return s.identity
}

// LockTurn blocks until this session's current turn (if any) completes.
func (s *Session) LockTurn() {
	s.turnMu.Lock()
}

// UnlockTurn releases the turn lock.
func (s *Session) UnlockTurn() {
	s.turnMu.Unlock()
}

// Append adds a message to the tail of the history, evicting from the head
// until the configured capacity holds.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, ChatMessage{Role: role, Content: content})
	for len(s.history) > s.limit {
		s.history = s.history[1:]
	}
	s.lastActivity = time.Now()
}

// History returns a copy of the retained messages, oldest first. Callers must
// mutate history only through Append.
func (s *Session) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]ChatMessage, len(s.history))
	copy(snapshot, s.history)
	return snapshot
}

// Len returns the current history length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Stage returns the current conversational stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// advanceStage moves the session to active. The transition is monotonic: once
// active, later calls are no-ops.
func (s *Session) advanceStage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = StageActive
}

// Paid reports whether payment confirmation was recorded for this chat. The
// flag is only ever surfaced as instruction text, never enforced.
func (s *Session) Paid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paid
}

// MarkPaid records a payment confirmation for this chat.
func (s *Session) MarkPaid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paid = true
}

// LastActivity returns when the session last appended a message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Store maps chat identities to sessions. It is safe for concurrent access
// from independent identities; within one identity callers serialize turns
// through Session.LockTurn.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
	ttl      time.Duration
}

// NewStore creates a session store. limit caps per-session history; ttl is
// the idle duration after which CleanupExpired removes a session. A zero or
// negative ttl disables expiry.
func NewStore(limit int, ttl time.Duration) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{
		sessions: make(map[string]*Session),
		limit:    limit,
		ttl:      ttl,
	}
}

// GetOrCreate returns the session for identity, creating it with an empty
// history and the initial stage on first access. Creation is idempotent.
func (st *Store) GetOrCreate(identity string) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[identity]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[identity]; ok {
		return sess
	}
	sess = &Session{
		identity:     identity,
		stage:        StageInitial,
		limit:        st.limit,
		lastActivity: time.Now(),
	}
	st.sessions[identity] = sess
	return sess
}

// Lookup returns the session for identity without creating one.
func (st *Store) Lookup(identity string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[identity]
	return sess, ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CleanupExpired removes sessions idle longer than the store TTL and returns
// how many were removed. Sessions with a turn in flight are skipped.
func (st *Store) CleanupExpired() int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	removed := 0
	for identity, sess := range st.sessions {
		if now.Sub(sess.LastActivity()) <= st.ttl {
			continue
		}
		if !sess.turnMu.TryLock() {
			continue
		}
		delete(st.sessions, identity)
		sess.turnMu.Unlock()
		removed++
	}
	return removed
}
