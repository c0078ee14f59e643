package syncpad

import "sync"

const sessionMailboxSize = 64

// Session is the registry-side handle for one connected client. It owns
// a buffered mailbox that the transport drains; the registry pushes
// broadcasts into it and closes it on disconnect. A session whose
// mailbox overflows is kicked rather than allowed to stall the
// document.
type Session struct {
	identity uint64
	docID    string

	mu       sync.Mutex
	closed   bool
	outbound chan ServerMsg
}

// newSession sizes the mailbox so the connect handshake (identity,
// snapshot, and one roster entry per user already present) always fits
// on top of the broadcast headroom, however large the roster is.
func newSession(identity uint64, docID string, rosterSize int) *Session {
	if rosterSize < 0 {
		rosterSize = 0
	}
	return &Session{
		identity: identity,
		docID:    docID,
		outbound: make(chan ServerMsg, sessionMailboxSize+2+rosterSize),
	}
}

// Identity is the per-document numeric identity assigned at connect.
func (s *Session) Identity() uint64 { return s.identity }

// DocumentID is the id of the document this session is attached to.
func (s *Session) DocumentID() string { return s.docID }

// Outbound is the channel the transport reads server messages from. It
// is closed when the session is disconnected or kicked.
func (s *Session) Outbound() <-chan ServerMsg { return s.outbound }

// Send queues a message without blocking. It reports false when the
// session is closed or its mailbox is full.
func (s *Session) Send(msg ServerMsg) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.outbound <- msg:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}
