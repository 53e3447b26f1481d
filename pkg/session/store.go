package session

import (
	"fmt"
	"sync"

	"github.com/infrasketch/sketchd/pkg/diagram"
)

// Store holds the client's single active session, or none. All reads
// return deep copies and all writes go through store methods, so callers
// can poll from one goroutine while editing from another. The store does
// not serialize higher-level operations: two overlapping mutations
// last-write-win at the diagram field, which the Editor's in-flight
// tracking makes observable.
type Store struct {
	mu        sync.RWMutex
	sess      *Session
	selection string
}

// NewStore returns an empty store with no active session.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the store content with the given session wholesale and
// clears any selection. The previous session, if any, is discarded.
func (s *Store) Load(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess.Clone()
	s.selection = ""
}

// Reset returns the store to the no-active-session state. This is the
// only operation that shrinks the transcript.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	s.selection = ""
}

// Active reports whether a session is loaded.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil
}

// SessionID returns the active session id, or empty.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.ID
}

// Session returns a deep copy of the active session, or nil.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.Clone()
}

// Diagram returns a deep copy of the active diagram, or nil.
func (s *Store) Diagram() *diagram.Diagram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil
	}
	return s.sess.Diagram.Clone()
}

// DiagramVersion returns the version of the active diagram, or 0.
func (s *Store) DiagramVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil || s.sess.Diagram == nil {
		return 0
	}
	return s.sess.Diagram.Version
}

// Messages returns a copy of the transcript.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil
	}
	out := make([]Message, len(s.sess.Messages))
	copy(out, s.sess.Messages)
	return out
}

// Name returns the session name and whether it was AI-generated.
func (s *Store) Name() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return "", false
	}
	return s.sess.Name, s.sess.NameGenerated
}

// DesignDoc returns the design document content and its status.
func (s *Store) DesignDoc() (string, DesignDocStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return "", DesignDocNone
	}
	return s.sess.DesignDoc, s.sess.DesignDocStatus
}

// Selection returns the focused node id, or empty.
func (s *Store) Selection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// Select focuses a node. Moving focus to a different node appends a
// system transcript entry naming it; re-selecting the current node is a
// no-op so repeated clicks do not spam the transcript.
func (s *Store) Select(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil || nodeID == "" || nodeID == s.selection {
		return
	}
	s.selection = nodeID

	label := nodeID
	if s.sess.Diagram != nil {
		if n := s.sess.Diagram.NodeByID(nodeID); n != nil && n.Label != "" {
			label = n.Label
		}
	}
	s.sess.Messages = append(s.sess.Messages, NewMessage(RoleSystem, fmt.Sprintf("Focused on node: %s", label)))
}

// ClearSelection drops focus without touching the transcript.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = ""
}

// ApplyDiagram replaces the active diagram in full. There is no merge;
// the server response is authoritative.
func (s *Store) ApplyDiagram(d *diagram.Diagram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	s.sess.Diagram = d.Clone()
}

// AppendMessage appends one transcript entry.
func (s *Store) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	s.sess.Messages = append(s.sess.Messages, m)
}

// SetName records a new session name.
func (s *Store) SetName(name string, generated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	s.sess.Name = name
	s.sess.NameGenerated = generated
}

// SetDesignDoc records design document content and status.
func (s *Store) SetDesignDoc(content string, status DesignDocStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return
	}
	s.sess.DesignDoc = content
	s.sess.DesignDocStatus = status
}
