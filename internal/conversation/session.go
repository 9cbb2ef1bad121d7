// Package conversation holds the role-tagged transcript sent to the model on
// every call, and the sliding-window policy that bounds it.
package conversation

import "fmt"

// Role tags who produced a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Turn is one message in the transcript. Turns are values and are never
// modified after they are appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxTurns is the number of non-system turns kept by Trim when the
// caller has no configured limit.
const DefaultMaxTurns = 100

// Session is the transcript for one file. The first turn is always the
// system instruction given to New.
type Session struct {
	turns []Turn
}

// New starts a session whose permanent head is the system prompt.
func New(systemPrompt string) *Session {
	return &Session{turns: []Turn{{Role: RoleSystem, Content: systemPrompt}}}
}

// AppendUser appends a user turn.
func (s *Session) AppendUser(text string) {
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: text})
}

// AppendAssistant appends an assistant turn.
func (s *Session) AppendAssistant(text string) {
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: text})
}

// Trim keeps the system turn plus the most recent maxTurns turns. It must be
// called between exchanges, never between a user turn and its reply.
func (s *Session) Trim(maxTurns int) {
	if maxTurns < 0 {
		maxTurns = 0
	}
	if len(s.turns) <= maxTurns+1 {
		return
	}
	kept := make([]Turn, 0, maxTurns+1)
	kept = append(kept, s.turns[0])
	kept = append(kept, s.turns[len(s.turns)-maxTurns:]...)
	s.turns = kept
}

// LastContent returns the content of the most recently appended turn.
func (s *Session) LastContent() string {
	return s.turns[len(s.turns)-1].Content
}

// Len returns the number of turns, system turn included.
func (s *Session) Len() int {
	return len(s.turns)
}

// Turns returns a copy of the transcript in conversational order.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SystemPrompt returns the content of the head turn.
func (s *Session) SystemPrompt() string {
	return s.turns[0].Content
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%d turns)", len(s.turns))
}
