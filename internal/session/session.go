package session

import "strings"

// Well-known session types.
const (
	TypeAgent = "Agent"
	TypeTeam  = "Team"
)

// Session is a conversation session record as stored by the backend.
type Session struct {
	ID          string `json:"session_id"`
	SessionType string `json:"session_type"`
	AgentID     string `json:"agent_id,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Title       string `json:"title,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// TypeMatches reports whether the session's declared type equals the
// expected type, ignoring case and surrounding whitespace.
func (s *Session) TypeMatches(expected string) bool {
	if s == nil {
		return false
	}
	got := strings.TrimSpace(s.SessionType)
	return strings.EqualFold(got, strings.TrimSpace(expected))
}
