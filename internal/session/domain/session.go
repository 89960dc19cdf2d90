package domain

import "time"

// Session is the workspace binding of one HTTP client session (cookie).
// Folder is empty until provisioning binds it.
type Session struct {
	ID            string
	Folder        string // absolute path under the ephemeral root
	WorkspaceName string
	User          string
	Writable      bool
	WorkspaceID   int64
	LastTouch     time.Time
	CreatedAt     time.Time
}

// Bound reports whether provisioning has bound a folder to the session.
func (s *Session) Bound() bool {
	return s != nil && s.Folder != ""
}
