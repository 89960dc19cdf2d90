package domain

import "strconv"

// Identity is the workspace identity carried by a capability token. Immutable once decrypted.
type Identity struct {
	Name         string // unique external workspace name
	User         string
	Organization string
	Writable     bool
	WorkspaceID  int64
}

// Fields returns the identity in the legacy positional form [name, user, org, "true"|"false", id].
func (i Identity) Fields() []string {
	return []string{i.Name, i.User, i.Organization, strconv.FormatBool(i.Writable), strconv.FormatInt(i.WorkspaceID, 10)}
}
