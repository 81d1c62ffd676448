// Package auth describes who is performing an operation.
package auth

// Principal is an authenticated caller. Every registry and token operation
// that touches a single file takes one and enforces ownership itself.
type Principal interface {
	ID() string
	Admin() bool
}

// Identity is the Principal built by the JWT middleware from the users table.
type Identity struct {
	UserID  string
	IsAdmin bool
}

func (i Identity) ID() string  { return i.UserID }
func (i Identity) Admin() bool { return i.IsAdmin }

// CanAccess reports whether p may see or change a file owned by ownerID.
func CanAccess(p Principal, ownerID string) bool {
	if p == nil {
		return false
	}

	return p.Admin() || p.ID() == ownerID
}
