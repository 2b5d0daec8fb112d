package checkout

import (
	"strings"

	"github.com/google/uuid"
)

// Identity is who is placing the order: a Guest or an Authenticated customer.
type Identity interface {
	isIdentity()
}

// Guest orders carry their own contact details.
type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (Guest) isIdentity() {}

// Normalize trims every field.
func (g Guest) Normalize() Guest {
	return Guest{
		Name:  strings.TrimSpace(g.Name),
		Email: strings.TrimSpace(g.Email),
		Phone: strings.TrimSpace(g.Phone),
	}
}

// IsComplete reports whether name, email and phone are all non-blank.
func (g Guest) IsComplete() bool {
	n := g.Normalize()
	return n.Name != "" && n.Email != "" && n.Phone != ""
}

// Authenticated orders take the customer from the session token.
type Authenticated struct {
	UserRef uuid.UUID
	Email   string
}

func (Authenticated) isIdentity() {}

// OwnerKey names whose saved data (addresses) a checkout reads and writes.
func OwnerKey(identity Identity, sessionID string) string {
	if auth, ok := identity.(Authenticated); ok && auth.UserRef != uuid.Nil {
		return "user:" + auth.UserRef.String()
	}
	return "session:" + sessionID
}

func isAuthenticated(identity Identity) bool {
	auth, ok := identity.(Authenticated)
	return ok && auth.UserRef != uuid.Nil
}
