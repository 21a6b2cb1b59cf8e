// Package user provides the account directory consulted by the case service.
package user

import (
	"time"

	"github.com/medsecop/platform/internal/auth"
	casedomain "github.com/medsecop/platform/internal/case/domain"
	"github.com/medsecop/platform/internal/shared/types"
)

// User is a platform account: patient, doctor, or admin
type User struct {
	ID        types.ID  `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      auth.Role `json:"role"`

	// Specialty is set for doctors only
	Specialty casedomain.Specialty `json:"specialty,omitempty"`

	// Active gates whether a doctor can receive new assignments and
	// whether any account can authenticate
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
}

// IsAssignableDoctor reports whether the user can be assigned to a case
func (u *User) IsAssignableDoctor() bool {
	return u.Role == auth.RoleDoctor && u.Active
}
