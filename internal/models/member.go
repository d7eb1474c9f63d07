package models

import (
	"strings"

	"github.com/charlesng35/clubhouse/internal/membership"
)

// Member is a club account. AccountStatus only changes through the
// membership state machine and always alongside a MembershipLogItem.
type Member struct {
	BaseModel

	Username  string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName string `gorm:"size:128" json:"first_name"`
	LastName  string `gorm:"size:128" json:"last_name"`
	Phone     string `gorm:"size:32" json:"phone,omitempty"`

	Role          membership.Role          `gorm:"size:32;not null;default:USER" json:"role"`
	AccountStatus membership.AccountStatus `gorm:"size:32;not null;default:LOCKED;index" json:"account_status"`
	AccountType   membership.AccountType   `gorm:"size:32;not null;default:GUEST;index" json:"account_type"`

	// DuesPaidYear is the latest dues year with a confirmed payment. Zero when never paid.
	DuesPaidYear int `gorm:"not null;default:0" json:"dues_paid_year"`

	Vehicles []Vehicle `gorm:"foreignKey:OwnerID" json:"vehicles,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (m Member) FullName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}

// Vehicle is a rig owned by a single member.
type Vehicle struct {
	BaseModel

	OwnerID string  `gorm:"type:varchar(36);index;not null" json:"owner_id"`
	Owner   *Member `gorm:"foreignKey:OwnerID" json:"-"`
	Year    int     `json:"year"`
	Make    string  `gorm:"size:64" json:"make"`
	Model   string  `gorm:"size:64" json:"model"`
	Name    string  `gorm:"size:128" json:"name"`
}
