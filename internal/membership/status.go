package membership

import "strings"

// AccountStatus is the lifecycle state of a member account.
type AccountStatus string

const (
	StatusActive     AccountStatus = "ACTIVE"
	StatusPastDue    AccountStatus = "PAST_DUE"   // overdue, still active, must pay
	StatusDelinquent AccountStatus = "DELINQUENT" // 3 months to 1 year overdue
	StatusInactive   AccountStatus = "INACTIVE"   // 1+ year overdue
	StatusRemoved    AccountStatus = "REMOVED"
	StatusResigned   AccountStatus = "RESIGNED"
	StatusRejected   AccountStatus = "REJECTED"
	StatusLimited    AccountStatus = "LIMITED" // guest attended too many runs
	StatusLocked     AccountStatus = "LOCKED"  // new account awaiting approval
	StatusDeceased   AccountStatus = "DECEASED"
)

// AllStatuses lists every account status in declaration order.
var AllStatuses = []AccountStatus{
	StatusActive,
	StatusPastDue,
	StatusDelinquent,
	StatusInactive,
	StatusRemoved,
	StatusResigned,
	StatusRejected,
	StatusLimited,
	StatusLocked,
	StatusDeceased,
}

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	for _, candidate := range AllStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// CanParticipate reports whether members in this status may sign up for events.
func (s AccountStatus) CanParticipate() bool {
	return s == StatusActive || s == StatusPastDue
}

// AccountType classifies the kind of membership held.
type AccountType string

const (
	TypeFull      AccountType = "FULL"
	TypeAssociate AccountType = "ASSOCIATE" // no voting rights, no members-only events
	TypeEmeritus  AccountType = "EMERITUS"
	TypeGuest     AccountType = "GUEST"
)

// AllTypes lists every account type.
var AllTypes = []AccountType{TypeFull, TypeAssociate, TypeEmeritus, TypeGuest}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	for _, candidate := range AllTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// PaysDues reports whether the account type is subject to the annual dues cycle.
func (t AccountType) PaysDues() bool {
	return t == TypeFull || t == TypeAssociate
}

// Role grants administrative capabilities independent of account status.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOfficer   Role = "OFFICER"
	RoleRunMaster Role = "RUN_MASTER"
	RoleRunLeader Role = "RUN_LEADER"
	RoleUser      Role = "USER"
)

// IsAdministrative reports whether the role may approve, reject or edit other accounts.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleOfficer
}

// ParseRole normalises user input into a Role, defaulting to RoleUser.
func ParseRole(value string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleOfficer:
		return RoleOfficer
	case RoleRunMaster:
		return RoleRunMaster
	case RoleRunLeader:
		return RoleRunLeader
	default:
		return RoleUser
	}
}
