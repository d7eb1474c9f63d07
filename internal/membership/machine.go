// Package membership encodes the account-status lifecycle of club members.
//
// Decide is a pure function: it never performs I/O and never fails. A
// transition that does not apply to the member's current state yields a
// Decision with Allowed set to false, which callers treat as a no-op.
package membership

import "strings"

// Transition names a single edge-driving trigger of the state machine.
type Transition string

const (
	TransitionBadger        Transition = "badger"        // annual, Jan 1
	TransitionDeactivate    Transition = "deactivate"    // annual, Jan 1
	TransitionCleanSlate    Transition = "clean-slate"   // annual, Jan 1
	TransitionDelinquentize Transition = "delinquentize" // annual, Apr 1
	TransitionDuesPaid      Transition = "dues-paid"
	TransitionAdminUnlock   Transition = "admin-unlock"
	TransitionAdminReject   Transition = "admin-reject"
	TransitionGuestLockout  Transition = "guest-lockout"
)

// AllTransitions lists every transition known to the machine.
var AllTransitions = []Transition{
	TransitionBadger,
	TransitionDeactivate,
	TransitionCleanSlate,
	TransitionDelinquentize,
	TransitionDuesPaid,
	TransitionAdminUnlock,
	TransitionAdminReject,
	TransitionGuestLockout,
}

// MessageCode is the machine-readable code attached to audit records.
type MessageCode string

const (
	CodeAccountCreated    MessageCode = "ACCOUNT_CREATED"
	CodeAccountUnlocked   MessageCode = "ACCOUNT_UNLOCKED"
	CodeAccountRejected   MessageCode = "ACCOUNT_REJECTED"
	CodeAccountChanged    MessageCode = "ACCOUNT_CHANGED"
	CodeDuesPaid          MessageCode = "DUES_PAID"
	CodeGuestRestricted   MessageCode = "GUEST_RESTRICTED"
	CodeOfficeAdded       MessageCode = "OFFICE_ADDED"
	CodeOfficeRemoved     MessageCode = "OFFICE_REMOVED"
	CodeTitleAdded        MessageCode = "TITLE_ADDED"
	CodeTitleRemoved      MessageCode = "TITLE_REMOVED"
	CodeMembershipGranted MessageCode = "MEMBERSHIP_GRANTED"

	CodeJoined                MessageCode = "JOINED"
	CodeProfilePhotoSubmitted MessageCode = "PROFILE_PHOTO_SUBMITTED"
	CodeRigbookPhotoSubmitted MessageCode = "RIGBOOK_PHOTO_SUBMITTED"
	CodeEventAttended         MessageCode = "EVENT_ATTENDED"
	CodeRunLead               MessageCode = "RUN_LEAD"
)

// MembershipCodes is the closed set of codes valid for membership-log records.
var MembershipCodes = []MessageCode{
	CodeAccountCreated,
	CodeAccountUnlocked,
	CodeAccountRejected,
	CodeAccountChanged,
	CodeDuesPaid,
	CodeGuestRestricted,
	CodeOfficeAdded,
	CodeOfficeRemoved,
	CodeTitleAdded,
	CodeTitleRemoved,
	CodeMembershipGranted,
}

// ActivityCodes is the closed set of codes valid for activity-log records.
var ActivityCodes = []MessageCode{
	CodeJoined,
	CodeProfilePhotoSubmitted,
	CodeRigbookPhotoSubmitted,
	CodeEventAttended,
	CodeRunLead,
}

// IsMembershipCode reports whether code belongs to the membership-log enumeration.
func IsMembershipCode(code MessageCode) bool {
	for _, candidate := range MembershipCodes {
		if candidate == code {
			return true
		}
	}
	return false
}

// IsActivityCode reports whether code belongs to the activity-log enumeration.
func IsActivityCode(code MessageCode) bool {
	for _, candidate := range ActivityCodes {
		if candidate == code {
			return true
		}
	}
	return false
}

// Guard carries the facts a transition's guard condition depends on.
type Guard struct {
	// ActorRole is the role of the member requesting a manual transition.
	ActorRole Role
	// PaymentConfirmed is set once the payment processor accepted the dues charge.
	PaymentConfirmed bool
	// DuesCurrent is set when dues for the current dues year are already on file.
	DuesCurrent bool
	// Reason is the free-text justification for a rejection.
	Reason string
	// QualifyingRuns is the number of distinct driven runs in the lockout window.
	QualifyingRuns int
	// GuestMaxRuns is the lockout threshold.
	GuestMaxRuns int
}

// Decision is the outcome of evaluating a transition against a member.
type Decision struct {
	Transition  Transition
	From        AccountStatus
	To          AccountStatus
	Allowed     bool
	MessageCode MessageCode
}

// StatusChanged reports whether applying the decision alters the stored status.
func (d Decision) StatusChanged() bool {
	return d.Allowed && d.From != d.To
}

type edge struct {
	from  []AccountStatus
	to    AccountStatus
	code  MessageCode
	guard func(AccountType, Guard) bool
}

var edges = map[Transition]edge{
	TransitionBadger: {
		from: []AccountStatus{StatusActive},
		to:   StatusPastDue,
		code: CodeAccountChanged,
		guard: func(t AccountType, g Guard) bool {
			return t.PaysDues() && !g.DuesCurrent
		},
	},
	TransitionDeactivate: {
		from: []AccountStatus{StatusDelinquent},
		to:   StatusInactive,
		code: CodeAccountChanged,
		guard: func(t AccountType, _ Guard) bool {
			return t.PaysDues()
		},
	},
	TransitionCleanSlate: {
		from: []AccountStatus{StatusLimited},
		to:   StatusActive,
		code: CodeAccountChanged,
		guard: func(t AccountType, _ Guard) bool {
			return t == TypeGuest
		},
	},
	TransitionDelinquentize: {
		from: []AccountStatus{StatusPastDue},
		to:   StatusDelinquent,
		code: CodeAccountChanged,
		guard: func(_ AccountType, g Guard) bool {
			return !g.DuesCurrent
		},
	},
	TransitionDuesPaid: {
		from: []AccountStatus{StatusPastDue, StatusActive},
		to:   StatusActive,
		code: CodeDuesPaid,
		guard: func(_ AccountType, g Guard) bool {
			return g.PaymentConfirmed
		},
	},
	TransitionAdminUnlock: {
		from: []AccountStatus{StatusLocked},
		to:   StatusActive,
		code: CodeAccountUnlocked,
		guard: func(_ AccountType, g Guard) bool {
			return g.ActorRole.IsAdministrative()
		},
	},
	TransitionAdminReject: {
		from: []AccountStatus{StatusLocked},
		to:   StatusRejected,
		code: CodeAccountRejected,
		guard: func(_ AccountType, g Guard) bool {
			return g.ActorRole.IsAdministrative() && strings.TrimSpace(g.Reason) != ""
		},
	},
	TransitionGuestLockout: {
		from: []AccountStatus{StatusActive, StatusPastDue},
		to:   StatusLimited,
		code: CodeGuestRestricted,
		guard: func(t AccountType, g Guard) bool {
			return t == TypeGuest && g.GuestMaxRuns > 0 && g.QualifyingRuns >= g.GuestMaxRuns
		},
	},
}

// Decide evaluates transition for a member currently in status current with
// the given account type. Unknown transitions, mismatched source states and
// failed guards all produce a no-op decision.
func Decide(current AccountStatus, accountType AccountType, transition Transition, guard Guard) Decision {
	decision := Decision{
		Transition: transition,
		From:       current,
		To:         current,
	}

	e, ok := edges[transition]
	if !ok {
		return decision
	}
	if !containsStatus(e.from, current) {
		return decision
	}
	if e.guard != nil && !e.guard(accountType, guard) {
		return decision
	}

	decision.To = e.to
	decision.Allowed = true
	decision.MessageCode = e.code
	return decision
}

// SourceStatuses returns the statuses from which transition may fire. The
// automation runner uses it to narrow candidate queries.
func SourceStatuses(transition Transition) []AccountStatus {
	e, ok := edges[transition]
	if !ok {
		return nil
	}
	out := make([]AccountStatus, len(e.from))
	copy(out, e.from)
	return out
}

// IsLegalEdge reports whether some transition moves a member from one status
// to another. Self-loops are legal only where a transition defines them.
func IsLegalEdge(from, to AccountStatus) bool {
	for _, e := range edges {
		if e.to == to && containsStatus(e.from, from) {
			return true
		}
	}
	return false
}

func containsStatus(values []AccountStatus, target AccountStatus) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
