package models

import "time"

// Event types.
const (
	EventTypeRun         = "RUN"
	EventTypeMeeting     = "MEETING"
	EventTypeCamping     = "CAMPING"
	EventTypeSocial      = "SOCIAL"
	EventTypeClinic      = "CLINIC"
	EventTypeFundraising = "FUNDRAISING"
)

// Event is a scheduled club activity.
type Event struct {
	BaseModel

	Title        string     `gorm:"size:255;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	Type         string     `gorm:"size:32;not null;index" json:"type"`
	StartTime    time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime      time.Time  `gorm:"not null;index" json:"end_time"`
	RallyTime    *time.Time `json:"rally_time,omitempty"`
	RallyAddress string     `gorm:"size:255" json:"rally_address,omitempty"`
	Address      string     `gorm:"size:255" json:"address,omitempty"`
	MembersOnly  bool       `gorm:"default:false" json:"members_only"`

	HostID *string `gorm:"type:varchar(36);index" json:"host_id,omitempty"`
	Host   *Member `gorm:"foreignKey:HostID" json:"host,omitempty"`

	RSVPs []RSVP `gorm:"foreignKey:EventID" json:"rsvps,omitempty"`
}

// IsRun reports whether the event counts toward guest run limits.
func (e Event) IsRun() bool {
	return e.Type == EventTypeRun
}

// RSVP links a member to an event. Rows are never deleted; cancelling is
// stored as CANT_GO so attendance history survives.
type RSVP struct {
	BaseModel

	MemberID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_rsvp_member_event" json:"member_id"`
	Member   *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	EventID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_rsvp_member_event;index" json:"event_id"`
	Event    *Event  `gorm:"foreignKey:EventID" json:"event,omitempty"`

	Status     string   `gorm:"size:16;not null;index" json:"status"`
	IsRider    bool     `gorm:"default:false" json:"is_rider"`
	VehicleID  *string  `gorm:"type:varchar(36)" json:"vehicle_id,omitempty"`
	Vehicle    *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	GuestCount int      `gorm:"default:0" json:"guest_count"`
	Equipment  string   `gorm:"type:text" json:"equipment,omitempty"`
}

// TableName pins the table name regardless of naming strategy.
func (RSVP) TableName() string {
	return "rsvps"
}
