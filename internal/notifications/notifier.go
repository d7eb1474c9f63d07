// Package notifications renders and sends the club's automated e-mails.
package notifications

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/pkg/logger"
	"github.com/charlesng35/clubhouse/pkg/mail"
	"github.com/charlesng35/clubhouse/pkg/metrics"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// Template names.
const (
	TemplatePastDue              = "past-due"
	TemplateDuesReminder         = "dues-reminder"
	TemplateDelinquent           = "delinquent"
	TemplateInactive             = "inactive"
	TemplateCleanSlate           = "clean-slate"
	TemplateGuestRestricted      = "guest-restricted"
	TemplateRunReminder          = "run-reminder"
	TemplateRunReport            = "run-report"
	TemplateBoardInactive        = "board-inactive"
	TemplateBoardDelinquent      = "board-delinquent"
	TemplateBoardGuestRestricted = "board-guest-restricted"
	TemplateBoardLocked          = "board-locked"
)

// ErrNoRecipients is returned when a message would have nobody to go to.
var ErrNoRecipients = errors.New("notifications: no recipients")

// Recipient is a person an e-mail is addressed to.
type Recipient struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// Name returns the display name of the recipient.
func (r Recipient) Name() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Address formats the recipient for a To header. The display name is
// quoted, or RFC 2047 encoded when it is not plain ASCII.
func (r Recipient) Address() string {
	if name := r.Name(); name != "" {
		return (&netmail.Address{Name: name, Address: r.Email}).String()
	}
	return r.Email
}

// RecipientFromMember converts a stored member.
func RecipientFromMember(m models.Member) Recipient {
	return Recipient{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName, Email: m.Email}
}

// EventSummary is the printable view of an event.
type EventSummary struct {
	ID           string
	Title        string
	Date         string
	RallyTime    string
	RallyAddress string
}

// GuestLockout pairs a restricted guest with the runs they attended.
type GuestLockout struct {
	Member Recipient
	Events []EventSummary
}

// Config carries club details used by the templates.
type Config struct {
	ClubName      string
	SubjectPrefix string
	BaseURL       string
	From          string
	ReplyTo       string
	Board         []string
	Location      *time.Location
}

type clubData struct {
	Name    string
	BaseURL string
}

type templateData struct {
	Club     clubData
	Member   Recipient
	Members  []Recipient
	Lockouts []GuestLockout
	Events   []EventSummary
	Event    EventSummary
	Year     int
	Limit    int
	Days     int
}

// Notifier composes templates and hands messages to a mailer.
type Notifier struct {
	mailer mail.Mailer
	cfg    Config
}

// New constructs a Notifier.
func New(mailer mail.Mailer, cfg Config) (*Notifier, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Board = normaliseAddresses(cfg.Board)
	return &Notifier{mailer: mailer, cfg: cfg}, nil
}

// Summarise renders an event for templates in the club timezone.
func (n *Notifier) Summarise(e models.Event) EventSummary {
	summary := EventSummary{
		ID:           e.ID,
		Title:        e.Title,
		Date:         e.StartTime.In(n.cfg.Location).Format("Monday, January 2, 2006"),
		RallyAddress: e.RallyAddress,
	}
	if e.RallyTime != nil {
		summary.RallyTime = e.RallyTime.In(n.cfg.Location).Format("3:04 PM")
	}
	return summary
}

// PastDue tells a member their dues for year are now overdue.
func (n *Notifier) PastDue(ctx context.Context, member Recipient, year int) error {
	return n.toMember(ctx, TemplatePastDue, member, templateData{Year: year})
}

// DuesReminder reminds a PAST_DUE member to pay before delinquency.
func (n *Notifier) DuesReminder(ctx context.Context, member Recipient, year int) error {
	return n.toMember(ctx, TemplateDuesReminder, member, templateData{Year: year})
}

// Delinquent tells a member their account is now DELINQUENT.
func (n *Notifier) Delinquent(ctx context.Context, member Recipient, year int) error {
	return n.toMember(ctx, TemplateDelinquent, member, templateData{Year: year})
}

// Inactive tells a member their account is now INACTIVE.
func (n *Notifier) Inactive(ctx context.Context, member Recipient) error {
	return n.toMember(ctx, TemplateInactive, member, templateData{})
}

// CleanSlate tells a guest their run count was reset for year.
func (n *Notifier) CleanSlate(ctx context.Context, member Recipient, year int) error {
	return n.toMember(ctx, TemplateCleanSlate, member, templateData{Year: year})
}

// GuestRestricted tells a guest they reached the run limit.
func (n *Notifier) GuestRestricted(ctx context.Context, member Recipient, events []EventSummary, limit int) error {
	return n.toMember(ctx, TemplateGuestRestricted, member, templateData{Events: events, Limit: limit})
}

// RunReminder reminds an attendee of a run starting tomorrow.
func (n *Notifier) RunReminder(ctx context.Context, member Recipient, event EventSummary) error {
	return n.toMember(ctx, TemplateRunReminder, member, templateData{Event: event})
}

// RunReportReminder asks a run host to file the run report.
func (n *Notifier) RunReportReminder(ctx context.Context, host Recipient, event EventSummary) error {
	return n.toMember(ctx, TemplateRunReport, host, templateData{Event: event})
}

// BoardInactive summarises the members moved to INACTIVE.
func (n *Notifier) BoardInactive(ctx context.Context, members []Recipient) error {
	return n.toBoard(ctx, TemplateBoardInactive, len(members), templateData{Members: members})
}

// BoardDelinquent summarises the members moved to DELINQUENT.
func (n *Notifier) BoardDelinquent(ctx context.Context, members []Recipient, year int) error {
	return n.toBoard(ctx, TemplateBoardDelinquent, len(members), templateData{Members: members, Year: year})
}

// BoardGuestRestricted summarises the guests moved to LIMITED.
func (n *Notifier) BoardGuestRestricted(ctx context.Context, lockouts []GuestLockout, limit int) error {
	return n.toBoard(ctx, TemplateBoardGuestRestricted, len(lockouts), templateData{Lockouts: lockouts, Limit: limit})
}

// BoardLockedAccounts lists accounts waiting for approval longer than days.
func (n *Notifier) BoardLockedAccounts(ctx context.Context, members []Recipient, days int) error {
	return n.toBoard(ctx, TemplateBoardLocked, len(members), templateData{Members: members, Days: days})
}

func (n *Notifier) toMember(ctx context.Context, name string, member Recipient, data templateData) error {
	if strings.TrimSpace(member.Email) == "" {
		return fmt.Errorf("%w: member %s has no e-mail address", ErrNoRecipients, member.ID)
	}
	data.Member = member
	return n.send(ctx, name, []string{member.Address()}, data)
}

// toBoard sends a summary to the board. An empty summary is not sent.
func (n *Notifier) toBoard(ctx context.Context, name string, items int, data templateData) error {
	if items == 0 {
		return nil
	}
	if len(n.cfg.Board) == 0 {
		return fmt.Errorf("%w: board addresses are not configured", ErrNoRecipients)
	}
	return n.send(ctx, name, n.cfg.Board, data)
}

func (n *Notifier) send(ctx context.Context, name string, to []string, data templateData) error {
	data.Club = clubData{Name: n.cfg.ClubName, BaseURL: n.cfg.BaseURL}

	subject, err := render(name+".subject", data)
	if err != nil {
		return err
	}
	body, err := render(name+".body", data)
	if err != nil {
		return err
	}
	if prefix := strings.TrimSpace(n.cfg.SubjectPrefix); prefix != "" {
		subject = fmt.Sprintf("[%s] %s", prefix, subject)
	}

	msg := mail.Message{
		From:     n.cfg.From,
		ReplyTo:  n.cfg.ReplyTo,
		To:       to,
		Subject:  subject,
		Body:     body + "\n",
		Template: name,
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			metrics.NotificationsSent.WithLabelValues(name, "disabled").Inc()
			logger.WithModule("notifications").Debug("smtp disabled; notification dropped",
				zap.String("template", name), zap.Strings("to", to))
			return nil
		}
		metrics.NotificationsSent.WithLabelValues(name, "failed").Inc()
		return fmt.Errorf("notifications: send %s: %w", name, err)
	}
	metrics.NotificationsSent.WithLabelValues(name, "sent").Inc()
	return nil
}

func render(name string, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("notifications: render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func normaliseAddresses(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
