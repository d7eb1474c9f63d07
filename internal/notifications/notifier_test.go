package notifications

import (
	"context"
	"errors"
	"net"
	netmail "net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/clubhouse/internal/models"
	"github.com/charlesng35/clubhouse/pkg/mail"
)

func newTestNotifier(t *testing.T) (*Notifier, *mail.Recorder) {
	t.Helper()
	rec := mail.NewRecorder()
	n, err := New(rec, Config{
		ClubName:      "4-Players of Colorado",
		SubjectPrefix: "4-Players",
		BaseURL:       "https://club.example.org/",
		From:          "4-Players Webmaster <no-reply@example.org>",
		ReplyTo:       "secretary@example.org",
		Board:         []string{"board@example.org", " board@example.org "},
	})
	require.NoError(t, err)
	return n, rec
}

var jane = Recipient{ID: "m1", FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}

func TestNewRequiresMailer(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
}

func TestRecipientAddress(t *testing.T) {
	require.Equal(t, `"Jane Doe" <jane@example.com>`, jane.Address())
	require.Equal(t, "solo@example.com", Recipient{Email: "solo@example.com"}.Address())

	suffixed := Recipient{FirstName: "Bob", LastName: "Smith, Jr.", Email: "bob@example.com"}
	require.Equal(t, `"Bob Smith, Jr." <bob@example.com>`, suffixed.Address())

	accented := Recipient{FirstName: "Zoë", LastName: "Müller", Email: "zoe@example.com"}
	parsed, err := netmail.ParseAddress(accented.Address())
	require.NoError(t, err)
	require.Equal(t, "Zoë Müller", parsed.Name)
	require.Equal(t, "zoe@example.com", parsed.Address)
}

func TestPastDueMessage(t *testing.T) {
	n, rec := newTestNotifier(t)

	require.NoError(t, n.PastDue(context.Background(), jane, 2025))

	msgs := rec.WithTemplate(TemplatePastDue)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	require.Equal(t, []string{`"Jane Doe" <jane@example.com>`}, msg.To)
	require.Equal(t, "[4-Players] Your membership dues are now past due", msg.Subject)
	require.Contains(t, msg.Body, "Hi Jane,")
	require.Contains(t, msg.Body, "2025 membership dues")
	require.Contains(t, msg.Body, "https://club.example.org/profile")
	require.Equal(t, "secretary@example.org", msg.ReplyTo)
}

func TestGuestRestrictedListsRuns(t *testing.T) {
	n, rec := newTestNotifier(t)
	events := []EventSummary{{Title: "Rollins Pass", Date: "Saturday, May 10, 2025"}, {Title: "Gold Creek"}}

	require.NoError(t, n.GuestRestricted(context.Background(), jane, events, 3))

	msg := rec.WithTemplate(TemplateGuestRestricted)[0]
	require.Contains(t, msg.Body, "3 runs per year")
	require.Contains(t, msg.Body, "- Rollins Pass (Saturday, May 10, 2025)")
	require.Contains(t, msg.Body, "- Gold Creek")
}

func TestBoardSummaries(t *testing.T) {
	n, rec := newTestNotifier(t)
	ctx := context.Background()

	require.NoError(t, n.BoardInactive(ctx, nil))
	require.Empty(t, rec.Messages())

	john := Recipient{ID: "m2", FirstName: "John", LastName: "Roe", Email: "john@example.com"}
	require.NoError(t, n.BoardDelinquent(ctx, []Recipient{jane, john}, 2025))

	msg := rec.WithTemplate(TemplateBoardDelinquent)[0]
	require.Equal(t, []string{"board@example.org"}, msg.To)
	require.Contains(t, msg.Body, "- Jane Doe <jane@example.com>")
	require.Contains(t, msg.Body, "- John Roe <john@example.com>")
	require.Contains(t, msg.Body, "Total: 2")

	lockouts := []GuestLockout{{Member: jane, Events: []EventSummary{{Title: "A"}, {Title: "B"}}}}
	require.NoError(t, n.BoardGuestRestricted(ctx, lockouts, 3))
	msg = rec.WithTemplate(TemplateBoardGuestRestricted)[0]
	require.Contains(t, msg.Body, "Jane Doe <jane@example.com>: A, B")
}

func TestBoardRequiresAddresses(t *testing.T) {
	n, err := New(mail.NewRecorder(), Config{})
	require.NoError(t, err)
	err = n.BoardLockedAccounts(context.Background(), []Recipient{jane}, 3)
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestMemberWithoutEmail(t *testing.T) {
	n, _ := newTestNotifier(t)
	err := n.Inactive(context.Background(), Recipient{ID: "m9"})
	require.ErrorIs(t, err, ErrNoRecipients)
}

func TestSendFailureIsReturned(t *testing.T) {
	n, rec := newTestNotifier(t)
	boom := errors.New("mailbox full")
	rec.FailFor[jane.Address()] = boom

	err := n.Delinquent(context.Background(), jane, 2025)
	require.ErrorIs(t, err, boom)
	require.Empty(t, rec.Messages())
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, mail.Message) error { return mail.ErrSMTPDisabled }

func TestDisabledSMTPIsNotAnError(t *testing.T) {
	n, err := New(disabledMailer{}, Config{})
	require.NoError(t, err)
	require.NoError(t, n.Inactive(context.Background(), jane))
}

func TestSummariseUsesClubTimezone(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	n, err := New(mail.NewRecorder(), Config{Location: denver})
	require.NoError(t, err)

	rally := time.Date(2025, time.June, 14, 14, 30, 0, 0, time.UTC)
	summary := n.Summarise(models.Event{
		BaseModel:    models.BaseModel{ID: "e1"},
		Title:        "Kingston Peak",
		StartTime:    time.Date(2025, time.June, 14, 15, 0, 0, 0, time.UTC),
		RallyTime:    &rally,
		RallyAddress: "Idaho Springs",
	})
	require.Equal(t, "Saturday, June 14, 2025", summary.Date)
	require.Equal(t, "8:30 AM", summary.RallyTime)
	require.Equal(t, "Idaho Springs", summary.RallyAddress)
}

func TestRunReminderIncludesRally(t *testing.T) {
	n, rec := newTestNotifier(t)
	event := EventSummary{ID: "e1", Title: "Kingston Peak", Date: "Saturday, June 14, 2025", RallyTime: "8:30 AM", RallyAddress: "Idaho Springs"}

	require.NoError(t, n.RunReminder(context.Background(), jane, event))
	msg := rec.WithTemplate(TemplateRunReminder)[0]
	require.Equal(t, "[4-Players] Reminder: Kingston Peak is tomorrow", msg.Subject)
	require.Contains(t, msg.Body, "Rally time: 8:30 AM")
	require.Contains(t, msg.Body, "Rally point: Idaho Springs")
	require.Contains(t, msg.Body, "https://club.example.org/event/e1")
}

// startSMTPServer accepts one SMTP session on a loopback port and reports the
// RCPT TO arguments it received once the client quits.
func startSMTPServer(t *testing.T) (mail.SMTPSettings, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	rcpts := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		var got []string
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb, arg, _ := strings.Cut(line, " ")
			switch strings.ToUpper(verb) {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL":
				_ = tp.PrintfLine("250 OK")
			case "RCPT":
				got = append(got, strings.TrimPrefix(arg, "TO:"))
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				if _, err := tp.ReadDotLines(); err != nil {
					return
				}
				_ = tp.PrintfLine("250 OK")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				rcpts <- got
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return mail.SMTPSettings{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    port,
		From:    "no-reply@example.org",
		Timeout: 5 * time.Second,
	}, rcpts
}

func TestPastDueDeliversOverSMTPToSuffixedName(t *testing.T) {
	settings, rcpts := startSMTPServer(t)
	mailer, err := mail.NewSMTPMailer(settings)
	require.NoError(t, err)

	n, err := New(mailer, Config{ClubName: "4-Players of Colorado", From: "4-Players <no-reply@example.org>"})
	require.NoError(t, err)

	bob := Recipient{ID: "m3", FirstName: "Bob", LastName: "Smith, Jr.", Email: "bob@example.com"}
	require.NoError(t, n.PastDue(context.Background(), bob, 2025))

	select {
	case got := <-rcpts:
		require.Equal(t, []string{"<bob@example.com>"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session did not finish")
	}
}
