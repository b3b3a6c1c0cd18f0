package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"eventhub/internal/dto"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers a notification to its recipient.
type Sender interface {
	Send(ctx context.Context, n dto.NotificationMessage) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTP struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

func NewSMTP(cfg Config, log *zerolog.Logger) *SMTP {
	return &SMTP{cfg: cfg, log: log, send: smtp.SendMail}
}

// headerValue folds control characters to spaces so a value cannot end the
// header line it is written into.
func headerValue(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, v)
}

// Compose returns the subject and plain-text body for n. The subject is
// always a single line.
func Compose(n dto.NotificationMessage) (string, string) {
	subject, body := compose(n)
	return headerValue(subject), body
}

func compose(n dto.NotificationMessage) (string, string) {
	when := strings.TrimSpace(n.EventDate + " " + n.EventTime)
	switch n.Kind {
	case dto.RsvpRequested:
		return "New RSVP request for " + n.EventTitle,
			fmt.Sprintf("Hi!\n\n%s asked to attend \"%s\" on %s.\nOpen the app to accept or reject the request.", n.ActorName, n.EventTitle, when)
	case dto.RsvpAccepted:
		return "You're in: " + n.EventTitle,
			fmt.Sprintf("Hi!\n\nYour RSVP for \"%s\" was accepted.\nSee you on %s at %s.", n.EventTitle, when, n.Location)
	case dto.RsvpRejected:
		return "RSVP update for " + n.EventTitle,
			fmt.Sprintf("Hi!\n\nUnfortunately your RSVP for \"%s\" was not accepted.", n.EventTitle)
	case dto.RsvpCancelled:
		return "RSVP cancelled for " + n.EventTitle,
			fmt.Sprintf("Hi!\n\n%s cancelled their RSVP for \"%s\".", n.ActorName, n.EventTitle)
	case dto.EventDeleted:
		return "Event cancelled: " + n.EventTitle,
			fmt.Sprintf("Hi!\n\nThe organizer removed \"%s\" (%s). Your RSVP has been withdrawn.", n.EventTitle, when)
	case dto.EventReminder:
		return "Reminder: " + n.EventTitle,
			fmt.Sprintf("Hi!\n\n\"%s\" starts %s at %s. See you there!", n.EventTitle, when, n.Location)
	}
	return "Update for " + n.EventTitle, fmt.Sprintf("Hi!\n\nThere is an update for \"%s\".", n.EventTitle)
}

func (m *SMTP) Send(ctx context.Context, n dto.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Email == "" {
		return fmt.Errorf("notification %s for user %s has no recipient", n.Kind, n.UserID)
	}
	if strings.ContainsAny(n.Email, "\r\n") {
		return fmt.Errorf("notification %s for user %s has an invalid recipient", n.Kind, n.UserID)
	}

	subject, body := Compose(n)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		headerValue(m.cfg.From), headerValue(n.Email), subject, body,
	)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.cfg.From, []string{n.Email}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("email", n.Email).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", n.Email).Str("kind", string(n.Kind)).Msg("email sent")
	return nil
}

// LogSender writes notifications to the log instead of mailing them.
type LogSender struct {
	Log *zerolog.Logger
}

func (l LogSender) Send(_ context.Context, n dto.NotificationMessage) error {
	subject, _ := Compose(n)
	l.Log.Info().Str("email", n.Email).Str("kind", string(n.Kind)).Msg(subject)
	return nil
}
