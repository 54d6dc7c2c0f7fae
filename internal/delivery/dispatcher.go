// Package delivery sends advanced notifications to team members by email and
// SMS.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/metrics"
	"teamhub-notifications/internal/models"
	"teamhub-notifications/internal/notifications"

	"github.com/google/uuid"
)

var (
	ErrDeliveryFailed      = errors.New("NOTIFICATION_DELIVERY_FAILED")
	ErrContactsUnavailable = errors.New("CONTACTS_UNAVAILABLE")
)

// SES accepts at most 50 destinations per message.
const maxEmailRecipients = 50

const (
	SkipDisabled    = "disabled"
	SkipNoRecipient = "no recipients"
	SkipLowPriority = "priority below threshold"
)

type ContactStore interface {
	ListContacts(ctx context.Context, teamIDs []string) ([]models.Contact, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Config struct {
	EmailEnabled         bool
	SMSEnabled           bool
	SMSPriorityThreshold notifications.Priority
}

// Dispatcher implements notifications.Deliverer.
type Dispatcher struct {
	config   Config
	contacts ContactStore
	email    EmailSender
	sms      SMSSender
	logger   logger.Logger
}

func NewDispatcher(config Config, contacts ContactStore, email EmailSender, sms SMSSender, log logger.Logger) *Dispatcher {
	if config.SMSPriorityThreshold == "" {
		config.SMSPriorityThreshold = notifications.PriorityHigh
	}
	return &Dispatcher{
		config:   config,
		contacts: contacts,
		email:    email,
		sms:      sms,
		logger:   log.WithFields(map[string]interface{}{"component": "delivery"}),
	}
}

// Deliver reaches the members of req.TeamIDs on the requested channels. Sends
// are attempted for every recipient; the error is non-nil when any of them
// failed and the report says how many.
func (d *Dispatcher) Deliver(ctx context.Context, req notifications.DeliveryRequest) (*notifications.DeliveryReport, error) {
	wantEmail, wantSMS := requested(req.Channels)
	report := &notifications.DeliveryReport{}
	if !wantEmail && !wantSMS {
		return report, nil
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	log := d.logger.WithFields(map[string]interface{}{"correlationId": req.CorrelationID})

	var contacts []models.Contact
	if len(req.TeamIDs) > 0 {
		var err error
		contacts, err = d.contacts.ListContacts(ctx, req.TeamIDs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContactsUnavailable, err)
		}
	}

	if wantEmail {
		report.Email = d.sendEmails(ctx, log, req, contacts)
	}
	if wantSMS {
		report.SMS = d.sendSMS(ctx, log, req, contacts)
	}

	failed := failures(report.Email) + failures(report.SMS)
	log.Info("delivery finished", map[string]interface{}{
		"teams":    len(req.TeamIDs),
		"contacts": len(contacts),
		"failed":   failed,
	})
	if failed > 0 {
		return report, fmt.Errorf("%w: %d send(s) failed", ErrDeliveryFailed, failed)
	}
	return report, nil
}

func (d *Dispatcher) sendEmails(ctx context.Context, log logger.Logger, req notifications.DeliveryRequest, contacts []models.Contact) *notifications.ChannelReport {
	rep := &notifications.ChannelReport{}
	if !d.config.EmailEnabled || d.email == nil {
		rep.Skipped = SkipDisabled
		return rep
	}

	addrs := unique(contacts, func(c models.Contact) string { return c.Email })
	if len(addrs) == 0 {
		rep.Skipped = SkipNoRecipient
		return rep
	}

	subject := emailSubject(req)
	body := emailBody(req)
	for start := 0; start < len(addrs); start += maxEmailRecipients {
		end := start + maxEmailRecipients
		if end > len(addrs) {
			end = len(addrs)
		}
		batch := addrs[start:end]
		rep.Attempted += len(batch)

		if _, err := d.email.SendEmail(ctx, batch, subject, body); err != nil {
			rep.Failed += len(batch)
			metrics.DeliveryTotal.WithLabelValues(string(notifications.ChannelEmail), "failed").Add(float64(len(batch)))
			log.Error("email send failed", map[string]interface{}{"error": err, "recipients": len(batch)})
			continue
		}
		rep.Sent += len(batch)
		metrics.DeliveryTotal.WithLabelValues(string(notifications.ChannelEmail), "sent").Add(float64(len(batch)))
	}
	return rep
}

func (d *Dispatcher) sendSMS(ctx context.Context, log logger.Logger, req notifications.DeliveryRequest, contacts []models.Contact) *notifications.ChannelReport {
	rep := &notifications.ChannelReport{}
	if !d.config.SMSEnabled || d.sms == nil {
		rep.Skipped = SkipDisabled
		return rep
	}
	if !req.Priority.AtLeast(d.config.SMSPriorityThreshold) {
		rep.Skipped = SkipLowPriority
		return rep
	}

	phones := unique(contacts, func(c models.Contact) string { return c.Phone })
	if len(phones) == 0 {
		rep.Skipped = SkipNoRecipient
		return rep
	}

	msg := smsText(req)
	for _, phone := range phones {
		rep.Attempted++
		if _, err := d.sms.SendSMS(ctx, phone, msg); err != nil {
			rep.Failed++
			metrics.DeliveryTotal.WithLabelValues(string(notifications.ChannelSMS), "failed").Inc()
			log.Error("SMS send failed", map[string]interface{}{"error": err})
			continue
		}
		rep.Sent++
		metrics.DeliveryTotal.WithLabelValues(string(notifications.ChannelSMS), "sent").Inc()
	}
	return rep
}

func requested(channels []notifications.Channel) (email, sms bool) {
	for _, c := range channels {
		switch c {
		case notifications.ChannelEmail:
			email = true
		case notifications.ChannelSMS:
			sms = true
		}
	}
	return email, sms
}

func unique(contacts []models.Contact, field func(models.Contact) string) []string {
	seen := make(map[string]bool, len(contacts))
	var out []string
	for _, c := range contacts {
		v := strings.TrimSpace(field(c))
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

func failures(rep *notifications.ChannelReport) int {
	if rep == nil {
		return 0
	}
	return rep.Failed
}

func emailSubject(req notifications.DeliveryRequest) string {
	if req.Priority.AtLeast(notifications.PriorityHigh) {
		return fmt.Sprintf("[%s] %s", req.Priority, req.Title)
	}
	return req.Title
}

func emailBody(req notifications.DeliveryRequest) string {
	var b strings.Builder
	b.WriteString(req.Title)
	b.WriteString("\n\n")
	if req.Message != "" {
		b.WriteString(req.Message)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Priority: %s\nReference: %s\n", req.Priority, req.CorrelationID)
	return b.String()
}

// SMS bodies are kept to a single 160 character segment.
func smsText(req notifications.DeliveryRequest) string {
	text := req.Title
	if req.Message != "" {
		text += ": " + req.Message
	}
	if r := []rune(text); len(r) > 160 {
		text = string(r[:157]) + "..."
	}
	return text
}
