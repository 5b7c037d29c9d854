// Package notification renders templated messages and delivers them in-app,
// by email and by SMS according to each user's settings.
package notification

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Channel is a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is one delivery attempt on one channel.
type Notification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Read       bool              `json:"read"`
	CreatedAt  time.Time         `json:"created_at"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSender writes outbound email and SMS to the log instead of a provider.
// It is the sender used when no provider is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().Str("channel", string(ChannelEmail)).Str("to", to).Str("subject", subject).Int("body_len", len(body)).Msg("notification delivered")
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("channel", string(ChannelSMS)).Str("to", to).Int("body_len", len(body)).Msg("notification delivered")
	return nil
}

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Placeholders lists the keys referenced by the template, sorted.
func (t Template) Placeholders() []string {
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Subject+" "+t.Body, -1) {
		seen[m[1]] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

const (
	TemplateMedicationReminder   = "medication-reminder"
	TemplateAppointmentReminder  = "appointment-reminder"
	TemplateAppointmentConfirmed = "appointment-confirmed"
	TemplateAnomalyAlert         = "anomaly-alert"
	TemplateHydrationReminder    = "hydration-reminder"
	TemplateSleepReminder        = "sleep-reminder"
	TemplateWeeklySummary        = "weekly-summary"
	TemplatePasswordReset        = "password-reset"
	TemplateEmergencyAlert       = "emergency-alert"
	TemplateAnnouncement         = "announcement"
)

// TemplateEngine holds templates by id and renders them.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateMedicationReminder,
			Name:    "Medication Reminder",
			Subject: "Time to take {{medication}}",
			Body:    "Hi {{name}}, it's {{time}}. Please take {{dosage}} of {{medication}}.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Name:    "Appointment Reminder",
			Subject: "Upcoming appointment with {{doctor}}",
			Body:    "Hi {{name}}, this is a reminder of your {{specialty}} appointment with {{doctor}} on {{date}} at {{time}}.",
		},
		{
			ID:      TemplateAppointmentConfirmed,
			Name:    "Appointment Confirmed",
			Subject: "Appointment confirmed",
			Body:    "Hi {{name}}, your video visit with {{doctor}} is booked for {{date}} at {{time}}.",
		},
		{
			ID:      TemplateAnomalyAlert,
			Name:    "Anomaly Alert",
			Subject: "Unusual {{metric}} reading",
			Body:    "Hi {{name}}, your {{metric}} reading of {{value}} is unusual compared to your recent average of {{mean}}.",
		},
		{
			ID:      TemplateHydrationReminder,
			Name:    "Hydration Reminder",
			Subject: "Stay hydrated",
			Body:    "Hi {{name}}, you have logged {{glasses}} glasses of water today. Aim for {{goal}}.",
		},
		{
			ID:      TemplateSleepReminder,
			Name:    "Sleep Reminder",
			Subject: "Wind down for bed",
			Body:    "Hi {{name}}, your target bedtime is {{bedtime}}. Consider putting screens away.",
		},
		{
			ID:      TemplateWeeklySummary,
			Name:    "Weekly Summary",
			Subject: "Your week in health",
			Body:    "Hi {{name}}, this week you averaged {{steps}} steps and {{sleep_hours}} hours of sleep. {{highlight}}",
		},
		{
			ID:      TemplatePasswordReset,
			Name:    "Password Reset",
			Subject: "Password Reset Request",
			Body:    "You requested a password reset. Use the following link to reset your password: {{reset_link}}",
		},
		{
			ID:      TemplateEmergencyAlert,
			Name:    "Emergency Alert",
			Subject: "Emergency alert from {{name}}",
			Body:    "{{contact}}, {{name}} has triggered an emergency alert. {{message}} Location: {{location}}.",
		},
		{
			ID:      TemplateAnnouncement,
			Name:    "Announcement",
			Subject: "{{title}}",
			Body:    "{{message}}",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Templates returns all templates sorted by id.
func (e *TemplateEngine) Templates() []Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Template, 0, len(e.templates))
	for _, t := range e.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Render replaces {{key}} placeholders with values from data. Keys present
// in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
