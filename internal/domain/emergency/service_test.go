package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
)

// -- Mock Sender --

type sent struct {
	ch        notification.Channel
	recipient string
	msg       notification.Message
}

type mockSender struct {
	tpl    *notification.TemplateEngine
	fail   map[string]bool
	broken map[string]bool
	calls  []sent
}

func newMockSender() *mockSender {
	return &mockSender{tpl: notification.NewTemplateEngine(), fail: map[string]bool{}, broken: map[string]bool{}}
}

func (m *mockSender) SendTo(_ context.Context, userID string, ch notification.Channel, recipient string, msg notification.Message) (notification.Notification, error) {
	m.calls = append(m.calls, sent{ch: ch, recipient: recipient, msg: msg})
	if m.broken[recipient] {
		return notification.Notification{}, fmt.Errorf("template store unavailable")
	}
	subject, body, _ := m.tpl.Render(msg.TemplateID, msg.Data)
	n := notification.Notification{UserID: userID, Channel: ch, Recipient: recipient, Subject: subject, Body: body, Status: notification.StatusSent}
	if m.fail[recipient] {
		n.Status = notification.StatusFailed
		n.Error = "provider rejected recipient"
	}
	return n, nil
}

func newTestService() (*Service, *mockSender) {
	sender := newMockSender()
	s := NewService(kvstore.NewMemoryStore(), sender, zerolog.Nop())
	tick := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s, sender
}

func primaryOf(t *testing.T, items []Contact) string {
	t.Helper()
	name := ""
	for _, c := range items {
		if c.Primary {
			if name != "" {
				t.Fatalf("more than one primary contact: %+v", items)
			}
			name = c.Name
		}
	}
	return name
}

func TestAdd_FirstContactIsPrimary(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	first, err := s.Add(ctx, "u1", ContactInput{Name: "Ana", Phone: "+15550100"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.Primary {
		t.Error("first contact should be primary")
	}
	s.Add(ctx, "u1", ContactInput{Name: "Ben", Email: "ben@example.com"})
	items, _ := s.List(ctx, "u1")
	if primaryOf(t, items) != "Ana" {
		t.Errorf("adding a second contact should not move primary")
	}

	s.Add(ctx, "u1", ContactInput{Name: "Cy", Phone: "+15550101", Primary: true})
	items, _ = s.List(ctx, "u1")
	if primaryOf(t, items) != "Cy" || items[0].Name != "Cy" {
		t.Errorf("expected Cy primary and listed first, got %+v", items)
	}
}

func TestAdd_Validation(t *testing.T) {
	s, _ := newTestService()
	if _, err := s.Add(context.Background(), "u1", ContactInput{Name: " "}); err == nil {
		t.Error("expected error for blank name")
	}
	if _, err := s.Add(context.Background(), "u1", ContactInput{Name: "Ana"}); err == nil {
		t.Error("expected error without phone or email")
	}
}

func TestAdd_Limit(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < MaxContacts; i++ {
		if _, err := s.Add(ctx, "u1", ContactInput{Name: fmt.Sprintf("c%d", i), Phone: "+15550100"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Add(ctx, "u1", ContactInput{Name: "extra", Phone: "+15550100"}); !errors.Is(err, ErrTooManyContacts) {
		t.Errorf("expected ErrTooManyContacts, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	s.Add(ctx, "u1", ContactInput{Name: "Ana", Phone: "+15550100"})
	ben, _ := s.Add(ctx, "u1", ContactInput{Name: "Ben", Phone: "+15550101"})

	out, err := s.Update(ctx, "u1", ben.ID, ContactInput{Name: "Benjamin", Phone: "+15550102", Primary: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != "Benjamin" || !out.Primary {
		t.Errorf("unexpected update result %+v", out)
	}
	items, _ := s.List(ctx, "u1")
	if primaryOf(t, items) != "Benjamin" {
		t.Error("primary should have moved")
	}
	if _, err := s.Update(ctx, "u1", "missing", ContactInput{Name: "x", Phone: "+15550100"}); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}
}

func TestDelete_PromotesOldest(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	s.Add(ctx, "u1", ContactInput{Name: "Ana", Phone: "+15550100"})
	s.Add(ctx, "u1", ContactInput{Name: "Ben", Phone: "+15550101"})
	cy, _ := s.Add(ctx, "u1", ContactInput{Name: "Cy", Phone: "+15550102", Primary: true})

	if err := s.Delete(ctx, "u1", cy.ID); err != nil {
		t.Fatal(err)
	}
	items, _ := s.List(ctx, "u1")
	if len(items) != 2 || primaryOf(t, items) != "Ana" {
		t.Errorf("expected Ana promoted, got %+v", items)
	}
	if err := s.Delete(ctx, "u1", cy.ID); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}
}

func TestSOS(t *testing.T) {
	s, sender := newTestService()
	ctx := context.Background()
	s.Add(ctx, "u1", ContactInput{Name: "Ana", Phone: "+15550100", Email: "ana@example.com"})
	s.Add(ctx, "u1", ContactInput{Name: "Ben", Phone: "+15550101"})
	s.Add(ctx, "u1", ContactInput{Name: "Cy", Email: "cy@example.com"})
	sender.fail["+15550101"] = true
	sender.broken["cy@example.com"] = true

	res, err := s.SOS(ctx, "u1", SOSInput{Name: "Sam", Location: "Home"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Alerts) != 4 || len(sender.calls) != 4 {
		t.Fatalf("expected four sends, got %+v", res.Alerts)
	}
	if res.Alerted != 1 {
		t.Errorf("only Ana was reached, got %d", res.Alerted)
	}
	for _, c := range sender.calls {
		if !c.msg.Urgent || c.msg.TemplateID != notification.TemplateEmergencyAlert {
			t.Errorf("alerts must be urgent emergency alerts: %+v", c.msg)
		}
	}
	first := sender.calls[0]
	body := first.msg.Data
	if first.ch != notification.ChannelSMS || body["contact"] != "Ana" || body["location"] != "Home" || body["message"] == "" {
		t.Errorf("unexpected first alert %+v", first)
	}
	if res.Alerts[3].Status != notification.StatusFailed || !strings.Contains(res.Alerts[3].Error, "unavailable") {
		t.Errorf("expected the broken send reported, got %+v", res.Alerts[3])
	}
}

func TestSOS_NoContacts(t *testing.T) {
	s, _ := newTestService()
	if _, err := s.SOS(context.Background(), "u1", SOSInput{}); !errors.Is(err, ErrNoContacts) {
		t.Errorf("expected ErrNoContacts, got %v", err)
	}
}
