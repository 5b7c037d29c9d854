// Package emergency keeps a user's emergency contacts and alerts them on SOS.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/notification"
)

const contactsKey = "emergency_contacts"

var (
	ErrContactNotFound = errors.New("emergency contact not found")
	ErrTooManyContacts = fmt.Errorf("at most %d emergency contacts are allowed", MaxContacts)
	ErrNoContacts      = errors.New("no emergency contacts to alert")
)

// Sender delivers a message to someone outside the platform.
type Sender interface {
	SendTo(ctx context.Context, userID string, ch notification.Channel, recipient string, msg notification.Message) (notification.Notification, error)
}

type Service struct {
	contacts *kvstore.Collection[Contact]
	sender   Sender
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(store kvstore.Store, sender Sender, logger zerolog.Logger) *Service {
	return &Service{
		contacts: kvstore.NewCollection[Contact](store, contactsKey, logger),
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

func validateInput(in ContactInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if in.Phone == "" && in.Email == "" {
		return fmt.Errorf("a phone number or email is required")
	}
	return nil
}

// setPrimary makes items[i] the only primary contact.
func setPrimary(items []Contact, i int) {
	for j := range items {
		items[j].Primary = j == i
	}
}

// Add stores a contact. The first contact is always primary.
func (s *Service) Add(ctx context.Context, userID string, in ContactInput) (*Contact, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := Contact{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Relationship: in.Relationship,
		Phone:        in.Phone,
		Email:        in.Email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.contacts.Update(ctx, userID, func(items []Contact) ([]Contact, error) {
		if len(items) >= MaxContacts {
			return nil, ErrTooManyContacts
		}
		items = append(items, c)
		if in.Primary || len(items) == 1 {
			setPrimary(items, len(items)-1)
		}
		c = items[len(items)-1]
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update replaces a contact's details. Primary can be moved to this
// contact but not cleared; make another contact primary instead.
func (s *Service) Update(ctx context.Context, userID, id string, in ContactInput) (*Contact, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var out Contact
	err := s.contacts.Update(ctx, userID, func(items []Contact) ([]Contact, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			items[i].Name = strings.TrimSpace(in.Name)
			items[i].Relationship = in.Relationship
			items[i].Phone = in.Phone
			items[i].Email = in.Email
			items[i].UpdatedAt = s.now().UTC()
			if in.Primary {
				setPrimary(items, i)
			}
			out = items[i]
			return items, nil
		}
		return nil, ErrContactNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns contacts with the primary first, then by creation.
func (s *Service) List(ctx context.Context, userID string) ([]Contact, error) {
	items, err := s.contacts.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Primary && !items[j].Primary })
	return items, nil
}

// Delete removes a contact. When the primary goes, the oldest remaining
// contact takes its place.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.contacts.Update(ctx, userID, func(items []Contact) ([]Contact, error) {
		for i, c := range items {
			if c.ID != id {
				continue
			}
			items = append(items[:i], items[i+1:]...)
			if c.Primary && len(items) > 0 {
				oldest := 0
				for j := range items {
					if items[j].CreatedAt.Before(items[oldest].CreatedAt) {
						oldest = j
					}
				}
				setPrimary(items, oldest)
			}
			return items, nil
		}
		return nil, ErrContactNotFound
	})
}

// SOS renders the emergency alert for every contact and sends it by SMS
// and email, whichever the contact has. A failed send is reported in the
// result and does not stop the others.
func (s *Service) SOS(ctx context.Context, userID string, in SOSInput) (*SOSResult, error) {
	contacts, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "A HealthHub user"
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		message = "They may need urgent help."
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = "not shared"
	}

	res := &SOSResult{TriggeredAt: s.now().UTC(), Alerts: []Alert{}}
	for _, c := range contacts {
		msg := notification.Message{
			TemplateID: notification.TemplateEmergencyAlert,
			Data:       map[string]string{"contact": c.Name, "name": name, "message": message, "location": location},
			Urgent:     true,
			Metadata:   map[string]string{"contact_id": c.ID},
		}
		targets := []struct {
			ch        notification.Channel
			recipient string
		}{{notification.ChannelSMS, c.Phone}, {notification.ChannelEmail, c.Email}}

		reached := false
		for _, t := range targets {
			if t.recipient == "" {
				continue
			}
			a := Alert{ContactID: c.ID, Contact: c.Name, Channel: string(t.ch), Recipient: t.recipient}
			n, err := s.sender.SendTo(ctx, userID, t.ch, t.recipient, msg)
			switch {
			case err != nil:
				a.Status = notification.StatusFailed
				a.Error = err.Error()
			default:
				a.Status = n.Status
				a.Error = n.Error
			}
			if a.Status == notification.StatusSent {
				reached = true
			}
			res.Alerts = append(res.Alerts, a)
		}
		if reached {
			res.Alerted++
		}
	}
	s.logger.Warn().Str("user_id", userID).Int("contacts", len(contacts)).Int("alerted", res.Alerted).Msg("emergency sos triggered")
	return res, nil
}
