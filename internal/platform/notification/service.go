package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/kvstore"
)

var (
	ErrTemplateNotFound     = errors.New("template not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

const (
	historyKey  = "notification_history"
	settingsKey = "notification_settings"
	// maxHistory caps the stored history per user; oldest entries go first.
	maxHistory = 200
)

// Message is a request to notify one user.
type Message struct {
	TemplateID string
	Data       map[string]string
	// Urgent messages bypass quiet hours and mutes.
	Urgent   bool
	Metadata map[string]string
}

// Service delivers templated messages and keeps per-user history.
type Service struct {
	templates *TemplateEngine
	email     EmailSender
	sms       SMSSender
	history   *kvstore.Collection[Notification]
	settings  *kvstore.Value[Settings]
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(store kvstore.Store, tpl *TemplateEngine, email EmailSender, sms SMSSender, logger zerolog.Logger) *Service {
	return &Service{
		templates: tpl,
		email:     email,
		sms:       sms,
		history:   kvstore.NewCollection[Notification](store, historyKey, logger),
		settings:  kvstore.NewValue[Settings](store, settingsKey, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Templates exposes the engine for callers that only need rendering.
func (s *Service) Templates() *TemplateEngine { return s.templates }

// Settings returns the user's settings, or the defaults when none are saved.
func (s *Service) Settings(ctx context.Context, userID string) (Settings, error) {
	st, ok, err := s.settings.Get(ctx, userID)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return DefaultSettings(), nil
	}
	return st, nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID string, st Settings) (Settings, error) {
	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	if err := s.settings.Put(ctx, userID, st); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Notify renders msg and delivers it on every channel the user's settings
// allow. Every attempt, failed ones included, is recorded in the history.
// A send failure on one channel does not stop the others.
func (s *Service) Notify(ctx context.Context, userID string, msg Message) ([]Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	subject, body, err := s.templates.Render(msg.TemplateID, msg.Data)
	if err != nil {
		return nil, err
	}
	st, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var sent []Notification
	for _, ch := range st.Channels(msg.TemplateID, now, msg.Urgent) {
		n := Notification{
			ID:         uuid.New().String(),
			UserID:     userID,
			Channel:    ch,
			TemplateID: msg.TemplateID,
			Subject:    subject,
			Body:       body,
			CreatedAt:  now,
			Metadata:   msg.Metadata,
		}
		switch ch {
		case ChannelEmail:
			n.Recipient = st.EmailAddress
		case ChannelSMS:
			n.Recipient = st.Phone
		}
		s.deliver(ctx, &n)
		sent = append(sent, n)
	}
	if len(sent) == 0 {
		return []Notification{}, nil
	}
	if err := s.record(ctx, userID, sent...); err != nil {
		return sent, err
	}
	return sent, nil
}

// SendTo delivers a rendered template straight to an outside recipient such
// as an emergency contact. The attempt is recorded in userID's history.
func (s *Service) SendTo(ctx context.Context, userID string, ch Channel, recipient string, msg Message) (Notification, error) {
	subject, body, err := s.templates.Render(msg.TemplateID, msg.Data)
	if err != nil {
		return Notification{}, err
	}
	n := Notification{
		ID:         uuid.New().String(),
		UserID:     userID,
		Channel:    ch,
		Recipient:  recipient,
		TemplateID: msg.TemplateID,
		Subject:    subject,
		Body:       body,
		CreatedAt:  s.now().UTC(),
		Read:       true,
		Metadata:   msg.Metadata,
	}
	s.deliver(ctx, &n)
	if err := s.record(ctx, userID, n); err != nil {
		return n, err
	}
	return n, nil
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	var err error
	switch n.Channel {
	case ChannelInApp:
	case ChannelEmail:
		err = s.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		err = s.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		err = fmt.Errorf("unsupported channel: %s", n.Channel)
	}
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		s.logger.Warn().Err(err).Str("user_id", n.UserID).Str("channel", string(n.Channel)).
			Str("template", n.TemplateID).Msg("notification delivery failed")
		return
	}
	n.Status = StatusSent
}

func (s *Service) record(ctx context.Context, userID string, ns ...Notification) error {
	return s.history.Update(ctx, userID, func(items []Notification) ([]Notification, error) {
		items = append(items, ns...)
		if len(items) > maxHistory {
			items = items[len(items)-maxHistory:]
		}
		return items, nil
	})
}

// History returns the user's notifications newest first. With unreadOnly
// set, read entries are left out.
func (s *Service) History(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	items, err := s.history.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if unreadOnly && items[i].Read {
			continue
		}
		out = append(out, items[i])
	}
	return out, nil
}

// UnreadCount counts in-app notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	items, err := s.history.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range items {
		if !it.Read && it.Channel == ChannelInApp {
			n++
		}
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	var out Notification
	err := s.history.Update(ctx, userID, func(items []Notification) ([]Notification, error) {
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if !items[i].Read {
				now := s.now().UTC()
				items[i].Read = true
				items[i].ReadAt = &now
			}
			out = items[i]
			return items, nil
		}
		return nil, ErrNotificationNotFound
	})
	return out, err
}

// MarkAllRead marks every entry read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	changed := 0
	err := s.history.Update(ctx, userID, func(items []Notification) ([]Notification, error) {
		now := s.now().UTC()
		for i := range items {
			if !items[i].Read {
				items[i].Read = true
				items[i].ReadAt = &now
				changed++
			}
		}
		return items, nil
	})
	return changed, err
}

func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}

// BroadcastResult summarises a broadcast.
type BroadcastResult struct {
	Recipients int            `json:"recipients"`
	Delivered  int            `json:"delivered"`
	Failed     []string       `json:"failed"`
	ByChannel  map[string]int `json:"by_channel"`
}

// Broadcast sends msg to every user in userIDs.
func (s *Service) Broadcast(ctx context.Context, userIDs []string, msg Message) (BroadcastResult, error) {
	res := BroadcastResult{Failed: []string{}, ByChannel: map[string]int{}}
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Recipients++
		sent, err := s.Notify(ctx, id, msg)
		if err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				return res, err
			}
			s.logger.Warn().Err(err).Str("user_id", id).Msg("broadcast delivery failed")
			res.Failed = append(res.Failed, id)
			continue
		}
		for _, n := range sent {
			if n.Status == StatusSent {
				res.ByChannel[string(n.Channel)]++
			}
		}
		if len(sent) > 0 {
			res.Delivered++
		}
	}
	return res, nil
}
