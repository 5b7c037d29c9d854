package notification

import (
	"fmt"
	"time"
)

// Settings are a user's delivery preferences.
type Settings struct {
	InApp bool `json:"in_app"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	// EmailAddress and Phone are where email and SMS go.
	EmailAddress string `json:"email_address,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,e164"`
	// QuietStart and QuietEnd are "HH:MM" in UTC. Equal values disable
	// quiet hours; a start after the end wraps past midnight.
	QuietStart string `json:"quiet_start,omitempty"`
	QuietEnd   string `json:"quiet_end,omitempty"`
	// Muted lists template ids the user does not want on any channel.
	Muted []string `json:"muted,omitempty"`
}

// DefaultSettings enables in-app delivery only.
func DefaultSettings() Settings {
	return Settings{InApp: true, QuietStart: "22:00", QuietEnd: "07:00"}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate checks the clock fields and that enabled channels have a target.
func (s Settings) Validate() error {
	if (s.QuietStart == "") != (s.QuietEnd == "") {
		return fmt.Errorf("quiet_start and quiet_end must be set together")
	}
	if s.QuietStart != "" {
		if _, err := parseClock(s.QuietStart); err != nil {
			return err
		}
		if _, err := parseClock(s.QuietEnd); err != nil {
			return err
		}
	}
	if s.Email && s.EmailAddress == "" {
		return fmt.Errorf("email_address is required when email is enabled")
	}
	if s.SMS && s.Phone == "" {
		return fmt.Errorf("phone is required when sms is enabled")
	}
	return nil
}

// InQuietHours reports whether t falls inside the quiet window.
func (s Settings) InQuietHours(t time.Time) bool {
	if s.QuietStart == "" || s.QuietStart == s.QuietEnd {
		return false
	}
	start, err1 := parseClock(s.QuietStart)
	end, err2 := parseClock(s.QuietEnd)
	if err1 != nil || err2 != nil {
		return false
	}
	t = t.UTC()
	now := t.Hour()*60 + t.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// IsMuted reports whether templateID is muted.
func (s Settings) IsMuted(templateID string) bool {
	for _, m := range s.Muted {
		if m == templateID {
			return true
		}
	}
	return false
}

// Channels returns the channels a message should go to at time t. In-app
// is unaffected by quiet hours; urgent messages ignore quiet hours and mutes.
func (s Settings) Channels(templateID string, t time.Time, urgent bool) []Channel {
	if !urgent && s.IsMuted(templateID) {
		return nil
	}
	var out []Channel
	if s.InApp || urgent {
		out = append(out, ChannelInApp)
	}
	quiet := !urgent && s.InQuietHours(t)
	if s.Email && s.EmailAddress != "" && !quiet {
		out = append(out, ChannelEmail)
	}
	if s.SMS && s.Phone != "" && !quiet {
		out = append(out, ChannelSMS)
	}
	return out
}
