// Package fitness reads activity, heart rate and sleep from a Fitbit-style
// wearable API using OAuth2 authorization-code tokens.
package fitness

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// MaxDays bounds every series request.
const MaxDays = 90

var Scopes = []string{"activity", "heartrate", "sleep"}

type Config struct {
	BaseURL      string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	MockSeed     int64
}

// Activity is the daily steps and calories series.
type Activity struct {
	Steps    []sandbox.Point `json:"steps"`
	Calories []sandbox.Point `json:"calories"`
}

type Client struct {
	integrations.Base
	cfg   Config
	oauth *oauth2.Config
	now   func() time.Time
}

func New(cfg Config, logger zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		Base: integrations.NewBase("fitness", logger),
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		now: time.Now,
	}
}

// Configured reports whether OAuth client credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthCodeURL is where the user is sent to grant access.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("fitness integration is not configured")
	}
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("fitness integration is not configured")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// TokenSource returns a refreshing source for tok. Callers can read the
// current token back from it to persist refreshes.
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
	return oauth2.ReuseTokenSource(tok, c.oauth.TokenSource(ctx, tok))
}

func clampDays(days int) int {
	if days <= 0 {
		return 7
	}
	if days > MaxDays {
		return MaxDays
	}
	return days
}

func (c *Client) mock(userID string, days int) sandbox.Vitals {
	return sandbox.NewGenerator(c.cfg.MockSeed, userID).Vitals(days, c.now(), true)
}

// get performs an authorised GET through the breaker.
func (c *Client) get(ctx context.Context, ts oauth2.TokenSource, path string, out interface{}) error {
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	req, err := integrations.NewJSONRequest(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return c.DoJSON(req, out)
}

type seriesEntry struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

func toPoints(entries []seriesEntry) ([]sandbox.Point, error) {
	out := make([]sandbox.Point, 0, len(entries))
	for _, e := range entries {
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q on %s: %w", e.Value, e.DateTime, err)
		}
		out = append(out, sandbox.Point{Date: e.DateTime, Value: v})
	}
	return out, nil
}

// Activity returns daily steps and calories. A nil ts means the user has
// not connected a device and gets mock data.
func (c *Client) Activity(ctx context.Context, ts oauth2.TokenSource, userID string, days int) (Activity, integrations.Source) {
	days = clampDays(days)
	if ts == nil || !c.Configured() {
		v := c.mock(userID, days)
		return Activity{Steps: v.Steps, Calories: v.Calories}, c.Fallback(nil)
	}
	act, err := c.fetchActivity(ctx, ts, days)
	if err != nil {
		v := c.mock(userID, days)
		return Activity{Steps: v.Steps, Calories: v.Calories}, c.Fallback(err)
	}
	return act, c.Live()
}

func (c *Client) fetchActivity(ctx context.Context, ts oauth2.TokenSource, days int) (Activity, error) {
	var steps struct {
		Series []seriesEntry `json:"activities-steps"`
	}
	if err := c.get(ctx, ts, fmt.Sprintf("/1/user/-/activities/steps/date/today/%dd.json", days), &steps); err != nil {
		return Activity{}, err
	}
	var cals struct {
		Series []seriesEntry `json:"activities-calories"`
	}
	if err := c.get(ctx, ts, fmt.Sprintf("/1/user/-/activities/calories/date/today/%dd.json", days), &cals); err != nil {
		return Activity{}, err
	}
	var act Activity
	var err error
	if act.Steps, err = toPoints(steps.Series); err != nil {
		return Activity{}, err
	}
	if act.Calories, err = toPoints(cals.Series); err != nil {
		return Activity{}, err
	}
	return act, nil
}

// HeartRate returns the daily resting heart rate. Days without a resting
// value are skipped.
func (c *Client) HeartRate(ctx context.Context, ts oauth2.TokenSource, userID string, days int) ([]sandbox.Point, integrations.Source) {
	days = clampDays(days)
	if ts == nil || !c.Configured() {
		return c.mock(userID, days).HeartRate, c.Fallback(nil)
	}
	var resp struct {
		Series []struct {
			DateTime string `json:"dateTime"`
			Value    struct {
				RestingHeartRate float64 `json:"restingHeartRate"`
			} `json:"value"`
		} `json:"activities-heart"`
	}
	if err := c.get(ctx, ts, fmt.Sprintf("/1/user/-/activities/heart/date/today/%dd.json", days), &resp); err != nil {
		return c.mock(userID, days).HeartRate, c.Fallback(err)
	}
	out := []sandbox.Point{}
	for _, e := range resp.Series {
		if e.Value.RestingHeartRate > 0 {
			out = append(out, sandbox.Point{Date: e.DateTime, Value: e.Value.RestingHeartRate})
		}
	}
	return out, c.Live()
}

// fitbitTime is the wearable's local timestamp layout.
const fitbitTime = "2006-01-02T15:04:05.000"

// Sleep returns the nights that ended in the last days days.
func (c *Client) Sleep(ctx context.Context, ts oauth2.TokenSource, userID string, days int) ([]sandbox.SleepSession, integrations.Source) {
	days = clampDays(days)
	mock := func() []sandbox.SleepSession {
		return sandbox.NewGenerator(c.cfg.MockSeed, userID).SleepSessions(days, c.now())
	}
	if ts == nil || !c.Configured() {
		return mock(), c.Fallback(nil)
	}
	end := c.now().UTC()
	start := end.AddDate(0, 0, -(days - 1))
	var resp struct {
		Sleep []struct {
			StartTime  string `json:"startTime"`
			EndTime    string `json:"endTime"`
			Efficiency int    `json:"efficiency"`
			Levels     struct {
				Summary map[string]struct {
					Minutes int `json:"minutes"`
				} `json:"summary"`
			} `json:"levels"`
		} `json:"sleep"`
	}
	path := fmt.Sprintf("/1.2/user/-/sleep/date/%s/%s.json", start.Format(sandbox.DateLayout), end.Format(sandbox.DateLayout))
	if err := c.get(ctx, ts, path, &resp); err != nil {
		return mock(), c.Fallback(err)
	}
	out := []sandbox.SleepSession{}
	for _, s := range resp.Sleep {
		st, err1 := time.Parse(fitbitTime, s.StartTime)
		et, err2 := time.Parse(fitbitTime, s.EndTime)
		if err1 != nil || err2 != nil {
			c.Logger.Warn().Str("start", s.StartTime).Msg("skipping sleep entry with bad timestamps")
			continue
		}
		sess := sandbox.SleepSession{Start: st, End: et, Quality: qualityFromEfficiency(s.Efficiency)}
		for _, stage := range []string{"light", "deep", "rem", "wake"} {
			if lv, ok := s.Levels.Summary[stage]; ok {
				name := stage
				if name == "wake" {
					name = "awake"
				}
				sess.Stages = append(sess.Stages, sandbox.SleepStage{Stage: name, Minutes: lv.Minutes})
			}
		}
		out = append(out, sess)
	}
	return out, c.Live()
}

// qualityFromEfficiency maps a 0-100 efficiency onto the 1-5 scale.
func qualityFromEfficiency(eff int) int {
	switch {
	case eff >= 93:
		return 5
	case eff >= 88:
		return 4
	case eff >= 80:
		return 3
	case eff >= 70:
		return 2
	default:
		return 1
	}
}
