package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthhub/healthhub/internal/platform/integrations"
	"github.com/healthhub/healthhub/internal/platform/integrations/chat"
	"github.com/healthhub/healthhub/internal/platform/kvstore"
	"github.com/healthhub/healthhub/internal/platform/middleware"
	"github.com/healthhub/healthhub/internal/platform/telemetry"
)

const (
	chatHistoryKey = "chat_history"
	// maxChatTurns caps stored turns; contextTurns is how many are sent
	// back to the model with a new question.
	maxChatTurns = 50
	contextTurns = 6
	maxQuestion  = 2000
)

// RateLimitError reports that a user has used up the chat window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("chat limit reached, try again in %s", e.RetryAfter.Round(time.Second))
}

// Completer is satisfied by the chat integration client.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, messages []chat.Message) (string, error)
}

type ChatTurn struct {
	Question string              `json:"question"`
	Answer   string              `json:"answer"`
	Source   integrations.Source `json:"source"`
	AskedAt  time.Time           `json:"asked_at"`
}

type Answer struct {
	Reply     string              `json:"reply"`
	Source    integrations.Source `json:"source"`
	Remaining int                 `json:"remaining"`
}

// ChatService answers wellness questions through the chat client, falling
// back to canned answers when it is unavailable.
type ChatService struct {
	client  Completer
	limiter *middleware.SlidingWindow
	history *kvstore.Collection[ChatTurn]
	metrics *telemetry.Collector
	logger  zerolog.Logger
	now     func() time.Time
}

func NewChatService(client Completer, limiter *middleware.SlidingWindow, store kvstore.Store, logger zerolog.Logger) *ChatService {
	return &ChatService{
		client:  client,
		limiter: limiter,
		history: kvstore.NewCollection[ChatTurn](store, chatHistoryKey, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// SetMetrics attaches an optional metrics collector.
func (s *ChatService) SetMetrics(m *telemetry.Collector) {
	s.metrics = m
}

// Ask answers question for userID. Every call, including fallbacks,
// counts toward the user's window.
func (s *ChatService) Ask(ctx context.Context, userID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is required")
	}
	if len(question) > maxQuestion {
		return Answer{}, fmt.Errorf("question must be at most %d characters", maxQuestion)
	}
	now := s.now()
	if s.limiter != nil && !s.limiter.Allow(userID, now) {
		return Answer{}, &RateLimitError{RetryAfter: s.limiter.RetryAfter(userID, now)}
	}

	ans := Answer{Source: integrations.SourceMock}
	if s.client != nil && s.client.Configured() {
		msgs, err := s.contextMessages(ctx, userID)
		if err != nil {
			return Answer{}, err
		}
		msgs = append(msgs, chat.Message{Role: chat.RoleUser, Content: question})
		reply, err := s.client.Complete(ctx, msgs)
		if err == nil {
			ans.Reply, ans.Source = reply, integrations.SourceLive
		} else {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("chat completion failed, using canned answer")
		}
	}
	if ans.Source != integrations.SourceLive {
		s.metrics.IntegrationCall("chat", telemetry.OutcomeFallback)
		ans.Reply = CannedAnswer(question)
	}
	if s.limiter != nil {
		ans.Remaining = s.limiter.Remaining(userID, now)
	}

	turn := ChatTurn{Question: question, Answer: ans.Reply, Source: ans.Source, AskedAt: now.UTC()}
	err := s.history.Update(ctx, userID, func(items []ChatTurn) ([]ChatTurn, error) {
		items = append(items, turn)
		if len(items) > maxChatTurns {
			items = items[len(items)-maxChatTurns:]
		}
		return items, nil
	})
	if err != nil {
		return ans, err
	}
	return ans, nil
}

func (s *ChatService) contextMessages(ctx context.Context, userID string) ([]chat.Message, error) {
	turns, err := s.history.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(turns) > contextTurns {
		turns = turns[len(turns)-contextTurns:]
	}
	msgs := make([]chat.Message, 0, 2*len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs,
			chat.Message{Role: chat.RoleUser, Content: t.Question},
			chat.Message{Role: chat.RoleAssistant, Content: t.Answer})
	}
	return msgs, nil
}

// History returns the stored conversation oldest first.
func (s *ChatService) History(ctx context.Context, userID string) ([]ChatTurn, error) {
	return s.history.Load(ctx, userID)
}

func (s *ChatService) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}

// IsRateLimited unwraps a RateLimitError.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	ok := errors.As(err, &rl)
	return rl, ok
}

type canned struct {
	keywords []string
	answer   string
}

// cannedAnswers are checked in order; the first keyword hit wins.
var cannedAnswers = []canned{
	{[]string{"chest pain", "can't breathe", "cannot breathe", "suicid", "kill myself", "stroke", "unconscious"},
		"This sounds like it could be an emergency. Call your local emergency number now, or use the SOS button to alert your emergency contacts."},
	{[]string{"sleep", "insomnia", "tired"},
		"Aim for 7 to 9 hours. Keep a consistent bedtime, avoid screens and caffeine late in the day, and keep your bedroom cool and dark."},
	{[]string{"water", "hydrat", "thirst"},
		"Most adults do well with about 2 to 2.5 litres of fluid a day, more when it is hot or you exercise. Pale yellow urine is a good sign."},
	{[]string{"exercise", "workout", "steps", "walk", "run"},
		"Try for 150 minutes of moderate activity a week plus two strength sessions. Start small and build up gradually."},
	{[]string{"stress", "anxi", "worried", "overwhelm"},
		"Slow breathing, a short walk or writing down what is on your mind can help in the moment. If stress is persistent, consider talking to a professional."},
	{[]string{"diet", "eat", "food", "calorie", "protein", "weight"},
		"Build meals around vegetables, lean protein and whole grains, and keep an eye on portion sizes. Logging meals helps you spot patterns."},
	{[]string{"headache", "migraine"},
		"Rest, fluids and a quiet dark room help many headaches. See a doctor if a headache is sudden and severe, or comes with fever, confusion or weakness."},
	{[]string{"heart rate", "pulse", "blood pressure"},
		"A typical resting heart rate is 60 to 100 bpm. Check the dashboard for unusual readings and talk to a doctor if they persist."},
}

// CannedAnswer returns a keyword-matched response for when no chat
// provider is available.
func CannedAnswer(question string) string {
	q := strings.ToLower(question)
	for _, c := range cannedAnswers {
		for _, k := range c.keywords {
			if strings.Contains(q, k) {
				return c.answer
			}
		}
	}
	return "I can share general tips on sleep, hydration, exercise, nutrition and stress. For anything specific to your health, please talk to a clinician."
}
