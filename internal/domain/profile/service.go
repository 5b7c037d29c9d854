// Package profile manages accounts, password login, demo login and the
// personal profile.
package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

const (
	minPassword = 8
	demoEmail   = "demo@healthhub.local"
)

// ErrInvalidCredentials is returned for an unknown email and a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Service struct {
	repo   Repository
	tokens *auth.TokenIssuer
	seed   int64
	logger zerolog.Logger
	cost   int
	now    func() time.Time
}

func NewService(repo Repository, tokens *auth.TokenIssuer, seed int64, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		seed:   seed,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Repository exposes the store to the admin console.
func (s *Service) Repository() Repository { return s.repo }

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if len(req.Password) < minPassword {
		return nil, fmt.Errorf("password must be at least %d characters", minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         auth.RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertProfile(ctx, &Profile{UserID: u.ID, Conditions: []string{}, Allergies: []string{}, UpdatedAt: u.CreatedAt}); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Msg("account registered")
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Demo signs in as the shared demo account, creating it with a generated
// profile on first use. The demo account has no password.
func (s *Service) Demo(ctx context.Context) (*Session, error) {
	u, err := s.ensureDemo(ctx)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) ensureDemo(ctx context.Context) (*User, error) {
	u, err := s.repo.GetUser(ctx, auth.DemoUserID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	p := sandbox.NewGenerator(s.seed, auth.DemoUserID).Profile()
	now := s.now().UTC()
	u = &User{
		ID:        auth.DemoUserID,
		Email:     demoEmail,
		Name:      p.Name,
		Role:      auth.RoleUser,
		CreatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return s.repo.GetUser(ctx, auth.DemoUserID)
		}
		return nil, err
	}
	if err := s.repo.UpsertProfile(ctx, fromSandbox(u.ID, p, now)); err != nil {
		return nil, err
	}
	s.logger.Info().Msg("demo account created")
	return u, nil
}

func (s *Service) session(u *User) (*Session, error) {
	roles := []string{auth.RoleUser}
	if u.Role == auth.RoleAdmin {
		roles = append(roles, auth.RoleAdmin)
	}
	tok, err := s.tokens.Issue(u.ID, u.Email, u.Name, roles)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: tok}, nil
}

// Get returns the user's account and profile. In development requests
// without a token run as the demo user, so that account is created on demand.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) && userID == auth.DemoUserID {
		u, err = s.ensureDemo(ctx)
	}
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		p = &Profile{UserID: userID, Conditions: []string{}, Allergies: []string{}}
	} else if err != nil {
		return nil, err
	}
	return &View{User: u, Profile: p, BMI: round1(p.BMI())}, nil
}

// Import replaces userID's profile with a generated one. The demo account
// is created on demand; any other user must already exist.
func (s *Service) Import(ctx context.Context, userID string, p sandbox.Profile) error {
	if userID == auth.DemoUserID {
		if _, err := s.ensureDemo(ctx); err != nil {
			return err
		}
	} else if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpsertProfile(ctx, fromSandbox(userID, p, s.now().UTC()))
}

func (s *Service) Update(ctx context.Context, userID string, in ProfileInput) (*View, error) {
	if in.DateOfBirth != "" {
		dob, err := time.Parse(sandbox.DateLayout, in.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("date_of_birth must be YYYY-MM-DD")
		}
		if dob.After(s.now()) {
			return nil, fmt.Errorf("date_of_birth cannot be in the future")
		}
	}
	if in.HeightCm < 0 || in.WeightKg < 0 {
		return nil, fmt.Errorf("height and weight must not be negative")
	}
	view, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" && name != view.User.Name {
		view.User.Name = name
		if err := s.repo.UpdateUser(ctx, view.User); err != nil {
			return nil, err
		}
	}
	p := &Profile{
		UserID:      userID,
		DateOfBirth: in.DateOfBirth,
		Sex:         in.Sex,
		HeightCm:    in.HeightCm,
		WeightKg:    in.WeightKg,
		Conditions:  clean(in.Conditions),
		Allergies:   clean(in.Allergies),
		Goals:       strings.TrimSpace(in.Goals),
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return &View{User: view.User, Profile: p, BMI: round1(p.BMI())}, nil
}

// clean trims, lowercases and de-duplicates a free-text list.
func clean(items []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
