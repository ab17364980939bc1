package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"experienceboard/internal/identity"
	"experienceboard/internal/model"
	"experienceboard/internal/pkg/jwtutil"
	"experienceboard/internal/platform/logger"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidIDToken   = errors.New("invalid identity token")
	ErrDomainNotAllowed = errors.New("email domain not allowed")
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type SessionRegistry interface {
	SignedIn(ctx context.Context, userID, tokenID string, expiresAt time.Time) error
	Revoke(ctx context.Context, userID, tokenID string, expiresAt time.Time) error
	Revoked(tokenID string) bool
}

type AuthService struct {
	userRepo      UserStore
	verifier      identity.Verifier
	gate          identity.DomainGate
	sessions      SessionRegistry
	jwtSecret     string
	jwtExpiration time.Duration
	log           *logger.Logger
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

func NewAuthService(
	userRepo UserStore,
	verifier identity.Verifier,
	gate identity.DomainGate,
	sessions SessionRegistry,
	jwtSecret string,
	jwtExpiration time.Duration,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		verifier:      verifier,
		gate:          gate,
		sessions:      sessions,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		log:           log.With("service", "AuthService"),
	}
}

// SignIn exchanges a provider ID token for a session token. Addresses outside
// the allowed domain are refused before any user row is written.
func (s *AuthService) SignIn(ctx context.Context, rawIDToken string) (*AuthResult, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrInvalidInput
	}

	id, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.log.Warn("id token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if !s.gate.Allows(id.Email) {
		s.log.Info("sign-in refused for domain", "allowed_domain", s.gate.Domain())
		return nil, ErrDomainNotAllowed
	}

	user, err := s.upsertUser(ctx, id)
	if err != nil {
		return nil, err
	}

	token, claims, err := jwtutil.Issue(s.jwtSecret, s.jwtExpiration, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SignedIn(ctx, user.ID, claims.TokenID(), claims.ExpiresAt.Time); err != nil {
		s.log.Warn("announce sign-in failed", "user_id", user.ID, "error", err)
	}
	return &AuthResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func (s *AuthService) upsertUser(ctx context.Context, id *identity.Identity) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, id.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &model.User{Subject: id.Subject, Email: id.Email, Name: id.Name}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if user.Subject != id.Subject || (id.Name != "" && user.Name != id.Name) {
		user.Subject = id.Subject
		if id.Name != "" {
			user.Name = id.Name
		}
		if err := s.userRepo.Save(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// SignOut revokes the presented token on every instance.
func (s *AuthService) SignOut(ctx context.Context, claims *jwtutil.Claims) error {
	if claims == nil || claims.TokenID() == "" {
		return ErrInvalidInput
	}
	return s.sessions.Revoke(ctx, claims.UserID, claims.TokenID(), claims.ExpiresAt.Time)
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(ctx, id)
}
