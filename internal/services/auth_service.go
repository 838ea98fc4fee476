package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/prudhvinik1/weddingsync/internal/clock"
	"github.com/prudhvinik1/weddingsync/internal/models"
	"github.com/prudhvinik1/weddingsync/internal/repositories"
	"github.com/prudhvinik1/weddingsync/internal/validation"
)

// AuthService issues and verifies the bearer tokens partners use. Accounts
// live with an external identity provider; a token only binds a user id to
// the shared events it may touch.
type AuthService struct {
	sessionRepo repositories.SessionRepository
	jwtSecret   string
	jwtExpiry   time.Duration
	clock       clock.Clock
}

type IssueRequest struct {
	UserID         string   `json:"userId" validate:"required,notblank"`
	SharedEventIDs []string `json:"events" validate:"min=1,dive,required,notblank"`
}

type IssuedToken struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

type TokenClaims struct {
	UserID         string
	SessionID      string
	SharedEventIDs []string
	ExpiresAt      time.Time
}

// CanAccess reports whether the token grants access to sharedEventID.
func (c *TokenClaims) CanAccess(sharedEventID string) bool {
	return lo.Contains(c.SharedEventIDs, sharedEventID)
}

type jwtClaims struct {
	Events []string `json:"events"`
	jwt.RegisteredClaims
}

// NewAuthService creates the service. sessionRepo may be nil, in which case
// tokens cannot be revoked before they expire.
func NewAuthService(
	sessionRepo repositories.SessionRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
	clk clock.Clock,
) *AuthService {
	return &AuthService{
		sessionRepo: sessionRepo,
		jwtSecret:   jwtSecret,
		jwtExpiry:   jwtExpiry,
		clock:       clk,
	}
}

func (s *AuthService) IssueToken(ctx context.Context, req IssueRequest) (*IssuedToken, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, newValidationError(err)
	}

	now := s.clock.Now()
	sessionID := uuid.New().String()
	expiresAt := now.Add(s.jwtExpiry)
	events := lo.Uniq(req.SharedEventIDs)

	if s.sessionRepo != nil {
		session := &models.Session{
			ID:             sessionID,
			UserID:         req.UserID,
			SharedEventIDs: events,
			ExpiresAt:      expiresAt,
			CreatedAt:      now,
		}
		if err := s.sessionRepo.Create(ctx, session); err != nil {
			return nil, &StorageError{Op: "create session", Err: err}
		}
	}

	token, err := s.generateToken(req.UserID, sessionID, events, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &IssuedToken{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) generateToken(userID, sessionID string, events []string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwtClaims{
		Events: events,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// VerifyToken checks the signature and expiry of tokenString and, when
// sessions are tracked, that its session was not revoked.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if s.sessionRepo != nil {
		session, err := s.sessionRepo.GetByID(ctx, claims.ID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		if err != nil {
			return nil, &StorageError{Op: "get session", Err: err}
		}
		if session.UserID != claims.Subject {
			return nil, ErrInvalidToken
		}
	}

	return &TokenClaims{
		UserID:         claims.Subject,
		SessionID:      claims.ID,
		SharedEventIDs: claims.Events,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the session behind claims.
func (s *AuthService) Logout(ctx context.Context, claims *TokenClaims) error {
	if s.sessionRepo == nil {
		return nil
	}

	err := s.sessionRepo.Delete(ctx, claims.SessionID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return &StorageError{Op: "delete session", Err: err}
	}

	return nil
}

// LogoutAll revokes every session of the user behind claims.
func (s *AuthService) LogoutAll(ctx context.Context, claims *TokenClaims) error {
	if s.sessionRepo == nil {
		return nil
	}

	if err := s.sessionRepo.DeleteAllForUser(ctx, claims.UserID); err != nil {
		return &StorageError{Op: "delete sessions", Err: err}
	}

	return nil
}
