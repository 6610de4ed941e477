package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Claims carried by both access and refresh tokens. The token_type claim
// keeps a refresh token from being replayed as an access token.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// TokenBlocklist revokes token IDs until their natural expiry.
type TokenBlocklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService handles registration, login, token refresh, and logout.
// Logout revokes the token's JTI in Redis until its natural expiry.
type AuthService struct {
	userRepo  user.Repository
	blocklist TokenBlocklist
	cfg       *config.AuthConfig
	logger    zerolog.Logger
}

func NewAuthService(userRepo user.Repository, blocklist TokenBlocklist, cfg *config.AuthConfig, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		blocklist: blocklist,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterRequest holds the input for creating an account.
// Controllers convert their HTTP DTOs to this type.
type RegisterRequest struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// Register creates a customer account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := user.New(req.Email, req.FirstName, req.LastName, req.PhoneNumber, string(hash))
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Msg("User registered")
	return u, nil
}

// Login verifies credentials and issues a token pair. The error is the same
// for a missing user and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*user.User, *TokenPair, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			return nil, nil, domainErrors.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, domainErrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domainErrors.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("user_id", u.ID.String()).Msg("User logged in")
	return u, pair, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new pair. The
// used refresh token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.ParseToken(refreshToken)
	if err != nil {
		return nil, domainErrors.ErrUnauthorized
	}
	if claims.TokenType != "refresh" {
		return nil, domainErrors.ErrUnauthorized
	}

	revoked, err := s.blocklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domainErrors.ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, domainErrors.ErrUnauthorized
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domainErrors.ErrUnauthorized
	}
	if !u.IsActive {
		return nil, domainErrors.ErrUnauthorized
	}

	// One-shot refresh tokens.
	if err := s.revokeClaims(ctx, claims); err != nil {
		return nil, err
	}

	return s.issueTokens(u)
}

// Logout revokes both tokens of a session.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	for _, raw := range []string{accessToken, refreshToken} {
		if raw == "" {
			continue
		}
		claims, err := s.ParseToken(raw)
		if err != nil {
			// An expired or garbage token needs no revocation.
			continue
		}
		if err := s.revokeClaims(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

// GetUser returns the user's profile.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ParseToken validates the signature and expiry and returns the claims.
func (s *AuthService) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, domainErrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) issueTokens(u *user.User) (*TokenPair, error) {
	access, err := s.signToken(u, "access", s.cfg.AccessExpiry)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(u, "refresh", s.cfg.RefreshExpiry)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessExpiry.Seconds()),
	}, nil
}

func (s *AuthService) signToken(u *user.User, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    u.ID.String(),
		Role:      string(u.Role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *AuthService) revokeClaims(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.blocklist.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}
