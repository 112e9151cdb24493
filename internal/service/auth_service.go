package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"docsign/internal/config"
	"docsign/internal/domain"
)

const accessAudience = "access"

// Claims are the JWT claims of an API caller.
type Claims struct {
	jwt.RegisteredClaims
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	ActorType domain.ActorType `json:"actor_type"`
}

// Actor returns the audit actor the claims describe.
func (c *Claims) Actor() Actor {
	return Actor{ID: c.Subject, Type: c.ActorType, Name: c.Name, Email: c.Email}
}

// TokenInput is the DTO for issuing an access token.
type TokenInput struct {
	Subject   string
	Name      string
	Email     string
	ActorType domain.ActorType
	TTL       time.Duration
}

// IssuedToken is a signed access token.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService issues and validates API access tokens.
type AuthService interface {
	IssueToken(input TokenInput) (*IssuedToken, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewAuthService creates a new AuthService implementation.
func NewAuthService(cfg config.JWTConfig) AuthService {
	return &authService{cfg: cfg, now: time.Now}
}

func (s *authService) IssueToken(input TokenInput) (*IssuedToken, error) {
	if input.Subject == "" {
		return nil, domain.ErrInvalidInput
	}
	if input.ActorType == "" {
		input.ActorType = domain.ActorUser
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.AccessTokenExpiry
	}

	now := s.now()
	expiry := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.Subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{accessAudience},
		},
		Name:      input.Name,
		Email:     input.Email,
		ActorType: input.ActorType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	return &IssuedToken{AccessToken: signed, ExpiresAt: expiry}, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithAudience(accessAudience),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
