package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingSecret  = errors.New("jwt secret is not configured")
	ErrMissingSubject = errors.New("token subject is required")
)

// AuthService issues bearer tokens accepted by the upload routes.
type AuthService interface {
	IssueToken(subject string) (string, error)
}

// authService implements the AuthService interface.
type authService struct {
	jwtSecret     string
	jwtExpiration time.Duration
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		now:           time.Now,
	}
}

// IssueToken signs an HS256 token for subject.
func (s *authService) IssueToken(subject string) (string, error) {
	if s.jwtSecret == "" {
		return "", ErrMissingSecret
	}
	if subject == "" {
		return "", ErrMissingSubject
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    "imagegate",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
