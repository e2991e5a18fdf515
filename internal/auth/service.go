package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gmbtravels/gmbservice/internal/apperr"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"
	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTokenTTL = 86400 * time.Second
	Algorithm       = "HS256"
	TokenType       = "bearer"

	// compared against when the username is unknown, so both failures cost one bcrypt check
	dummyPasswordHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6AjK8lN3GVFUpCU5lRSpGha"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"-"`
}

type Service struct {
	admins  adminStore
	keyring *Keyring
	ttl     time.Duration
	parser  *jwt.Parser
	// injectable clock, for tests
	NowFunc func() time.Time
}

func NewService(admins adminStore, keyring *Keyring, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &Service{
		admins:  admins,
		keyring: keyring,
		ttl:     ttl,
		NowFunc: time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time {
			return s.NowFunc()
		}),
	)

	return s
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login checks the credentials against the stored admin and issues a token.
// Unknown usernames and wrong passwords fail with the same error.
func (s *Service) Login(ctx context.Context, creds Credentials) (_ Token, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.login")
	span.SetAttributes(attribute.String("username", creds.Username))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if creds.Username == "" || creds.Password == "" {
		return Token{}, apperr.Authentication("invalid username or password")
	}

	admin, err := s.admins.Get(ctx, creds.Username)
	if errors.Is(err, docstore.ErrNotFound) {
		pkg.CheckPasswordHash(creds.Password, dummyPasswordHash)
		log.Tracef("login failed, unknown user [%s]", creds.Username)
		return Token{}, apperr.Authentication("invalid username or password")
	}
	if err != nil {
		return Token{}, apperr.Persistence(fmt.Errorf("get admin: %w", err))
	}

	if !pkg.CheckPasswordHash(creds.Password, admin.PasswordHash) {
		log.Tracef("login failed, wrong password for [%s]", creds.Username)
		return Token{}, apperr.Authentication("invalid username or password")
	}

	return s.Issue(admin)
}

// Issue signs a new token for admin with the active key.
func (s *Service) Issue(admin Admin) (Token, error) {
	now := s.NowFunc()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Role: admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	kid, key := s.keyring.Active()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresIn:   int64(s.ttl.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks signature, algorithm and expiry of tokenString and returns its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.Authentication("missing token")
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, s.keyFunc)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, &apperr.Error{Kind: apperr.KindAuthentication, Message: "token expired", Err: err}
	default:
		return nil, &apperr.Error{Kind: apperr.KindAuthentication, Message: "invalid token", Err: err}
	}

	if claims.Subject == "" {
		return nil, apperr.Authentication("invalid token")
	}

	return claims, nil
}

// keyFunc picks the secret by the kid header. Tokens without kid are checked against the active key.
func (s *Service) keyFunc(token *jwt.Token) (any, error) {
	rawKID, ok := token.Header["kid"]
	if !ok {
		_, key := s.keyring.Active()
		return key, nil
	}

	kid, ok := rawKID.(string)
	if !ok {
		return nil, fmt.Errorf("%w: kid header is not a string", ErrUnknownKey)
	}
	return s.keyring.Lookup(kid)
}
