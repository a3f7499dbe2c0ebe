package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jcmexdev/order-desk/internal/identity/domain"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

const (
	DefaultIssuer   = "OrdersApp"
	DefaultTokenTTL = 8 * time.Hour
)

// Claims is the payload of an issued token. Subject carries the user id.
type Claims struct {
	Login string      `json:"login"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// Verifier checks credentials against the directory and issues HS256
// tokens signed with a server-held key.
type Verifier struct {
	users  *Directory
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(users *Directory, key []byte, issuer string, ttl time.Duration) *Verifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Verifier{
		users:  users,
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// dummySecret is compared against when the login is unknown so both
// failure paths cost one bcrypt comparison.
var dummySecret = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})

// Login returns a signed token for a matching login and password. Any
// mismatch yields apperr.ErrAuthFailed without saying which part was wrong.
func (v *Verifier) Login(ctx context.Context, login, password string) (string, error) {
	if err := v.users.EnsureSeeded(ctx); err != nil {
		return "", err
	}

	u, found, err := v.users.FindByLogin(ctx, login)
	if err != nil {
		return "", err
	}
	if !found {
		_ = bcrypt.CompareHashAndPassword(dummySecret(), []byte(password))
		return "", apperr.ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordSecret), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.WarnContext(ctx, "stored secret unusable", "user_id", u.ID, "error", err)
		}
		return "", apperr.ErrAuthFailed
	}

	token, err := v.issue(u)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "login succeeded", "user_id", u.ID, "role", u.Role)
	return token, nil
}

func (v *Verifier) issue(u domain.User) (string, error) {
	now := v.now()
	claims := Claims{
		Login: u.Login,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and checks signature, issuer and expiry.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthFailed, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", apperr.ErrAuthFailed)
	}
	return claims, nil
}
