package rendezvous

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dkeye/Consult/internal/app/credential"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrBadExpiry         = errors.New("expire must be in the future and within the allowed ttl")
)

// Claims of an access token.
type Claims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func (c *Claims) Allows(perm string) bool { return slices.Contains(c.Permissions, perm) }

// Issuer signs and validates HS256 access tokens.
type Issuer struct {
	secret []byte
	maxTTL time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, maxTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), maxTTL: maxTTL, now: time.Now}
}

// Issue signs a token valid until expire with the given permissions.
func (s *Issuer) Issue(expire time.Time, perms []string) (string, *Claims, error) {
	now := s.now()
	if !expire.After(now) || (s.maxTTL > 0 && expire.Sub(now) > s.maxTTL) {
		return "", nil, ErrBadExpiry
	}
	if len(perms) == 0 {
		return "", nil, fmt.Errorf("%w: empty permission list", ErrUnknownPermission)
	}
	for _, p := range perms {
		if p != credential.PermAllowJoin && p != credential.PermAllowMod {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownPermission, p)
		}
	}

	claims := &Claims{
		Permissions: slices.Clone(perms),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expire),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Validate parses a token and returns its claims. Expired tokens fail with
// ErrTokenExpired, everything else with ErrInvalidToken.
func (s *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
