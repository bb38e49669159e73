package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, tampered and expired tokens. Handlers
// must surface it as 401 without leaking the underlying jwt error.
var ErrInvalidToken = errors.New("invalid token")

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	return uint(id), nil
}

// Service issues and verifies the access/refresh token pair. Issuance and
// verification are pure computation and never block.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	method        jwt.SigningMethod
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type Config struct {
	SecretKey        string
	RefreshSecretKey string
	Algorithm        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
}

func NewService(cfg Config) (*Service, error) {
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	refreshSecret := cfg.RefreshSecretKey
	if refreshSecret == "" {
		refreshSecret = cfg.SecretKey
	}
	return &Service{
		accessSecret:  []byte(cfg.SecretKey),
		refreshSecret: []byte(refreshSecret),
		method:        method,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

func (s *Service) secretFor(kind Kind) []byte {
	if kind == KindRefresh {
		return s.refreshSecret
	}
	return s.accessSecret
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) issue(userID uint, kind Kind, ttl time.Duration) (string, error) {
	claims := Claims{
		Type: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(s.method, claims)
	return t.SignedString(s.secretFor(kind))
}

func (s *Service) IssueAccess(userID uint) (string, error) {
	return s.issue(userID, KindAccess, s.accessTTL)
}

func (s *Service) IssueRefresh(userID uint) (string, error) {
	return s.issue(userID, KindRefresh, s.refreshTTL)
}

// Decode verifies signature and expiry against the secret for kind. It does
// not check the type claim; use DecodeKind at call sites so an access-only
// path rejects a structurally valid refresh token and vice versa.
func (s *Service) Decode(raw string, kind Kind) (*Claims, error) {
	var claims Claims
	t, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secretFor(kind), nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &claims, nil
}

// DecodeKind is Decode plus the mandatory type-claim check.
func (s *Service) DecodeKind(raw string, kind Kind) (*Claims, error) {
	claims, err := s.Decode(raw, kind)
	if err != nil {
		return nil, err
	}
	if claims.Type != string(kind) {
		return nil, fmt.Errorf("%w: token type %q, want %q", ErrInvalidToken, claims.Type, kind)
	}
	return claims, nil
}
