package authn

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Script-By-Lin-226/Auth/internal/models"
	"github.com/Script-By-Lin-226/Auth/internal/revocation"
	"github.com/Script-By-Lin-226/Auth/internal/token"
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("not enough rights")
)

// Resolver turns a raw access-token string into the user it was issued to.
// It does not care how the token arrived (cookie, header or otherwise).
type Resolver struct {
	DB      *gorm.DB
	Tokens  *token.Service
	Revoked revocation.Registry
}

// Resolve fails with ErrUnauthenticated when the token is absent, does not
// verify, is not an access token, has been revoked, or no longer maps to an
// existing user.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.User, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := r.Tokens.DecodeKind(raw, token.KindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if r.Revoked.IsRevoked(raw) {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", ErrUnauthenticated, id)
		}
		return nil, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return &user, nil
}
