package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

// AccessGate decides premium visibility from server-side license state only.
type AccessGate struct {
	licenses ports.LicenseService
	log      zerolog.Logger
}

var _ ports.AccessGate = (*AccessGate)(nil)

func NewAccessGate(licenses ports.LicenseService, log zerolog.Logger) *AccessGate {
	return &AccessGate{licenses: licenses, log: log}
}

// CanView denies anonymous viewers and fails closed on lookup errors.
func (g *AccessGate) CanView(ctx context.Context, viewer *domain.Session, premium bool) bool {
	if !premium {
		return true
	}
	if viewer == nil || viewer.UserID == "" {
		return false
	}
	ok, err := g.licenses.UserHasActiveLicense(ctx, viewer.UserID)
	if err != nil {
		g.log.Error().Err(err).Str("user_id", viewer.UserID).Msg("premium check failed, denying")
		return false
	}
	return ok
}
