package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
)

func TestAccessGate_CanView(t *testing.T) {
	f := newFixture(t)
	gate := NewAccessGate(f.licenses, zerolog.Nop())
	holder := f.member(t, "holder")
	other := f.member(t, "other")
	f.license(holder.ID)
	ctx := context.Background()

	if !gate.CanView(ctx, nil, false) {
		t.Fatalf("non-premium content must be visible to anonymous viewers")
	}
	if gate.CanView(ctx, nil, true) {
		t.Fatalf("anonymous viewer must not see premium content")
	}
	if !gate.CanView(ctx, &domain.Session{UserID: holder.ID}, true) {
		t.Fatalf("license holder must see premium content")
	}
	if gate.CanView(ctx, &domain.Session{UserID: other.ID, Role: domain.RoleVIP}, true) {
		t.Fatalf("role alone must not grant premium access")
	}
}

func TestAccessGate_FailsClosed(t *testing.T) {
	f := newFixture(t)
	gate := NewAccessGate(f.licenses, zerolog.Nop())
	holder := f.member(t, "holder")
	f.license(holder.ID)
	f.repo.err = domain.StorageError("find", errors.New("timeout"))
	f.cache.getErr = errors.New("redis down")

	if gate.CanView(context.Background(), &domain.Session{UserID: holder.ID}, true) {
		t.Fatalf("expected denial when the store is unavailable")
	}
	if !gate.CanView(context.Background(), &domain.Session{UserID: holder.ID}, false) {
		t.Fatalf("non-premium content must stay visible")
	}
}
