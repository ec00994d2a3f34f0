package participant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/elijificent/experimentation/internal/repository/document"
	"github.com/elijificent/experimentation/internal/store"
)

func newService(t *testing.T) Service {
	t.Helper()
	st := store.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(document.NewParticipants(st), document.NewParticipantLinks(st), log)
}

func TestCreateGeneratesIdentity(t *testing.T) {
	svc := newService(t)

	p, err := svc.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated identity")
	}
}

func TestCreateWithExistingIdentity(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "p-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(ctx, "p-1"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestLinkToUserAtMostOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "p-1"); err != nil {
		t.Fatalf("create participant: %v", err)
	}

	link, err := svc.LinkToUser(ctx, "p-1", "u-1")
	if err != nil {
		t.Fatalf("first link: %v", err)
	}
	if link.ParticipantID != "p-1" || link.UserID != "u-1" {
		t.Fatalf("unexpected link: %+v", link)
	}

	if _, err := svc.LinkToUser(ctx, "p-1", "u-2"); !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("expected ErrAlreadyLinked, got %v", err)
	}
}

func TestLinkToUserRequiresBothIDs(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.LinkToUser(ctx, "", "u-1"); !errors.Is(err, ErrMissingIDs) {
		t.Fatalf("expected ErrMissingIDs for blank participant, got %v", err)
	}
	if _, err := svc.LinkToUser(ctx, "p-1", "  "); !errors.Is(err, ErrMissingIDs) {
		t.Fatalf("expected ErrMissingIDs for blank user, got %v", err)
	}
}
