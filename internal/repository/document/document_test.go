package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

func TestExperimentCreateAppliesDefaults(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()

	exp, err := repo.Create(ctx, repository.Fields{"name": "checkout-copy"})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if exp == nil {
		t.Fatal("create returned nil experiment")
	}
	if exp.ID == "" {
		t.Fatal("expected generated identity")
	}
	if exp.Status != domain.StatusCreated {
		t.Fatalf("status = %q, want %q", exp.Status, domain.StatusCreated)
	}
	if len(exp.Variants) != 0 {
		t.Fatalf("expected no variants, got %v", exp.Variants)
	}
	if exp.StartDate != nil || exp.EndDate != nil {
		t.Fatal("expected unset timestamps on a fresh experiment")
	}
}

func TestExperimentCreateCollisionReturnsNil(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()

	first, err := repo.Create(ctx, repository.Fields{"experiment_uuid": "exp-1", "name": "first"})
	if err != nil || first == nil {
		t.Fatalf("first create: exp=%v err=%v", first, err)
	}

	second, err := repo.Create(ctx, repository.Fields{"experiment_uuid": "exp-1", "name": "second"})
	if err != nil {
		t.Fatalf("colliding create returned error: %v", err)
	}
	if second != nil {
		t.Fatalf("colliding create returned %+v, want nil", second)
	}

	kept, err := repo.Get(ctx, "exp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if kept.Name != "first" {
		t.Fatalf("collision overwrote experiment: name=%q", kept.Name)
	}
}

func TestCreateRejectsUnknownField(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	if _, err := repo.Create(context.Background(), repository.Fields{"launch_codes": true}); !errors.Is(err, repository.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestUpdateRejectsIdentityField(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()
	exp, err := repo.Create(ctx, repository.Fields{"name": "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Update(ctx, exp.ID, repository.Fields{"experiment_uuid": "other"}); !errors.Is(err, repository.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for identity patch, got %v", err)
	}
}

func TestUpdateMissingExperiment(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	if _, err := repo.Update(context.Background(), "ghost", repository.Fields{"name": "x"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusRoundTripCaseInsensitive(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()

	exp, err := repo.Create(ctx, repository.Fields{"name": "x", "experiment_status": "RUNNING"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if exp.Status != domain.StatusRunning {
		t.Fatalf("created status = %q, want %q", exp.Status, domain.StatusRunning)
	}

	read, err := repo.Get(ctx, exp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if read.Status != domain.StatusRunning {
		t.Fatalf("read status = %q, want %q", read.Status, domain.StatusRunning)
	}
}

func TestUpdateReturnsRetypedEntity(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()
	exp, err := repo.Create(ctx, repository.Fields{"name": "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	updated, err := repo.Update(ctx, exp.ID, repository.Fields{
		"experiment_status": domain.StatusRunning,
		"start_date":        now,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil {
		t.Fatal("update returned nil entity")
	}
	if updated.Status != domain.StatusRunning {
		t.Fatalf("updated status = %q, want %q", updated.Status, domain.StatusRunning)
	}
	if updated.StartDate == nil || !updated.StartDate.Equal(now) {
		t.Fatalf("updated start date = %v, want %v", updated.StartDate, now)
	}
}

func TestPushVariantIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	repo := NewExperiments(st)
	ctx := context.Background()
	exp, err := repo.Create(ctx, repository.Fields{"name": "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := repo.PushVariant(ctx, exp.ID, "var-1")
	if err != nil || !changed {
		t.Fatalf("first push: changed=%v err=%v", changed, err)
	}
	changed, err = repo.PushVariant(ctx, exp.ID, "var-1")
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if changed {
		t.Fatal("duplicate push reported a change")
	}

	read, _ := repo.Get(ctx, exp.ID)
	if len(read.Variants) != 1 || read.Variants[0] != "var-1" {
		t.Fatalf("unexpected variant list: %v", read.Variants)
	}
}

func TestVariantDefaultsAndPushParticipant(t *testing.T) {
	repo := NewVariants(store.NewMemory())
	ctx := context.Background()

	v, err := repo.Create(ctx, repository.Fields{"name": "control"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Allocation != 1.0 {
		t.Fatalf("default allocation = %v, want 1.0", v.Allocation)
	}

	if changed, err := repo.PushParticipant(ctx, v.ID, "p-1"); err != nil || !changed {
		t.Fatalf("push participant: changed=%v err=%v", changed, err)
	}
	read, _ := repo.Get(ctx, v.ID)
	if read.ParticipantCount() != 1 {
		t.Fatalf("participant count = %d, want 1", read.ParticipantCount())
	}
}

func TestUserRoundTripWithHash(t *testing.T) {
	repo := NewUsers(store.NewMemory())
	ctx := context.Background()

	hash := []byte{0x01, 0x02, 0xfe}
	created, err := repo.Create(ctx, repository.Fields{
		"username":        "experimenter",
		"hashed_password": hash,
		"random_salt":     "abc123",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byName, err := repo.GetByUsername(ctx, "experimenter")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("lookup mismatch: %q vs %q", byName.ID, created.ID)
	}
	if string(byName.PasswordHash) != string(hash) {
		t.Fatalf("hash did not round-trip: %v", byName.PasswordHash)
	}
	if byName.Salt != "abc123" {
		t.Fatalf("salt did not round-trip: %q", byName.Salt)
	}

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown username, got %v", err)
	}
}

func TestParticipantLinkCreatedOnce(t *testing.T) {
	repo := NewParticipantLinks(store.NewMemory())
	ctx := context.Background()

	link, err := repo.Create(ctx, repository.Fields{"participant_uuid": "p-1", "user_uuid": "u-1"})
	if err != nil || link == nil {
		t.Fatalf("first link: link=%v err=%v", link, err)
	}

	again, err := repo.Create(ctx, repository.Fields{"participant_uuid": "p-1", "user_uuid": "u-2"})
	if err != nil {
		t.Fatalf("second link returned error: %v", err)
	}
	if again != nil {
		t.Fatalf("second link returned %+v, want nil", again)
	}

	kept, err := repo.Get(ctx, "p-1")
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if kept.UserID != "u-1" {
		t.Fatalf("link overwritten: user=%q", kept.UserID)
	}
}

func TestFunnelEventDefaultsToLanded(t *testing.T) {
	repo := NewFunnelEvents(store.NewMemory())
	ctx := context.Background()

	event, err := repo.Create(ctx, repository.Fields{"session_uuid": "sess-1", "event_time": time.Now().UTC()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if event.Step != domain.StepLanded {
		t.Fatalf("default step = %q, want %q", event.Step, domain.StepLanded)
	}
	if event.SessionID != "sess-1" {
		t.Fatalf("session = %q, want sess-1", event.SessionID)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := NewExperiments(store.NewMemory())
	ctx := context.Background()
	exp, err := repo.Create(ctx, repository.Fields{"name": "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := repo.Delete(ctx, exp.ID)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, exp.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete reported a match")
	}
}
