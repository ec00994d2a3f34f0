package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/repository/document"
	"github.com/elijificent/experimentation/internal/service/experiment"
	"github.com/elijificent/experimentation/internal/service/variant"
	"github.com/elijificent/experimentation/internal/store"
)

type scriptedSource struct {
	values []float64
	index  int
}

func (s *scriptedSource) Float64() float64 {
	if s.index >= len(s.values) {
		return 0
	}
	v := s.values[s.index]
	s.index++
	return v
}

type fixture struct {
	experimentRepo *document.Experiments
	variantRepo    *document.Variants
	experiments    experiment.Service
	service        Service
}

func newFixture(t *testing.T, draws ...float64) fixture {
	t.Helper()
	st := store.NewMemory()
	experimentRepo := document.NewExperiments(st)
	variantRepo := document.NewVariants(st)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	variantSvc := variant.New(variantRepo, log)
	experimentSvc := experiment.New(experimentRepo, variantSvc, log, &scriptedSource{values: draws}, nil)
	return fixture{
		experimentRepo: experimentRepo,
		variantRepo:    variantRepo,
		experiments:    experimentSvc,
		service:        New(experimentSvc, variantSvc, experimentRepo, variantRepo, log),
	}
}

func (f fixture) createExperiment(t *testing.T, status domain.Status) *domain.Experiment {
	t.Helper()
	exp, err := f.experimentRepo.Create(context.Background(), repository.Fields{
		"name":              "color test",
		"experiment_status": status,
	})
	if err != nil || exp == nil {
		t.Fatalf("create experiment: exp=%v err=%v", exp, err)
	}
	return exp
}

func (f fixture) addVariant(t *testing.T, experimentID, name string, allocation float64) *domain.Variant {
	t.Helper()
	ctx := context.Background()
	v, err := f.variantRepo.Create(ctx, repository.Fields{"name": name, "allocation": allocation})
	if err != nil || v == nil {
		t.Fatalf("create variant: v=%v err=%v", v, err)
	}
	if _, err := f.experimentRepo.PushVariant(ctx, experimentID, v.ID); err != nil {
		t.Fatalf("push variant: %v", err)
	}
	return v
}

func TestGetVariantNameMissingExperiment(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.GetVariantName(context.Background(), "ghost", "p-1"); !errors.Is(err, experiment.ErrNotFound) {
		t.Fatalf("expected experiment.ErrNotFound, got %v", err)
	}
}

func TestGetVariantNameBeforeStart(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	f.addVariant(t, exp.ID, "red", 1)

	name, err := f.service.GetVariantName(context.Background(), exp.ID, "p-1")
	if err != nil {
		t.Fatalf("get variant name: %v", err)
	}
	if name != DefaultVariantName {
		t.Fatalf("name = %q, want default", name)
	}
}

func TestGetVariantNameAdmitsIntoRunningExperiment(t *testing.T) {
	f := newFixture(t, 0.0)
	exp := f.createExperiment(t, domain.StatusRunning)
	red := f.addVariant(t, exp.ID, "red", 1)

	name, err := f.service.GetVariantName(context.Background(), exp.ID, "p-1")
	if err != nil {
		t.Fatalf("get variant name: %v", err)
	}
	if name != "red" {
		t.Fatalf("name = %q, want red", name)
	}

	// The participant is now a member of the variant.
	v, err := f.variantRepo.Get(context.Background(), red.ID)
	if err != nil {
		t.Fatalf("get variant: %v", err)
	}
	if v.ParticipantCount() != 1 {
		t.Fatalf("participant count = %d, want 1", v.ParticipantCount())
	}
}

func TestGetVariantNamePausedWithoutAssignment(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusPaused)
	f.addVariant(t, exp.ID, "red", 1)

	name, err := f.service.GetVariantName(context.Background(), exp.ID, "p-1")
	if err != nil {
		t.Fatalf("get variant name: %v", err)
	}
	if name != DefaultVariantName {
		t.Fatalf("name = %q, want default", name)
	}
}

func TestGetVariantNameKeepsAssignmentAfterCompletion(t *testing.T) {
	f := newFixture(t, 0.0)
	exp := f.createExperiment(t, domain.StatusRunning)
	f.addVariant(t, exp.ID, "red", 1)
	ctx := context.Background()

	name, err := f.service.GetVariantName(ctx, exp.ID, "p-1")
	if err != nil || name != "red" {
		t.Fatalf("initial resolution: name=%q err=%v", name, err)
	}

	if _, err := f.service.CompleteExperiment(ctx, exp.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	name, err = f.service.GetVariantName(ctx, exp.ID, "p-1")
	if err != nil {
		t.Fatalf("post-completion resolution: %v", err)
	}
	if name != "red" {
		t.Fatalf("assigned participant lost variant after completion: %q", name)
	}

	// A fresh participant gets the default, never a new admission.
	name, err = f.service.GetVariantName(ctx, exp.ID, "p-2")
	if err != nil {
		t.Fatalf("fresh participant resolution: %v", err)
	}
	if name != DefaultVariantName {
		t.Fatalf("fresh participant got %q, want default", name)
	}
}

func TestGetExperimentSummary(t *testing.T) {
	f := newFixture(t, 0.0)
	exp := f.createExperiment(t, domain.StatusRunning)
	red := f.addVariant(t, exp.ID, "red", 2)
	f.addVariant(t, exp.ID, "blue", 3)
	ctx := context.Background()

	if _, err := f.experiments.Admit(ctx, exp.ID, "p-1"); err != nil {
		t.Fatalf("admit: %v", err)
	}

	summary, err := f.service.GetExperimentSummary(ctx, exp.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Experiment == nil || summary.Experiment.ID != exp.ID {
		t.Fatalf("summary experiment = %+v", summary.Experiment)
	}
	if len(summary.Variants) != 2 {
		t.Fatalf("summary variants = %d, want 2", len(summary.Variants))
	}
	if summary.TotalWeight != 5 {
		t.Fatalf("total weight = %v, want 5", summary.TotalWeight)
	}
	if summary.ObservedCounts[red.ID] != 1 {
		t.Fatalf("observed count for red = %d, want 1", summary.ObservedCounts[red.ID])
	}
}

func TestGetExperimentSummaryMissingExperiment(t *testing.T) {
	f := newFixture(t)
	summary, err := f.service.GetExperimentSummary(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("summary returned error: %v", err)
	}
	if summary.Experiment != nil || len(summary.Variants) != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestBatchSettersRejectLengthMismatch(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusRunning)
	f.addVariant(t, exp.ID, "red", 1)
	f.addVariant(t, exp.ID, "blue", 1)

	applied, err := f.service.UpdateVariantAllocations(context.Background(), exp.ID, []float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatal("length mismatch must not apply changes")
	}
}

func TestBatchSettersRequireInProgress(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	f.addVariant(t, exp.ID, "red", 1)

	applied, err := f.service.UpdateVariantDescriptions(context.Background(), exp.ID, []string{"x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Fatal("setter applied against a created experiment")
	}
}

func TestUpdateVariantAllocationsApplies(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusRunning)
	red := f.addVariant(t, exp.ID, "red", 1)
	blue := f.addVariant(t, exp.ID, "blue", 1)
	ctx := context.Background()

	applied, err := f.service.UpdateVariantAllocations(ctx, exp.ID, []float64{2, 7})
	if err != nil {
		t.Fatalf("update allocations: %v", err)
	}
	if !applied {
		t.Fatal("expected allocations to apply")
	}

	updatedRed, _ := f.variantRepo.Get(ctx, red.ID)
	updatedBlue, _ := f.variantRepo.Get(ctx, blue.ID)
	if updatedRed.Allocation != 2 || updatedBlue.Allocation != 7 {
		t.Fatalf("allocations = %v/%v, want 2/7", updatedRed.Allocation, updatedBlue.Allocation)
	}
}

func TestBatchFailureLeavesEarlierUpdatesCommitted(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusRunning)
	red := f.addVariant(t, exp.ID, "red", 1)
	blue := f.addVariant(t, exp.ID, "blue", 1)
	ctx := context.Background()

	applied, err := f.service.UpdateVariantAllocations(ctx, exp.ID, []float64{4, -1})
	if !errors.Is(err, variant.ErrNegativeAllocation) {
		t.Fatalf("expected ErrNegativeAllocation, got %v", err)
	}
	if applied {
		t.Fatal("failed batch must not report applied")
	}

	// The first index was updated before the failure and stays committed.
	updatedRed, _ := f.variantRepo.Get(ctx, red.ID)
	if updatedRed.Allocation != 4 {
		t.Fatalf("first variant allocation = %v, want 4", updatedRed.Allocation)
	}
	untouchedBlue, _ := f.variantRepo.Get(ctx, blue.ID)
	if untouchedBlue.Allocation != 1 {
		t.Fatalf("second variant allocation = %v, want unchanged 1", untouchedBlue.Allocation)
	}
}

func TestCreateVariantAttachesToExperiment(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	ctx := context.Background()

	v, err := f.service.CreateVariant(ctx, exp.ID, "green", "green button", 2)
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}

	read, err := f.experimentRepo.Get(ctx, exp.ID)
	if err != nil {
		t.Fatalf("get experiment: %v", err)
	}
	if len(read.Variants) != 1 || read.Variants[0] != v.ID {
		t.Fatalf("variant not attached: %v", read.Variants)
	}
}

func TestCreateVariantRejectsNegativeAllocation(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	if _, err := f.service.CreateVariant(context.Background(), exp.ID, "green", "", -1); !errors.Is(err, variant.ErrNegativeAllocation) {
		t.Fatalf("expected ErrNegativeAllocation, got %v", err)
	}
}

func TestLifecyclePassthroughs(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	ctx := context.Background()

	if status, err := f.service.StartExperiment(ctx, exp.ID); err != nil || status != domain.StatusRunning {
		t.Fatalf("start: status=%q err=%v", status, err)
	}
	if status, err := f.service.PauseExperiment(ctx, exp.ID); err != nil || status != domain.StatusPaused {
		t.Fatalf("pause: status=%q err=%v", status, err)
	}
	if status, err := f.service.StopExperiment(ctx, exp.ID); err != nil || status != domain.StatusStopped {
		t.Fatalf("stop: status=%q err=%v", status, err)
	}
	if status, err := f.service.CompleteExperiment(ctx, exp.ID); err != nil || status != domain.StatusStopped {
		t.Fatalf("complete after stop: status=%q err=%v", status, err)
	}
}

func TestDeleteExperimentIdempotent(t *testing.T) {
	f := newFixture(t)
	exp := f.createExperiment(t, domain.StatusCreated)
	ctx := context.Background()

	deleted, err := f.service.DeleteExperiment(ctx, exp.ID)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = f.service.DeleteExperiment(ctx, exp.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatal("second delete reported a match")
	}
}
