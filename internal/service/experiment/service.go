package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"math/rand/v2"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/service/variant"
)

var (
	// ErrNotFound indicates the experiment does not exist.
	ErrNotFound = errors.New("experiment not found")
	// ErrEnded indicates the experiment no longer accepts admissions.
	ErrEnded = errors.New("experiment has ended")
	// ErrNoVariants indicates an admission into an experiment with no variants.
	ErrNoVariants = errors.New("no variants in experiment")
	// ErrNoAllocation indicates every variant carries zero weight.
	ErrNoAllocation = errors.New("no allocation for any variant")
	// ErrInvalidEndState indicates an end target outside stopped/completed.
	ErrInvalidEndState = errors.New("end state must be stopped or completed")
)

// Source yields uniform samples in [0, 1). Injected so tests can pin the
// weighted draw; *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Publisher receives assignment events keyed by experiment identity.
type Publisher interface {
	Broadcast(experimentID string, payload []byte)
}

// Service owns the experiment lifecycle and the weighted admission
// algorithm.
type Service struct {
	experiments repository.ExperimentRepository
	variants    variant.Service
	logger      *slog.Logger
	rng         Source
	events      Publisher
}

// New returns an experiment service. A nil source gets a freshly seeded
// generator; a nil publisher disables assignment broadcasts.
func New(experiments repository.ExperimentRepository, variants variant.Service, logger *slog.Logger, rng Source, events Publisher) Service {
	if rng == nil {
		rng = &lockedSource{rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	}
	return Service{experiments: experiments, variants: variants, logger: logger, rng: rng, events: events}
}

// Get returns an experiment by identity.
func (s Service) Get(ctx context.Context, experimentID string) (*domain.Experiment, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return exp, nil
}

// List returns every experiment.
func (s Service) List(ctx context.Context) ([]domain.Experiment, error) {
	return s.experiments.List(ctx)
}

// VariantInExperiment reports whether the variant belongs to the experiment.
func (s Service) VariantInExperiment(ctx context.Context, experimentID, variantID string) (bool, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, id := range exp.Variants {
		if id == variantID {
			return true, nil
		}
	}
	return false, nil
}

// AddVariant pushes a variant onto the experiment's variant list. The push
// is atomic; false means the variant was already listed.
func (s Service) AddVariant(ctx context.Context, experimentID, variantID string) (bool, error) {
	if _, err := s.Get(ctx, experimentID); err != nil {
		return false, err
	}
	return s.experiments.PushVariant(ctx, experimentID, variantID)
}

// VariantForParticipant returns the identity of the variant the participant
// is assigned to, or "" when the participant is not in the experiment.
func (s Service) VariantForParticipant(ctx context.Context, experimentID, participantID string) (string, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	for _, variantID := range exp.Variants {
		member, err := s.variants.ParticipantInVariant(ctx, variantID, participantID)
		if err != nil {
			return "", err
		}
		if member {
			return variantID, nil
		}
	}
	return "", nil
}

// ParticipantInExperiment reports whether the participant is assigned to any
// variant of the experiment.
func (s Service) ParticipantInExperiment(ctx context.Context, experimentID, participantID string) (bool, error) {
	variantID, err := s.VariantForParticipant(ctx, experimentID, participantID)
	if err != nil {
		return false, err
	}
	return variantID != "", nil
}

// Admit assigns a participant to a variant of the experiment and returns the
// variant's identity. Re-admitting an already-assigned participant returns
// the existing variant without any state change. The draw is weighted by the
// variants' allocations; the final membership write is a single atomic
// add-if-absent, so two racing admissions for the same participant still end
// with exactly one membership.
func (s Service) Admit(ctx context.Context, experimentID, participantID string) (string, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}

	if existing, err := s.VariantForParticipant(ctx, experimentID, participantID); err != nil {
		return "", err
	} else if existing != "" {
		return existing, nil
	}

	if len(exp.Variants) == 0 {
		return "", ErrNoVariants
	}
	if exp.Status.Terminal() {
		return "", ErrEnded
	}

	variants, err := s.loadVariants(ctx, exp)
	if err != nil {
		return "", err
	}
	total := 0.0
	for _, v := range variants {
		total += v.Allocation
	}
	if total == 0 {
		return "", ErrNoAllocation
	}

	selected := variants[s.draw(variants, total)]
	changed, err := s.variants.AddParticipant(ctx, selected.ID, participantID)
	if err != nil {
		return "", err
	}
	if !changed {
		// A concurrent admission landed the membership first. The invariant
		// is "participant ends up in exactly one variant's set", so this
		// admission still counts as successful.
		s.logger.Info("membership already present for admitted participant",
			"experiment_id", experimentID, "participant_id", participantID, "variant_id", selected.ID)
	}
	s.publishAssignment(experimentID, participantID, selected.ID)
	s.logger.Info("participant admitted",
		"experiment_id", experimentID, "participant_id", participantID, "variant_id", selected.ID)
	return selected.ID, nil
}

// draw picks a variant index with probability proportional to its
// allocation: one uniform sample in [0, total), resolved by cumulative
// weight.
func (s Service) draw(variants []domain.Variant, total float64) int {
	sample := s.rng.Float64() * total
	cumulative := 0.0
	for i, v := range variants {
		cumulative += v.Allocation
		if sample < cumulative {
			return i
		}
	}
	return len(variants) - 1
}

// ExpectedAllocations returns each variant's declared share of admissions,
// normalized by the total weight. A zero total yields 0.0 everywhere.
func (s Service) ExpectedAllocations(ctx context.Context, experimentID string) (map[string]float64, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	variants, err := s.loadVariants(ctx, exp)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range variants {
		total += v.Allocation
	}
	allocations := make(map[string]float64, len(variants))
	for _, v := range variants {
		if total > 0 {
			allocations[v.ID] = v.Allocation / total
		} else {
			allocations[v.ID] = 0.0
		}
	}
	return allocations, nil
}

// ObservedAllocations returns each variant's realized share of participants.
// With no participants anywhere every variant reports 0.0 rather than
// dividing by zero. Recomputed from store state on every call.
func (s Service) ObservedAllocations(ctx context.Context, experimentID string) (map[string]float64, error) {
	counts, err := s.ObservedCounts(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	allocations := make(map[string]float64, len(counts))
	for variantID, count := range counts {
		if total > 0 {
			allocations[variantID] = float64(count) / float64(total)
		} else {
			allocations[variantID] = 0.0
		}
	}
	return allocations, nil
}

// ObservedCounts returns each variant's membership size.
func (s Service) ObservedCounts(ctx context.Context, experimentID string) (map[string]int, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	variants, err := s.loadVariants(ctx, exp)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(variants))
	for _, v := range variants {
		counts[v.ID] = v.ParticipantCount()
	}
	return counts, nil
}

// loadVariants resolves the experiment's variant identities in stored order.
func (s Service) loadVariants(ctx context.Context, exp *domain.Experiment) ([]domain.Variant, error) {
	variants := make([]domain.Variant, 0, len(exp.Variants))
	for _, variantID := range exp.Variants {
		v, err := s.variants.Get(ctx, variantID)
		if err != nil {
			return nil, fmt.Errorf("experiment %s: %w", exp.ID, err)
		}
		variants = append(variants, *v)
	}
	return variants, nil
}

func (s Service) publishAssignment(experimentID, participantID, variantID string) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"experiment_id":  experimentID,
		"participant_id": participantID,
		"variant_id":     variantID,
		"assigned_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("failed to marshal assignment event", "error", err)
		return
	}
	s.events.Broadcast(experimentID, payload)
}

// lockedSource serializes draws from a shared generator; *rand.Rand alone is
// not safe for concurrent admissions.
type lockedSource struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rand.Float64()
}
