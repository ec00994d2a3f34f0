package dashboard

import (
	"context"
	"errors"

	"log/slog"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/service/experiment"
	"github.com/elijificent/experimentation/internal/service/variant"
)

// DefaultVariantName is served when no variant can be resolved for a
// participant.
const DefaultVariantName = "default"

// Service is the consumer-facing facade over experiments: variant name
// resolution for serving, aggregate summaries, lifecycle commands, and the
// admin batch setters.
type Service struct {
	experiments    experiment.Service
	variants       variant.Service
	experimentRepo repository.ExperimentRepository
	variantRepo    repository.VariantRepository
	logger         *slog.Logger
}

// New returns a dashboard service.
func New(experiments experiment.Service, variants variant.Service, experimentRepo repository.ExperimentRepository, variantRepo repository.VariantRepository, logger *slog.Logger) Service {
	return Service{
		experiments:    experiments,
		variants:       variants,
		experimentRepo: experimentRepo,
		variantRepo:    variantRepo,
		logger:         logger,
	}
}

// Summary aggregates an experiment with its variants, the observed
// membership counts, and the total declared weight.
type Summary struct {
	Experiment     *domain.Experiment
	Variants       []domain.Variant
	ObservedCounts map[string]int
	TotalWeight    float64
}

// CreateExperiment registers a new experiment in the created state.
func (s Service) CreateExperiment(ctx context.Context, name, description string) (*domain.Experiment, error) {
	exp, err := s.experimentRepo.Create(ctx, repository.Fields{
		"name":        name,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("experiment created", "experiment_id", exp.ID, "name", name)
	return exp, nil
}

// CreateVariant registers a variant and attaches it to the experiment with
// an atomic membership push.
func (s Service) CreateVariant(ctx context.Context, experimentID, name, description string, allocation float64) (*domain.Variant, error) {
	if _, err := s.experiments.Get(ctx, experimentID); err != nil {
		return nil, err
	}
	if allocation < 0 {
		return nil, variant.ErrNegativeAllocation
	}
	v, err := s.variantRepo.Create(ctx, repository.Fields{
		"name":        name,
		"description": description,
		"allocation":  allocation,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.experiments.AddVariant(ctx, experimentID, v.ID); err != nil {
		return nil, err
	}
	s.logger.Info("variant created", "experiment_id", experimentID, "variant_id", v.ID, "name", name)
	return v, nil
}

// DeleteExperiment removes an experiment by identity. Deleting an unknown
// identity reports false, not an error.
func (s Service) DeleteExperiment(ctx context.Context, experimentID string) (bool, error) {
	deleted, err := s.experimentRepo.Delete(ctx, experimentID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("experiment deleted", "experiment_id", experimentID)
	}
	return deleted, nil
}

// GetVariantName resolves the variant name to serve a participant. A missing
// experiment is an error; an experiment that cannot serve yields the default
// name; an already-assigned participant gets their assignment back; a paused
// or completed experiment never assigns anew; otherwise the participant is
// admitted and the fresh assignment's name is returned.
func (s Service) GetVariantName(ctx context.Context, experimentID, participantID string) (string, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}
	if !exp.Status.Resolvable() {
		return DefaultVariantName, nil
	}

	assigned, err := s.experiments.VariantForParticipant(ctx, experimentID, participantID)
	if err != nil {
		return "", err
	}
	if assigned != "" {
		return s.variantName(ctx, assigned)
	}

	if exp.Status == domain.StatusCompleted || exp.Status == domain.StatusPaused {
		return DefaultVariantName, nil
	}

	variantID, err := s.experiments.Admit(ctx, experimentID, participantID)
	if err != nil {
		return "", err
	}
	return s.variantName(ctx, variantID)
}

// GetExperimentSummary assembles the aggregate view. A missing experiment
// yields an empty summary, not an error.
func (s Service) GetExperimentSummary(ctx context.Context, experimentID string) (Summary, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		if errors.Is(err, experiment.ErrNotFound) {
			return Summary{}, nil
		}
		return Summary{}, err
	}

	variants := make([]domain.Variant, 0, len(exp.Variants))
	total := 0.0
	for _, id := range exp.Variants {
		v, err := s.variants.Get(ctx, id)
		if err != nil {
			return Summary{}, err
		}
		variants = append(variants, *v)
		total += v.Allocation
	}

	counts, err := s.experiments.ObservedCounts(ctx, experimentID)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Experiment:     exp,
		Variants:       variants,
		ObservedCounts: counts,
		TotalWeight:    total,
	}, nil
}

// ListExperiments returns every experiment for administrative consumers.
func (s Service) ListExperiments(ctx context.Context) ([]domain.Experiment, error) {
	return s.experiments.List(ctx)
}

// StartExperiment transitions the experiment toward running.
func (s Service) StartExperiment(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.experiments.Start(ctx, experimentID)
}

// PauseExperiment transitions a running experiment to paused.
func (s Service) PauseExperiment(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.experiments.Pause(ctx, experimentID)
}

// StopExperiment ends the experiment as stopped.
func (s Service) StopExperiment(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.experiments.Stop(ctx, experimentID)
}

// CompleteExperiment ends the experiment as completed.
func (s Service) CompleteExperiment(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.experiments.Complete(ctx, experimentID)
}

// UpdateVariantAllocations applies index-aligned weights to the
// experiment's variants. Reports false without attempting changes when the
// list length does not match or the experiment is not in progress. Updates
// already applied before a mid-batch failure stay committed.
func (s Service) UpdateVariantAllocations(ctx context.Context, experimentID string, weights []float64) (bool, error) {
	exp, ok, err := s.batchTarget(ctx, experimentID, len(weights))
	if err != nil || !ok {
		return false, err
	}
	for i, id := range exp.Variants {
		if _, err := s.variants.UpdateAllocation(ctx, id, weights[i]); err != nil {
			s.logger.Error("allocation batch aborted", "experiment_id", experimentID, "variant_id", id, "index", i, "error", err)
			return false, err
		}
	}
	return true, nil
}

// UpdateVariantDescriptions applies index-aligned descriptions to the
// experiment's variants, with the same preconditions and partial-failure
// behavior as UpdateVariantAllocations.
func (s Service) UpdateVariantDescriptions(ctx context.Context, experimentID string, descriptions []string) (bool, error) {
	exp, ok, err := s.batchTarget(ctx, experimentID, len(descriptions))
	if err != nil || !ok {
		return false, err
	}
	for i, id := range exp.Variants {
		if _, err := s.variants.UpdateDescription(ctx, id, descriptions[i]); err != nil {
			s.logger.Error("description batch aborted", "experiment_id", experimentID, "variant_id", id, "index", i, "error", err)
			return false, err
		}
	}
	return true, nil
}

func (s Service) batchTarget(ctx context.Context, experimentID string, count int) (*domain.Experiment, bool, error) {
	exp, err := s.experiments.Get(ctx, experimentID)
	if err != nil {
		return nil, false, err
	}
	if len(exp.Variants) != count || !exp.Status.Resolvable() {
		return nil, false, nil
	}
	return exp, true, nil
}

func (s Service) variantName(ctx context.Context, variantID string) (string, error) {
	v, err := s.variants.Get(ctx, variantID)
	if err != nil {
		if errors.Is(err, variant.ErrNotFound) {
			return DefaultVariantName, nil
		}
		return "", err
	}
	return v.Name, nil
}
