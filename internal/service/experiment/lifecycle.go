package experiment

import (
	"context"
	"time"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
)

// InProgress reports whether the experiment can currently resolve a variant
// for serving. Completed experiments remain resolvable; freshly created and
// stopped ones do not. Distinct from the admission gate, which also refuses
// completed experiments.
func (s Service) InProgress(ctx context.Context, experimentID string) (bool, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return false, err
	}
	return exp.Status.Resolvable(), nil
}

// Start moves a created or paused experiment to running. Starting a running
// experiment is a no-op; starting an ended experiment returns its terminal
// status unchanged. The start timestamp is set once, on the first transition
// out of created.
func (s Service) Start(ctx context.Context, experimentID string) (domain.Status, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}

	switch {
	case exp.Status == domain.StatusRunning:
		s.logger.Info("experiment already running", "experiment_id", experimentID)
		return domain.StatusRunning, nil
	case exp.Status.Terminal():
		s.logger.Info("experiment has ended", "experiment_id", experimentID, "status", exp.Status)
		return exp.Status, nil
	}

	fields := repository.Fields{"experiment_status": domain.StatusRunning}
	if exp.Status == domain.StatusCreated {
		fields["start_date"] = time.Now().UTC()
	}
	updated, err := s.experiments.Update(ctx, experimentID, fields)
	if err != nil {
		return "", err
	}
	if updated == nil {
		return exp.Status, nil
	}
	s.logger.Info("experiment started", "experiment_id", experimentID)
	return updated.Status, nil
}

// Pause moves a running experiment to paused. Pausing before the experiment
// has started is a no-op, not an error, and ended experiments return their
// terminal status unchanged.
func (s Service) Pause(ctx context.Context, experimentID string) (domain.Status, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}

	switch {
	case exp.Status == domain.StatusPaused:
		s.logger.Info("experiment already paused", "experiment_id", experimentID)
		return domain.StatusPaused, nil
	case exp.Status == domain.StatusCreated:
		s.logger.Info("experiment has not started", "experiment_id", experimentID)
		return domain.StatusCreated, nil
	case exp.Status.Terminal():
		s.logger.Info("experiment has ended", "experiment_id", experimentID, "status", exp.Status)
		return exp.Status, nil
	}

	updated, err := s.experiments.Update(ctx, experimentID, repository.Fields{"experiment_status": domain.StatusPaused})
	if err != nil {
		return "", err
	}
	if updated == nil {
		return exp.Status, nil
	}
	s.logger.Info("experiment paused", "experiment_id", experimentID)
	return updated.Status, nil
}

// End moves the experiment into a terminal state and sets the end timestamp.
// The first terminal transition wins: ending an already-ended experiment
// returns the existing terminal status unchanged, whatever the target.
func (s Service) End(ctx context.Context, experimentID string, target domain.Status) (domain.Status, error) {
	if !target.Terminal() {
		return "", ErrInvalidEndState
	}
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}
	if exp.Status.Terminal() {
		s.logger.Info("experiment already ended", "experiment_id", experimentID, "status", exp.Status)
		return exp.Status, nil
	}

	updated, err := s.experiments.Update(ctx, experimentID, repository.Fields{
		"experiment_status": target,
		"end_date":          time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if updated == nil {
		return exp.Status, nil
	}
	s.logger.Info("experiment ended", "experiment_id", experimentID, "status", updated.Status)
	return updated.Status, nil
}

// Stop ends the experiment in the stopped state.
func (s Service) Stop(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.End(ctx, experimentID, domain.StatusStopped)
}

// Complete ends the experiment in the completed state.
func (s Service) Complete(ctx context.Context, experimentID string) (domain.Status, error) {
	return s.End(ctx, experimentID, domain.StatusCompleted)
}
