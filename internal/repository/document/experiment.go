package document

import (
	"context"
	"fmt"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// Experiments is the experiment repository.
type Experiments struct {
	base
}

// NewExperiments constructs an experiment repository.
func NewExperiments(st store.Store) *Experiments {
	return &Experiments{base{store: st}}
}

func experimentDefaults() store.Document {
	return store.Document{
		"name":                "",
		"description":         "",
		"start_date":          nil,
		"end_date":            nil,
		"experiment_status":   domain.StatusCreated.String(),
		"experiment_variants": []string{},
	}
}

// Create inserts a new experiment. Returns (nil, nil) when the supplied
// identity is already taken.
func (r *Experiments) Create(ctx context.Context, fields repository.Fields) (*domain.Experiment, error) {
	doc, err := r.create(ctx, store.Experiments, fields, experimentDefaults())
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeExperiment(doc)
}

// Get fetches an experiment by identity.
func (r *Experiments) Get(ctx context.Context, id string) (*domain.Experiment, error) {
	doc, err := r.get(ctx, store.Experiments, id)
	if err != nil {
		return nil, err
	}
	return decodeExperiment(doc)
}

// Update patches the named experiment fields and returns the re-read entity.
func (r *Experiments) Update(ctx context.Context, id string, fields repository.Fields) (*domain.Experiment, error) {
	doc, err := r.update(ctx, store.Experiments, id, fields)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeExperiment(doc)
}

// Delete removes an experiment. Deleting an unknown identity is not an
// error; it reports false.
func (r *Experiments) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, store.Experiments, id)
}

// List returns every experiment in the collection.
func (r *Experiments) List(ctx context.Context) ([]domain.Experiment, error) {
	docs, err := r.store.List(ctx, store.Experiments)
	if err != nil {
		return nil, err
	}
	experiments := make([]domain.Experiment, 0, len(docs))
	for _, doc := range docs {
		experiment, err := decodeExperiment(doc)
		if err != nil {
			return nil, err
		}
		experiments = append(experiments, *experiment)
	}
	return experiments, nil
}

// PushVariant adds a variant identity to the experiment's variant list if
// absent, in one atomic store operation.
func (r *Experiments) PushVariant(ctx context.Context, experimentID, variantID string) (bool, error) {
	return r.store.AddToSet(ctx, store.Experiments, experimentID, "experiment_variants", variantID)
}

func decodeExperiment(doc store.Document) (*domain.Experiment, error) {
	status, err := domain.ParseStatus(docString(doc, "experiment_status"))
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", docString(doc, "experiment_uuid"), err)
	}
	start, err := docTime(doc, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := docTime(doc, "end_date")
	if err != nil {
		return nil, err
	}
	return &domain.Experiment{
		ID:          docString(doc, "experiment_uuid"),
		Name:        docString(doc, "name"),
		Description: docString(doc, "description"),
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		Variants:    docStringSlice(doc, "experiment_variants"),
	}, nil
}
