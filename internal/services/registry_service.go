package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/tracing"
)

// RegistryService owns the canonical property registry. It guarantees that a
// property name is bound to exactly one data type for its lifetime.
type RegistryService struct {
	store  repositories.Store
	tracer tracing.Tracer
}

// NewRegistryService creates a new registry service
func NewRegistryService(store repositories.Store, tracer tracing.Tracer) *RegistryService {
	return &RegistryService{
		store:  store,
		tracer: tracer,
	}
}

// ResolveOrCreate looks a property up by name, creating it when absent. A
// repeated call with a matching data type is idempotent and returns the
// existing entry untouched; description and creator from later calls are
// ignored, first registration wins. A mismatched data type fails with
// ErrTypeConflict and mutates nothing.
func (s *RegistryService) ResolveOrCreate(ctx context.Context, in models.PropertyInput) (*models.Property, error) {
	txn := s.tracer.StartTransaction("registry-resolve-or-create")
	defer s.tracer.EndTransaction(txn)

	if err := validatePropertyInput(in); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	var property *models.Property
	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		var err error
		property, err = resolveOrCreateProperty(ctx, tx, in)
		return err
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	return property, nil
}

// resolveOrCreateProperty is the transaction-scoped resolve-or-create step.
// EventService reuses it so event creation and attachment share one
// transaction with the registry check.
func resolveOrCreateProperty(ctx context.Context, tx repositories.Store, in models.PropertyInput) (*models.Property, error) {
	existing, err := tx.Properties().GetByName(ctx, in.Name)
	if err == nil {
		if existing.DataType != in.DataType {
			return nil, errors.Wrapf(ErrTypeConflict,
				"property %q already exists with data type %q, cannot redefine as %q",
				in.Name, existing.DataType, in.DataType)
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "failed to look up property by name")
	}

	property := &models.Property{
		ID:          uuid.New(),
		Name:        in.Name,
		DataType:    in.DataType,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
	}
	if err := tx.Properties().Create(ctx, property); err != nil {
		return nil, err
	}

	entry := &models.Changelog{
		ID:         uuid.New(),
		EntityType: models.EntityProperty,
		EntityID:   property.ID,
		Action:     models.ActionCreate,
		NewValue:   models.JSONMap{"name": property.Name, "data_type": property.DataType},
		ChangedBy:  in.CreatedBy,
	}
	if err := tx.Changelog().Append(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("property_id", property.ID.String()).
		Str("name", property.Name).
		Str("data_type", property.DataType).
		Msg("Property registered")

	return property, nil
}

// Create is the explicit registration path. Unlike ResolveOrCreate it fails
// with ErrDuplicateName when the name exists at all, type match or not.
func (s *RegistryService) Create(ctx context.Context, in models.PropertyInput) (*models.Property, error) {
	txn := s.tracer.StartTransaction("registry-create")
	defer s.tracer.EndTransaction(txn)

	if err := validatePropertyInput(in); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	var property *models.Property
	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		existing, err := tx.Properties().GetByName(ctx, in.Name)
		if err == nil {
			return errors.Wrapf(ErrDuplicateName,
				"property %q already exists with data type %q", in.Name, existing.DataType)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "failed to look up property by name")
		}

		property = &models.Property{
			ID:          uuid.New(),
			Name:        in.Name,
			DataType:    in.DataType,
			Description: in.Description,
			CreatedBy:   in.CreatedBy,
		}
		if err := tx.Properties().Create(ctx, property); err != nil {
			return err
		}

		return tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityProperty,
			EntityID:   property.ID,
			Action:     models.ActionCreate,
			NewValue:   models.JSONMap{"name": property.Name, "data_type": property.DataType},
			ChangedBy:  in.CreatedBy,
		})
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("property_id", property.ID.String()).
		Str("name", property.Name).
		Msg("Property created")

	return property, nil
}

// List returns all registry entries.
func (s *RegistryService) List(ctx context.Context) ([]models.Property, error) {
	return s.store.Properties().List(ctx)
}

// SearchProperties returns properties whose name or description contains the
// query substring.
func (s *RegistryService) SearchProperties(ctx context.Context, query string) ([]models.Property, error) {
	return s.store.Properties().Search(ctx, query)
}

// Delete removes a registry entry without checking for remaining
// associations; referential safety is the caller's responsibility. Event
// deletion reclaims orphans through its own transaction instead.
func (s *RegistryService) Delete(ctx context.Context, id uuid.UUID, actor *string) error {
	txn := s.tracer.StartTransaction("registry-delete")
	defer s.tracer.EndTransaction(txn)

	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		property, err := tx.Properties().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "property %s", id)
			}
			return errors.Wrap(err, "failed to load property")
		}

		if err := tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityProperty,
			EntityID:   property.ID,
			Action:     models.ActionDelete,
			OldValue:   models.JSONMap{"name": property.Name, "data_type": property.DataType},
			ChangedBy:  actor,
		}); err != nil {
			return err
		}

		return tx.Properties().Delete(ctx, property.ID)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}

	log.Info().Str("property_id", id.String()).Msg("Property deleted")
	return nil
}

// Suggest fuzzy-matches the query against every registered property name and
// returns likely duplicates, best match first.
func (s *RegistryService) Suggest(ctx context.Context, query string) ([]models.PropertySuggestion, error) {
	txn := s.tracer.StartTransaction("registry-suggest")
	defer s.tracer.EndTransaction(txn)

	existing, err := s.store.Properties().ListNameTypes(ctx)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	return SuggestProperties(query, existing, DefaultSuggestionThreshold), nil
}

func validatePropertyInput(in models.PropertyInput) error {
	if in.Name == "" {
		return errors.Wrap(ErrValidation, "property name is required")
	}
	if in.DataType == "" {
		return errors.Wrap(ErrValidation, "property data type is required")
	}
	return nil
}
