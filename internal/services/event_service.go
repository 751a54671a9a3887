package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/tracing"
)

// systemActor is recorded on changelog entries written by orphan reclamation,
// distinct from any human actor.
const systemActor = "system (cleanup)"

// featuresCacheKey is where the category listing is cached.
const featuresCacheKey = "taxonomy:features"

// featuresCacheTTL bounds staleness of the cached category listing.
const featuresCacheTTL = 5 * time.Minute

// defaultFeature is the category surfaced as the default choice.
const defaultFeature = "Engagement"

// EventIndexer keeps the full-text search collaborator eventually consistent
// with event mutations. Implementations must be safe to call after the
// database transaction has committed; failures are logged, never propagated.
type EventIndexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}

// FeatureCache caches the features listing between event mutations.
type FeatureCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EventService handles the event lifecycle, event-property associations, and
// orphan reclamation. Every mutating operation runs as one store transaction
// so that partial state never survives a failure.
type EventService struct {
	store   repositories.Store
	indexer EventIndexer
	cache   FeatureCache
	tracer  tracing.Tracer
}

// NewEventService creates a new event service. indexer and cache may be nil
// when the corresponding collaborator is disabled.
func NewEventService(store repositories.Store, indexer EventIndexer, cache FeatureCache, tracer tracing.Tracer) *EventService {
	return &EventService{
		store:   store,
		indexer: indexer,
		cache:   cache,
		tracer:  tracer,
	}
}

// Create creates an event together with its property attachments, in request
// order, as one transaction. A TypeConflict on any attachment rolls the whole
// creation back; no partial association list is left behind.
func (s *EventService) Create(ctx context.Context, in models.EventInput) (*models.Event, error) {
	txn := s.tracer.StartTransaction("event-create")
	defer s.tracer.EndTransaction(txn)

	if in.Name == "" {
		return nil, errors.Wrap(ErrValidation, "event name is required")
	}
	for _, prop := range in.Properties {
		if err := validateAttachment(prop); err != nil {
			return nil, err
		}
	}

	event := &models.Event{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		CreatedBy:   in.CreatedBy,
	}

	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		if err := tx.Events().Create(ctx, event); err != nil {
			return err
		}

		for _, prop := range in.Properties {
			if _, err := attachProperty(ctx, tx, event.ID, prop, in.CreatedBy); err != nil {
				return err
			}
		}

		// The event's own audit entry is written after all attachments
		// succeed.
		return tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityEvent,
			EntityID:   event.ID,
			Action:     models.ActionCreate,
			NewValue:   eventSnapshot(event),
			ChangedBy:  in.CreatedBy,
		})
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("name", event.Name).
		Int("properties", len(in.Properties)).
		Msg("Event created")

	s.invalidateFeatures(ctx)
	created, err := s.store.Events().GetByID(ctx, event.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload created event")
	}
	s.notifyIndex(ctx, created)
	return created, nil
}

// Get returns one event with its associations resolved.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "event %s", id)
		}
		return nil, errors.Wrap(err, "failed to load event")
	}
	return event, nil
}

// List returns events, optionally filtered by a name/description substring
// and by category.
func (s *EventService) List(ctx context.Context, query, category string) ([]models.Event, error) {
	return s.store.Events().List(ctx, query, category)
}

// Update changes only the supplied fields and bumps the updated timestamp.
// The changelog entry snapshots the three editable fields before and after.
func (s *EventService) Update(ctx context.Context, id uuid.UUID, in models.EventUpdateInput) (*models.Event, error) {
	txn := s.tracer.StartTransaction("event-update")
	defer s.tracer.EndTransaction(txn)

	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		event, err := tx.Events().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "event %s", id)
			}
			return errors.Wrap(err, "failed to load event")
		}

		oldValue := eventSnapshot(event)

		fields := map[string]interface{}{}
		if in.Name != nil {
			fields["name"] = *in.Name
			event.Name = *in.Name
		}
		if in.Description != nil {
			fields["description"] = *in.Description
			event.Description = in.Description
		}
		if in.Category != nil {
			fields["category"] = *in.Category
			event.Category = in.Category
		}
		if len(fields) > 0 {
			if err := tx.Events().Update(ctx, id, fields); err != nil {
				return err
			}
		}

		return tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityEvent,
			EntityID:   id,
			Action:     models.ActionUpdate,
			OldValue:   oldValue,
			NewValue:   eventSnapshot(event),
		})
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().Str("event_id", id.String()).Msg("Event updated")

	s.invalidateFeatures(ctx)
	updated, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload updated event")
	}
	s.notifyIndex(ctx, updated)
	return updated, nil
}

// Delete removes an event, its associations, and any properties left without
// a single remaining association anywhere, all in one transaction. It returns
// the number of properties reclaimed.
func (s *EventService) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	txn := s.tracer.StartTransaction("event-delete")
	defer s.tracer.EndTransaction(txn)

	reclaimed := 0
	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		event, err := tx.Events().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "event %s", id)
			}
			return errors.Wrap(err, "failed to load event")
		}

		oldValue := eventSnapshot(event)
		candidates := candidatePropertyIDs(event.EventProperties)

		// Explicit two-step delete keeps correctness independent of
		// storage-engine cascade support.
		if err := tx.Associations().DeleteByEvent(ctx, id); err != nil {
			return err
		}
		if err := tx.Events().Delete(ctx, id); err != nil {
			return err
		}

		reclaimed, err = reclaimOrphans(ctx, tx, candidates)
		if err != nil {
			return err
		}

		// The event's own audit entry is written after reclamation completes.
		return tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityEvent,
			EntityID:   id,
			Action:     models.ActionDelete,
			OldValue:   oldValue,
		})
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return 0, err
	}

	log.Info().
		Str("event_id", id.String()).
		Int("reclaimed_properties", reclaimed).
		Msg("Event deleted")

	s.invalidateFeatures(ctx)
	s.notifyDelete(ctx, id)
	return reclaimed, nil
}

// AttachProperty attaches a property to an event, resolving or creating the
// registry entry first. A second attach of the same (property, role) pair to
// the event fails with ErrDuplicateAssociation. The owning event's updated
// timestamp is not bumped; only direct event field edits do that.
func (s *EventService) AttachProperty(ctx context.Context, eventID uuid.UUID, in models.EventPropertyInput) (*models.EventProperty, error) {
	txn := s.tracer.StartTransaction("event-attach-property")
	defer s.tracer.EndTransaction(txn)

	if err := validateAttachment(in); err != nil {
		return nil, err
	}

	var association *models.EventProperty
	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Events().GetByID(ctx, eventID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "event %s", eventID)
			}
			return errors.Wrap(err, "failed to load event")
		}

		var err error
		association, err = attachProperty(ctx, tx, eventID, in, nil)
		return err
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("event_id", eventID.String()).
		Str("association_id", association.ID.String()).
		Str("property", in.PropertyName).
		Str("role", in.PropertyType).
		Msg("Property attached to event")

	return association, nil
}

// DetachProperty removes one association from an event. It never triggers
// orphan reclamation; a property left without associations stays in the
// registry until some event deletion reclaims it.
func (s *EventService) DetachProperty(ctx context.Context, eventID, associationID uuid.UUID) error {
	txn := s.tracer.StartTransaction("event-detach-property")
	defer s.tracer.EndTransaction(txn)

	err := s.store.InTransaction(ctx, func(tx repositories.Store) error {
		association, err := tx.Associations().Get(ctx, eventID, associationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(ErrNotFound, "association %s on event %s", associationID, eventID)
			}
			return errors.Wrap(err, "failed to load association")
		}

		if err := tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityEventProperty,
			EntityID:   association.ID,
			Action:     models.ActionDelete,
			OldValue: models.JSONMap{
				"event_id":      association.EventID.String(),
				"property_id":   association.PropertyID.String(),
				"property_type": association.PropertyType,
			},
		}); err != nil {
			return err
		}

		return tx.Associations().Delete(ctx, association.ID)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		return err
	}

	log.Info().
		Str("event_id", eventID.String()).
		Str("association_id", associationID.String()).
		Msg("Property detached from event")

	return nil
}

// Features returns the distinct event categories with the three most recently
// used first and the remainder alphabetical. The listing is served from cache
// when available.
func (s *EventService) Features(ctx context.Context) (*models.FeatureList, error) {
	if s.cache != nil {
		var cached models.FeatureList
		if err := s.cache.Get(ctx, featuresCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	usages, err := s.store.Events().ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	recent := make([]string, 0, 3)
	for _, usage := range usages {
		if len(recent) == 3 {
			break
		}
		recent = append(recent, usage.Category)
	}

	rest := make([]string, 0, len(usages))
	for _, usage := range usages[len(recent):] {
		rest = append(rest, usage.Category)
	}
	sort.Strings(rest)

	features := &models.FeatureList{
		Recent:  recent,
		All:     append(append([]string{}, recent...), rest...),
		Default: defaultFeature,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, featuresCacheKey, features, featuresCacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache features listing")
		}
	}

	return features, nil
}

// ReindexAll pushes every event into the search index. The worker runs this
// periodically to repair any drift left by best-effort indexing.
func (s *EventService) ReindexAll(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, nil
	}

	events, err := s.store.Events().List(ctx, "", "")
	if err != nil {
		return 0, err
	}

	indexed := 0
	for i := range events {
		if err := s.indexer.IndexEvent(ctx, &events[i]); err != nil {
			log.Warn().
				Err(err).
				Str("event_id", events[i].ID.String()).
				Msg("Failed to reindex event")
			continue
		}
		indexed++
	}
	return indexed, nil
}

// attachProperty is the transaction-scoped attach step shared by Create and
// AttachProperty. TypeConflict from the registry propagates as-is.
func attachProperty(ctx context.Context, tx repositories.Store, eventID uuid.UUID, in models.EventPropertyInput, actor *string) (*models.EventProperty, error) {
	property, err := resolveOrCreateProperty(ctx, tx, models.PropertyInput{
		Name:        in.PropertyName,
		DataType:    in.DataType,
		Description: in.Description,
		CreatedBy:   actor,
	})
	if err != nil {
		return nil, err
	}

	exists, err := tx.Associations().Exists(ctx, eventID, property.ID, in.PropertyType)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(ErrDuplicateAssociation,
			"property %q with role %q", in.PropertyName, in.PropertyType)
	}

	association := &models.EventProperty{
		ID:           uuid.New(),
		EventID:      eventID,
		PropertyID:   property.ID,
		PropertyType: in.PropertyType,
		IsRequired:   in.IsRequired,
		ExampleValue: in.ExampleValue,
	}
	if err := tx.Associations().Create(ctx, association); err != nil {
		return nil, err
	}

	if err := tx.Changelog().Append(ctx, &models.Changelog{
		ID:         uuid.New(),
		EntityType: models.EntityEventProperty,
		EntityID:   association.ID,
		Action:     models.ActionCreate,
		NewValue: models.JSONMap{
			"event_id":      eventID.String(),
			"property_id":   property.ID.String(),
			"property_type": in.PropertyType,
		},
		ChangedBy: actor,
	}); err != nil {
		return nil, err
	}

	return association, nil
}

// reclaimOrphans deletes every candidate property that no association
// anywhere references anymore. The check and the delete run inside the
// caller's transaction, so a concurrent attach on the same property either
// lands before the check or is serialized after the whole deletion.
func reclaimOrphans(ctx context.Context, tx repositories.Store, candidates []uuid.UUID) (int, error) {
	reclaimed := 0
	for _, propertyID := range candidates {
		count, err := tx.Associations().CountByProperty(ctx, propertyID)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			continue
		}

		property, err := tx.Properties().GetByID(ctx, propertyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return 0, errors.Wrap(err, "failed to load orphan candidate")
		}

		actor := systemActor
		if err := tx.Changelog().Append(ctx, &models.Changelog{
			ID:         uuid.New(),
			EntityType: models.EntityProperty,
			EntityID:   property.ID,
			Action:     models.ActionDelete,
			OldValue:   models.JSONMap{"name": property.Name, "data_type": property.DataType},
			ChangedBy:  &actor,
		}); err != nil {
			return 0, err
		}
		if err := tx.Properties().Delete(ctx, property.ID); err != nil {
			return 0, err
		}

		log.Info().
			Str("property_id", property.ID.String()).
			Str("name", property.Name).
			Msg("Orphaned property reclaimed")
		reclaimed++
	}
	return reclaimed, nil
}

func candidatePropertyIDs(associations []models.EventProperty) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(associations))
	for _, association := range associations {
		if seen[association.PropertyID] {
			continue
		}
		seen[association.PropertyID] = true
		ids = append(ids, association.PropertyID)
	}
	return ids
}

func eventSnapshot(event *models.Event) models.JSONMap {
	snapshot := models.JSONMap{
		"name":        event.Name,
		"description": nil,
		"category":    nil,
	}
	if event.Description != nil {
		snapshot["description"] = *event.Description
	}
	if event.Category != nil {
		snapshot["category"] = *event.Category
	}
	return snapshot
}

func validateAttachment(in models.EventPropertyInput) error {
	if in.PropertyName == "" {
		return errors.Wrap(ErrValidation, "property name is required")
	}
	if in.DataType == "" {
		return errors.Wrap(ErrValidation, "property data type is required")
	}
	if !models.ValidRole(in.PropertyType) {
		return errors.Wrapf(ErrValidation, "unknown property role %q", in.PropertyType)
	}
	return nil
}

func (s *EventService) invalidateFeatures(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, featuresCacheKey); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate features cache")
	}
}

func (s *EventService) notifyIndex(ctx context.Context, event *models.Event) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexEvent(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("event_id", event.ID.String()).
			Msg("Failed to index event, reindex worker will repair")
	}
}

func (s *EventService) notifyDelete(ctx context.Context, id uuid.UUID) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.DeleteEvent(ctx, id); err != nil {
		log.Warn().
			Err(err).
			Str("event_id", id.String()).
			Msg("Failed to remove event from index, reindex worker will repair")
	}
}
