package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/taxonomy/internal/models"
)

// Store bundles the repositories over one backing database. InTransaction
// yields a Store bound to a single transaction so that check-then-act
// sequences (name lookup before insert, reference count before delete) are
// serialized by the store rather than by in-process locks.
type Store interface {
	Properties() PropertyRepository
	Events() EventRepository
	Associations() AssociationRepository
	Changelog() ChangelogRepository
	InTransaction(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

// PropertyRepository provides access to registry entries
type PropertyRepository interface {
	Create(ctx context.Context, property *models.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	GetByName(ctx context.Context, name string) (*models.Property, error)
	List(ctx context.Context) ([]models.Property, error)
	Search(ctx context.Context, query string) ([]models.Property, error)
	ListNameTypes(ctx context.Context) ([]models.PropertyNameType, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventRepository provides access to taxonomy events
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, query, category string) ([]models.Event, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]models.CategoryUsage, error)
}

// AssociationRepository provides access to event-property links
type AssociationRepository interface {
	Create(ctx context.Context, association *models.EventProperty) error
	Get(ctx context.Context, eventID, associationID uuid.UUID) (*models.EventProperty, error)
	Exists(ctx context.Context, eventID, propertyID uuid.UUID, role string) (bool, error)
	CountByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error)
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChangelogRepository provides access to the audit trail
type ChangelogRepository interface {
	Append(ctx context.Context, entry *models.Changelog) error
	List(ctx context.Context, entityType string, entityID *uuid.UUID, limit int) ([]models.Changelog, error)
}

// GormStore implements Store on a gorm database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over the given database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Properties returns the property repository
func (s *GormStore) Properties() PropertyRepository {
	return &propertyRepository{db: s.db}
}

// Events returns the event repository
func (s *GormStore) Events() EventRepository {
	return &eventRepository{db: s.db}
}

// Associations returns the association repository
func (s *GormStore) Associations() AssociationRepository {
	return &associationRepository{db: s.db}
}

// Changelog returns the changelog repository
func (s *GormStore) Changelog() ChangelogRepository {
	return &changelogRepository{db: s.db}
}

// InTransaction runs fn against a transaction-scoped store. A returned error
// rolls everything back, changelog rows included.
func (s *GormStore) InTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Ping verifies database connectivity for the readiness endpoint
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get DB instance")
	}
	return sqlDB.PingContext(ctx)
}

type propertyRepository struct {
	db *gorm.DB
}

func (r *propertyRepository) Create(ctx context.Context, property *models.Property) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(property).Error, "failed to create property")
}

func (r *propertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// GetByName returns gorm.ErrRecordNotFound unwrapped so callers can branch on it.
func (r *propertyRepository) GetByName(ctx context.Context, name string) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&property).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *propertyRepository) List(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := r.db.WithContext(ctx).Order("name").Find(&properties).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list properties")
	}
	return properties, nil
}

func (r *propertyRepository) Search(ctx context.Context, query string) ([]models.Property, error) {
	var properties []models.Property
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? OR description ILIKE ?", pattern, pattern).
		Order("name").
		Find(&properties).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search properties")
	}
	return properties, nil
}

func (r *propertyRepository) ListNameTypes(ctx context.Context) ([]models.PropertyNameType, error) {
	var pairs []models.PropertyNameType
	err := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Select("name", "data_type").
		Find(&pairs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list property name/type pairs")
	}
	return pairs, nil
}

func (r *propertyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Property{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete property")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type eventRepository struct {
	db *gorm.DB
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(event).Error, "failed to create event")
}

func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Preload("EventProperties").
		Preload("EventProperties.Property").
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, query, category string) ([]models.Event, error) {
	var events []models.Event
	q := r.db.WithContext(ctx).
		Preload("EventProperties").
		Preload("EventProperties.Property")
	if query != "" {
		pattern := "%" + query + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Order("created_at").Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	return events, nil
}

// Update applies only the supplied fields. The autoUpdateTime column bumps
// updated_at as part of the same statement.
func (r *eventRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update event")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Event{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete event")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *eventRepository) ListCategories(ctx context.Context) ([]models.CategoryUsage, error) {
	var usages []models.CategoryUsage
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("category", "MAX(updated_at) AS last_used").
		Where("category IS NOT NULL AND category <> ''").
		Group("category").
		Order("last_used DESC").
		Find(&usages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	return usages, nil
}

type associationRepository struct {
	db *gorm.DB
}

func (r *associationRepository) Create(ctx context.Context, association *models.EventProperty) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(association).Error, "failed to create association")
}

func (r *associationRepository) Get(ctx context.Context, eventID, associationID uuid.UUID) (*models.EventProperty, error) {
	var association models.EventProperty
	err := r.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", associationID, eventID).
		First(&association).Error
	if err != nil {
		return nil, err
	}
	return &association, nil
}

func (r *associationRepository) Exists(ctx context.Context, eventID, propertyID uuid.UUID, role string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EventProperty{}).
		Where("event_id = ? AND property_id = ? AND property_type = ?", eventID, propertyID, role).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check association existence")
	}
	return count > 0, nil
}

func (r *associationRepository) CountByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EventProperty{}).
		Where("property_id = ?", propertyID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count associations for property")
	}
	return count, nil
}

func (r *associationRepository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&models.EventProperty{}).Error
	return errors.Wrap(err, "failed to delete associations for event")
}

func (r *associationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.EventProperty{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete association")
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type changelogRepository struct {
	db *gorm.DB
}

func (r *changelogRepository) Append(ctx context.Context, entry *models.Changelog) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(entry).Error, "failed to append changelog entry")
}

// List returns entries newest first. The id column breaks same-timestamp ties
// deterministically.
func (r *changelogRepository) List(ctx context.Context, entityType string, entityID *uuid.UUID, limit int) ([]models.Changelog, error) {
	var entries []models.Changelog
	q := r.db.WithContext(ctx).Order("changed_at DESC, id DESC")
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != nil {
		q = q.Where("entity_id = ?", *entityID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list changelog entries")
	}
	return entries, nil
}
