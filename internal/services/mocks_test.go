package services

import (
	"context"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockStore satisfies repositories.Store for service tests. InTransaction
// runs the callback against the same mock so expectations set on the
// repositories cover transactional calls too.
type mockStore struct {
	mock.Mock
	properties   *MockPropertyRepository
	events       *MockEventRepository
	associations *MockAssociationRepository
	changelog    *MockChangelogRepository
}

func newMockStore() *mockStore {
	return &mockStore{
		properties:   new(MockPropertyRepository),
		events:       new(MockEventRepository),
		associations: new(MockAssociationRepository),
		changelog:    new(MockChangelogRepository),
	}
}

func (m *mockStore) Properties() repositories.PropertyRepository     { return m.properties }
func (m *mockStore) Events() repositories.EventRepository            { return m.events }
func (m *mockStore) Associations() repositories.AssociationRepository { return m.associations }
func (m *mockStore) Changelog() repositories.ChangelogRepository     { return m.changelog }

func (m *mockStore) InTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	return fn(m)
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

func (m *mockStore) assertExpectations(t mock.TestingT) {
	m.properties.AssertExpectations(t)
	m.events.AssertExpectations(t)
	m.associations.AssertExpectations(t)
	m.changelog.AssertExpectations(t)
}

// MockPropertyRepository mocks the registry table
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) Create(ctx context.Context, property *models.Property) error {
	args := m.Called(ctx, property)
	return args.Error(0)
}

func (m *MockPropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyRepository) GetByName(ctx context.Context, name string) (*models.Property, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyRepository) List(ctx context.Context) ([]models.Property, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyRepository) Search(ctx context.Context, query string) ([]models.Property, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]models.Property), args.Error(1)
}

func (m *MockPropertyRepository) ListNameTypes(ctx context.Context) ([]models.PropertyNameType, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.PropertyNameType), args.Error(1)
}

func (m *MockPropertyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEventRepository mocks the events table
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context, query, category string) ([]models.Event, error) {
	args := m.Called(ctx, query, category)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventRepository) ListCategories(ctx context.Context) ([]models.CategoryUsage, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.CategoryUsage), args.Error(1)
}

// MockAssociationRepository mocks the event-property links
type MockAssociationRepository struct {
	mock.Mock
}

func (m *MockAssociationRepository) Create(ctx context.Context, association *models.EventProperty) error {
	args := m.Called(ctx, association)
	return args.Error(0)
}

func (m *MockAssociationRepository) Get(ctx context.Context, eventID, associationID uuid.UUID) (*models.EventProperty, error) {
	args := m.Called(ctx, eventID, associationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventProperty), args.Error(1)
}

func (m *MockAssociationRepository) Exists(ctx context.Context, eventID, propertyID uuid.UUID, role string) (bool, error) {
	args := m.Called(ctx, eventID, propertyID, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssociationRepository) CountByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error) {
	args := m.Called(ctx, propertyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAssociationRepository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockAssociationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockChangelogRepository mocks the audit trail
type MockChangelogRepository struct {
	mock.Mock
}

func (m *MockChangelogRepository) Append(ctx context.Context, entry *models.Changelog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockChangelogRepository) List(ctx context.Context, entityType string, entityID *uuid.UUID, limit int) ([]models.Changelog, error) {
	args := m.Called(ctx, entityType, entityID, limit)
	return args.Get(0).([]models.Changelog), args.Error(1)
}
