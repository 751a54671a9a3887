package services

import (
	"context"
	"testing"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRegistryService(store *mockStore) *RegistryService {
	return NewRegistryService(store, &tracing.NewRelicTracer{})
}

func TestResolveOrCreateRegistersNewProperty(t *testing.T) {
	store := newMockStore()
	store.properties.On("GetByName", mock.Anything, "user_id").Return(nil, gorm.ErrRecordNotFound)
	store.properties.On("Create", mock.Anything, mock.AnythingOfType("*models.Property")).Return(nil)
	store.changelog.On("Append", mock.Anything, mock.AnythingOfType("*models.Changelog")).Return(nil)

	service := newRegistryService(store)
	property, err := service.ResolveOrCreate(context.Background(), models.PropertyInput{
		Name:     "user_id",
		DataType: "String",
	})

	require.NoError(t, err)
	require.Equal(t, "user_id", property.Name)
	require.Equal(t, "String", property.DataType)
	store.assertExpectations(t)
}

func TestResolveOrCreateReturnsExistingOnTypeMatch(t *testing.T) {
	existing := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String"}

	store := newMockStore()
	store.properties.On("GetByName", mock.Anything, "user_id").Return(existing, nil)

	service := newRegistryService(store)
	property, err := service.ResolveOrCreate(context.Background(), models.PropertyInput{
		Name:     "user_id",
		DataType: "String",
	})

	require.NoError(t, err)
	require.Equal(t, existing.ID, property.ID)

	// No create, no changelog entry.
	store.properties.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.changelog.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestResolveOrCreateIgnoresLaterDescription(t *testing.T) {
	desc := "original description"
	existing := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String", Description: &desc}

	store := newMockStore()
	store.properties.On("GetByName", mock.Anything, "user_id").Return(existing, nil)

	newDesc := "a different description"
	service := newRegistryService(store)
	property, err := service.ResolveOrCreate(context.Background(), models.PropertyInput{
		Name:        "user_id",
		DataType:    "String",
		Description: &newDesc,
	})

	require.NoError(t, err)
	require.Equal(t, "original description", *property.Description)
}

func TestResolveOrCreateTypeConflict(t *testing.T) {
	existing := &models.Property{ID: uuid.New(), Name: "total_amount", DataType: "Float"}

	store := newMockStore()
	store.properties.On("GetByName", mock.Anything, "total_amount").Return(existing, nil)

	service := newRegistryService(store)
	_, err := service.ResolveOrCreate(context.Background(), models.PropertyInput{
		Name:     "total_amount",
		DataType: "String",
	})

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTypeConflict))
	store.properties.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.changelog.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	existing := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String"}

	store := newMockStore()
	store.properties.On("GetByName", mock.Anything, "user_id").Return(existing, nil)

	service := newRegistryService(store)

	// Strict create refuses even a type-matching duplicate.
	_, err := service.Create(context.Background(), models.PropertyInput{
		Name:     "user_id",
		DataType: "String",
	})

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateName))
	store.properties.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateValidatesInput(t *testing.T) {
	service := newRegistryService(newMockStore())

	_, err := service.Create(context.Background(), models.PropertyInput{DataType: "String"})
	require.True(t, errors.Is(err, ErrValidation))

	_, err = service.Create(context.Background(), models.PropertyInput{Name: "user_id"})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestDeletePropertyWritesChangelogFirst(t *testing.T) {
	property := &models.Property{ID: uuid.New(), Name: "stale_prop", DataType: "String"}

	store := newMockStore()
	store.properties.On("GetByID", mock.Anything, property.ID).Return(property, nil)
	store.changelog.On("Append", mock.Anything, mock.MatchedBy(func(entry *models.Changelog) bool {
		return entry.EntityType == models.EntityProperty &&
			entry.Action == models.ActionDelete &&
			entry.OldValue["name"] == "stale_prop"
	})).Return(nil)
	store.properties.On("Delete", mock.Anything, property.ID).Return(nil)

	actor := "admin@example.com"
	service := newRegistryService(store)
	err := service.Delete(context.Background(), property.ID, &actor)

	require.NoError(t, err)
	store.assertExpectations(t)
}

func TestDeletePropertyNotFound(t *testing.T) {
	id := uuid.New()

	store := newMockStore()
	store.properties.On("GetByID", mock.Anything, id).Return(nil, gorm.ErrRecordNotFound)

	service := newRegistryService(store)
	err := service.Delete(context.Background(), id, nil)

	require.True(t, errors.Is(err, ErrNotFound))
}

func TestSuggestUsesRegistryNameTypes(t *testing.T) {
	store := newMockStore()
	store.properties.On("ListNameTypes", mock.Anything).Return([]models.PropertyNameType{
		{Name: "user_id", DataType: "String"},
		{Name: "session_id", DataType: "String"},
	}, nil)

	service := newRegistryService(store)
	suggestions, err := service.Suggest(context.Background(), "user_idd")

	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	require.Equal(t, "user_id", suggestions[0].Name)
	require.Equal(t, "String", suggestions[0].DataType)
}
