package services

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newEventService(store *mockStore) *EventService {
	return NewEventService(store, nil, nil, &tracing.NewRelicTracer{})
}

func strPtr(s string) *string { return &s }

func TestCreateEventWithProperties(t *testing.T) {
	store := newMockStore()
	store.events.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)
	store.properties.On("GetByName", mock.Anything, "order_id").Return(nil, gorm.ErrRecordNotFound)
	store.properties.On("Create", mock.Anything, mock.AnythingOfType("*models.Property")).Return(nil)
	store.associations.On("Exists", mock.Anything, mock.Anything, mock.Anything, models.RoleEvent).Return(false, nil)
	store.associations.On("Create", mock.Anything, mock.AnythingOfType("*models.EventProperty")).Return(nil)
	store.changelog.On("Append", mock.Anything, mock.AnythingOfType("*models.Changelog")).Return(nil)
	store.events.On("GetByID", mock.Anything, mock.Anything).Return(&models.Event{Name: "Purchase Completed"}, nil)

	service := newEventService(store)
	event, err := service.Create(context.Background(), models.EventInput{
		Name:      "Purchase Completed",
		Category:  strPtr("Transaction"),
		CreatedBy: strPtr("admin@example.com"),
		Properties: []models.EventPropertyInput{
			{PropertyName: "order_id", PropertyType: models.RoleEvent, DataType: "String", IsRequired: true},
		},
	})

	require.NoError(t, err)
	require.Equal(t, "Purchase Completed", event.Name)

	// One changelog entry for the property, one for the association, one
	// for the event itself.
	store.changelog.AssertNumberOfCalls(t, "Append", 3)
	store.assertExpectations(t)
}

func TestCreateEventRollsBackOnTypeConflict(t *testing.T) {
	existing := &models.Property{ID: uuid.New(), Name: "order_id", DataType: "String"}

	store := newMockStore()
	store.events.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).Return(nil)
	store.properties.On("GetByName", mock.Anything, "order_id").Return(existing, nil)

	service := newEventService(store)
	_, err := service.Create(context.Background(), models.EventInput{
		Name: "Purchase Completed",
		Properties: []models.EventPropertyInput{
			{PropertyName: "order_id", PropertyType: models.RoleEvent, DataType: "Int"},
		},
	})

	require.True(t, errors.Is(err, ErrTypeConflict))
	// The transaction fails before the event's own changelog entry.
	store.changelog.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestCreateEventRejectsUnknownRole(t *testing.T) {
	service := newEventService(newMockStore())

	_, err := service.Create(context.Background(), models.EventInput{
		Name: "Button Clicked",
		Properties: []models.EventPropertyInput{
			{PropertyName: "button_name", PropertyType: "widget", DataType: "String"},
		},
	})

	require.True(t, errors.Is(err, ErrValidation))
}

func TestGetEventNotFound(t *testing.T) {
	id := uuid.New()

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, id).Return(nil, gorm.ErrRecordNotFound)

	service := newEventService(store)
	_, err := service.Get(context.Background(), id)

	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateEventOnlySuppliedFields(t *testing.T) {
	id := uuid.New()
	event := &models.Event{ID: id, Name: "Screen Viewed", Category: strPtr("Navigation")}

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, id).Return(event, nil)
	store.events.On("Update", mock.Anything, id, mock.MatchedBy(func(fields map[string]interface{}) bool {
		_, hasName := fields["name"]
		_, hasCategory := fields["category"]
		return len(fields) == 1 && hasName && !hasCategory
	})).Return(nil)
	store.changelog.On("Append", mock.Anything, mock.MatchedBy(func(entry *models.Changelog) bool {
		return entry.Action == models.ActionUpdate &&
			entry.OldValue["name"] == "Screen Viewed" &&
			entry.NewValue["name"] == "Page Viewed"
	})).Return(nil)

	service := newEventService(store)
	_, err := service.Update(context.Background(), id, models.EventUpdateInput{
		Name: strPtr("Page Viewed"),
	})

	require.NoError(t, err)
	store.assertExpectations(t)
}

func TestAttachPropertyDuplicateAssociation(t *testing.T) {
	eventID := uuid.New()
	property := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String"}

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, eventID).Return(&models.Event{ID: eventID}, nil)
	store.properties.On("GetByName", mock.Anything, "user_id").Return(property, nil)
	store.associations.On("Exists", mock.Anything, eventID, property.ID, models.RoleUser).Return(true, nil)

	service := newEventService(store)
	_, err := service.AttachProperty(context.Background(), eventID, models.EventPropertyInput{
		PropertyName: "user_id",
		PropertyType: models.RoleUser,
		DataType:     "String",
	})

	require.True(t, errors.Is(err, ErrDuplicateAssociation))
	store.associations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAttachSameNameDifferentRole(t *testing.T) {
	eventID := uuid.New()
	property := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String"}

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, eventID).Return(&models.Event{ID: eventID}, nil)
	store.properties.On("GetByName", mock.Anything, "user_id").Return(property, nil)
	store.associations.On("Exists", mock.Anything, eventID, property.ID, models.RoleSuper).Return(false, nil)
	store.associations.On("Create", mock.Anything, mock.AnythingOfType("*models.EventProperty")).Return(nil)
	store.changelog.On("Append", mock.Anything, mock.AnythingOfType("*models.Changelog")).Return(nil)

	service := newEventService(store)
	association, err := service.AttachProperty(context.Background(), eventID, models.EventPropertyInput{
		PropertyName: "user_id",
		PropertyType: models.RoleSuper,
		DataType:     "String",
	})

	require.NoError(t, err)
	require.Equal(t, property.ID, association.PropertyID)
	require.Equal(t, models.RoleSuper, association.PropertyType)
}

func TestDetachPropertyNeverReclaims(t *testing.T) {
	eventID := uuid.New()
	association := &models.EventProperty{
		ID:           uuid.New(),
		EventID:      eventID,
		PropertyID:   uuid.New(),
		PropertyType: models.RoleEvent,
	}

	store := newMockStore()
	store.associations.On("Get", mock.Anything, eventID, association.ID).Return(association, nil)
	store.changelog.On("Append", mock.Anything, mock.MatchedBy(func(entry *models.Changelog) bool {
		return entry.EntityType == models.EntityEventProperty && entry.Action == models.ActionDelete
	})).Return(nil)
	store.associations.On("Delete", mock.Anything, association.ID).Return(nil)

	service := newEventService(store)
	err := service.DetachProperty(context.Background(), eventID, association.ID)

	require.NoError(t, err)
	// Even a now-orphaned property stays in the registry.
	store.associations.AssertNotCalled(t, "CountByProperty", mock.Anything, mock.Anything)
	store.properties.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	store.assertExpectations(t)
}

func TestDetachPropertyNotFound(t *testing.T) {
	eventID := uuid.New()
	associationID := uuid.New()

	store := newMockStore()
	store.associations.On("Get", mock.Anything, eventID, associationID).Return(nil, gorm.ErrRecordNotFound)

	service := newEventService(store)
	err := service.DetachProperty(context.Background(), eventID, associationID)

	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteEventReclaimsOrphans(t *testing.T) {
	eventID := uuid.New()
	orphan := &models.Property{ID: uuid.New(), Name: "share_method", DataType: "String"}
	shared := &models.Property{ID: uuid.New(), Name: "user_id", DataType: "String"}

	event := &models.Event{
		ID:   eventID,
		Name: "Content Shared",
		EventProperties: []models.EventProperty{
			{ID: uuid.New(), EventID: eventID, PropertyID: orphan.ID, PropertyType: models.RoleEvent},
			{ID: uuid.New(), EventID: eventID, PropertyID: shared.ID, PropertyType: models.RoleUser},
		},
	}

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, eventID).Return(event, nil)
	store.associations.On("DeleteByEvent", mock.Anything, eventID).Return(nil)
	store.events.On("Delete", mock.Anything, eventID).Return(nil)
	// share_method has no remaining references, user_id is still used elsewhere.
	store.associations.On("CountByProperty", mock.Anything, orphan.ID).Return(int64(0), nil)
	store.associations.On("CountByProperty", mock.Anything, shared.ID).Return(int64(2), nil)
	store.properties.On("GetByID", mock.Anything, orphan.ID).Return(orphan, nil)
	store.changelog.On("Append", mock.Anything, mock.AnythingOfType("*models.Changelog")).Return(nil)
	store.properties.On("Delete", mock.Anything, orphan.ID).Return(nil)

	service := newEventService(store)
	reclaimed, err := service.Delete(context.Background(), eventID)

	require.NoError(t, err)
	require.Equal(t, 1, reclaimed)

	store.properties.AssertNotCalled(t, "Delete", mock.Anything, shared.ID)
	store.assertExpectations(t)
}

func TestDeleteEventReclaimActor(t *testing.T) {
	eventID := uuid.New()
	orphan := &models.Property{ID: uuid.New(), Name: "referral_code", DataType: "String"}

	event := &models.Event{
		ID:   eventID,
		Name: "User Signup",
		EventProperties: []models.EventProperty{
			{ID: uuid.New(), EventID: eventID, PropertyID: orphan.ID, PropertyType: models.RoleEvent},
		},
	}

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, eventID).Return(event, nil)
	store.associations.On("DeleteByEvent", mock.Anything, eventID).Return(nil)
	store.events.On("Delete", mock.Anything, eventID).Return(nil)
	store.associations.On("CountByProperty", mock.Anything, orphan.ID).Return(int64(0), nil)
	store.properties.On("GetByID", mock.Anything, orphan.ID).Return(orphan, nil)
	store.changelog.On("Append", mock.Anything, mock.MatchedBy(func(entry *models.Changelog) bool {
		if entry.EntityType != models.EntityProperty {
			return true
		}
		return entry.ChangedBy != nil && *entry.ChangedBy == "system (cleanup)"
	})).Return(nil)
	store.properties.On("Delete", mock.Anything, orphan.ID).Return(nil)

	service := newEventService(store)
	_, err := service.Delete(context.Background(), eventID)

	require.NoError(t, err)
	store.assertExpectations(t)
}

func TestDeleteEventNotFound(t *testing.T) {
	id := uuid.New()

	store := newMockStore()
	store.events.On("GetByID", mock.Anything, id).Return(nil, gorm.ErrRecordNotFound)

	service := newEventService(store)
	_, err := service.Delete(context.Background(), id)

	require.True(t, errors.Is(err, ErrNotFound))
	store.associations.AssertNotCalled(t, "DeleteByEvent", mock.Anything, mock.Anything)
}

func TestFeaturesRecentThenAlphabetical(t *testing.T) {
	now := time.Now()

	store := newMockStore()
	store.events.On("ListCategories", mock.Anything).Return([]models.CategoryUsage{
		{Category: "Transaction", LastUsed: now},
		{Category: "Navigation", LastUsed: now.Add(-time.Hour)},
		{Category: "User", LastUsed: now.Add(-2 * time.Hour)},
		{Category: "Engagement", LastUsed: now.Add(-3 * time.Hour)},
		{Category: "Debug", LastUsed: now.Add(-4 * time.Hour)},
	}, nil)

	service := newEventService(store)
	features, err := service.Features(context.Background())

	require.NoError(t, err)
	require.Equal(t, []string{"Transaction", "Navigation", "User"}, features.Recent)
	require.Equal(t, []string{"Transaction", "Navigation", "User", "Debug", "Engagement"}, features.All)
	require.Equal(t, "Engagement", features.Default)
}
