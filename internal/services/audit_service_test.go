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
)

func TestHistoryRejectsUnknownEntityType(t *testing.T) {
	service := NewAuditService(newMockStore(), &tracing.NewRelicTracer{})

	_, err := service.History(context.Background(), "widget", nil, 10)

	require.True(t, errors.Is(err, ErrValidation))
}

func TestHistoryAppliesDefaultLimit(t *testing.T) {
	store := newMockStore()
	store.changelog.On("List", mock.Anything, models.EntityEvent, (*uuid.UUID)(nil), defaultHistoryLimit).
		Return([]models.Changelog{}, nil)

	service := NewAuditService(store, &tracing.NewRelicTracer{})
	_, err := service.History(context.Background(), models.EntityEvent, nil, 0)

	require.NoError(t, err)
	store.changelog.AssertExpectations(t)
}

func TestHistoryScopedToEntity(t *testing.T) {
	id := uuid.New()
	entries := []models.Changelog{
		{ID: uuid.New(), EntityType: models.EntityProperty, EntityID: id, Action: models.ActionCreate},
	}

	store := newMockStore()
	store.changelog.On("List", mock.Anything, models.EntityProperty, &id, 20).Return(entries, nil)

	service := NewAuditService(store, &tracing.NewRelicTracer{})
	got, err := service.History(context.Background(), models.EntityProperty, &id, 20)

	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, id, got[0].EntityID)
}
