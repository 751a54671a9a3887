package services

import (
	"context"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultHistoryLimit = 50

// AuditService reads the changelog. Entries are only ever written by the
// registry and event services inside their own transactions.
type AuditService struct {
	store  repositories.Store
	tracer tracing.Tracer
}

// NewAuditService creates a new audit service
func NewAuditService(store repositories.Store, tracer tracing.Tracer) *AuditService {
	return &AuditService{
		store:  store,
		tracer: tracer,
	}
}

// History returns changelog entries for an entity type, newest first. A nil
// entityID returns entries across all entities of that type.
func (s *AuditService) History(ctx context.Context, entityType string, entityID *uuid.UUID, limit int) ([]models.Changelog, error) {
	txn := s.tracer.StartTransaction("audit-history")
	defer s.tracer.EndTransaction(txn)

	switch entityType {
	case models.EntityEvent, models.EntityProperty, models.EntityEventProperty:
	default:
		return nil, errors.Wrapf(ErrValidation, "unknown entity type %q", entityType)
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	entries, err := s.store.Changelog().List(ctx, entityType, entityID, limit)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, errors.Wrap(err, "failed to list changelog entries")
	}
	return entries, nil
}
