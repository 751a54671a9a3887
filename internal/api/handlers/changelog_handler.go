package handlers

import (
	"net/http"
	"strconv"

	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChangelogHandler handles audit trail HTTP requests
type ChangelogHandler struct {
	audit  *services.AuditService
	tracer tracing.Tracer
}

// NewChangelogHandler creates a new changelog handler
func NewChangelogHandler(audit *services.AuditService, tracer tracing.Tracer) *ChangelogHandler {
	return &ChangelogHandler{
		audit:  audit,
		tracer: tracer,
	}
}

// RegisterRoutes registers the changelog routes
func (h *ChangelogHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/changelog", h.ListChangelog)
}

// ListChangelog returns changelog entries for an entity type, newest first
func (h *ChangelogHandler) ListChangelog(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-changelog")
	defer h.tracer.EndTransaction(txn)

	entityType := c.Query("entity_type")
	if entityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'entity_type' is required"})
		return
	}

	var entityID *uuid.UUID
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
			return
		}
		entityID = &id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}

	entries, err := h.audit.History(c, entityType, entityID, limit)
	if err != nil {
		log.Error().Err(err).Str("entity_type", entityType).Msg("Failed to list changelog")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
