package handlers

import (
	"net/http"

	"example.com/backstage/services/taxonomy/internal/search"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SearchHandler handles full-text search requests. When Elasticsearch is not
// configured it falls back to database substring matching.
type SearchHandler struct {
	elastic      *search.ElasticClient
	eventService *services.EventService
	registry     *services.RegistryService
	tracer       tracing.Tracer
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(elastic *search.ElasticClient, eventService *services.EventService, registry *services.RegistryService, tracer tracing.Tracer) *SearchHandler {
	return &SearchHandler{
		elastic:      elastic,
		eventService: eventService,
		registry:     registry,
		tracer:       tracer,
	}
}

// RegisterRoutes registers the search routes
func (h *SearchHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/search", h.Search)
}

// Search queries events by name, description, category and attached property
// names, plus properties by name and description
func (h *SearchHandler) Search(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search")
	defer h.tracer.EndTransaction(txn)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	h.tracer.AddAttribute(txn, "query", query)

	properties, err := h.registry.SearchProperties(c, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search properties")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	if h.elastic != nil {
		hits, err := h.elastic.SearchEvents(c, query)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"events": hits, "properties": properties})
			return
		}
		// Index trouble should not take search down entirely.
		log.Warn().Err(err).Str("query", query).Msg("Elasticsearch query failed, falling back to database")
		h.tracer.RecordError(txn, err)
	}

	events, err := h.eventService.List(c, query, "")
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to search events")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "properties": properties})
}
