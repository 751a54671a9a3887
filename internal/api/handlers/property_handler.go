package handlers

import (
	"net/http"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PropertyHandler handles property registry HTTP requests
type PropertyHandler struct {
	registry *services.RegistryService
	tracer   tracing.Tracer
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(registry *services.RegistryService, tracer tracing.Tracer) *PropertyHandler {
	return &PropertyHandler{
		registry: registry,
		tracer:   tracer,
	}
}

// RegisterRoutes registers the property routes
func (h *PropertyHandler) RegisterRoutes(router *gin.RouterGroup) {
	properties := router.Group("/properties")
	{
		properties.GET("", h.ListProperties)
		properties.POST("", h.CreateProperty)
		properties.GET("/suggest", h.SuggestProperties)
		properties.DELETE("/:id", h.DeleteProperty)
	}
}

// ListProperties returns all registered properties ordered by name
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-properties")
	defer h.tracer.EndTransaction(txn)

	properties, err := h.registry.List(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list properties")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, properties)
}

// CreateProperty registers a new property. The name must be unused.
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-property")
	defer h.tracer.EndTransaction(txn)

	var in models.PropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error().Err(err).Msg("Invalid property request body")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "property_name", in.Name)

	property, err := h.registry.Create(c, in)
	if err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("Failed to create property")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, property)
}

// SuggestProperties returns registered properties with names similar to the query
func (h *PropertyHandler) SuggestProperties(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-suggest-properties")
	defer h.tracer.EndTransaction(txn)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	suggestions, err := h.registry.Suggest(c, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to suggest properties")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, suggestions)
}

// DeleteProperty removes a property from the registry
func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-delete-property")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property id"})
		return
	}

	var actor *string
	if v := c.Query("actor"); v != "" {
		actor = &v
	}

	if err := h.registry.Delete(c, id, actor); err != nil {
		log.Error().Err(err).Str("property_id", id.String()).Msg("Failed to delete property")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "property deleted"})
}
