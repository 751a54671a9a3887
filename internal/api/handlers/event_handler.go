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

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	eventService *services.EventService
	tracer       tracing.Tracer
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService, tracer tracing.Tracer) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		tracer:       tracer,
	}
}

// RegisterRoutes registers the event routes
func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	events := router.Group("/events")
	{
		events.GET("", h.ListEvents)
		events.POST("", h.CreateEvent)
		events.GET("/:id", h.GetEvent)
		events.PUT("/:id", h.UpdateEvent)
		events.DELETE("/:id", h.DeleteEvent)
		events.POST("/:id/properties", h.AttachProperty)
		events.DELETE("/:id/properties/:associationId", h.DetachProperty)
	}
	router.GET("/features", h.ListFeatures)
}

// ListEvents returns events, optionally filtered by a search query and category
func (h *EventHandler) ListEvents(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-events")
	defer h.tracer.EndTransaction(txn)

	events, err := h.eventService.List(c, c.Query("q"), c.Query("category"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list events")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// CreateEvent creates an event together with its property associations
func (h *EventHandler) CreateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-create-event")
	defer h.tracer.EndTransaction(txn)

	var in models.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error().Err(err).Msg("Invalid event request body")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "event_name", in.Name)
	h.tracer.AddAttribute(txn, "property_count", len(in.Properties))

	event, err := h.eventService.Create(c, in)
	if err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("Failed to create event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// GetEvent returns a single event with its associations
func (h *EventHandler) GetEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-get-event")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	event, err := h.eventService.Get(c, id)
	if err != nil {
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// UpdateEvent applies a partial update to an event's own fields
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-update-event")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var in models.EventUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error().Err(err).Msg("Invalid event update body")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.eventService.Update(c, id, in)
	if err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to update event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// DeleteEvent deletes an event, its associations and any properties left
// unreferenced by the removal
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-delete-event")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	reclaimed, err := h.eventService.Delete(c, id)
	if err != nil {
		log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to delete event")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":              "event deleted",
		"reclaimed_properties": reclaimed,
	})
}

// AttachProperty attaches a property to an existing event, registering the
// property on the fly when it is new
func (h *EventHandler) AttachProperty(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-attach-property")
	defer h.tracer.EndTransaction(txn)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	var in models.EventPropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Error().Err(err).Msg("Invalid attachment body")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.tracer.AddAttribute(txn, "property_name", in.PropertyName)

	association, err := h.eventService.AttachProperty(c, id, in)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", id.String()).
			Str("property", in.PropertyName).
			Msg("Failed to attach property")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, association)
}

// DetachProperty removes a single association from an event
func (h *EventHandler) DetachProperty(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-detach-property")
	defer h.tracer.EndTransaction(txn)

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	associationID, err := uuid.Parse(c.Param("associationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid association id"})
		return
	}

	if err := h.eventService.DetachProperty(c, eventID, associationID); err != nil {
		log.Error().Err(err).
			Str("event_id", eventID.String()).
			Str("association_id", associationID.String()).
			Msg("Failed to detach property")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "property detached"})
}

// ListFeatures returns the category list for feature pickers
func (h *EventHandler) ListFeatures(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-list-features")
	defer h.tracer.EndTransaction(txn)

	features, err := h.eventService.Features(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list features")
		h.tracer.RecordError(txn, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, features)
}
