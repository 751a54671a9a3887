package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"example.com/backstage/services/taxonomy/internal/models"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const bulkImportActor = "bulk_import"

// TransferHandler handles bulk import and template download requests
type TransferHandler struct {
	eventService *services.EventService
	tracer       tracing.Tracer
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(eventService *services.EventService, tracer tracing.Tracer) *TransferHandler {
	return &TransferHandler{
		eventService: eventService,
		tracer:       tracer,
	}
}

// RegisterRoutes registers the import and export routes
func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/export/template/json", h.JSONTemplate)
	router.GET("/export/template/csv", h.CSVTemplate)
	router.POST("/import/json", h.ImportJSON)
	router.POST("/import/csv", h.ImportCSV)
}

// ImportSummary reports the outcome of a bulk import. Each failed event is
// recorded as a message; successful events are committed independently.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors"`
}

// JSONTemplate serves a sample JSON import file
func (h *TransferHandler) JSONTemplate(c *gin.Context) {
	template := []map[string]interface{}{
		{
			"name":        "Example Event",
			"description": "Description of what triggers this event",
			"category":    "Engagement",
			"properties": []map[string]interface{}{
				{
					"property_name": "example_property",
					"property_type": "event",
					"data_type":     "String",
					"is_required":   true,
					"example_value": "example_value",
					"description":   "What this property represents",
				},
			},
		},
	}

	c.Header("Content-Disposition", "attachment; filename=event_template.json")
	c.JSON(http.StatusOK, template)
}

// CSVTemplate serves a sample CSV import file
func (h *TransferHandler) CSVTemplate(c *gin.Context) {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"event_name", "event_description", "event_category",
			"property_name", "property_type", "data_type",
			"is_required", "example_value", "property_description"},
		{"Example Event", "Description of event", "Engagement",
			"user_id", "user", "String", "true", "user_123", "Unique user identifier"},
		{"Example Event", "", "",
			"action_name", "event", "String", "true", "click", "Name of the action"},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}
	w.Flush()

	c.Header("Content-Disposition", "attachment; filename=event_template.csv")
	c.Data(http.StatusOK, "text/csv", []byte(buf.String()))
}

// ImportJSON imports events from an uploaded JSON array. Events are created
// one at a time so a bad entry does not roll back the rest.
func (h *TransferHandler) ImportJSON(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-import-json")
	defer h.tracer.EndTransaction(txn)

	content, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var inputs []models.EventInput
	if err := json.Unmarshal(content, &inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON must be an array of events"})
		return
	}

	summary := h.importEvents(c, inputs)
	log.Info().
		Int("imported", summary.Imported).
		Int("total", summary.Total).
		Int("errors", len(summary.Errors)).
		Msg("JSON import finished")

	c.JSON(http.StatusOK, summary)
}

// ImportCSV imports events from an uploaded CSV file. Rows sharing an event
// name are grouped into a single event with multiple properties.
func (h *TransferHandler) ImportCSV(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-import-csv")
	defer h.tracer.EndTransaction(txn)

	content, err := readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs, err := parseCSVEvents(content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := h.importEvents(c, inputs)
	log.Info().
		Int("imported", summary.Imported).
		Int("total", summary.Total).
		Int("errors", len(summary.Errors)).
		Msg("CSV import finished")

	c.JSON(http.StatusOK, summary)
}

func (h *TransferHandler) importEvents(c *gin.Context, inputs []models.EventInput) ImportSummary {
	summary := ImportSummary{Total: len(inputs), Errors: []string{}}

	for i, in := range inputs {
		if in.CreatedBy == nil {
			actor := bulkImportActor
			in.CreatedBy = &actor
		}
		if _, err := h.eventService.Create(c, in); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("event %d (%s): %s", i+1, in.Name, err.Error()))
			continue
		}
		summary.Imported++
	}
	return summary
}

func readUpload(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing upload field 'file'")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload")
	}
	return content, nil
}

// parseCSVEvents groups CSV rows into event inputs, preserving the order in
// which event names first appear.
func parseCSVEvents(content []byte) ([]models.EventInput, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV file")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := columns["event_name"]; !ok {
		return nil, fmt.Errorf("CSV is missing the event_name column")
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var order []string
	grouped := make(map[string]*models.EventInput)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid CSV file")
		}

		name := field(row, "event_name")
		if name == "" {
			continue
		}

		in, ok := grouped[name]
		if !ok {
			in = &models.EventInput{Name: name}
			if v := field(row, "event_description"); v != "" {
				in.Description = &v
			}
			if v := field(row, "event_category"); v != "" {
				in.Category = &v
			}
			grouped[name] = in
			order = append(order, name)
		}

		propName := field(row, "property_name")
		if propName == "" {
			continue
		}
		prop := models.EventPropertyInput{
			PropertyName: propName,
			PropertyType: field(row, "property_type"),
			DataType:     field(row, "data_type"),
			IsRequired:   isTruthy(field(row, "is_required")),
		}
		if prop.PropertyType == "" {
			prop.PropertyType = models.RoleEvent
		}
		if prop.DataType == "" {
			prop.DataType = "String"
		}
		if v := field(row, "example_value"); v != "" {
			prop.ExampleValue = &v
		}
		if v := field(row, "property_description"); v != "" {
			prop.Description = &v
		}
		in.Properties = append(in.Properties, prop)
	}

	inputs := make([]models.EventInput, 0, len(order))
	for _, name := range order {
		inputs = append(inputs, *grouped[name])
	}
	return inputs, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}
