package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Role values an EventProperty can carry. "event" marks a per-event payload
// field, "user" a user-profile field, "super" a global super-property.
const (
	RoleEvent = "event"
	RoleUser  = "user"
	RoleSuper = "super"
)

// ValidRole reports whether role is one of the known role tags.
func ValidRole(role string) bool {
	switch role {
	case RoleEvent, RoleUser, RoleSuper:
		return true
	}
	return false
}

// Changelog entity type tags.
const (
	EntityEvent         = "event"
	EntityProperty      = "property"
	EntityEventProperty = "event_property"
)

// Changelog actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// JSONMap is a string-keyed snapshot stored as a jsonb column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(data, m)
}

// Property is a canonical registry entry. Its name is unique across the whole
// catalog and its data type is fixed at first registration.
type Property struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Name            string          `gorm:"not null;uniqueIndex" json:"name"`
	DataType        string          `gorm:"not null" json:"data_type"`
	Description     *string         `json:"description"`
	CreatedBy       *string         `json:"created_by"`
	EventProperties []EventProperty `gorm:"foreignKey:PropertyID" json:"-"`
}

// Event is a named taxonomy entry. It exclusively owns its EventProperty rows.
type Event struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Name            string          `gorm:"not null;index" json:"name"`
	Description     *string         `json:"description"`
	Category        *string         `gorm:"index" json:"category"`
	CreatedBy       *string         `json:"created_by"`
	EventProperties []EventProperty `gorm:"foreignKey:EventID" json:"properties"`
}

// EventProperty links one event to one property, scoped by role. The same
// (event, property, role) triple may exist at most once.
type EventProperty struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	EventID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_event_property_role" json:"event_id"`
	PropertyID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_event_property_role" json:"property_id"`
	PropertyType string    `gorm:"not null;uniqueIndex:idx_event_property_role" json:"property_type"`
	IsRequired   bool      `gorm:"not null;default:false" json:"is_required"`
	ExampleValue *string   `json:"example_value"`
	Event        Event     `gorm:"foreignKey:EventID" json:"-"`
	Property     Property  `gorm:"foreignKey:PropertyID" json:"-"`
}

// Changelog is an append-only audit record. Rows are written in the same
// transaction as the mutation they describe and are never updated or deleted.
type Changelog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string    `gorm:"not null;index" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index" json:"entity_id"`
	Action     string    `gorm:"not null" json:"action"`
	OldValue   JSONMap   `gorm:"type:jsonb" json:"old_value"`
	NewValue   JSONMap   `gorm:"type:jsonb" json:"new_value"`
	ChangedBy  *string   `json:"changed_by"`
	ChangedAt  time.Time `gorm:"autoCreateTime;index" json:"changed_at"`
}

// PropertyInput is an explicit registry registration request.
type PropertyInput struct {
	Name        string  `json:"name"`
	DataType    string  `json:"data_type"`
	Description *string `json:"description"`
	CreatedBy   *string `json:"created_by"`
}

// EventPropertyInput is a request to attach a property to an event. The
// property is resolved by name against the registry, created if absent.
type EventPropertyInput struct {
	PropertyName string  `json:"property_name"`
	PropertyType string  `json:"property_type"`
	DataType     string  `json:"data_type"`
	IsRequired   bool    `json:"is_required"`
	ExampleValue *string `json:"example_value"`
	Description  *string `json:"description"`
}

// EventInput is a request to create an event together with its properties.
type EventInput struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	Category    *string              `json:"category"`
	CreatedBy   *string              `json:"created_by"`
	Properties  []EventPropertyInput `json:"properties"`
}

// EventUpdateInput carries a partial event update; nil fields are untouched.
type EventUpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// PropertySuggestion is a fuzzy-match candidate for a requested property name.
type PropertySuggestion struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	Similarity float64 `json:"similarity"`
}

// PropertyNameType is the read-side projection the suggestion engine consumes.
type PropertyNameType struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// CategoryUsage pairs a category with the most recent update of any event in it.
type CategoryUsage struct {
	Category string    `json:"category"`
	LastUsed time.Time `json:"last_used"`
}

// FeatureList is the response of the features endpoint: the three most
// recently used categories first, then the remainder alphabetically.
type FeatureList struct {
	Recent  []string `json:"recent"`
	All     []string `json:"all"`
	Default string   `json:"default"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Property{},
		&Event{},
		&EventProperty{},
		&Changelog{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
