package handlers

import (
	"testing"

	"example.com/backstage/services/taxonomy/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseCSVEventsGroupsRowsByEvent(t *testing.T) {
	csv := "event_name,event_description,event_category,property_name,property_type,data_type,is_required,example_value,property_description\n" +
		"Content Shared,User shares content,Engagement,content_id,event,String,true,abc123,Shared content id\n" +
		"Content Shared,,,share_method,event,String,yes,copy_link,\n" +
		"Screen Viewed,User views a screen,Navigation,screen_name,event,String,1,home_screen,\n"

	inputs, err := parseCSVEvents([]byte(csv))

	require.NoError(t, err)
	require.Len(t, inputs, 2)

	first := inputs[0]
	require.Equal(t, "Content Shared", first.Name)
	require.Equal(t, "User shares content", *first.Description)
	require.Equal(t, "Engagement", *first.Category)
	require.Len(t, first.Properties, 2)
	require.Equal(t, "content_id", first.Properties[0].PropertyName)
	require.True(t, first.Properties[0].IsRequired)
	require.Equal(t, "abc123", *first.Properties[0].ExampleValue)
	require.Equal(t, "share_method", first.Properties[1].PropertyName)
	require.True(t, first.Properties[1].IsRequired)

	second := inputs[1]
	require.Equal(t, "Screen Viewed", second.Name)
	require.Len(t, second.Properties, 1)
	require.True(t, second.Properties[0].IsRequired)
}

func TestParseCSVEventsDefaultsRoleAndType(t *testing.T) {
	csv := "event_name,property_name,property_type,data_type\n" +
		"Button Clicked,button_name,,\n"

	inputs, err := parseCSVEvents([]byte(csv))

	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, models.RoleEvent, inputs[0].Properties[0].PropertyType)
	require.Equal(t, "String", inputs[0].Properties[0].DataType)
}

func TestParseCSVEventsSkipsBlankEventNames(t *testing.T) {
	csv := "event_name,property_name,property_type,data_type\n" +
		",orphan_prop,event,String\n" +
		"Button Clicked,button_name,event,String\n"

	inputs, err := parseCSVEvents([]byte(csv))

	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, "Button Clicked", inputs[0].Name)
}

func TestParseCSVEventsRowWithoutProperty(t *testing.T) {
	csv := "event_name,event_description,event_category,property_name,property_type,data_type\n" +
		"App Opened,App launched,Engagement,,,\n"

	inputs, err := parseCSVEvents([]byte(csv))

	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Empty(t, inputs[0].Properties)
}

func TestParseCSVEventsRequiresEventNameColumn(t *testing.T) {
	csv := "name,property_name\nButton Clicked,button_name\n"

	_, err := parseCSVEvents([]byte(csv))

	require.Error(t, err)
}
