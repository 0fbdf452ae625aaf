package outbox

import "github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/events"

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "quantity": {"type": "number"},
    "unit": {"type": "string"},
    "date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "activity_type", "quantity", "unit", "occurred_at"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "quantity": {"type": "number"},
    "unit": {"type": "string"},
    "date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "activity_type", "quantity", "unit", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for it.
var schemaCatalog = map[string]string{
	events.TypeActivityCreated: activityCreatedSchema,
	events.TypeActivityUpdated: activityUpdatedSchema,
	events.TypeActivityDeleted: activityDeletedSchema,
}
