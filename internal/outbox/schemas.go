package outbox

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "duration_min": {"type": "integer"},
    "source": {"type": "string"},
    "version": {"type": "string"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "activity_type", "started_at", "duration_min", "source", "version"],
  "additionalProperties": false
}`

const activityAnalyzedSchema = `{
  "type": "object",
  "title": "ActivityAnalyzed",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_class": {"type": "string"},
    "risk_level": {"type": "string", "enum": ["green", "amber", "red"]},
    "confidence": {"type": "string", "enum": ["low", "medium", "high"]},
    "flags": {"type": "array", "items": {"type": "string"}},
    "analyzed_at": {"type": "string", "format": "date-time"},
    "version": {"type": "string"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "activity_class", "risk_level", "confidence", "flags", "analyzed_at", "version"],
  "additionalProperties": false
}`
