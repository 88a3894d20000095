package model

import "fmt"

// Well-known record collections. Other collections are accepted but get
// no schema validation beyond being non-empty.
const (
	CollectionCases    = "cases"
	CollectionPatients = "patients"
)

// ValidationError rejects a malformed payload before any state mutation.
type ValidationError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s %s", e.Collection, e.Field, e.Reason)
}

var requiredFields = map[string][]string{
	CollectionCases:    {"patientId", "symptoms"},
	CollectionPatients: {"name"},
}

// ValidatePayload enforces the per-collection schema at the store
// boundary. Payloads for unknown collections only need to be non-empty.
func ValidatePayload(collection string, payload map[string]any) error {
	if len(payload) == 0 {
		return &ValidationError{Collection: collection, Field: "payload", Reason: "is empty"}
	}

	for _, field := range requiredFields[collection] {
		value, ok := payload[field]
		if !ok || value == nil {
			return &ValidationError{Collection: collection, Field: field, Reason: "is required"}
		}
		if s, isString := value.(string); isString && s == "" {
			return &ValidationError{Collection: collection, Field: field, Reason: "is required"}
		}
	}

	if id, ok := payload["id"]; ok {
		if _, isString := id.(string); !isString {
			return &ValidationError{Collection: collection, Field: "id", Reason: "must be a string"}
		}
	}

	return nil
}
