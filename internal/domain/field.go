package domain

type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeURL     FieldType = "url"
	FieldTypeBoolean FieldType = "boolean"
)

// NormalizedField describes one key an adapter can emit into
// CanonicalEvent.Normalized.
type NormalizedField struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Example     any       `json:"example"`
	Description string    `json:"description,omitempty"`
}
