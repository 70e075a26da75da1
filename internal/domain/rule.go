package domain

type RuleType string

const (
	RuleReplaceVariable RuleType = "replace_variable"
	RuleChangeURL       RuleType = "change_url"
	RuleChangeImage     RuleType = "change_image"
	RuleHideEvent       RuleType = "hide_event"
)

// Default normalized fields overwritten by change_url / change_image.
const (
	FieldURL   = "url"
	FieldImage = "image_url"
)

// ActionRule is a user-defined conditional mutation. Condition uses the
// form `<field> contains "<literal>"` or `<field> = "<literal>"`.
type ActionRule struct {
	Type      RuleType `json:"type" yaml:"type"`
	Condition string   `json:"condition" yaml:"condition"`
	Value     string   `json:"value" yaml:"value"`
	Target    string   `json:"target,omitempty" yaml:"target,omitempty"`
}
