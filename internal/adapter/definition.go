package adapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// field binds a NormalizedField to the gjson paths it is read from. When
// compute is set it replaces path lookup.
type field struct {
	domain.NormalizedField
	paths   []string
	compute func(root gjson.Result) any
}

// definition is a declarative adapter: most providers differ only in where
// their payload keeps each value.
type definition struct {
	provider    string
	displayName string
	idPaths     []string
	typePaths   []string
	defaultType string
	timePaths   []string
	fields      []field
	samples     []string
	poll        *PollSpec
	// derivedID lets native generators omit ids; the id is then a
	// name-based UUID of the payload so normalization stays pure.
	derivedID bool
}

type pollingDefinition struct {
	*definition
}

func (p pollingDefinition) PollSpec() PollSpec {
	return *p.poll
}

func newAdapter(d *definition) Adapter {
	if d.poll != nil {
		return pollingDefinition{d}
	}
	return d
}

func (d *definition) Provider() string    { return d.provider }
func (d *definition) DisplayName() string { return d.displayName }

func (d *definition) AvailableFields() []domain.NormalizedField {
	out := make([]domain.NormalizedField, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.NormalizedField
	}
	return out
}

func (d *definition) SampleEvents() []domain.CanonicalEvent {
	events := make([]domain.CanonicalEvent, 0, len(d.samples))
	for _, s := range d.samples {
		ev, err := d.Normalize([]byte(s))
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func (d *definition) Normalize(raw []byte) (domain.CanonicalEvent, error) {
	if !gjson.ValidBytes(raw) {
		return domain.CanonicalEvent{}, &NormalizationError{Provider: d.provider, Reason: "payload is not valid JSON"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return domain.CanonicalEvent{}, &NormalizationError{Provider: d.provider, Reason: "payload is not a JSON object"}
	}

	id := pickString(root, d.idPaths...)
	if id == "" && d.derivedID {
		id = derivedEventID(d.provider, raw)
	}
	if id == "" {
		return domain.CanonicalEvent{}, &NormalizationError{Provider: d.provider, Reason: "missing event id"}
	}

	eventType := pickString(root, d.typePaths...)
	if eventType == "" {
		eventType = d.defaultType
	}

	ev := domain.CanonicalEvent{
		EventID:           id,
		Provider:          d.provider,
		ProviderEventType: eventType,
		Payload:           append([]byte(nil), raw...),
	}
	if r, ok := pickResult(root, d.timePaths...); ok {
		if t, ok := parseTime(r); ok {
			ev.Timestamp = t
		}
	}
	for _, f := range d.fields {
		ev.Normalized.Set(f.Key, f.value(root))
	}
	return ev, nil
}

func (f field) value(root gjson.Result) any {
	if f.compute != nil {
		return f.compute(root)
	}
	r, ok := pickResult(root, f.paths...)
	if !ok {
		return nil
	}
	switch f.Type {
	case domain.FieldTypeNumber:
		return numberOf(r)
	case domain.FieldTypeBoolean:
		return r.Bool()
	case domain.FieldTypeDate:
		if t, ok := parseTime(r); ok {
			return t.Format(time.RFC3339)
		}
		return strings.TrimSpace(r.String())
	default:
		return strings.TrimSpace(r.String())
	}
}

var nativeNamespace = uuid.MustParse("6f1c1d0e-54c3-4b8e-9a55-8f7f2a0c9b11")

func derivedEventID(provider string, raw []byte) string {
	return uuid.NewSHA1(nativeNamespace, append([]byte(provider+":"), raw...)).String()
}

// numberOf accepts JSON numbers and numeric strings ("59.00").
func numberOf(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return n
	default:
		return nil
	}
}
