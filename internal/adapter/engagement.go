package adapter

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// Typeform form submissions.
func Typeform() Adapter {
	return newAdapter(&definition{
		provider:    "typeform",
		displayName: "Typeform",
		idPaths:     []string{"event_id", "form_response.token"},
		typePaths:   []string{"event_type"},
		defaultType: "form_response",
		timePaths:   []string{"form_response.submitted_at"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "user_name", Label: "Respondent name", Type: domain.FieldTypeString, Example: "Priya"},
				compute:         firstWordOf("form_response.hidden.name", `form_response.answers.#(type=="text").text`),
			},
			{
				NormalizedField: domain.NormalizedField{Key: "email", Label: "Email", Type: domain.FieldTypeString, Example: "priya@example.com"},
				paths:           []string{`form_response.answers.#(type=="email").email`, "form_response.hidden.email"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "form_name", Label: "Form title", Type: domain.FieldTypeString, Example: "Newsletter signup"},
				paths:           []string{"form_response.definition.title"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "city", Label: "City", Type: domain.FieldTypeString, Example: "Pune"},
				paths:           []string{"form_response.hidden.city"},
			},
		},
		samples: []string{
			`{"event_id":"01HXSAMPLETYPEFORM","event_type":"form_response","form_response":{"form_id":"lT4Z3j","submitted_at":"2024-05-02T09:12:00Z","definition":{"title":"Newsletter signup"},"hidden":{"city":"Pune"},"answers":[{"type":"text","text":"Priya Sharma"},{"type":"email","email":"priya@example.com"}]}}`,
		},
	})
}

// HubSpot CRM object webhooks.
func HubSpot() Adapter {
	return newAdapter(&definition{
		provider:    "hubspot",
		displayName: "HubSpot",
		idPaths:     []string{"eventId"},
		typePaths:   []string{"subscriptionType"},
		defaultType: "contact.creation",
		timePaths:   []string{"occurredAt"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "user_name", Label: "Contact first name", Type: domain.FieldTypeString, Example: "Jordan"},
				paths:           []string{"properties.firstname"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "company", Label: "Company", Type: domain.FieldTypeString, Example: "Acme Inc"},
				paths:           []string{"properties.company"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "city", Label: "City", Type: domain.FieldTypeString, Example: "Boston"},
				paths:           []string{"properties.city"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "lifecycle_stage", Label: "Lifecycle stage", Type: domain.FieldTypeString, Example: "customer"},
				paths:           []string{"properties.lifecyclestage"},
			},
		},
		samples: []string{
			`{"eventId":1001,"subscriptionType":"contact.creation","occurredAt":1714557600000,"objectId":512,"properties":{"firstname":"Jordan","company":"Acme Inc","city":"Boston","lifecyclestage":"customer"}}`,
		},
	})
}

var starWords = map[string]float64{"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5}

func GoogleReviews() Adapter {
	return newAdapter(&definition{
		provider:    "google_reviews",
		displayName: "Google Reviews",
		idPaths:     []string{"reviewId", "name"},
		defaultType: "review.created",
		timePaths:   []string{"createTime", "updateTime"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "reviewer_name", Label: "Reviewer", Type: domain.FieldTypeString, Example: "Sam K."},
				paths:           []string{"reviewer.displayName"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "rating", Label: "Star rating", Type: domain.FieldTypeNumber, Example: 5.0},
				compute: func(root gjson.Result) any {
					r, ok := pickResult(root, "starRating", "rating")
					if !ok {
						return nil
					}
					if r.Type == gjson.Number {
						return r.Float()
					}
					s := strings.ToUpper(strings.TrimSpace(r.String()))
					if n, ok := starWords[s]; ok {
						return n
					}
					if n, err := strconv.ParseFloat(s, 64); err == nil {
						return n
					}
					return nil
				},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "review_text", Label: "Review", Type: domain.FieldTypeString, Example: "Lovely staff and great coffee."},
				paths:           []string{"comment"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "location_name", Label: "Location", Type: domain.FieldTypeString, Example: "Downtown Cafe"},
				paths:           []string{"location.title", "locationName"},
			},
		},
		samples: []string{
			`{"reviewId":"rev_sample_1","reviewer":{"displayName":"Sam K."},"starRating":"FOUR","comment":"Lovely staff and great coffee.","createTime":"2024-05-03T14:00:00Z","location":{"title":"Downtown Cafe"}}`,
		},
		poll: &PollSpec{
			Path:        "/v4/reviews",
			ItemsPath:   "reviews",
			CursorParam: "updated_after",
			CursorPath:  "updateTime",
		},
	})
}

// GoogleAnalytics pushes aggregate counters such as "42 purchases today".
func GoogleAnalytics() Adapter {
	return newAdapter(&definition{
		provider:    "google_analytics",
		displayName: "Google Analytics",
		idPaths:     []string{"event_id", "report_id"},
		typePaths:   []string{"metric"},
		defaultType: "metric.snapshot",
		timePaths:   []string{"date", "generated_at"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "metric_name", Label: "Metric", Type: domain.FieldTypeString, Example: "purchases"},
				paths:           []string{"metric"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "count", Label: "Count", Type: domain.FieldTypeNumber, Example: 42.0},
				paths:           []string{"value"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "period", Label: "Period", Type: domain.FieldTypeString, Example: "today"},
				paths:           []string{"period"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldURL, Label: "Page", Type: domain.FieldTypeURL, Example: "/products/cozy-hoodie"},
				paths:           []string{"page_path"},
			},
		},
		samples: []string{
			`{"report_id":"ga_sample_1","metric":"purchases","value":42,"period":"today","page_path":"/products/cozy-hoodie","date":"2024-05-03"}`,
		},
	})
}

func firstWordOf(paths ...string) func(gjson.Result) any {
	return func(root gjson.Result) any {
		s := firstWord(pickString(root, paths...))
		if s == "" {
			return nil
		}
		return s
	}
}
