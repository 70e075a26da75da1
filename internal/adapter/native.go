package adapter

import (
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// Announcement is the native generator for merchant-authored messages.
func Announcement() Adapter {
	return newAdapter(&definition{
		provider:    "announcement",
		displayName: "Announcement",
		idPaths:     []string{"id"},
		defaultType: "announcement",
		timePaths:   []string{"published_at"},
		derivedID:   true,
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "title", Label: "Title", Type: domain.FieldTypeString, Example: "Summer sale"},
				paths:           []string{"title"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "message", Label: "Message", Type: domain.FieldTypeString, Example: "20% off everything this weekend"},
				paths:           []string{"message", "body"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldURL, Label: "Link", Type: domain.FieldTypeURL, Example: "https://shop.example.com/sale"},
				paths:           []string{"url"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldImage, Label: "Image", Type: domain.FieldTypeURL, Example: "https://cdn.example.com/sale.png"},
				paths:           []string{"image_url"},
			},
		},
		samples: []string{
			`{"title":"Summer sale","message":"20% off everything this weekend","url":"https://shop.example.com/sale","published_at":"2024-06-01T00:00:00Z"}`,
		},
	})
}

// LiveVisitors reports how many people are currently on a page.
func LiveVisitors() Adapter {
	return newAdapter(&definition{
		provider:    "live_visitors",
		displayName: "Live visitors",
		idPaths:     []string{"id"},
		defaultType: "visitors.snapshot",
		timePaths:   []string{"observed_at"},
		derivedID:   true,
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "visitor_count", Label: "Visitors", Type: domain.FieldTypeNumber, Example: 27.0},
				paths:           []string{"count", "visitors"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "page_url", Label: "Page", Type: domain.FieldTypeURL, Example: "/products/cozy-hoodie"},
				paths:           []string{"page"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "site_id", Label: "Site", Type: domain.FieldTypeString, Example: "site_123"},
				paths:           []string{"site_id"},
			},
		},
		samples: []string{
			`{"site_id":"site_123","count":27,"page":"/products/cozy-hoodie","observed_at":"2024-06-01T12:00:00Z"}`,
		},
	})
}
