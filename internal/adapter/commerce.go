package adapter

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func Shopify() Adapter {
	return newAdapter(&definition{
		provider:    "shopify",
		displayName: "Shopify",
		idPaths:     []string{"id", "order_id"},
		typePaths:   []string{"topic"},
		defaultType: "orders/create",
		timePaths:   []string{"created_at", "processed_at"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "customer_name", Label: "Customer first name", Type: domain.FieldTypeString, Example: "Sarah"},
				paths:           []string{"customer.first_name", "billing_address.first_name", "shipping_address.first_name"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "city", Label: "City", Type: domain.FieldTypeString, Example: "Austin"},
				paths:           []string{"customer.default_address.city", "billing_address.city", "shipping_address.city"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "country", Label: "Country", Type: domain.FieldTypeString, Example: "United States"},
				paths:           []string{"customer.default_address.country", "billing_address.country", "shipping_address.country"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "product_name", Label: "Product", Type: domain.FieldTypeString, Example: "Cozy Hoodie"},
				paths:           []string{"line_items.0.title", "line_items.0.name"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "product_price", Label: "Product price", Type: domain.FieldTypeNumber, Example: 59.0},
				paths:           []string{"line_items.0.price"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "total_price", Label: "Order total", Type: domain.FieldTypeNumber, Example: 59.0},
				paths:           []string{"total_price", "current_total_price"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "currency", Label: "Currency", Type: domain.FieldTypeString, Example: "USD"},
				paths:           []string{"currency", "presentment_currency"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldURL, Label: "Product URL", Type: domain.FieldTypeURL, Example: "https://shop.example.com/products/cozy-hoodie"},
				paths:           []string{"line_items.0.product_url", "landing_site"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldImage, Label: "Product image", Type: domain.FieldTypeURL, Example: "https://cdn.example.com/hoodie.png"},
				paths:           []string{"line_items.0.image.src", "line_items.0.image_url"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "order_date", Label: "Order date", Type: domain.FieldTypeDate, Example: "2024-05-01T10:00:00Z"},
				paths:           []string{"created_at"},
			},
		},
		samples: []string{
			`{"id":820982911946154508,"created_at":"2024-05-01T10:00:00-05:00","total_price":"59.00","currency":"USD","customer":{"first_name":"Sarah","default_address":{"city":"Austin","country":"United States"}},"line_items":[{"title":"Cozy Hoodie","price":"59.00","product_url":"https://shop.example.com/products/cozy-hoodie","image":{"src":"https://cdn.example.com/hoodie.png"}}]}`,
			`{"id":820982911946154509,"created_at":"2024-05-01T11:30:00-05:00","total_price":"24.50","currency":"USD","customer":{"first_name":"Marco","default_address":{"city":"Milan","country":"Italy"}},"line_items":[{"title":"Wool Beanie","price":"24.50"}]}`,
		},
		poll: &PollSpec{
			Path:         "/admin/api/2024-01/orders.json",
			ItemsPath:    "orders",
			CursorParam:  "since_id",
			CursorPath:   "id",
			Query:        map[string]string{"status": "any", "order": "id asc"},
			APIKeyHeader: "X-Shopify-Access-Token",
		},
	})
}

func WooCommerce() Adapter {
	return newAdapter(&definition{
		provider:    "woocommerce",
		displayName: "WooCommerce",
		idPaths:     []string{"id"},
		typePaths:   []string{"status"},
		defaultType: "order.created",
		timePaths:   []string{"date_created_gmt", "date_created"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "customer_name", Label: "Customer first name", Type: domain.FieldTypeString, Example: "Emma"},
				paths:           []string{"billing.first_name", "shipping.first_name"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "city", Label: "City", Type: domain.FieldTypeString, Example: "Leeds"},
				paths:           []string{"billing.city", "shipping.city"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "country", Label: "Country", Type: domain.FieldTypeString, Example: "GB"},
				paths:           []string{"billing.country", "shipping.country"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "product_name", Label: "Product", Type: domain.FieldTypeString, Example: "Ceramic Mug"},
				paths:           []string{"line_items.0.name"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "total_price", Label: "Order total", Type: domain.FieldTypeNumber, Example: 18.0},
				paths:           []string{"total"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "currency", Label: "Currency", Type: domain.FieldTypeString, Example: "GBP"},
				paths:           []string{"currency"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: domain.FieldImage, Label: "Product image", Type: domain.FieldTypeURL, Example: "https://cdn.example.com/mug.png"},
				paths:           []string{"line_items.0.image.src"},
			},
		},
		samples: []string{
			`{"id":727,"status":"processing","date_created_gmt":"2024-04-12T08:15:00","total":"18.00","currency":"GBP","billing":{"first_name":"Emma","city":"Leeds","country":"GB"},"line_items":[{"name":"Ceramic Mug","image":{"src":"https://cdn.example.com/mug.png"}}]}`,
		},
		poll: &PollSpec{
			Path:        "/wp-json/wc/v3/orders",
			ItemsPath:   "@this",
			CursorParam: "after",
			CursorPath:  "date_created_gmt",
			Query:       map[string]string{"order": "asc", "orderby": "date"},
		},
	})
}

func Stripe() Adapter {
	return newAdapter(&definition{
		provider:    "stripe",
		displayName: "Stripe",
		idPaths:     []string{"id"},
		typePaths:   []string{"type"},
		defaultType: "charge.succeeded",
		timePaths:   []string{"created"},
		fields: []field{
			{
				NormalizedField: domain.NormalizedField{Key: "customer_name", Label: "Customer first name", Type: domain.FieldTypeString, Example: "Sarah"},
				compute: func(root gjson.Result) any {
					name := firstWord(pickString(root,
						"data.object.billing_details.name",
						"data.object.customer_details.name",
						"data.object.shipping.name"))
					if name == "" {
						return nil
					}
					return name
				},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "city", Label: "City", Type: domain.FieldTypeString, Example: "Denver"},
				paths:           []string{"data.object.billing_details.address.city", "data.object.customer_details.address.city"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "country", Label: "Country", Type: domain.FieldTypeString, Example: "US"},
				paths:           []string{"data.object.billing_details.address.country", "data.object.customer_details.address.country"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "product_name", Label: "Description", Type: domain.FieldTypeString, Example: "Pro plan"},
				paths:           []string{"data.object.description", "data.object.metadata.product_name"},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "amount", Label: "Amount", Type: domain.FieldTypeNumber, Example: 49.99, Description: "Charge amount in major currency units"},
				compute: func(root gjson.Result) any {
					r, ok := pickResult(root, "data.object.amount", "data.object.amount_total")
					if !ok || r.Type != gjson.Number {
						return nil
					}
					return float64(r.Int()) / 100
				},
			},
			{
				NormalizedField: domain.NormalizedField{Key: "currency", Label: "Currency", Type: domain.FieldTypeString, Example: "USD"},
				compute: func(root gjson.Result) any {
					c := pickString(root, "data.object.currency")
					if c == "" {
						return nil
					}
					return strings.ToUpper(c)
				},
			},
		},
		samples: []string{
			`{"id":"evt_sample_1","type":"charge.succeeded","created":1714557600,"data":{"object":{"amount":4999,"currency":"usd","description":"Pro plan","billing_details":{"name":"Sarah Connor","address":{"city":"Denver","country":"US"}}}}}`,
		},
		poll: &PollSpec{
			DefaultBaseURL:  "https://api.stripe.com",
			Path:            "/v1/events",
			ItemsPath:       "data",
			CursorParam:     "ending_before",
			CursorPath:      "id",
			CursorFromFirst: true,
			Query:           map[string]string{"type": "charge.succeeded"},
		},
	})
}
