package adapter

import "fmt"

// builtin lists every shipped adapter with its historical ids.
var builtin = []struct {
	build   func() Adapter
	aliases []string
}{
	{Shopify, []string{"shopify_orders"}},
	{WooCommerce, []string{"woo", "woo_commerce"}},
	{Stripe, []string{"stripe_payments"}},
	{Typeform, nil},
	{HubSpot, []string{"hubspot_crm"}},
	{GoogleReviews, []string{"google-reviews", "gmb_reviews"}},
	{GoogleAnalytics, []string{"ga4"}},
	{Announcement, nil},
	{LiveVisitors, []string{"visitors"}},
}

// NewDefaultRegistry builds the registry used by the server and CLI.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, b := range builtin {
		a := b.build()
		if err := r.Register(a, b.aliases...); err != nil {
			return nil, fmt.Errorf("registering %s: %w", a.Provider(), err)
		}
	}
	return r, nil
}
