package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{"none", "<p>hello</p>", []string{}},
		{"ordered distinct", "{{b}} {{a}} {{b}}", []string{"b", "a"}},
		{"dotted", "{{template.author_name}} rated {{template.rating_stars}}", []string{"template.author_name", "template.rating_stars"}},
		{"inner whitespace", "{{ user_name }}", []string{"user_name"}},
		{"malformed ignored", "{{1bad}} {{a..b}} {{ok}}", []string{"ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.html))
		})
	}
}

func TestAutoMap_Precedence(t *testing.T) {
	tests := []struct {
		name        string
		fields      []string
		placeholder string
		want        string
	}{
		{"exact", []string{"user_name", "userName"}, "userName", "userName"},
		{"case and separators", []string{"product_name"}, "productName", "product_name"},
		{"dotted vs underscore", []string{"template.user_name"}, "template_user_name", "template.user_name"},
		{"final segment", []string{"user_name"}, "template.user_name", "user_name"},
		{"shared suffix", []string{"city", "customer_name"}, "user_name", "customer_name"},
		{"shared prefix", []string{"image_url", "title"}, "image", "image_url"},
		{"first field wins ties", []string{"customer_name", "product_name"}, "buyer_name", "customer_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AutoMap(tt.fields, []string{tt.placeholder})
			got, ok := m.Get(tt.placeholder)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutoMap_UnmatchedLeftOut(t *testing.T) {
	m := AutoMap([]string{"city"}, []string{"product_name", "city"})
	assert.False(t, m.Has("product_name"))
	assert.Equal(t, []string{"city"}, m.Keys())
}

func TestAutoMap_ComputedFieldsAlwaysSelfMapped(t *testing.T) {
	m := AutoMap(nil, []string{domain.FieldRatingStars, domain.FieldVerified})

	for _, k := range []string{domain.FieldRatingStars, domain.FieldVerified} {
		got, ok := m.Get(k)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	assert.Empty(t, domain.EditableMappingKeys(m))
}

func TestAutoMap_ComputedFieldsNeverUsedAsSources(t *testing.T) {
	m := AutoMap([]string{domain.FieldVerified}, []string{"verified"})
	assert.False(t, m.Has("verified"))
}

func TestAutoMap_Deterministic(t *testing.T) {
	r, err := adapter.NewDefaultRegistry()
	require.NoError(t, err)

	placeholders := []string{"user_name", "template.product_name", "city", "rating", "image", "link_url", "template.verified"}
	for _, a := range r.GetAll() {
		keys := FieldKeys(a.AvailableFields())
		first := AutoMap(keys, placeholders)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, AutoMap(keys, placeholders), a.Provider())
		}
	}
}
