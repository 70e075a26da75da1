package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func TestRenderer_Memoizes(t *testing.T) {
	r, err := NewRenderer(8)
	require.NoError(t, err)

	req := Request{
		Template: tmpl("{{user_name}} just bought {{product_name}}"),
		Mapping:  domain.MappingOf("user_name", "customer_name", "product_name", "product_name"),
		Event:    eventWith("customer_name", "Sarah", "product_name", "Cozy Hoodie"),
	}

	first, hit := r.Render(req)
	assert.False(t, hit)
	assert.Equal(t, "Sarah just bought Cozy Hoodie", first.Markup)

	second, hit := r.Render(req)
	assert.True(t, hit)
	assert.Equal(t, first, second)

	req.Mapping = domain.MappingOf("user_name", "customer_name")
	third, hit := r.Render(req)
	assert.False(t, hit, "a different mapping is a different key")
	assert.Equal(t, "Sarah just bought ", third.Markup)
	assert.Equal(t, 2, r.Len())
}

func TestRenderer_SkipsPreviews(t *testing.T) {
	r, err := NewRenderer(8)
	require.NoError(t, err)

	req := Request{Template: tmpl("{{template.verified}}")}
	_, hit := r.Render(req)
	assert.False(t, hit)
	_, hit = r.Render(req)
	assert.False(t, hit)
	assert.Zero(t, r.Len())
}

func TestNewRenderer_RejectsBadSize(t *testing.T) {
	_, err := NewRenderer(0)
	assert.Error(t, err)
}
