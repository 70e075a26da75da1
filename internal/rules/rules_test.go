package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func purchase() domain.CanonicalEvent {
	return domain.CanonicalEvent{
		EventID:           "1001",
		Provider:          "shopify",
		ProviderEventType: "orders/create",
		Normalized: domain.NormalizedOf(
			"customer_name", "Sarah",
			"product_name", "Cozy Hoodie",
			"total_price", 59.0,
			"url", "https://shop.example.com/products/cozy-hoodie",
			"image_url", nil,
		),
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		in   string
		want Condition
	}{
		{``, Condition{}},
		{`   `, Condition{}},
		{`product_name contains "Hoodie"`, Condition{Field: "product_name", Op: OpContains, Literal: "Hoodie"}},
		{`city="Austin"`, Condition{Field: "city", Op: OpEquals, Literal: "Austin"}},
		{`template.title CONTAINS "a \"quoted\" word"`, Condition{Field: "template.title", Op: OpContains, Literal: `a "quoted" word`}},
		{`provider = ""`, Condition{Field: "provider", Op: OpEquals, Literal: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCondition(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Errors(t *testing.T) {
	for _, in := range []string{
		`"Hoodie"`,
		`product_name`,
		`product_name matches "x"`,
		`product_name containsX "x"`,
		`product_name = Hoodie`,
		`product_name = "Hoodie`,
		`product_name = "Hoodie" extra`,
		`product_name = "bad \q escape"`,
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseCondition(in)
			var cerr *ConditionError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, in, cerr.Condition)
		})
	}
}

func TestCondition_Match(t *testing.T) {
	ev := purchase()
	tests := []struct {
		cond string
		want bool
	}{
		{`product_name contains "hoodie"`, true},
		{`product_name contains "beanie"`, false},
		{`product_name = "Cozy Hoodie"`, true},
		{`product_name = "cozy hoodie"`, false},
		{`total_price = "59"`, true},
		{`provider = "shopify"`, true},
		{`provider_event_type contains "orders/"`, true},
		{`country = "US"`, false},
		{`image_url contains ""`, false},
		{``, true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			c, err := ParseCondition(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Match(ev))
		})
	}
}

func TestApply_ReplaceVariable(t *testing.T) {
	ev := purchase()
	out := Apply([]domain.ActionRule{
		{Type: domain.RuleReplaceVariable, Condition: `customer_name = "Sarah"`, Value: "A happy customer"},
		{Type: domain.RuleReplaceVariable, Condition: `product_name contains "hoodie"`, Target: "city", Value: "somewhere warm"},
	}, ev, nil)

	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"0:replace_variable", "1:replace_variable"}, out.Applied)
	name, _ := out.Event.Normalized.Get("customer_name")
	assert.Equal(t, "A happy customer", name)
	city, _ := out.Event.Normalized.Get("city")
	assert.Equal(t, "somewhere warm", city)

	original, _ := ev.Normalized.Get("customer_name")
	assert.Equal(t, "Sarah", original, "input event must not be modified")
}

func TestApply_ChangeURLAndImage(t *testing.T) {
	out := Apply([]domain.ActionRule{
		{Type: domain.RuleChangeURL, Condition: `product_name contains "Hoodie"`, Value: "https://shop.example.com/sale"},
		{Type: domain.RuleChangeImage, Condition: `provider = "shopify"`, Value: "https://cdn.example.com/sale.png"},
		{Type: domain.RuleChangeURL, Condition: `provider = "stripe"`, Value: "https://never"},
	}, purchase(), nil)

	url, _ := out.Event.Normalized.Get(domain.FieldURL)
	assert.Equal(t, "https://shop.example.com/sale", url)
	img, _ := out.Event.Normalized.Get(domain.FieldImage)
	assert.Equal(t, "https://cdn.example.com/sale.png", img)
	assert.Equal(t, []string{"0:change_url", "1:change_image"}, out.Applied)
}

func TestApply_HideShortCircuits(t *testing.T) {
	ev := purchase()
	out := Apply([]domain.ActionRule{
		{Type: domain.RuleHideEvent, Condition: `product_name contains "hoodie"`},
		{Type: domain.RuleReplaceVariable, Condition: `customer_name = "Sarah"`, Value: "changed"},
	}, ev, nil)

	assert.True(t, out.Suppressed)
	assert.Equal(t, []string{"0:hide_event"}, out.Applied)
	assert.Equal(t, ev.Normalized, out.Event.Normalized)
}

func TestApply_HideAfterMutationKeepsMutation(t *testing.T) {
	out := Apply([]domain.ActionRule{
		{Type: domain.RuleReplaceVariable, Condition: `customer_name = "Sarah"`, Value: "S."},
		{Type: domain.RuleHideEvent, Condition: `customer_name = "S."`},
	}, purchase(), nil)

	assert.True(t, out.Suppressed)
	assert.Len(t, out.Applied, 2)
}

func TestCompile_BrokenRulesNeverFire(t *testing.T) {
	rs := Compile([]domain.ActionRule{
		{Type: domain.RuleHideEvent, Condition: `product_name contains hoodie`},
		{Type: "explode", Condition: ``},
		{Type: domain.RuleReplaceVariable, Condition: ``, Value: "x"},
		{Type: domain.RuleReplaceVariable, Target: domain.FieldVerified, Value: "false"},
		{Type: domain.RuleReplaceVariable, Condition: `customer_name = "Sarah"`, Value: "still runs"},
	}, nil)

	require.Equal(t, 5, rs.Len())
	assert.Len(t, rs.Errors(), 4)

	out := rs.Apply(purchase())
	assert.False(t, out.Suppressed)
	assert.Equal(t, []string{"4:replace_variable"}, out.Applied)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]domain.ActionRule{
		{Type: domain.RuleHideEvent, Condition: `city = "Nowhere"`},
		{Type: domain.RuleChangeURL, Value: "https://example.com"},
	}))

	err := Validate([]domain.ActionRule{
		{Type: domain.RuleHideEvent, Condition: `city ~ "x"`},
	})
	var cerr *ConditionError
	assert.True(t, errors.As(err, &cerr))
}
