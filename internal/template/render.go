package template

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/k3a/html2text"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// ErrorText replaces any template region that cannot be rendered.
const ErrorText = "[render error]"

const (
	verifiedText = "✓ Verified"
	maxStars     = 5
)

// RenderError describes one region of a template that failed to render.
type RenderError struct {
	Placeholder string
	Reason      string
}

func (e *RenderError) Error() string {
	if e.Placeholder == "" {
		return "render: " + e.Reason
	}
	return fmt.Sprintf("render %q: %s", e.Placeholder, e.Reason)
}

// Request is everything needed to render one notification.
type Request struct {
	Template domain.TemplateConfig
	Mapping  domain.FieldMapping
	// Event is nil in preview mode. Values then come from the template's
	// preview_json and, failing that, from the example of a field in Fields.
	Event  *domain.CanonicalEvent
	Fields []domain.NormalizedField
}

// Result is the rendered markup plus every region that fell back to
// ErrorText.
type Result struct {
	Markup string
	Errors []*RenderError
}

// Render substitutes event values into cfg's template using mapping.
func Render(cfg domain.TemplateConfig, mapping domain.FieldMapping, ev *domain.CanonicalEvent) string {
	return RenderMarkup(Request{Template: cfg, Mapping: mapping, Event: ev})
}

// RenderMarkup returns HTML with every substituted value escaped.
func RenderMarkup(req Request) string {
	return Execute(req).Markup
}

// RenderText returns the notification as plain text.
func RenderText(req Request) string {
	return toText(Execute(req).Markup)
}

func toText(markup string) string {
	return html2text.HTML2TextWithOptions(markup, html2text.WithUnixLineBreaks())
}

// Execute renders req and never fails: broken regions become ErrorText and
// are reported in Result.Errors.
func Execute(req Request) Result {
	src := req.Template.HTMLTemplate
	var (
		b    strings.Builder
		errs []*RenderError
	)
	b.Grow(len(src))

	for {
		open := strings.Index(src, "{{")
		if open < 0 {
			b.WriteString(src)
			break
		}
		b.WriteString(src[:open])
		rest := src[open+2:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			errs = append(errs, &RenderError{Reason: "unclosed placeholder"})
			b.WriteString(ErrorText)
			break
		}
		name := strings.TrimSpace(rest[:end])
		src = rest[end+2:]

		if !identRe.MatchString(name) {
			errs = append(errs, &RenderError{Placeholder: name, Reason: "malformed placeholder"})
			b.WriteString(ErrorText)
			continue
		}
		text, err := resolve(req, name)
		if err != nil {
			errs = append(errs, err)
			b.WriteString(ErrorText)
			continue
		}
		b.WriteString(escape(text))
	}
	return Result{Markup: b.String(), Errors: errs}
}

func resolve(req Request, placeholder string) (string, *RenderError) {
	switch placeholder {
	case domain.FieldRatingStars:
		return ratingStars(req), nil
	case domain.FieldVerified:
		return verified(req), nil
	}

	// A mapping may point at another placeholder instead of a field. Follow
	// such chains until a real value turns up.
	seen := map[string]bool{}
	key := placeholder
	for {
		src, ok := req.Mapping.Get(key)
		if !ok || src == "" {
			return "", nil
		}
		if v, ok := lookup(req, src); ok {
			return domain.FormatValue(v), nil
		}
		if src == key || !req.Mapping.Has(src) {
			return "", nil
		}
		seen[key] = true
		if seen[src] {
			return "", &RenderError{Placeholder: placeholder, Reason: "circular mapping through " + src}
		}
		key = src
	}
}

// lookup finds the value of a normalized field key, honouring the preview
// fallback order when no event is present.
func lookup(req Request, key string) (any, bool) {
	if req.Event != nil {
		return req.Event.Normalized.Get(key)
	}
	if v, ok := req.Template.PreviewJSON.Get(key); ok {
		return v, true
	}
	for _, f := range req.Fields {
		if f.Key == key {
			return f.Example, true
		}
	}
	return nil, false
}

func ratingStars(req Request) string {
	var n int
	for _, key := range []string{"template.rating", "rating"} {
		if v, ok := lookup(req, key); ok && v != nil {
			n = ratingOf(v)
			break
		}
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", maxStars-n)
}

func ratingOf(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(maxStars, math.Floor(f))))
}

// verified shows the badge unless the event explicitly says otherwise.
func verified(req Request) string {
	v, ok := lookup(req, "verified")
	if !ok {
		return verifiedText
	}
	switch x := v.(type) {
	case bool:
		if !x {
			return ""
		}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil && !b {
			return ""
		}
	}
	return verifiedText
}

var braceEscaper = strings.NewReplacer("{", "&#123;", "}", "&#125;")

// escape HTML-escapes a substituted value. Braces are escaped too so a value
// can never introduce a new placeholder token into the output.
func escape(s string) string {
	return braceEscaper.Replace(html.EscapeString(s))
}
