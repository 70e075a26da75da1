package template

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Renderer memoizes rendered events per (template, mapping, event). Since
// rendering is pure the cache never needs invalidating; an edited template
// or mapping simply produces a different key.
type Renderer struct {
	cache *lru.Cache[string, RenderedEvent]
}

func NewRenderer(size int) (*Renderer, error) {
	cache, err := lru.New[string, RenderedEvent](size)
	if err != nil {
		return nil, fmt.Errorf("creating render cache: %w", err)
	}
	return &Renderer{cache: cache}, nil
}

// Render renders req, serving repeated stored-event renders from the cache.
// The returned bool reports a cache hit. Preview renders (no event) are
// never cached. Cached results are shared and must not be modified.
func (r *Renderer) Render(req Request) (RenderedEvent, bool) {
	key, ok := cacheKey(req)
	if !ok {
		return renderEvent(req, Execute(req)), false
	}
	if out, hit := r.cache.Get(key); hit {
		return out, true
	}
	out := renderEvent(req, Execute(req))
	r.cache.Add(key, out)
	return out, false
}

func (r *Renderer) Len() int {
	return r.cache.Len()
}

func cacheKey(req Request) (string, bool) {
	if req.Event == nil || req.Event.EventID == "" {
		return "", false
	}
	mapping, err := json.Marshal(req.Mapping)
	if err != nil {
		return "", false
	}
	h := fnv.New64a()
	h.Write([]byte(req.Template.HTMLTemplate))
	h.Write([]byte{0})
	h.Write(mapping)
	for _, f := range req.Template.RequiredFields {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return fmt.Sprintf("%s|%s|%x", req.Template.ID, req.Event.DedupKey(), h.Sum64()), true
}
