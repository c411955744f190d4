package tools

import (
	"fmt"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/knowledge"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

// NewCatalog registers every tool in catalog order.
func NewCatalog(p SEOProvider, store Store, kb *knowledge.Base, log *logger.Logger) (*Registry, error) {
	var all []Handler
	all = append(all, seoHandlers(p, store, log)...)
	all = append(all, workspaceHandlers(store, time.Now)...)
	all = append(all, knowledgeHandlers(kb)...)

	byID := make(map[ID]Handler, len(all))
	for _, h := range all {
		byID[h.Definition().Name] = h
	}

	r := NewRegistry()
	for _, id := range IDs {
		h, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("no handler for tool %q", id)
		}
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}
