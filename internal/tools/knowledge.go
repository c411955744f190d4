package tools

import (
	"context"
	"encoding/json"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/knowledge"
)

func knowledgeHandlers(kb *knowledge.Base) []Handler {
	return []Handler{
		funcHandler{
			def: Definition{
				Name:        LookupGlossary,
				Description: "Explain an SEO term such as CPC, keyword difficulty or referring domain in plain language.",
				Parameters: object([]string{"term"}, map[string]any{
					"term": str("Term to explain"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Term string `json:"term"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if args.Term == "" {
					return nil, invalidArgs("term is required")
				}
				matches := kb.LookupTerm(args.Term)
				if len(matches) == 0 {
					return map[string]any{"found": false, "available_terms": kb.Terms()}, nil
				}
				return map[string]any{"found": true, "terms": matches}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        GetGuide,
				Description: "Get a step-by-step guide on an SEO topic such as local SEO, link building or keyword research.",
				Parameters: object([]string{"topic"}, map[string]any{
					"topic": str("Guide topic"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Topic string `json:"topic"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				guide, ok := kb.Guide(args.Topic)
				if !ok {
					return map[string]any{"found": false, "available_guides": kb.GuideSlugs()}, nil
				}
				return map[string]any{"found": true, "guide": guide}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        GetFeatureInfo,
				Description: "Describe product features and which plans include them. Leave feature empty to list all.",
				Parameters: object(nil, map[string]any{
					"feature": str("Feature name"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Feature string `json:"feature"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				features := kb.Feature(args.Feature)
				return map[string]any{"found": len(features) > 0, "features": features}, nil
			},
		},
	}
}
