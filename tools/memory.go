package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tailored-agentic-units/voyager/core/protocol"
	"github.com/tailored-agentic-units/voyager/memory"
	"github.com/tailored-agentic-units/voyager/unified"
)

// Memory tool names.
const (
	MemoryStore    = "memory_store"
	MemoryRecall   = "memory_recall"
	MemoryStats    = "memory_stats"
	MemoryFinalize = "memory_finalize"
)

// Recall output formats.
const (
	FormatJSON   = "json"
	FormatDigest = "digest"
)

var kindEnum = []string{
	string(memory.KindSkill),
	string(memory.KindFact),
	string(memory.KindContext),
	string(memory.KindDialogue),
}

// MemoryTools returns the definitions of the memory tools.
func MemoryTools() []protocol.Tool {
	return []protocol.Tool{
		{
			Name:        MemoryStore,
			Description: "Store an observation in agent memory. The type is inferred from the content when omitted.",
			Parameters: protocol.Object(map[string]any{
				"content":  map[string]any{"type": "string", "description": "Text to remember."},
				"type":     map[string]any{"type": "string", "enum": kindEnum},
				"speaker":  map[string]any{"type": "string", "description": "Who said it. Defaults to user."},
				"metadata": map[string]any{"type": "object"},
			}, "content"),
		},
		{
			Name:        MemoryRecall,
			Description: "Recall stored skills, facts and context relevant to a query.",
			Parameters: protocol.Object(map[string]any{
				"query": map[string]any{"type": "string"},
				"types": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string", "enum": kindEnum},
				},
				"limit":  map[string]any{"type": "integer", "minimum": 1},
				"format": map[string]any{"type": "string", "enum": []string{FormatJSON, FormatDigest}},
			}, "query"),
		},
		{
			Name:        MemoryStats,
			Description: "Report how many memories of each type are stored.",
			Parameters:  protocol.Object(map[string]any{}),
		},
		{
			Name:        MemoryFinalize,
			Description: "End the memory session and compress dialogue into facts.",
			Parameters:  protocol.Object(map[string]any{}),
		},
	}
}

// RegisterMemoryTools registers the memory tools on r, bound to h.
func RegisterMemoryTools(r *Registry, h unified.Handle) error {
	handlers := map[string]Handler{
		MemoryStore:    storeHandler(h),
		MemoryRecall:   recallHandler(h),
		MemoryStats:    statsHandler(h),
		MemoryFinalize: finalizeHandler(h),
	}

	for _, tool := range MemoryTools() {
		if err := r.Register(tool, handlers[tool.Name]); err != nil {
			return err
		}
	}
	return nil
}

// resultOutput is the JSON form of a unified.Result.
type resultOutput struct {
	unified.Result
	Error string `json:"error,omitempty"`
}

func reportResult(res unified.Result) (Result, error) {
	return jsonResult(resultOutput{Result: res, Error: res.Error()}, !res.OK)
}

func storeHandler(h unified.Handle) Handler {
	return func(ctx context.Context, args json.RawMessage) (Result, error) {
		var req unified.StoreRequest
		if err := decode(args, &req); err != nil {
			return Result{}, err
		}
		return reportResult(h.Store(ctx, req))
	}
}

func recallHandler(h unified.Handle) Handler {
	return func(ctx context.Context, args json.RawMessage) (Result, error) {
		var params struct {
			Query  string        `json:"query"`
			Types  []memory.Kind `json:"types"`
			Limit  *int          `json:"limit"`
			Format string        `json:"format"`
		}
		if err := decode(args, &params); err != nil {
			return Result{}, err
		}

		opts := unified.RecallOptions{Kinds: params.Types}
		if params.Limit != nil {
			if *params.Limit < 1 {
				return Result{}, fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidArguments, *params.Limit)
			}
			opts.Limit = *params.Limit
		}

		bundle := h.Recall(ctx, params.Query, opts)

		switch params.Format {
		case "", FormatJSON:
			return jsonResult(bundle, bundle.Err != nil)
		case FormatDigest:
			return Result{Content: unified.Digest(bundle), IsError: bundle.Err != nil}, nil
		default:
			return Result{}, fmt.Errorf("%w: unknown format %q", ErrInvalidArguments, params.Format)
		}
	}
}

func statsHandler(h unified.Handle) Handler {
	return func(ctx context.Context, _ json.RawMessage) (Result, error) {
		stats := h.Stats(ctx)
		return jsonResult(stats, stats.Err != nil)
	}
}

func finalizeHandler(h unified.Handle) Handler {
	return func(ctx context.Context, _ json.RawMessage) (Result, error) {
		return reportResult(h.FinalizeSession(ctx))
	}
}

func decode(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func jsonResult(v any, isError bool) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}
	return Result{Content: string(data), IsError: isError}, nil
}
