package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Meta describes one tool to the agent.
type Meta struct {
	Name        string
	Description string
	// Args lists accepted argument names, required ones first.
	Args []string
}

// Tool is one chat-invokable operation. Run returns the text the bot
// relays to the user.
type Tool interface {
	Meta() Meta
	Run(ctx context.Context, args map[string]string) (string, error)
}

// Registry holds the tools the agent can dispatch to.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := t.Meta()
	r.tools[meta.Name] = t
	r.logger.Debug().Str("tool", meta.Name).Msg("tool registered")
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tool metadata sorted by name.
func (r *Registry) List() []Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]Meta, 0, len(r.tools))
	for _, t := range r.tools {
		metas = append(metas, t.Meta())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// Invoke dispatches one tool call with a correlation id for tracing.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	callID := uuid.NewString()
	started := time.Now()
	r.logger.Info().Str("tool", name).Str("call_id", callID).Msg("tool call started")

	out, err := t.Run(ctx, args)

	evt := r.logger.Info()
	if err != nil {
		evt = r.logger.Error().Err(err)
	}
	evt.Str("tool", name).Str("call_id", callID).Dur("elapsed", time.Since(started)).Msg("tool call finished")

	return out, err
}

// toolFunc adapts a closure into a Tool.
type toolFunc struct {
	meta Meta
	fn   func(ctx context.Context, args map[string]string) (string, error)
}

func (t toolFunc) Meta() Meta { return t.meta }

func (t toolFunc) Run(ctx context.Context, args map[string]string) (string, error) {
	return t.fn(ctx, args)
}

func argInt(args map[string]string, key string, def int) int {
	if v, ok := args[key]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// RegisterCloudTrailTools exposes the trail lookups through the registry.
func RegisterCloudTrailTools(r *Registry, ct *CloudTrail) {
	r.Register(toolFunc{
		meta: Meta{
			Name:        "lookup_cloudtrail_events",
			Description: "Query CloudTrail events for an account, optionally filtered by event name, user, resource or service",
			Args:        []string{"account_id", "start_time", "end_time", "event_name", "username", "resource_name", "event_source", "region", "max_results"},
		},
		fn: func(ctx context.Context, args map[string]string) (string, error) {
			return ct.LookupEvents(ctx, LookupRequest{
				AccountID:    args["account_id"],
				StartTime:    args["start_time"],
				EndTime:      args["end_time"],
				EventName:    args["event_name"],
				Username:     args["username"],
				ResourceName: args["resource_name"],
				EventSource:  args["event_source"],
				Region:       args["region"],
				MaxResults:   argInt(args, "max_results", 20),
			})
		},
	})
	r.Register(toolFunc{
		meta: Meta{
			Name:        "get_console_login_events",
			Description: "Review console sign-in activity for an account",
			Args:        []string{"account_id", "start_time", "region", "max_results"},
		},
		fn: func(ctx context.Context, args map[string]string) (string, error) {
			return ct.ConsoleLogins(ctx, args["account_id"], args["start_time"], args["region"], argInt(args, "max_results", 30))
		},
	})
	r.Register(toolFunc{
		meta: Meta{
			Name:        "get_error_events",
			Description: "List recent failed API calls for an account",
			Args:        []string{"account_id", "start_time", "region", "max_results"},
		},
		fn: func(ctx context.Context, args map[string]string) (string, error) {
			return ct.ErrorEvents(ctx, args["account_id"], args["start_time"], args["region"], argInt(args, "max_results", 30))
		},
	})
	r.Register(toolFunc{
		meta: Meta{
			Name:        "analyze_security_events",
			Description: "Classify recent security-sensitive events for an account",
			Args:        []string{"account_id", "start_time", "region"},
		},
		fn: func(ctx context.Context, args map[string]string) (string, error) {
			return ct.AnalyzeSecurity(ctx, args["account_id"], args["start_time"], args["region"])
		},
	})
	r.Register(toolFunc{
		meta: Meta{
			Name:        "search_account",
			Description: "Find a registered account by company name or 12-digit account id",
			Args:        []string{"search_term"},
		},
		fn: func(ctx context.Context, args map[string]string) (string, error) {
			return ct.SearchAccount(ctx, args["search_term"])
		},
	})
}
