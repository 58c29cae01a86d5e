package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/tools"
)

type greetTool struct{}

func (greetTool) Meta() tools.Meta {
	return tools.Meta{Name: "greet", Description: "Greets a user", Args: []string{"name"}}
}

func (greetTool) Run(ctx context.Context, args map[string]string) (string, error) {
	return "hello " + args["name"], nil
}

func TestRegistryDispatcherRoundTrip(t *testing.T) {
	registry := tools.NewRegistry(zerolog.Nop())
	registry.Register(greetTool{})
	d := RegistryDispatcher{Registry: registry}

	out, err := d.Dispatch(context.Background(), "greet", map[string]string{"name": "alice"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if out != "hello alice" {
		t.Errorf("unexpected tool output %q", out)
	}

	metas := d.Tools()
	if len(metas) != 1 || metas[0].Name != "greet" {
		t.Errorf("unexpected tool listing %+v", metas)
	}
}

func TestRegistryDispatcherUnknownTool(t *testing.T) {
	d := RegistryDispatcher{Registry: tools.NewRegistry(zerolog.Nop())}

	_, err := d.Dispatch(context.Background(), "missing", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("expected unknown tool error, got %v", err)
	}
}
