package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type echoTool struct {
	name string
	err  error
}

func (e echoTool) Meta() Meta { return Meta{Name: e.name, Description: "echoes its input"} }

func (e echoTool) Run(ctx context.Context, args map[string]string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return args["msg"], nil
}

func TestRegistryRegisterAndInvoke(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(echoTool{name: "echo"})

	out, err := r.Invoke(context.Background(), "echo", map[string]string{"msg": "hello"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "hello" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	if _, err := r.Invoke(context.Background(), "nope", nil); err == nil {
		t.Error("unknown tool must be an error")
	}
}

func TestRegistryToolErrorPropagates(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	boom := errors.New("boom")
	r.Register(echoTool{name: "broken", err: boom})

	if _, err := r.Invoke(context.Background(), "broken", nil); !errors.Is(err, boom) {
		t.Errorf("expected tool error, got %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Register(echoTool{name: "zeta"})
	r.Register(echoTool{name: "alpha"})
	r.Register(echoTool{name: "mid"})

	metas := r.List()
	if len(metas) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(metas))
	}
	if metas[0].Name != "alpha" || metas[2].Name != "zeta" {
		t.Errorf("list must be sorted by name: %v", metas)
	}
}

func TestRegisterCloudTrailTools(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	ct, _ := newTrailFixture(&fakeTrail{})
	RegisterCloudTrailTools(r, ct)

	for _, name := range []string{
		"lookup_cloudtrail_events",
		"get_console_login_events",
		"get_error_events",
		"analyze_security_events",
		"search_account",
	} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}
