package directory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/audit"
	"github.com/jwjoung/cloudtrail-bot/internal/settings"
)

type fakeParams struct {
	params map[string]string
	calls  []string
}

func (f *fakeParams) GetParameter(ctx context.Context, name string) (string, error) {
	f.calls = append(f.calls, name)
	v, ok := f.params[name]
	if !ok {
		return "", settings.ErrNotFound
	}
	return v, nil
}

func testResolver(params map[string]string, env map[string]string) *settings.Resolver {
	r := settings.NewResolver(&fakeParams{params: params}, zerolog.Nop())
	return r.WithEnvLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

func testPoolManager(db *fakeDB, params, env map[string]string) *PoolManager {
	m := NewPoolManager(testResolver(params, env), zerolog.Nop())
	m.openDB = openFake(db)
	return m
}

func TestPoolIdempotentPerKey(t *testing.T) {
	db := &fakeDB{}
	env := map[string]string{"DB_HOST": "db.internal", "DB_USER": "bot", "DB_PASSWORD": "pw", "DB_NAME": "edp"}
	m := testPoolManager(db, nil, env)

	first, err := m.Get(context.Background(), "dev")
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	second, err := m.Get(context.Background(), "dev")
	if err != nil {
		t.Fatalf("get pool again: %v", err)
	}
	if first != second {
		t.Error("same environment key must return the identical pool")
	}

	other, err := m.Get(context.Background(), "prd")
	if err != nil {
		t.Fatalf("get prd pool: %v", err)
	}
	if other == first {
		t.Error("different environment keys must get distinct pools")
	}
}

func TestPoolPrewarmsTwoConnections(t *testing.T) {
	db := &fakeDB{}
	env := map[string]string{"DB_HOST": "db.internal", "DB_USER": "bot", "DB_PASSWORD": "pw", "DB_NAME": "edp"}
	m := testPoolManager(db, nil, env)

	if _, err := m.Get(context.Background(), "dev"); err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if got := db.connectCount(); got != 2 {
		t.Errorf("expected 2 warm connections on creation, got %d", got)
	}
}

func TestPoolConfigEnvOverridesWin(t *testing.T) {
	db := &fakeDB{}
	params := map[string]string{"/fitcloud/prd/db/ts/host": "managed-host"}
	env := map[string]string{"DB_HOST": "env-host", "DB_USER": "u", "DB_PASSWORD": "p", "DB_NAME": "n", "DB_PORT": "3307"}
	m := testPoolManager(db, params, env)

	cfg, err := m.resolveConfig(context.Background(), "dev")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "env-host" || cfg.Port != 3307 {
		t.Errorf("env overrides must win, got host=%q port=%d", cfg.Host, cfg.Port)
	}
}

func TestPoolConfigManagedTier(t *testing.T) {
	db := &fakeDB{}
	params := map[string]string{
		"/fitcloud/prd/db/ts/host": "managed-host",
		"/fitcloud/prd/db/ts/id":   "managed-user",
		"/fitcloud/prd/db/ts/pw":   "managed-pw",
		"/fitcloud/dev/db/host":    "legacy-host",
	}
	m := testPoolManager(db, params, map[string]string{})

	cfg, err := m.resolveConfig(context.Background(), "dev")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "managed-host" {
		t.Errorf("managed tier must win over legacy, got %q", cfg.Host)
	}
	if cfg.Name != "edp" || cfg.Port != 3306 {
		t.Errorf("managed tier uses fixed database/port, got name=%q port=%d", cfg.Name, cfg.Port)
	}
}

func TestPoolConfigLegacyTier(t *testing.T) {
	db := &fakeDB{}
	params := map[string]string{
		"/fitcloud/dev/db/host":          "legacy-host",
		"/fitcloud/dev/db/user/admin/id": "legacy-user",
		"/fitcloud/dev/db/user/admin/pw": "legacy-pw",
		"/fitcloud/dev/db/db":            "legacy-db",
	}
	m := testPoolManager(db, params, map[string]string{})

	cfg, err := m.resolveConfig(context.Background(), "dev")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "legacy-host" || cfg.User != "legacy-user" || cfg.Name != "legacy-db" {
		t.Errorf("unexpected legacy config: %+v", cfg)
	}
}

func TestPoolConfigLegacyTierHonorsFieldOverrides(t *testing.T) {
	db := &fakeDB{}
	params := map[string]string{
		"/fitcloud/dev/db/host":          "legacy-host",
		"/fitcloud/dev/db/user/admin/id": "legacy-user",
		"/fitcloud/dev/db/user/admin/pw": "legacy-pw",
		"/fitcloud/dev/db/db":            "legacy-db",
	}
	// DB_HOST is unset, so the legacy tier applies; the single DB_USER
	// override must still win over the parameter value.
	m := testPoolManager(db, params, map[string]string{"DB_USER": "pinned-user"})

	cfg, err := m.resolveConfig(context.Background(), "dev")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.User != "pinned-user" {
		t.Errorf("DB_USER override must win in the legacy tier, got %q", cfg.User)
	}
	if cfg.Host != "legacy-host" || cfg.Password != "legacy-pw" {
		t.Errorf("non-overridden fields must come from parameters: %+v", cfg)
	}
}

func TestPoolConfigFallbackIsRecorded(t *testing.T) {
	issuanceDB, err := audit.Open(filepath.Join(t.TempDir(), "issuance.db"))
	if err != nil {
		t.Fatalf("open issuance db: %v", err)
	}
	t.Cleanup(func() { issuanceDB.Close() })
	al, err := audit.NewLogger(issuanceDB)
	if err != nil {
		t.Fatalf("issuance logger: %v", err)
	}

	params := map[string]string{
		"/fitcloud/dev/db/host":          "legacy-host",
		"/fitcloud/dev/db/user/admin/id": "legacy-user",
		"/fitcloud/dev/db/user/admin/pw": "legacy-pw",
		"/fitcloud/dev/db/db":            "legacy-db",
	}
	m := testPoolManager(&fakeDB{}, params, map[string]string{}).WithIssuanceLog(al)

	if _, err := m.resolveConfig(context.Background(), "dev"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var eventType, detail string
	err = issuanceDB.QueryRow(
		"SELECT event_type, detail FROM issuance_log WHERE instance_id = ?", al.InstanceID(),
	).Scan(&eventType, &detail)
	if err != nil {
		t.Fatalf("reading issuance record: %v", err)
	}
	if eventType != string(audit.EventConfigFallback) {
		t.Errorf("expected config_fallback record, got %q", eventType)
	}
	if !strings.Contains(detail, `"tier":"legacy"`) {
		t.Errorf("detail must name the tier, got %s", detail)
	}
}

func TestPoolConfigNoTierIsFatal(t *testing.T) {
	m := testPoolManager(&fakeDB{}, map[string]string{}, map[string]string{})

	_, err := m.resolveConfig(context.Background(), "dev")
	if !errors.Is(err, settings.ErrNotFound) {
		t.Errorf("expected ErrNotFound when no tier yields a host, got %v", err)
	}
}
