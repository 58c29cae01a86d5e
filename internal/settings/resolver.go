// Package settings resolves named configuration values for the bot.
// A value is looked up in priority order: explicit environment override,
// the bot's own parameter namespace, then the legacy shared-infrastructure
// namespace. The order is part of the deployment contract; deployments
// still running on the legacy namespace depend on it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no configuration source holds the value.
var ErrNotFound = errors.New("configuration value not found")

// Parameter names for the cross-account assumption chain.
const (
	ParamCrossAccountAccessKey = "/access-key/crossaccount"
	ParamCrossAccountSecretKey = "/secret-key/crossaccount"

	ParamBridgeAccountID  = "/crossaccountRoleBridge/bridgeAccountId"
	ParamBridgeExternalID = "/crossaccountRoleBridge/bridgeExternalId"
	ParamBridgeRoleName   = "/crossaccountRoleBridge/bridgeRoleName"
)

// ParameterStore fetches a single named parameter, decrypted.
// Implementations return ErrNotFound (possibly wrapped) when the
// parameter does not exist.
type ParameterStore interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Resolver resolves logical settings against the environment and a
// parameter store. It holds no cache; callers cache results if needed.
type Resolver struct {
	store  ParameterStore
	getenv func(string) (string, bool)
	logger zerolog.Logger
}

// NewResolver creates a resolver backed by the given parameter store.
func NewResolver(store ParameterStore, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		getenv: os.LookupEnv,
		logger: logger,
	}
}

// WithEnvLookup overrides the environment source. Tests substitute a map.
func (r *Resolver) WithEnvLookup(fn func(string) (string, bool)) *Resolver {
	r.getenv = fn
	return r
}

// Env returns an environment value, or the empty string when unset.
func (r *Resolver) Env(key string) string {
	v, _ := r.getenv(key)
	return v
}

// EnvType returns the deployment environment key, defaulting to dev.
func (r *Resolver) EnvType() string {
	if v, ok := r.getenv("ENV_TYPE"); ok && v != "" {
		return v
	}
	return "dev"
}

// LoadParameter fetches a parameter strictly: absence is an error.
// Used for the final fallback tier, where a miss is a real misconfiguration.
func (r *Resolver) LoadParameter(ctx context.Context, name string) (string, error) {
	v, err := r.store.GetParameter(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("parameter %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("fetching parameter %s: %w", name, err)
	}
	return v, nil
}

// LookupParameter fetches a parameter tolerantly: absence yields ok=false
// with no error, letting callers chain fallback tiers.
func (r *Resolver) LookupParameter(ctx context.Context, name string) (string, bool, error) {
	v, err := r.store.GetParameter(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetching parameter %s: %w", name, err)
	}
	return v, true, nil
}

// EnvOrParameter checks an environment override first, then the parameter
// store strictly.
func (r *Resolver) EnvOrParameter(ctx context.Context, envKey, paramName string) (string, error) {
	if v, ok := r.getenv(envKey); ok && v != "" {
		return v, nil
	}
	return r.LoadParameter(ctx, paramName)
}

// SecretTitle resolves the label keying the directory's in-database
// decryption. Priority: DB_SECRET_TITLE env, the bot's namespace, then the
// legacy namespace (strict).
func (r *Resolver) SecretTitle(ctx context.Context, envType string) (string, error) {
	if v, ok := r.getenv("DB_SECRET_TITLE"); ok && v != "" {
		return v, nil
	}

	v, ok, err := r.LookupParameter(ctx, fmt.Sprintf("/cloudtrail-bot/%s/db/secret-title", envType))
	if err != nil {
		return "", err
	}
	if ok {
		return v, nil
	}

	return r.LoadParameter(ctx, fmt.Sprintf("/fitcloud/%s/db/secret_title", envType))
}
