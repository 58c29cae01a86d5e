package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/settings"
)

// ErrNotFound is returned when no directory row matches the lookup. Rows
// whose role name decrypts to an empty string are excluded by the query, so
// a wrong decryption key also surfaces as ErrNotFound.
var ErrNotFound = errors.New("account not found in directory")

// AssumeRoleType selects the broker strategy for an account.
type AssumeRoleType string

const (
	TypeUser AssumeRoleType = "User"
	TypeRole AssumeRoleType = "Role"
)

// AccountRecord is one row resolved from the directory. Read-only,
// constructed fresh per query, never persisted.
type AccountRecord struct {
	CorpID         string
	CorpName       string
	AccountID      string
	RoleName       string
	AssumeRoleType AssumeRoleType
	ExternalID     string
}

// The role-name column is encrypted at rest; it is decrypted in-database
// with a key derived from the per-environment secret title. Soft-deleted
// corporations and accounts are excluded.
const lookupByAccountIDQuery = `
	SELECT
		c.corp_id
		, c.corp_name
		, a.account_id
		, AES_DECRYPT(UNHEX(cross_account_role_name), SHA2(?, 512)) AS cross_account_role_name
		, a.assume_role_type
		, a.external_id
	FROM
	(
		SELECT
			corp_id
			, corp_name
		FROM
		corporation
		WHERE delete_flag = 0
	) c INNER JOIN corporation_add_info cai ON cai.corp_id = c.corp_id
		INNER JOIN account a ON a.corp_id = c.corp_id
		WHERE
			a.account_id = ?
			AND AES_DECRYPT(UNHEX(cross_account_role_name), SHA2(?, 512)) != ''
			AND a.delete_flag = 0
	LIMIT 1`

const searchByNameQuery = `
	SELECT
		c.corp_id
		, c.corp_name
		, a.account_id
		, AES_DECRYPT(UNHEX(cross_account_role_name), SHA2(?, 512)) AS cross_account_role_name
		, a.assume_role_type
		, a.external_id
	FROM
	(
		SELECT
			corp_id
			, corp_name
		FROM
		corporation
		WHERE delete_flag = 0
		AND corp_name LIKE ?
	) c INNER JOIN corporation_add_info cai ON cai.corp_id = c.corp_id
		INNER JOIN account a ON a.corp_id = c.corp_id
		WHERE
			AES_DECRYPT(UNHEX(cross_account_role_name), SHA2(?, 512)) != ''
			AND a.delete_flag = 0
	LIMIT 1`

// Directory looks up tenant account metadata.
type Directory struct {
	pools    *PoolManager
	resolver *settings.Resolver
	logger   zerolog.Logger
}

// New creates a directory over the given pool registry.
func New(pools *PoolManager, resolver *settings.Resolver, logger zerolog.Logger) *Directory {
	return &Directory{pools: pools, resolver: resolver, logger: logger}
}

// FindByAccountID resolves one account by its exact 12-digit id.
// Returns ErrNotFound when no live row matches; infrastructure failures are
// logged and returned as distinct errors so callers can fold or split them.
func (d *Directory) FindByAccountID(ctx context.Context, accountID, envType string) (*AccountRecord, error) {
	secretTitle, err := d.resolver.SecretTitle(ctx, envType)
	if err != nil {
		return nil, err
	}
	return d.queryOne(ctx, envType, lookupByAccountIDQuery, secretTitle, accountID, secretTitle)
}

// SearchByName resolves the first account whose corporation name contains
// the term. First match only; case sensitivity follows storage collation.
func (d *Directory) SearchByName(ctx context.Context, term, envType string) (*AccountRecord, error) {
	secretTitle, err := d.resolver.SecretTitle(ctx, envType)
	if err != nil {
		return nil, err
	}
	pattern := "%" + term + "%"
	return d.queryOne(ctx, envType, searchByNameQuery, secretTitle, pattern, secretTitle)
}

func (d *Directory) queryOne(ctx context.Context, envType, query string, args ...any) (*AccountRecord, error) {
	pool, err := d.pools.Get(ctx, envType)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Conn(ctx)
	if err != nil {
		d.logger.Error().Err(err).Str("env", envType).Msg("acquiring directory connection")
		return nil, fmt.Errorf("acquiring directory connection: %w", err)
	}
	defer conn.Close()

	var (
		rec        AccountRecord
		roleRaw    []byte
		roleType   string
		externalID sql.NullString
	)
	err = conn.QueryRowContext(ctx, query, args...).Scan(
		&rec.CorpID, &rec.CorpName, &rec.AccountID,
		&roleRaw, &roleType, &externalID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		d.logger.Error().Err(err).Str("env", envType).Msg("directory query failed")
		return nil, fmt.Errorf("directory query: %w", err)
	}

	// The driver hands the decrypted column back as raw bytes; decode
	// verbatim. Role names may legitimately contain any letter.
	rec.RoleName = string(roleRaw)
	rec.AssumeRoleType = AssumeRoleType(roleType)
	if externalID.Valid {
		rec.ExternalID = externalID.String
	}
	return &rec, nil
}
