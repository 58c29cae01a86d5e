// Package credential is the facade the bot's tools call to turn an AWS
// account id (or a customer name) into a short-lived credential triple.
// It stitches together the account directory, the credential broker and
// the issuance audit log.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/audit"
	"github.com/jwjoung/cloudtrail-bot/internal/broker"
	"github.com/jwjoung/cloudtrail-bot/internal/directory"
	"github.com/jwjoung/cloudtrail-bot/internal/logging"
	"github.com/jwjoung/cloudtrail-bot/internal/settings"
)

// ErrAccountNotFound is returned when no directory row matches the request.
// Callers phrase this to the user as "account not registered"; directory
// backend failures surface the same way but are logged before folding.
var ErrAccountNotFound = errors.New("account not found")

// Issued pairs the brokered triple with the directory record it was
// issued for, so callers can label output with the corp name.
type Issued struct {
	Account     directory.AccountRecord
	Credentials broker.Credentials
}

// Service resolves accounts and brokers credentials for them.
type Service struct {
	resolver  *settings.Resolver
	directory *directory.Directory
	broker    *broker.Broker
	logger    zerolog.Logger
	issuance  *audit.Logger
}

func New(resolver *settings.Resolver, dir *directory.Directory, brk *broker.Broker, logger zerolog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		directory: dir,
		broker:    brk,
		logger:    logger.With().Str("component", "credential").Logger(),
	}
}

// WithIssuanceLog enables the tamper-evident issuance log. The service
// works without one; logging failures never block issuance.
func (s *Service) WithIssuanceLog(al *audit.Logger) *Service {
	s.issuance = al
	return s
}

// ResolveByAccountID looks up the account and brokers a credential for it.
func (s *Service) ResolveByAccountID(ctx context.Context, accountID string) (*Issued, error) {
	envType := s.resolver.EnvType()
	rec, err := s.directory.FindByAccountID(ctx, accountID, envType)
	if err != nil {
		return nil, s.foldLookupError(accountID, err)
	}
	return s.issue(ctx, rec)
}

// ResolveByName searches the directory by customer name and brokers a
// credential for the first match.
func (s *Service) ResolveByName(ctx context.Context, term string) (*Issued, error) {
	envType := s.resolver.EnvType()
	rec, err := s.directory.SearchByName(ctx, term, envType)
	if err != nil {
		return nil, s.foldLookupError(term, err)
	}
	return s.issue(ctx, rec)
}

// SearchAccount returns the directory record for a name without brokering
// anything. Used by tools that only need the account id.
func (s *Service) SearchAccount(ctx context.Context, term string) (*directory.AccountRecord, error) {
	rec, err := s.directory.SearchByName(ctx, term, s.resolver.EnvType())
	if err != nil {
		return nil, s.foldLookupError(term, err)
	}
	return rec, nil
}

// LookupAccount returns the directory record for an exact account id
// without brokering anything.
func (s *Service) LookupAccount(ctx context.Context, accountID string) (*directory.AccountRecord, error) {
	rec, err := s.directory.FindByAccountID(ctx, accountID, s.resolver.EnvType())
	if err != nil {
		return nil, s.foldLookupError(accountID, err)
	}
	return rec, nil
}

func (s *Service) issue(ctx context.Context, rec *directory.AccountRecord) (*Issued, error) {
	creds, err := s.broker.AssumeTarget(ctx, broker.AssumeInput{
		AccountID:      rec.AccountID,
		RoleName:       rec.RoleName,
		ExternalID:     rec.ExternalID,
		AssumeRoleType: rec.AssumeRoleType,
	})
	if err != nil {
		return nil, fmt.Errorf("brokering credential for account %s: %w", rec.AccountID, err)
	}

	s.logger.Info().
		Str("account_id", rec.AccountID).
		Str("corp", rec.CorpName).
		Str("access_key", logging.MaskAccessKeyID(creds.AccessKeyID)).
		Msg("credential issued")

	s.record(audit.EventCredentialIssued, rec.AccountID, map[string]string{
		"corp":       rec.CorpName,
		"role":       rec.RoleName,
		"trust":      string(rec.AssumeRoleType),
		"access_key": logging.MaskAccessKeyID(creds.AccessKeyID),
	})

	return &Issued{Account: *rec, Credentials: creds}, nil
}

// foldLookupError maps every directory failure to ErrAccountNotFound at
// this boundary. A real backend failure is logged first so operators can
// tell the two apart even though the caller cannot.
func (s *Service) foldLookupError(subject string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		s.record(audit.EventLookupMiss, subject, nil)
		return fmt.Errorf("%w: %s", ErrAccountNotFound, subject)
	}
	s.logger.Error().Err(err).Str("subject", subject).Msg("account lookup failed")
	s.record(audit.EventLookupMiss, subject, map[string]string{"backend_error": "true"})
	return fmt.Errorf("%w: %s", ErrAccountNotFound, subject)
}

func (s *Service) record(event audit.EventType, accountID string, detail map[string]string) {
	if s.issuance == nil {
		return
	}
	if err := s.issuance.Log(event, "", accountID, detail); err != nil {
		s.logger.Warn().Err(err).Msg("issuance log write failed")
	}
}
