// Package broker exchanges directory account metadata for short-lived AWS
// credentials. Two strategies exist: a single assumption authenticated by a
// long-lived key pair (User-type trust), and the default two-hop chain
// through a fixed bridge account (Role-type trust). The bridge lets one
// narrowly-scoped identity fan out to any number of tenant accounts; tenants
// only need to trust the bridge, never the bot's own identity.
package broker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/directory"
	"github.com/jwjoung/cloudtrail-bot/internal/settings"
)

const (
	targetSessionName = "cloudtrail_bot_session"
	bridgeSessionName = "bridge_session"

	defaultRegion = "ap-northeast-2"
)

// Credentials is a short-lived triple. It is held in memory for the
// duration of one operation and never persisted or logged verbatim.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// AssumeRoleAPI is the slice of the STS client the broker uses.
type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AssumeInput identifies the target role. ExternalID is optional and only
// attached to the target assumption when non-empty.
type AssumeInput struct {
	AccountID      string
	RoleName       string
	ExternalID     string
	AssumeRoleType directory.AssumeRoleType
}

// Broker executes the role-assumption chain.
type Broker struct {
	resolver  *settings.Resolver
	logger    zerolog.Logger
	partition string
	region    string

	// Seams for tests: client construction and ambient config loading.
	newSTS      func(cfg aws.Config) AssumeRoleAPI
	loadAmbient func(ctx context.Context) (aws.Config, error)
}

// New creates a broker. The region for STS endpoints comes from AWS_REGION,
// defaulting to the directory's home region.
func New(resolver *settings.Resolver, logger zerolog.Logger) *Broker {
	region := resolver.Env("AWS_REGION")
	if region == "" {
		region = defaultRegion
	}
	return &Broker{
		resolver:  resolver,
		logger:    logger,
		partition: "aws",
		region:    region,
		newSTS: func(cfg aws.Config) AssumeRoleAPI {
			return sts.NewFromConfig(cfg)
		},
		loadAmbient: func(ctx context.Context) (aws.Config, error) {
			return awsconfig.LoadDefaultConfig(ctx)
		},
	}
}

// WithSTSConstructor overrides how STS clients are built from a config.
func (b *Broker) WithSTSConstructor(fn func(cfg aws.Config) AssumeRoleAPI) *Broker {
	b.newSTS = fn
	return b
}

// WithAmbientLoader overrides how the ambient host configuration is loaded.
func (b *Broker) WithAmbientLoader(fn func(ctx context.Context) (aws.Config, error)) *Broker {
	b.loadAmbient = fn
	return b
}

// AssumeTarget obtains a temporary credential triple for the target
// account. Any failed step aborts the whole operation; there is no partial
// credential and no retry here.
func (b *Broker) AssumeTarget(ctx context.Context, in AssumeInput) (Credentials, error) {
	roleARN := fmt.Sprintf("arn:%s:iam::%s:role/%s", b.partition, in.AccountID, in.RoleName)

	if in.AssumeRoleType == directory.TypeUser {
		return b.assumeWithUserKey(ctx, roleARN)
	}
	return b.assumeViaBridge(ctx, roleARN, in.ExternalID)
}

// assumeWithUserKey performs the single-hop User-type assumption using the
// long-lived cross-account key pair. No external id is sent on this path.
func (b *Broker) assumeWithUserKey(ctx context.Context, roleARN string) (Credentials, error) {
	accessKey, err := b.resolver.LoadParameter(ctx, settings.ParamCrossAccountAccessKey)
	if err != nil {
		return Credentials{}, err
	}
	secretKey, err := b.resolver.LoadParameter(ctx, settings.ParamCrossAccountSecretKey)
	if err != nil {
		return Credentials{}, err
	}

	client := b.newSTS(b.staticConfig(accessKey, secretKey, ""))
	out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(targetSessionName),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("assuming target role: %w", err)
	}

	b.logger.Info().Str("role_arn", roleARN).Msg("assumed target role with user key")
	return fromSTSCredentials(out), nil
}

// assumeViaBridge performs the two-hop chain. The bridge assumption must
// fully complete before the target assumption starts; the second call is
// authenticated by the first call's returned triple.
func (b *Broker) assumeViaBridge(ctx context.Context, roleARN, externalID string) (Credentials, error) {
	bridgeAccountID, err := b.resolver.LoadParameter(ctx, settings.ParamBridgeAccountID)
	if err != nil {
		return Credentials{}, err
	}
	bridgeExternalID, err := b.resolver.LoadParameter(ctx, settings.ParamBridgeExternalID)
	if err != nil {
		return Credentials{}, err
	}
	bridgeRoleName, err := b.resolver.LoadParameter(ctx, settings.ParamBridgeRoleName)
	if err != nil {
		return Credentials{}, err
	}

	bridgeARN := fmt.Sprintf("arn:%s:iam::%s:role/%s", b.partition, bridgeAccountID, bridgeRoleName)

	ambient, err := b.loadAmbient(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("loading ambient aws config: %w", err)
	}

	hop1 := b.newSTS(ambient)
	bridgeOut, err := hop1.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(bridgeARN),
		RoleSessionName: aws.String(bridgeSessionName),
		ExternalId:      aws.String(bridgeExternalID),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("assuming bridge role: %w", err)
	}

	bridgeCreds := fromSTSCredentials(bridgeOut)
	hop2 := b.newSTS(b.staticConfig(
		bridgeCreds.AccessKeyID,
		bridgeCreds.SecretAccessKey,
		bridgeCreds.SessionToken,
	))

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(targetSessionName),
	}
	if externalID != "" {
		input.ExternalId = aws.String(externalID)
	}

	out, err := hop2.AssumeRole(ctx, input)
	if err != nil {
		return Credentials{}, fmt.Errorf("assuming target role via bridge: %w", err)
	}

	b.logger.Info().Str("role_arn", roleARN).Msg("assumed target role via bridge")
	return fromSTSCredentials(out), nil
}

func (b *Broker) staticConfig(accessKey, secretKey, sessionToken string) aws.Config {
	return aws.Config{
		Region:      b.region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken),
	}
}

func fromSTSCredentials(out *sts.AssumeRoleOutput) Credentials {
	return Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
	}
}
