// Package awsclient builds AWS SDK v2 service clients from brokered
// cross-account credentials.
package awsclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/broker"
)

// DefaultRegion is used whenever a caller does not name one.
const DefaultRegion = "ap-northeast-2"

// Factory creates rate-limited AWS service clients bound to a brokered
// credential triple.
type Factory struct {
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// New creates a client factory with the default per-service rate limit.
func New(logger zerolog.Logger) *Factory {
	return &Factory{
		rateLimiter: NewRateLimiter(10),
		logger:      logger,
	}
}

// NewWithRate creates a factory with a custom rate limit.
func NewWithRate(logger zerolog.Logger, ratePerSec int) *Factory {
	return &Factory{
		rateLimiter: NewRateLimiter(ratePerSec),
		logger:      logger,
	}
}

func (f *Factory) awsConfig(creds broker.Credentials, region string) aws.Config {
	if region == "" {
		region = DefaultRegion
	}
	return aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		),
		RetryMaxAttempts: 5,
	}
}

// --- Service client factories ---

func (f *Factory) CloudTrailClient(creds broker.Credentials, region string) *cloudtrail.Client {
	return cloudtrail.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) STSClient(creds broker.Credentials, region string) *sts.Client {
	return sts.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) IAMClient(creds broker.Credentials, region string) *iam.Client {
	return iam.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) S3Client(creds broker.Credentials, region string) *s3.Client {
	return s3.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) EC2Client(creds broker.Credentials, region string) *ec2.Client {
	return ec2.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) LambdaClient(creds broker.Credentials, region string) *lambda.Client {
	return lambda.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) KMSClient(creds broker.Credentials, region string) *kms.Client {
	return kms.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) CloudWatchLogsClient(creds broker.Credentials, region string) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) SecretsManagerClient(creds broker.Credentials, region string) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(f.awsConfig(creds, region))
}

func (f *Factory) SSMClient(creds broker.Credentials, region string) *ssm.Client {
	return ssm.NewFromConfig(f.awsConfig(creds, region))
}

// BuildClient creates a service client by name. The returned value must be
// type-asserted by the caller. Unknown service names are an error rather
// than a nil client.
func (f *Factory) BuildClient(serviceName string, creds broker.Credentials, region string) (any, error) {
	switch serviceName {
	case "cloudtrail":
		return f.CloudTrailClient(creds, region), nil
	case "sts":
		return f.STSClient(creds, region), nil
	case "iam":
		return f.IAMClient(creds, region), nil
	case "s3":
		return f.S3Client(creds, region), nil
	case "ec2":
		return f.EC2Client(creds, region), nil
	case "lambda":
		return f.LambdaClient(creds, region), nil
	case "kms":
		return f.KMSClient(creds, region), nil
	case "logs", "cloudwatchlogs":
		return f.CloudWatchLogsClient(creds, region), nil
	case "secretsmanager":
		return f.SecretsManagerClient(creds, region), nil
	case "ssm":
		return f.SSMClient(creds, region), nil
	default:
		return nil, fmt.Errorf("unsupported service %q", serviceName)
	}
}

// GetCallerIdentity performs sts:GetCallerIdentity with the given triple.
// Useful for verifying a brokered credential before handing it out.
func (f *Factory) GetCallerIdentity(ctx context.Context, creds broker.Credentials, region string) (arn, account, userID string, err error) {
	f.rateLimiter.Wait("sts")
	f.logger.Debug().Str("service", "sts").Str("operation", "GetCallerIdentity").Msg("aws api call")

	client := f.STSClient(creds, region)
	result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", "", fmt.Errorf("GetCallerIdentity: %w", err)
	}
	return aws.ToString(result.Arn), aws.ToString(result.Account), aws.ToString(result.UserId), nil
}

// WaitForService blocks until the rate limit allows a call to the service.
func (f *Factory) WaitForService(service string) {
	f.rateLimiter.Wait(service)
}

// --- Rate Limiter ---

// RateLimiter enforces a minimum interval between calls per service name.
type RateLimiter struct {
	mu         sync.Mutex
	ratePerSec int
	lastCall   map[string]time.Time
}

func NewRateLimiter(ratePerSec int) *RateLimiter {
	return &RateLimiter{
		ratePerSec: ratePerSec,
		lastCall:   make(map[string]time.Time),
	}
}

func (rl *RateLimiter) Wait(service string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	minInterval := time.Second / time.Duration(rl.ratePerSec)
	last, ok := rl.lastCall[service]
	if ok {
		elapsed := time.Since(last)
		if elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	rl.lastCall[service] = time.Now()
}
