package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ssmAPI is the slice of the SSM client the store uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMStore is a ParameterStore backed by AWS Systems Manager Parameter
// Store. Secure-string parameters are fetched decrypted.
type SSMStore struct {
	client ssmAPI
}

// NewSSMStore creates a store using ambient AWS credentials.
func NewSSMStore(ctx context.Context) (*SSMStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &SSMStore{client: ssm.NewFromConfig(cfg)}, nil
}

// NewSSMStoreFromClient wraps an existing client. Tests inject a fake here.
func NewSSMStoreFromClient(client ssmAPI) *SSMStore {
	return &SSMStore{client: client}
}

func (s *SSMStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", ErrNotFound
	}
	return aws.ToString(out.Parameter.Value), nil
}
