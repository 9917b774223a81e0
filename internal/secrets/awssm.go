package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"cliniq/internal/util"
)

type SecretsManagerProvider struct {
	client *secretsmanager.Client
}

func NewSecretsManagerProvider(region string) (*SecretsManagerProvider, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SecretsManagerProvider{
		client: secretsmanager.NewFromConfig(cfg),
	}, nil
}

func (p *SecretsManagerProvider) Get(ctx context.Context, name string) (util.Optional[Credentials], error) {
	resp, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return util.None[Credentials](), nil
		}
		return util.None[Credentials](), fmt.Errorf("failed to get secret %q: %w", name, err)
	}

	if resp.SecretString == nil || *resp.SecretString == "" {
		return util.None[Credentials](), nil
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*resp.SecretString), &creds); err != nil {
		return util.None[Credentials](), fmt.Errorf("failed to parse secret %q: %w", name, err)
	}
	if creds.User == "" && creds.Password == "" {
		return util.None[Credentials](), nil
	}

	return util.Some(creds), nil
}
