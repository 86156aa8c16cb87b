// Package secret reads the webhook signing secret from AWS Secrets Manager.
package secret

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/shubomifashakin/Temp-AWS-Infra/internal/domain"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ConfigError means the secret exists in a shape no worker can use. It is
// not retryable.
type ConfigError struct {
	SecretID string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("secret %s: %s", e.SecretID, e.Reason)
}

// Provider fetches the signing secret on every call so rotations are picked
// up without a redeploy.
type Provider struct {
	client   SecretsAPI
	secretID string
}

// NewProvider creates a provider for secretID (name or ARN).
func NewProvider(client SecretsAPI, secretID string) *Provider {
	return &Provider{client: client, secretID: secretID}
}

// Signature returns the current signing secret.
func (p *Provider) Signature(ctx context.Context) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", p.secretID, err)
	}

	raw := aws.ToString(out.SecretString)
	if raw == "" {
		return "", &ConfigError{SecretID: p.secretID, Reason: "secret payload is empty"}
	}

	var s domain.SigningSecret
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", &ConfigError{SecretID: p.secretID, Reason: "secret payload is not valid JSON"}
	}
	if s.Signature == "" {
		return "", &ConfigError{SecretID: p.secretID, Reason: "secret has no signature"}
	}
	return s.Signature, nil
}
