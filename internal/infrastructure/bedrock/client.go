package bedrock

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// InvokeAPI is the slice of the Bedrock runtime client used by the
// embedder and generator. Satisfied by *bedrockruntime.Client.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type ClientConfig struct {
	Region  string
	Timeout time.Duration
}

// NewRuntimeClient builds the Bedrock runtime client. It prefers static
// credentials from the environment; when those are incomplete it falls
// back to the default AWS credential chain. If neither yields a usable
// configuration, initialization fails with a configuration error; there
// is no silent no-op backend.
//
// SDK-internal retries are disabled: the retry policy lives in the
// resilience executor so attempt counts and backoff are configured in
// one place.
func NewRuntimeClient(ctx context.Context, cfg ClientConfig) (*bedrockruntime.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	awsCfg, err := loadStaticConfig(ctx, cfg, httpClient)
	if err != nil {
		slog.Warn("static credentials unavailable, trying default chain", "error", err)
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithHTTPClient(httpClient),
			awsconfig.WithRetryMaxAttempts(1),
		)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "bootstrap bedrock client", err)
		}
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func loadStaticConfig(ctx context.Context, cfg ClientConfig, httpClient *http.Client) (aws.Config, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	sessionToken := os.Getenv("AWS_SESSION_TOKEN")
	if accessKey == "" || secretKey == "" {
		return aws.Config{}, domain.WrapError(domain.ErrConfiguration, "load static credentials", errMissingCredentials)
	}

	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryMaxAttempts(1),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken),
		),
	)
}
