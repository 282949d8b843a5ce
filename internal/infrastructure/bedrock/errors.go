package bedrock

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/resilience"
)

var errMissingCredentials = errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required")

func classifyBedrockError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if isRetryableAPICode(apiErr.ErrorCode()) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func isRetryableAPICode(code string) bool {
	switch code {
	case "ThrottlingException",
		"TooManyRequestsException",
		"ServiceUnavailableException",
		"InternalServerException",
		"ModelTimeoutException",
		"ModelNotReadyException":
		return true
	default:
		return false
	}
}

// isConnectivity reports whether an error is a transport-level failure
// (network, throttling, timeout) as opposed to a protocol or
// configuration problem. Connectivity failures are the only ones the
// embedder converts to a degraded fallback.
func isConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if resilience.IsCircuitOpen(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return isRetryableAPICode(apiErr.ErrorCode())
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func wrapConnectivity(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrConnectivity) {
		return err
	}
	if isConnectivity(err) {
		return domain.WrapError(domain.ErrConnectivity, operation, err)
	}
	return err
}
