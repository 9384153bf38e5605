package inference

import (
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
)

// Upstream failure conditions, distinguished so callers can surface
// stable machine codes. Checked with errors.Is.
var (
	// ErrRateLimited means the upstream signaled throttling (HTTP 429).
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrQuotaExhausted means the upstream signaled resource exhaustion
	// (billing/credit limits), distinct from transient throttling.
	ErrQuotaExhausted = errors.New("upstream quota exhausted")
	// ErrUpstreamUnavailable covers any other non-success upstream status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// classifyError maps SDK errors onto the pipeline's upstream taxonomy,
// keeping the original error in the chain for logging.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return eris.Wrap(errors.Join(ErrRateLimited, err), "inference")
		case apierr.StatusCode == 402 || containsQuotaSignal(err.Error()):
			return eris.Wrap(errors.Join(ErrQuotaExhausted, err), "inference")
		default:
			return eris.Wrap(errors.Join(ErrUpstreamUnavailable, err), "inference")
		}
	}

	if containsQuotaSignal(err.Error()) {
		return eris.Wrap(errors.Join(ErrQuotaExhausted, err), "inference")
	}
	return eris.Wrap(errors.Join(ErrUpstreamUnavailable, err), "inference")
}

func containsQuotaSignal(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "credit balance") ||
		strings.Contains(lower, "quota")
}
