package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Kerastion/trioflow/types"
)

// MapHTTPError maps an upstream HTTP status to a structured error with the
// right retryability flag. Shared by every transport implementation.
func MapHTTPError(status int, msg, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).
			WithHTTPStatus(status).WithProvider(provider)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).
			WithHTTPStatus(status).WithProvider(provider)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") ||
			strings.Contains(lower, "credit") ||
			strings.Contains(lower, "limit") {
			return types.NewError(types.ErrQuotaExceeded, msg).
				WithHTTPStatus(status).WithProvider(provider)
		}
		return types.NewError(types.ErrInvalidRequest, msg).
			WithHTTPStatus(status).WithProvider(provider)
	case http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	case 529: // model overloaded, used by some providers
		return types.NewError(types.ErrModelOverloaded, msg).
			WithHTTPStatus(status).WithRetryable(true).WithProvider(provider)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithProvider(provider)
	}
}

// ReadErrorMessage extracts a human-readable message from an upstream error
// body, falling back to the raw text when it is not the usual JSON shape.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}

	return string(data)
}
