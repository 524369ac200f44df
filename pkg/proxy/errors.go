package proxy

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/elifarley/vandamme-proxy/pkg/providers"
	"github.com/elifarley/vandamme-proxy/pkg/proxy/types"
)

// maxUpstreamBodyEcho caps how much of an upstream error body is forwarded to
// the client verbatim.
const maxUpstreamBodyEcho = 2048

// HandleError converts any error raised while serving a request into the
// client-visible error envelope. Typed provider errors map to their fixed
// kind; everything unrecognized becomes api_error with a generic message so
// internal details never leak.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	var valErr *providers.ValidationError
	if errors.As(err, &valErr) {
		return types.NewInvalidRequestError(valErr.Error())
	}

	var provNotFound *providers.ProviderNotFoundError
	if errors.As(err, &provNotFound) {
		return types.NewNotFoundError(provNotFound.Error())
	}

	var modelNotFound *providers.ModelNotFoundError
	if errors.As(err, &modelNotFound) {
		return types.NewNotFoundError(modelNotFound.Error())
	}

	var notAuth *providers.NotAuthenticatedError
	if errors.As(err, &notAuth) {
		return types.NewErrorResponse(types.ErrorTypeOverloaded, notAuth.Error())
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		return types.NewErrorResponse(types.ErrorTypePermission, authErr.Error())
	}

	var rateLimitErr *providers.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return types.NewErrorResponse(types.ErrorTypeRateLimit, rateLimitErr.Error())
	}

	var timeoutErr *providers.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewErrorResponse(types.ErrorTypeTimeout, timeoutErr.Error())
	}

	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return types.NewUpstreamError(
			fmt.Sprintf("failed to parse provider response: %v", parseErr),
		)
	}

	var streamErr *providers.StreamError
	if errors.As(err, &streamErr) {
		return types.NewUpstreamError(streamErr.Error())
	}

	var providerErr *providers.ProviderError
	if errors.As(err, &providerErr) {
		return handleProviderError(providerErr)
	}

	var configErr *providers.ConfigError
	if errors.As(err, &configErr) {
		return types.NewErrorResponse(types.ErrorTypeOverloaded, configErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewErrorResponse(types.ErrorTypeTimeout, "request timed out")
	}

	return types.NewAPIError("an internal error occurred")
}

// handleProviderError maps an upstream HTTP failure by status code. The
// upstream error body rides along verbatim when it is printable and small.
func handleProviderError(err *providers.ProviderError) *types.ErrorResponse {
	message := err.Error()
	if body := safeBody(err.Body); body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	switch {
	case err.StatusCode == 401 || err.StatusCode == 403:
		return types.NewErrorResponse(types.ErrorTypePermission, message)
	case err.StatusCode == 404:
		return types.NewNotFoundError(message)
	case err.StatusCode == 429:
		return types.NewErrorResponse(types.ErrorTypeRateLimit, message)
	case err.StatusCode >= 500:
		return types.NewUpstreamError(message)
	case err.StatusCode >= 400:
		return types.NewInvalidRequestError(message)
	default:
		return types.NewUpstreamError(message)
	}
}

// safeBody decides whether an upstream body is safe to echo: valid UTF-8 and
// within the size cap. Anything else is dropped.
func safeBody(body string) string {
	if body == "" || len(body) > maxUpstreamBodyEcho || !utf8.ValidString(body) {
		return ""
	}
	return body
}
