package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"
)

// CredentialFunc supplies the auth headers for one upstream call. The
// factory binds it to the provider's key rotator or token manager, so the
// injected credential is current on every call rather than frozen at client
// construction.
type CredentialFunc func(ctx context.Context) (map[string]string, error)

// NoCredentials is the CredentialFunc for providers with auth kind none.
func NoCredentials(ctx context.Context) (map[string]string, error) {
	return nil, nil
}

// HTTPClient is the base for HTTP-based upstream adapters. It provides
// connection pooling, credential injection, retry with exponential backoff,
// and timeout handling. Format-specific adapters embed it.
type HTTPClient struct {
	desc  *Descriptor
	creds CredentialFunc

	// unary enforces the descriptor's overall request timeout
	unary *http.Client

	// stream shares the transport but has no overall timeout; stream-read
	// timeouts are enforced per frame by the stream reader
	stream *http.Client
}

// NewHTTPClient creates the base client for desc with pooled connections.
func NewHTTPClient(desc *Descriptor, creds CredentialFunc) *HTTPClient {
	if creds == nil {
		creds = NoCredentials
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: desc.ConnectTimeout,
		}).DialContext,
		MaxIdleConns:        desc.MaxIdleConns,
		MaxIdleConnsPerHost: desc.MaxIdleConnsPerHost,
		IdleConnTimeout:     desc.IdleConnTimeout,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		desc:  desc,
		creds: creds,
		unary: &http.Client{
			Transport: transport,
			Timeout:   desc.RequestTimeout,
		},
		stream: &http.Client{
			Transport: transport,
		},
	}
}

// Descriptor returns the provider descriptor this client was built from.
func (c *HTTPClient) Descriptor() *Descriptor {
	return c.desc
}

// Name returns the provider's configured name.
func (c *HTTPClient) Name() string {
	return c.desc.Name
}

// Format returns the provider's wire format.
func (c *HTTPClient) Format() string {
	return c.desc.APIFormat
}

// buildHeaders merges descriptor extra headers, per-call credentials, and
// call-specific headers, in that order of increasing precedence.
func (c *HTTPClient) buildHeaders(ctx context.Context, headers map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(c.desc.ExtraHeaders)+len(headers)+2)
	for k, v := range c.desc.ExtraHeaders {
		merged[k] = v
	}

	credHeaders, err := c.creds(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range credHeaders {
		merged[k] = v
	}

	for k, v := range headers {
		merged[k] = v
	}
	return merged, nil
}

// DoRequest performs an HTTP request with bounded retries. Network errors
// and 5xx statuses are retried with exponential backoff up to the
// descriptor's budget; 4xx statuses never retry. Retries only happen before
// any response byte has been delivered to the caller.
//
// When stream is true the response uses the untimed client and the caller
// owns the body lifetime.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string, stream bool) (*http.Response, error) {
	merged, err := c.buildHeaders(ctx, headers)
	if err != nil {
		return nil, err
	}

	httpClient := c.unary
	if stream {
		httpClient = c.stream
	}

	var lastErr error
	for attempt := 0; attempt <= c.desc.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying request",
				"provider", c.desc.Name,
				"attempt", attempt,
				"max_retries", c.desc.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, c.ctxError(ctx)
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range merged {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		slog.Debug("sending request to provider",
			"provider", c.desc.Name,
			"method", method,
			"url", url,
			"stream", stream,
		)

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.ctxError(ctx)
			}

			// Pre-response network error, retryable.
			lastErr = err
			slog.Warn("request failed, will retry",
				"provider", c.desc.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{
				Provider: c.desc.Name,
				Message:  string(errorBody),
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, &RateLimitError{
				Provider:   c.desc.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errorBody),
			}

		case resp.StatusCode >= 500:
			lastErr = &ProviderError{
				Provider:   c.desc.Name,
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				Body:       string(errorBody),
			}
			slog.Warn("request returned server error, will retry",
				"provider", c.desc.Name,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)

		default:
			return nil, &ProviderError{
				Provider:   c.desc.Name,
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
				Body:       string(errorBody),
			}
		}
	}

	return nil, lastErr
}

// DoJSONRequest performs a unary JSON request and decodes the response.
func (c *HTTPClient) DoJSONRequest(ctx context.Context, method, url string, reqBody any, respBody any, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		if raw, ok := reqBody.(json.RawMessage); ok {
			bodyBytes = raw
		} else {
			bodyBytes, err = json.Marshal(reqBody)
			if err != nil {
				return fmt.Errorf("failed to marshal request: %w", err)
			}
		}
	}

	resp, err := c.DoRequest(ctx, method, url, bodyBytes, headers, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return c.ctxError(ctx)
		}
		return &ParseError{
			Provider: c.desc.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Provider:    c.desc.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// ctxError distinguishes caller cancellation from deadline expiry.
// Cancellation propagates as-is so the orchestrator can treat it as a
// stream termination rather than an error envelope.
func (c *HTTPClient) ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{
			Provider: c.desc.Name,
			Timeout:  c.desc.RequestTimeout,
		}
	}
	return ctx.Err()
}

// Close releases idle connections. The client must not be used afterwards.
func (c *HTTPClient) Close() error {
	c.unary.CloseIdleConnections()
	c.stream.CloseIdleConnections()
	slog.Debug("provider client closed", "provider", c.desc.Name)
	return nil
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
