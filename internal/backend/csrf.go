package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	applog "importdesk/internal/log"
)

// CSRFHeader carries the anti-forgery token on mutating requests.
const CSRFHeader = "X-CSRF-Token"

// CSRFTransport adds an anti-forgery token to every non-GET request. When the
// server answers 403 it fetches a new token and retries the request exactly once.
// A second 403 is returned to the caller unchanged.
//
// The server accepts each token once, so every request fetches its own and no
// token is shared between requests.
type CSRFTransport struct {
	Base     http.RoundTripper
	TokenURL string
	Logger   *applog.Logger
}

// NewCSRFTransport wraps base, fetching tokens from tokenURL.
func NewCSRFTransport(base http.RoundTripper, tokenURL string, logger *applog.Logger) *CSRFTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &CSRFTransport{
		Base:     base,
		TokenURL: tokenURL,
		Logger:   logger.WithComponent(applog.ComponentCSRF),
	}
}

func (t *CSRFTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !needsToken(req.Method) {
		return t.Base.RoundTrip(req)
	}

	token, err := t.fetchToken(req.Context())
	if err != nil {
		// Send without a token and let the 403 path try again.
		t.Logger.WarnContext(req.Context(), "csrf token unavailable", applog.FieldError, err)
	}

	resp, err := t.Base.RoundTrip(withToken(req, token))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	fresh, err := t.fetchToken(req.Context())
	if err != nil {
		t.Logger.WarnContext(req.Context(), "csrf token refresh failed",
			applog.FieldOperation, applog.OpRefreshToken, applog.FieldError, err)
		return resp, nil
	}

	retry := withToken(req, fresh)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	drain(resp)
	t.Logger.DebugContext(req.Context(), "retrying after 403",
		applog.FieldMethod, req.Method, applog.FieldPath, req.URL.Path, applog.FieldAttempt, 2)
	return t.Base.RoundTrip(retry)
}

// fetchToken asks the server for a new token and returns it to the caller only.
func (t *CSRFTransport) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.TokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp, "csrf token request failed")
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode csrf token: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("decode csrf token: empty token")
	}
	return payload.Token, nil
}

func needsToken(method string) bool {
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

func withToken(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set(CSRFHeader, token)
	}
	return out
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
