// Package verifyclient consumes verification links the way the account UI
// does: it parses the link, calls the verify endpoint, and exposes the same
// status values the server resolver produces.
package verifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/viralis/accountd/pkg/emailchange"
)

// DefaultRedirectDelay is how long a successful verification is shown before
// the redirect fires.
const DefaultRedirectDelay = 3 * time.Second

// Handler resolves verification links against a verify endpoint.
type Handler struct {
	verifyURL     string
	httpClient    *http.Client
	redirectDelay time.Duration
	onRedirect    func()

	mu     sync.Mutex
	status emailchange.VerificationStatus
}

// HandlerOption defines configuration options
type HandlerOption func(*Handler)

// WithHTTPClient sets the HTTP client used to call the verify endpoint
func WithHTTPClient(c *http.Client) HandlerOption {
	return func(h *Handler) {
		h.httpClient = c
	}
}

// WithRedirectDelay sets the pause between success and the redirect callback
func WithRedirectDelay(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.redirectDelay = d
	}
}

// WithOnRedirect sets the callback fired after a successful verification
func WithOnRedirect(fn func()) HandlerOption {
	return func(h *Handler) {
		h.onRedirect = fn
	}
}

// NewHandler creates a handler targeting the given verify endpoint URL.
func NewHandler(verifyURL string, opts ...HandlerOption) *Handler {
	handler := &Handler{
		verifyURL:     verifyURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		redirectDelay: DefaultRedirectDelay,
		status:        emailchange.StatusLoading,
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

// Status returns the current state. StatusLoading while a link is in flight.
func (h *Handler) Status() emailchange.VerificationStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handler) setStatus(status emailchange.VerificationStatus) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleLink resolves one verification link to a terminal status.
//
// An `error=expired` query param short-circuits to expired without calling
// the endpoint: the upstream already classified the link and the token is
// gone, so a round trip could only misreport it as invalid.
func (h *Handler) HandleLink(ctx context.Context, linkURL string) (emailchange.VerificationStatus, error) {
	h.setStatus(emailchange.StatusLoading)

	parsed, err := url.Parse(linkURL)
	if err != nil {
		h.setStatus(emailchange.StatusError)
		return emailchange.StatusError, fmt.Errorf("invalid link: %w", err)
	}

	query := parsed.Query()
	if errParam := query.Get("error"); errParam != "" {
		if errParam == "expired" {
			h.setStatus(emailchange.StatusExpired)
			return emailchange.StatusExpired, emailchange.ErrTokenExpired
		}
		h.setStatus(emailchange.StatusError)
		return emailchange.StatusError, fmt.Errorf("verification failed: %s", errParam)
	}

	token := query.Get("token")
	if token == "" {
		h.setStatus(emailchange.StatusError)
		return emailchange.StatusError, emailchange.ErrInvalidToken
	}

	status, err := h.postVerify(ctx, token)
	h.setStatus(status)

	if status == emailchange.StatusSuccess && h.onRedirect != nil {
		time.AfterFunc(h.redirectDelay, h.onRedirect)
	}

	return status, err
}

func (h *Handler) postVerify(ctx context.Context, token string) (emailchange.VerificationStatus, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return emailchange.StatusError, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.verifyURL, bytes.NewReader(body))
	if err != nil {
		return emailchange.StatusError, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return emailchange.StatusError, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("Failed to decode verify response", "err", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return emailchange.StatusSuccess, nil
	}

	if emailchange.VerificationStatus(result.Status) == emailchange.StatusExpired {
		return emailchange.StatusExpired, emailchange.ErrTokenExpired
	}

	if result.Message != "" {
		return emailchange.StatusError, fmt.Errorf("verification failed: %s", result.Message)
	}
	return emailchange.StatusError, fmt.Errorf("verification failed: status %d", resp.StatusCode)
}
