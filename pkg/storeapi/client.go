// Package storeapi is the HTTP client for the storefront REST backend, the
// authoritative owner of carts, builds, stock, prices and orders.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/pcstore-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/pcstore-storefront/pkg/errors"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
	"github.com/angelmondragon/pcstore-storefront/pkg/types"
)

const (
	// GenericErrorMessage is shown when the backend gives no message of its own.
	GenericErrorMessage = "Something went wrong, please try again."

	DefaultRefreshPath = "/api/auth/refresh-token"
	RefreshCookieName  = "refreshToken"
	AccessCookieName   = "token"

	defaultTimeout       = 10 * time.Second
	defaultRefreshSkew   = 30 * time.Second
	errorBodyReadLimit   = 4 << 10
	refreshFlightKey     = "refresh"
	triggerProactive     = "proactive"
	triggerUnauthorized  = "unauthorized"
	signedOutMessage     = "your session has expired, please sign in again"
	notSignedInMessage   = "sign in to continue"
	refreshFailedMessage = "token refresh failed"
)

// Client talks to the backend on behalf of one signed-in user. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	refreshPath string
	refreshSkew time.Duration
	logg        *logger.Logger
	metrics     *metrics.BackendMetrics
	now         func() time.Time

	mu         sync.RWMutex
	tokens     auth.Tokens
	signedOut  bool
	onSignOut  []func()
	onTokens   []func(auth.Tokens)
	refreshing singleflight.Group
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logg = logg }
}

func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRefreshPath overrides the silent refresh endpoint.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			c.refreshPath = "/" + strings.TrimLeft(trimmed, "/")
		}
	}
}

// WithRefreshSkew sets how long before expiry the access token is refreshed proactively.
// Zero disables proactive refresh.
func WithRefreshSkew(skew time.Duration) Option {
	return func(c *Client) {
		if skew >= 0 {
			c.refreshSkew = skew
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// OnSignOut registers a hook fired once when the session is hard signed out.
func OnSignOut(fn func()) Option {
	return func(c *Client) {
		if fn != nil {
			c.onSignOut = append(c.onSignOut, fn)
		}
	}
}

// OnTokensChanged registers a hook fired after every successful refresh.
func OnTokensChanged(fn func(auth.Tokens)) Option {
	return func(c *Client) {
		if fn != nil {
			c.onTokens = append(c.onTokens, fn)
		}
	}
}

// New builds a client for baseURL holding the given credentials.
func New(baseURL string, tokens auth.Tokens, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(parsed.String(), "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		refreshPath: DefaultRefreshPath,
		refreshSkew: defaultRefreshSkew,
		now:         time.Now,
		tokens:      tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Tokens returns the credentials currently held.
func (c *Client) Tokens() auth.Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// SignedIn reports whether the client holds an access token and has not been signed out.
func (c *Client) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.signedOut && !c.tokens.Empty()
}

// SignOut clears the credentials and fires the sign-out hooks. Later calls are no-ops.
func (c *Client) SignOut() {
	c.mu.Lock()
	if c.signedOut {
		c.mu.Unlock()
		return
	}
	c.signedOut = true
	c.tokens = auth.Tokens{}
	hooks := append([]func(){}, c.onSignOut...)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// get issues a GET and decodes the metadata of the envelope into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post issues a POST with a JSON body; out may be nil when the response is ignored.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		payload = encoded
	}

	access, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		refreshed, err := c.refreshAfter(ctx, access, triggerUnauthorized)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, refreshed.Access)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			c.SignOut()
			return pkgerrors.New(pkgerrors.CodeUnauthorized, signedOutMessage).WithUpstreamStatus(http.StatusUnauthorized)
		}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return decodeMetadata(resp.Body, out)
}

// accessToken returns the token to send, refreshing first when it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	tokens, signedOut := c.tokens, c.signedOut
	c.mu.RUnlock()

	if signedOut || tokens.Empty() {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, notSignedInMessage)
	}
	if c.refreshSkew == 0 || tokens.Refresh == "" || !auth.ExpiresWithin(tokens.Access, c.now(), c.refreshSkew) {
		return tokens.Access, nil
	}

	refreshed, err := c.refreshAfter(ctx, tokens.Access, triggerProactive)
	if err != nil {
		return "", err
	}
	return refreshed.Access, nil
}

// refreshAfter makes sure the token that failed is replaced. Concurrent callers share
// one refresh; callers arriving after it completed reuse its result.
func (c *Client) refreshAfter(ctx context.Context, stale string, trigger string) (auth.Tokens, error) {
	c.mu.RLock()
	current, signedOut := c.tokens, c.signedOut
	c.mu.RUnlock()

	if signedOut {
		return auth.Tokens{}, pkgerrors.New(pkgerrors.CodeUnauthorized, signedOutMessage)
	}
	if !current.Empty() && current.Access != stale {
		return current, nil
	}

	result, err, _ := c.refreshing.Do(refreshFlightKey, func() (any, error) {
		c.mu.RLock()
		latest := c.tokens
		c.mu.RUnlock()
		if !latest.Empty() && latest.Access != stale {
			return latest, nil
		}

		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		// Detached so one caller giving up does not fail everyone queued on the refresh.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return c.refresh(refreshCtx, latest, trigger)
	})
	if err != nil {
		return auth.Tokens{}, err
	}
	return result.(auth.Tokens), nil
}

func (c *Client) refresh(ctx context.Context, current auth.Tokens, trigger string) (auth.Tokens, error) {
	next, err := c.requestRefresh(ctx, current)
	c.metrics.IncRefresh(trigger, err)
	if err != nil {
		if c.logg != nil {
			c.logg.Error(c.logg.WithField(ctx, "trigger", trigger), "access token refresh failed, signing out", err)
		}
		c.SignOut()
		return auth.Tokens{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, signedOutMessage).WithUpstreamStatus(http.StatusUnauthorized)
	}

	c.mu.Lock()
	if c.signedOut {
		c.mu.Unlock()
		return auth.Tokens{}, pkgerrors.New(pkgerrors.CodeUnauthorized, signedOutMessage)
	}
	c.tokens = next
	hooks := append([]func(auth.Tokens){}, c.onTokens...)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(next)
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithField(ctx, "trigger", trigger), "access token refreshed")
	}
	return next, nil
}

func (c *Client) requestRefresh(ctx context.Context, current auth.Tokens) (auth.Tokens, error) {
	if current.Refresh == "" {
		return auth.Tokens{}, fmt.Errorf("%s: no refresh cookie held", refreshFailedMessage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.refreshPath, nil)
	if err != nil {
		return auth.Tokens{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: current.Refresh})

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.refreshPath, 0, c.now().Sub(started))
		return auth.Tokens{}, err
	}
	defer drain(resp)
	c.metrics.ObserveRequest(c.refreshPath, resp.StatusCode, c.now().Sub(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return auth.Tokens{}, decodeError(resp)
	}

	next := auth.Tokens{Refresh: current.Refresh}
	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case AccessCookieName:
			next.Access = cookie.Value
		case RefreshCookieName:
			next.Refresh = cookie.Value
		}
	}

	var body refreshResponse
	if err := decodeMetadata(resp.Body, &body); err == nil {
		if body.AccessToken != "" {
			next.Access = body.AccessToken
		}
		if body.RefreshToken != "" {
			next.Refresh = body.RefreshToken
		}
	}
	if next.Access == "" {
		return auth.Tokens{}, fmt.Errorf("%s: response carried no access token", refreshFailedMessage)
	}
	return next, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, access string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+access)

	endpoint := endpointLabel(path)
	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, c.now().Sub(started))
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), GenericErrorMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, GenericErrorMessage)
	}
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, c.now().Sub(started))
	return resp, nil
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// decodeError turns a non-2xx response into a typed error carrying the backend
// message verbatim, or GenericErrorMessage when there is none.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	message := GenericErrorMessage

	var body types.BackendError
	if err := json.Unmarshal(raw, &body); err == nil && strings.TrimSpace(body.Message) != "" {
		message = body.Message
	}
	return pkgerrors.New(pkgerrors.CodeForStatus(resp.StatusCode), message).WithUpstreamStatus(resp.StatusCode)
}

func decodeMetadata(body io.Reader, out any) error {
	envelope := types.BackendEnvelope[json.RawMessage]{}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		if err == io.EOF {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend response")
	}
	if len(envelope.Metadata) == 0 || string(envelope.Metadata) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Metadata, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode backend metadata")
	}
	return nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyReadLimit))
	_ = resp.Body.Close()
}

func endpointLabel(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		return path[:idx]
	}
	return path
}
