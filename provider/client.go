package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is one of the identifiers returned by IDs.
	Provider string
	// Endpoint overrides the service URL. Required for Custom.
	Endpoint string
	APIKey   string
	// Model defaults to the first model of the provider's Spec.
	Model string
	// Timeout bounds a single request; zero means DefaultTimeout.
	Timeout time.Duration
	// Temperature is sent as given; zero is a valid setting.
	Temperature float64
	MaxTokens   int
	// Proxy is an optional HTTP/HTTPS proxy URL. When empty the
	// HTTP_PROXY/HTTPS_PROXY environment variables apply.
	Proxy  string
	Logger *slog.Logger
}

// Result is the outcome of a successful call: one text per input, in input
// order. Fallback lists positions that the service did not answer and that
// were filled with the source text.
type Result struct {
	Texts    []string
	Fallback []int
}

// Client translates an ordered list of texts. Implementations return a
// *Error when the call fails.
type Client interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) (Result, error)
	Spec() Spec
}

// New returns the client variant matching the provider's capabilities.
func New(cfg Config) (Client, error) {
	spec, ok := Lookup(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", cfg.Provider, strings.Join(IDs(), ", "))
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = spec.Endpoint
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("provider %s requires an API endpoint URL", spec.ID)
	}
	if cfg.Model == "" {
		cfg.Model = spec.DefaultModel()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := newTransport(spec, cfg)
	if spec.Batching {
		return &BatchClient{t: t}, nil
	}
	return &ItemClient{t: t, done: make(map[itemKey]string)}, nil
}

// ---------------------------------------------------------------------------
// Batching variant
// ---------------------------------------------------------------------------

// BatchClient sends all texts of a call in one numbered-list request.
type BatchClient struct {
	t *transport
}

func (c *BatchClient) Spec() Spec { return c.t.spec }

func (c *BatchClient) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) (Result, error) {
	if len(texts) == 0 {
		return Result{}, nil
	}
	content, err := c.t.complete(ctx, BuildPrompt(texts, sourceLang, targetLang))
	if err != nil {
		return Result{}, err
	}
	return ParseNumbered(content, texts), nil
}

// ---------------------------------------------------------------------------
// Per-item variant
// ---------------------------------------------------------------------------

type itemKey struct {
	source, target, text string
}

// ItemClient sends one request per text. The first failing text fails the
// whole call. Texts already translated successfully are remembered, so a
// repeated call after a failure only requests the remaining ones.
type ItemClient struct {
	t *transport

	mu   sync.Mutex
	done map[itemKey]string
}

func (c *ItemClient) Spec() Spec { return c.t.spec }

func (c *ItemClient) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) (Result, error) {
	var res Result
	res.Texts = make([]string, len(texts))
	for i, text := range texts {
		key := itemKey{sourceLang, targetLang, text}
		c.mu.Lock()
		cached, ok := c.done[key]
		c.mu.Unlock()
		if ok {
			res.Texts[i] = cached
			continue
		}

		content, err := c.t.complete(ctx, BuildPrompt([]string{text}, sourceLang, targetLang))
		if err != nil {
			return Result{}, err
		}
		one := ParseNumbered(content, []string{text})
		res.Texts[i] = one.Texts[0]
		if len(one.Fallback) > 0 {
			res.Fallback = append(res.Fallback, i)
			continue
		}
		c.mu.Lock()
		c.done[key] = one.Texts[0]
		c.mu.Unlock()
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

type transport struct {
	spec Spec
	cfg  Config
	http *resty.Client
	now  func() time.Time
}

func newTransport(spec Spec, cfg Config) *transport {
	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetLogger(restyLogger{cfg.Logger}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Proxy != "" {
		rc.SetProxy(cfg.Proxy)
	}
	// Certificate checks are only relaxed for services known to use a
	// self-signed certificate, never by configuration.
	if spec.InsecureTLS {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // required by the service
	}
	return &transport{spec: spec, cfg: cfg, http: rc, now: time.Now}
}

func (t *transport) endpoint() string {
	return strings.ReplaceAll(t.cfg.Endpoint, "{model}", t.cfg.Model)
}

// complete performs one request and returns the answer text.
func (t *transport) complete(ctx context.Context, userPrompt string) (string, error) {
	token, err := t.authToken()
	if err != nil {
		return "", requestError(t.spec.ID, "signing request: %w", err)
	}

	url := t.endpoint()
	t.cfg.Logger.Debug("provider request", "provider", t.spec.ID, "model", t.cfg.Model, "url", url)

	rr, err := t.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetBody(t.requestBody(userPrompt)).
		Post(url)
	if err != nil {
		return "", classify(t.spec.ID, err)
	}
	if rr.IsError() {
		return "", requestError(t.spec.ID, "%s", statusMessage(rr.Status(), rr.Body()))
	}

	text, err := extractResponseText(rr.Body())
	if err != nil {
		return "", &Error{Kind: KindRequest, Provider: t.spec.ID, Err: err}
	}
	return text, nil
}

func (t *transport) requestBody(userPrompt string) map[string]any {
	messages := []map[string]string{
		{"role": "system", "content": SystemPrompt},
		{"role": "user", "content": userPrompt},
	}
	switch t.spec.Format {
	case FormatDashScope:
		return map[string]any{
			"model": t.cfg.Model,
			"input": map[string]any{"messages": messages},
			"parameters": map[string]any{
				"result_format": "message",
				"temperature":   t.cfg.Temperature,
				"max_tokens":    t.cfg.MaxTokens,
			},
		}
	case FormatZhipu:
		return map[string]any{
			"prompt":      messages,
			"temperature": t.cfg.Temperature,
		}
	default:
		return map[string]any{
			"model":       t.cfg.Model,
			"messages":    messages,
			"temperature": t.cfg.Temperature,
			"max_tokens":  t.cfg.MaxTokens,
		}
	}
}

// zhipuTokenTTL bounds the lifetime of a signed Zhipu request token.
const zhipuTokenTTL = 5 * time.Minute

// authToken returns the bearer credential. Zhipu keys have the form
// "<id>.<secret>" and are exchanged for an HS256 token signed with secret.
func (t *transport) authToken() (string, error) {
	if t.spec.Format != FormatZhipu {
		return t.cfg.APIKey, nil
	}
	id, secret, ok := strings.Cut(t.cfg.APIKey, ".")
	if !ok {
		return t.cfg.APIKey, nil
	}
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key":   id,
		"exp":       now.Add(zhipuTokenTTL).UnixMilli(),
		"timestamp": now.UnixMilli(),
	})
	token.Header["sign_type"] = "SIGN"
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// restyLogger routes resty's internal messages to slog.
type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}
