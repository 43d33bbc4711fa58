// Package translate is the outbound gateway: one request per pipeline run,
// provider-specific wire formats behind a single Translate call.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider identifiers. Defaults mirror the preset catalogue in config.
const (
	ProviderGoogle    = "google"
	ProviderDeepL     = "deepl"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	googleEndpoint           = "https://translate.googleapis.com/translate_a/single"
	defaultDeepLBase         = "https://api-free.deepl.com/v2"
	defaultOpenAIBase        = "https://api.openai.com/v1"
	defaultAnthropicBase     = "https://api.anthropic.com"
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultAnthropicModel    = "claude-3-5-haiku-latest"
	anthropicAPIVersion      = "2023-06-01"
	maxRetries               = 3
	initialRetryDelay        = 500 * time.Millisecond
	defaultRequestTimeout    = 30 * time.Second
	anthropicMaxOutputTokens = 4096
)

// Reason classifies a gateway failure for the UI layer.
type Reason string

const (
	ReasonAuth    Reason = "auth"
	ReasonQuota   Reason = "quota"
	ReasonNetwork Reason = "network"
	ReasonBadResp Reason = "bad response"
)

// RequestError is a typed translation failure. Cancellation is not a
// RequestError; it surfaces as the context's error.
type RequestError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("translate: %s (HTTP %d): %v", e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("translate: %s: %v", e.Reason, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Config selects the provider and languages for a gateway instance.
type Config struct {
	Provider   string
	Endpoint   string // base URL; provider default when empty
	APIKey     string
	Model      string
	TargetLang string
	SourceLang string // empty means let the provider detect
	AutoDetect bool   // CJK source flips the target to English
}

// Gateway issues at most one outstanding request per pipeline run. Internal
// retries stay within the caller's context deadline.
type Gateway struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Gateway {
	if cfg.Provider == "" {
		cfg.Provider = ProviderGoogle
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "zh"
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Translate sends text to the configured provider and returns the translated
// text. It observes ctx cancellation promptly; a cancelled call returns
// ctx.Err() and guarantees no result is produced afterwards.
func (g *Gateway) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &RequestError{Reason: ReasonBadResp, Err: errors.New("empty source text")}
	}

	target := g.targetLangFor(text)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * initialRetryDelay
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		var out string
		var err error
		switch g.cfg.Provider {
		case ProviderGoogle:
			out, err = g.translateGoogle(ctx, text, target)
		case ProviderDeepL:
			out, err = g.translateDeepL(ctx, text, target)
		case ProviderOpenAI:
			out, err = g.translateOpenAI(ctx, text, target)
		case ProviderAnthropic:
			out, err = g.translateAnthropic(ctx, text, target)
		default:
			return "", &RequestError{Reason: ReasonBadResp, Err: fmt.Errorf("unknown provider %q", g.cfg.Provider)}
		}
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		// Only network-class failures are worth retrying.
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.Reason != ReasonNetwork {
			return "", err
		}
	}
	return "", lastErr
}

// Ping issues a minimal request so startup can fail fast on a bad key or
// unreachable endpoint.
func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := g.Translate(ctx, "hello")
	return err
}

// TargetLang reports the effective target language for the given source
// text, accounting for CJK auto-detection.
func (g *Gateway) TargetLang(text string) string { return g.targetLangFor(text) }

func (g *Gateway) targetLangFor(text string) string {
	if !g.cfg.AutoDetect {
		return g.cfg.TargetLang
	}
	if hasCJK(text) {
		return "en"
	}
	return g.cfg.TargetLang
}

func hasCJK(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF, // CJK unified
			r >= 0x3400 && r <= 0x4DBF, // CJK extension A
			r >= 0x3040 && r <= 0x309F, // hiragana
			r >= 0x30A0 && r <= 0x30FF: // katakana
			return true
		}
	}
	return false
}

func (g *Gateway) base(def string) string {
	if g.cfg.Endpoint != "" {
		return strings.TrimRight(g.cfg.Endpoint, "/")
	}
	return def
}

// translateGoogle uses the free web endpoint: no key, GET with the text in
// the query string, response is a nested JSON array of segments.
func (g *Gateway) translateGoogle(ctx context.Context, text, target string) (string, error) {
	source := g.cfg.SourceLang
	if source == "" {
		source = "auto"
	}

	endpoint := g.base(googleEndpoint)
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", &RequestError{Reason: ReasonBadResp, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	body, err := g.do(req)
	if err != nil {
		return "", err
	}

	var parsed []json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) == 0 {
		return "", &RequestError{Reason: ReasonBadResp, Err: fmt.Errorf("unexpected google payload: %v", err)}
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(parsed[0], &segments); err != nil {
		return "", &RequestError{Reason: ReasonBadResp, Err: err}
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(seg[0], &part); err == nil {
			sb.WriteString(part)
		}
	}
	if sb.Len() == 0 {
		return "", &RequestError{Reason: ReasonBadResp, Err: errors.New("no translation returned")}
	}
	return sb.String(), nil
}

func (g *Gateway) translateDeepL(ctx context.Context, text, target string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", &RequestError{Reason: ReasonAuth, Err: errors.New("deepl api key not configured")}
	}

	payload := struct {
		Text       []string `json:"text"`
		TargetLang string   `json:"target_lang"`
		SourceLang string   `json:"source_lang,omitempty"`
	}{
		Text:       []string{text},
		TargetLang: strings.ToUpper(target),
		SourceLang: strings.ToUpper(g.cfg.SourceLang),
	}

	req, err := g.jsonRequest(ctx, g.base(defaultDeepLBase)+"/translate", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+g.cfg.APIKey)

	body, err := g.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Reason: ReasonBadResp, Err: err}
	}
	if len(resp.Translations) == 0 {
		return "", &RequestError{Reason: ReasonBadResp, Err: errors.New("no translation returned")}
	}
	return resp.Translations[0].Text, nil
}

func (g *Gateway) translateOpenAI(ctx context.Context, text, target string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", &RequestError{Reason: ReasonAuth, Err: errors.New("api key not configured")}
	}
	model := g.cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	system, user := buildPrompts(target, text)
	payload := struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
	}{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	}

	req, err := g.jsonRequest(ctx, g.base(defaultOpenAIBase)+"/chat/completions", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	body, err := g.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Reason: ReasonBadResp, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &RequestError{Reason: ReasonBadResp, Err: errors.New("no choices in response")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *Gateway) translateAnthropic(ctx context.Context, text, target string) (string, error) {
	if g.cfg.APIKey == "" {
		return "", &RequestError{Reason: ReasonAuth, Err: errors.New("api key not configured")}
	}
	model := g.cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	system, user := buildPrompts(target, text)
	payload := struct {
		Model     string        `json:"model"`
		MaxTokens int           `json:"max_tokens"`
		System    string        `json:"system"`
		Messages  []chatMessage `json:"messages"`
	}{
		Model:     model,
		MaxTokens: anthropicMaxOutputTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: user}},
	}

	req, err := g.jsonRequest(ctx, g.base(defaultAnthropicBase)+"/v1/messages", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", g.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	body, err := g.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &RequestError{Reason: ReasonBadResp, Err: err}
	}
	if len(resp.Content) == 0 {
		return "", &RequestError{Reason: ReasonBadResp, Err: errors.New("empty response content")}
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Gateway) jsonRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Reason: ReasonBadResp, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &RequestError{Reason: ReasonBadResp, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do executes the request and maps the HTTP status to a failure reason.
func (g *Gateway) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		return nil, &RequestError{Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RequestError{Reason: ReasonNetwork, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &RequestError{Reason: ReasonAuth, Status: resp.StatusCode, Err: apiError(body)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RequestError{Reason: ReasonQuota, Status: resp.StatusCode, Err: apiError(body)}
	case resp.StatusCode >= 500:
		return nil, &RequestError{Reason: ReasonNetwork, Status: resp.StatusCode, Err: apiError(body)}
	case resp.StatusCode != http.StatusOK:
		return nil, &RequestError{Reason: ReasonBadResp, Status: resp.StatusCode, Err: apiError(body)}
	}
	return body, nil
}

func apiError(body []byte) error {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Error.Message != "" {
			return errors.New(wrapped.Error.Message)
		}
		if wrapped.Message != "" {
			return errors.New(wrapped.Message)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "no error detail"
	}
	return errors.New(msg)
}

func buildPrompts(target, text string) (system, user string) {
	name := languageName(target)
	system = fmt.Sprintf(`You are a professional native %[1]s translator. Translate the text into fluent %[1]s.

Rules:
1. Output only the translation, with no explanations or lead-ins.
2. Keep exactly the same paragraph count and formatting as the source.
3. If the text contains HTML tags, keep them placed sensibly in the translation.
4. Leave untranslatable content (proper nouns, code, links) as-is.
5. Output the translation directly, with no delimiters or extra text.`, name)
	user = fmt.Sprintf("Translate into %s (output only the translation):\n\n%s", name, text)
	return system, user
}

func languageName(code string) string {
	switch strings.ToLower(code) {
	case "zh", "zh-cn":
		return "Simplified Chinese"
	case "zh-tw", "zh-hk":
		return "Traditional Chinese"
	case "en":
		return "English"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "ru":
		return "Russian"
	case "pt":
		return "Portuguese"
	case "it":
		return "Italian"
	case "ar":
		return "Arabic"
	case "th":
		return "Thai"
	case "vi":
		return "Vietnamese"
	default:
		return code
	}
}
