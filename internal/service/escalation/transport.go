package escalation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/agricare/backend/internal/model/farmer"
)

const (
	// DefaultCallMeBotURL is the CallMeBot WhatsApp endpoint.
	DefaultCallMeBotURL = "https://api.callmebot.com/whatsapp.php"
	// DefaultSendTimeout bounds one outbound alert.
	DefaultSendTimeout = 10 * time.Second
)

// Transport delivers one alert to one contact and reports whether it was acknowledged.
type Transport interface {
	Send(ctx context.Context, contact farmer.Contact, message string) bool
}

// Disabled acknowledges nothing. It is used when no transport is configured.
type Disabled struct{}

// Send implements Transport.
func (Disabled) Send(context.Context, farmer.Contact, string) bool { return false }

// CallMeBotConfig configures the WhatsApp transport.
type CallMeBotConfig struct {
	BaseURL string
	APIKey  string
	// Phone, when set, receives every alert instead of the contact's own number.
	// CallMeBot keys are bound to the phone that registered them.
	Phone   string
	Timeout time.Duration
	// Interval is the minimum spacing between outbound requests.
	Interval time.Duration
	Client   *http.Client
}

// CallMeBot sends alerts through the CallMeBot WhatsApp HTTP API.
type CallMeBot struct {
	baseURL string
	apiKey  string
	phone   string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

// NewCallMeBot builds the transport. An API key is required.
func NewCallMeBot(cfg CallMeBotConfig) (*CallMeBot, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("callmebot api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultCallMeBotURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &CallMeBot{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		phone:   strings.TrimSpace(cfg.Phone),
		timeout: timeout,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Send implements Transport. Only HTTP 200 counts as an acknowledgement.
func (c *CallMeBot) Send(ctx context.Context, contact farmer.Contact, message string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logger := log.With().Str("contact", contact.Name).Logger()

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Warn().Err(err).Msg("alert rate limit wait aborted")
		return false
	}

	phone := c.phone
	if phone == "" {
		phone = contact.Phone
	}
	query := url.Values{}
	query.Set("phone", phone)
	query.Set("text", message)
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		logger.Warn().Err(err).Msg("build alert request")
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn().Err(err).Msg("send whatsapp alert")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("whatsapp alert rejected")
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info().Msg("whatsapp alert sent")
	return true
}
