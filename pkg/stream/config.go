package stream

import (
	"net/url"
	"time"
)

// DefaultChannels is the channel set subscribed to on every connect.
var DefaultChannels = []string{"notifications", "system_alerts", "document_updates"}

// Config holds the session manager tuning. Load it with pkg/config from the
// environment or a YAML file, or construct it directly.
type Config struct {
	// EndpointURL is the event stream endpoint. The authenticated principal
	// identifier is appended as a query parameter on dial.
	EndpointURL string `env:"LIVEFEED_ENDPOINT_URL,required" yaml:"endpoint_url"`

	// Channels is the fixed channel set declared in the subscription handshake.
	Channels []string `env:"LIVEFEED_CHANNELS" envSeparator:"," envDefault:"notifications,system_alerts,document_updates" yaml:"channels"`

	// InitialBackoff is the delay before the first reconnect attempt.
	InitialBackoff time.Duration `env:"LIVEFEED_INITIAL_BACKOFF" envDefault:"1s" yaml:"initial_backoff"`

	// MaxBackoff caps the doubling reconnect delay.
	MaxBackoff time.Duration `env:"LIVEFEED_MAX_BACKOFF" envDefault:"30s" yaml:"max_backoff"`

	// MaxAttempts is the number of reconnect attempts before giving up.
	MaxAttempts int `env:"LIVEFEED_MAX_ATTEMPTS" envDefault:"5" yaml:"max_attempts"`

	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout time.Duration `env:"LIVEFEED_HANDSHAKE_TIMEOUT" envDefault:"10s" yaml:"handshake_timeout"`
}

// withDefaults fills zero fields so directly constructed configs behave the
// same as environment-loaded ones.
func (c Config) withDefaults() Config {
	if len(c.Channels) == 0 {
		c.Channels = DefaultChannels
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	return c
}

// endpointFor parameterizes the endpoint with the authenticated principal.
func (c Config) endpointFor(identity string) string {
	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		// A broken endpoint fails at dial time and flows through the
		// normal reconnect/failure path.
		return c.EndpointURL
	}
	q := u.Query()
	q.Set("principal", identity)
	u.RawQuery = q.Encode()
	return u.String()
}
