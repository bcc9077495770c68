package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/kilianp07/vehicle2mqtt/core/monitoring"
	coremqtt "github.com/kilianp07/vehicle2mqtt/core/mqtt"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker             string      `json:"broker"`
	Host               string      `json:"host"`
	Port               int         `json:"port"`
	ClientID           string      `json:"client_id"`
	Username           string      `json:"username"`
	Password           string      `json:"password"`
	UseTLS             bool        `json:"use_tls"`
	ClientCert         string      `json:"client_cert"`
	ClientKey          string      `json:"client_key"`
	CABundle           string      `json:"ca_bundle"`
	InsecureSkipVerify bool        `json:"insecure_skip_verify"`
	QoS                byte        `json:"qos"`
	LWTTopic           string      `json:"lwt_topic"`
	LWTPayload         string      `json:"lwt_payload"`
	LWTQoS             byte        `json:"lwt_qos"`
	LWTRetain          bool        `json:"lwt_retain"`
	MaxRetries         int         `json:"max_retries"`
	BackoffMS          int         `json:"backoff_ms"`
	TLSConfig          *tls.Config `json:"-"`
}

// SetDefaults derives the broker URL from host and port and generates a
// client ID when none is set.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.Broker == "" {
		scheme := "tcp"
		if c.UseTLS {
			scheme = "ssl"
		}
		c.Broker = fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
	}
	if c.ClientID == "" {
		c.ClientID = "vehicle2mqtt-" + uuid.NewString()[:8]
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements core/mqtt.Client using Eclipse Paho.
type PahoClient struct {
	cli        pahoClient
	qos        byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration

	mu   sync.Mutex
	subs map[string]coremqtt.MessageHandler
}

var _ coremqtt.Client = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		qos:        cfg.QoS,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		subs:       make(map[string]coremqtt.MessageHandler),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		pc.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the
// config. Without any file the system roots are used; a client certificate
// requires both client_cert and client_key.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.InsecureSkipVerify} //nolint:gosec
	if (c.ClientCert == "") != (c.ClientKey == "") {
		return nil, fmt.Errorf("tls client auth requires both client_cert and client_key")
	}
	if c.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CABundle != "" {
		caBytes, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("no certificates in %s", c.CABundle)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// Publish sends payload to topic and retries with exponential backoff.
func (p *PahoClient) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if p.cli == nil {
		return coremqtt.ErrNotConnected
	}
	attempt := 0
	op := func() error {
		attempt++
		token := p.cli.Publish(topic, p.qos, retain, payload)
		select {
		case <-token.Done():
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
		if err := token.Error(); err != nil {
			p.logger.Errorf("publish %s attempt %d failed: %v", topic, attempt, err)
			return err
		}
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.backoff
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(p.maxRetries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic and subscribes when connected.
func (p *PahoClient) Subscribe(topic string, handler coremqtt.MessageHandler) error {
	p.mu.Lock()
	p.subs[topic] = handler
	p.mu.Unlock()
	if p.cli == nil || !p.cli.IsConnected() {
		// picked up by OnConnect
		return nil
	}
	token := p.cli.Subscribe(topic, p.qos, wrap(handler))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
	}
	p.logger.Infof("subscribed to %s", topic)
	return nil
}

func (p *PahoClient) resubscribe(c paho.Client) {
	p.mu.Lock()
	subs := make(map[string]coremqtt.MessageHandler, len(p.subs))
	for t, h := range p.subs {
		subs[t] = h
	}
	p.mu.Unlock()
	for topic, h := range subs {
		if token := c.Subscribe(topic, p.qos, wrap(h)); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe error: %v", token.Error())
		}
	}
}

func wrap(h coremqtt.MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
