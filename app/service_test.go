package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vehicle2mqtt/config"
	"github.com/kilianp07/vehicle2mqtt/core/bridgestatus"
	"github.com/kilianp07/vehicle2mqtt/core/model"
	coremqtt "github.com/kilianp07/vehicle2mqtt/core/mqtt"
	"github.com/kilianp07/vehicle2mqtt/infra/logger"
	"github.com/kilianp07/vehicle2mqtt/infra/mqtt"
	infraapi "github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
)

type message struct {
	topic   string
	payload string
	retain  bool
}

type memClient struct {
	mu           sync.Mutex
	msgs         []message
	handlers     map[string]coremqtt.MessageHandler
	disconnected bool
}

func (c *memClient) Publish(_ context.Context, topic string, payload []byte, retain bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic: topic, payload: string(payload), retain: retain})
	return nil
}

func (c *memClient) Subscribe(topic string, h coremqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = map[string]coremqtt.MessageHandler{}
	}
	c.handlers[topic] = h
	return nil
}

func (c *memClient) Disconnect() {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *memClient) deliver(topic, payload string) bool {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()
	if ok {
		h(topic, []byte(payload))
	}
	return ok
}

func (c *memClient) last(topic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].topic == topic {
			return c.msgs[i].payload, true
		}
	}
	return "", false
}

func (c *memClient) count(suffix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if strings.HasSuffix(m.topic, suffix) {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Vehicle: infraapi.Config{
			BaseURL:        baseURL,
			Username:       "owner@example.com",
			Password:       "secret",
			VIN:            "FOOBARVIN",
			PollIntervalMS: 1,
			PollTimeoutMS:  2000,
		},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func useMemClient(t *testing.T) (*memClient, *mqtt.Config) {
	t.Helper()
	client := &memClient{}
	var got mqtt.Config
	orig := newMQTTClient
	newMQTTClient = func(cfg mqtt.Config) (coremqtt.Client, error) {
		got = cfg
		return client, nil
	}
	t.Cleanup(func() { newMQTTClient = orig })
	return client, &got
}

func TestServiceRun(t *testing.T) {
	srv := httptest.NewServer(infraapi.NewSimulator(1))
	defer srv.Close()
	client, mqttCfg := useMemClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, err := New(ctx, testConfig(t, srv.URL))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	assert.Equal(t, "foobarVIN", svc.Vehicle().VIN)
	assert.Equal(t, "homeassistant/foobarVIN/available", mqttCfg.LWTTopic)
	assert.Equal(t, "false", mqttCfg.LWTPayload)
	assert.True(t, mqttCfg.LWTRetain)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		p, ok := client.last("homeassistant/foobarVIN/diagsavailable")
		return ok && p == "true"
	}, 5*time.Second, 10*time.Millisecond)
	avail, _ := client.last("homeassistant/foobarVIN/available")
	assert.Equal(t, "true", avail)
	state, ok := client.last("homeassistant/sensor/foobarVIN/odometer/state")
	require.True(t, ok)
	assert.Contains(t, state, "odometer")
	configs := client.count("/config")
	assert.Positive(t, configs)

	require.True(t, client.deliver("homeassistant/foobarVIN/command", `{"command":"getLocation"}`))
	require.Eventually(t, func() bool {
		_, ok := client.last("homeassistant/device_tracker/foobarVIN/getlocation/state")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, client.deliver("homeassistant/foobarVIN/command", `{"command":"diagnostics"}`))
	require.Eventually(t, func() bool {
		return client.count("/diagsavailable") >= 2
	}, 5*time.Second, 10*time.Millisecond)
	// configs of the first cycle are not repeated
	assert.Equal(t, configs+1, client.count("/config"))

	require.Eventually(t, func() bool {
		st, ok := svc.Status().Get("foobarVIN")
		return ok && st.CurrentStatus == bridgestatus.StatusOnline && st.LastCommand != nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
	avail, _ = client.last("homeassistant/foobarVIN/available")
	assert.Equal(t, "false", avail)
	client.mu.Lock()
	assert.True(t, client.disconnected)
	client.mu.Unlock()
}

func TestServiceCommandsDisabled(t *testing.T) {
	srv := httptest.NewServer(infraapi.NewSimulator(0))
	defer srv.Close()
	client, _ := useMemClient(t)

	cfg := testConfig(t, srv.URL)
	allow := false
	cfg.Bridge.AllowCommands = &allow
	ctx, cancel := context.WithCancel(context.Background())
	svc, err := New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	require.Eventually(t, func() bool {
		_, ok := client.last("homeassistant/foobarVIN/diagsavailable")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, client.deliver("homeassistant/foobarVIN/command", `{"command":"alert"}`))
	cancel()
	require.NoError(t, <-done)
}

func TestServiceUnknownVehicle(t *testing.T) {
	srv := httptest.NewServer(infraapi.NewSimulator(0))
	defer srv.Close()
	useMemClient(t)

	var logClosed bool
	orig := configureLogger
	configureLogger = func(cfg logger.Config) (func() error, error) {
		closeLog, err := orig(cfg)
		if err != nil {
			return nil, err
		}
		return func() error {
			logClosed = true
			return closeLog()
		}, nil
	}
	t.Cleanup(func() { configureLogger = orig })

	cfg := testConfig(t, srv.URL)
	cfg.Vehicle.VIN = "NOPE"
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, model.ErrVehicleNotFound)
	assert.True(t, logClosed, "log output should be released when New fails")
}

func TestServiceStatusServer(t *testing.T) {
	srv := httptest.NewServer(infraapi.NewSimulator(0))
	defer srv.Close()
	useMemClient(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t, srv.URL)
	cfg.Bridge.StatusAddr = addr
	require.False(t, cfg.Metrics.PrometheusEnabled)
	ctx, cancel := context.WithCancel(context.Background())
	svc, err := New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/api/status?vin=FOOBARVIN")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "foobarVIN")

	cancel()
	require.NoError(t, <-done)
}
