//go:build !no_containers

package app

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	infraapi "github.com/kilianp07/vehicle2mqtt/infra/vehicleapi"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Logf("mosquitto not ready at %s: %v", broker, err)
		t.Skip("Mosquitto not ready after retries")
	}
	return cont, broker
}

type observer struct {
	cli  paho.Client
	mu   sync.Mutex
	seen map[string]string
}

func newObserver(t *testing.T, broker string) *observer {
	t.Helper()
	o := &observer{seen: map[string]string{}}
	o.cli = paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	if token := o.cli.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("observer connect: %v", token.Error())
	}
	if token := o.cli.Subscribe("homeassistant/#", 1, func(_ paho.Client, m paho.Message) {
		o.mu.Lock()
		o.seen[m.Topic()] = string(m.Payload())
		o.mu.Unlock()
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("observer subscribe: %v", token.Error())
	}
	return o
}

func (o *observer) get(topic string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.seen[topic]
	return p, ok
}

func (o *observer) waitFor(t *testing.T, topic, want string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := o.get(topic); ok && (want == "" || p == want) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("no message on %s (want %q)", topic, want)
}

func TestBridgeWithMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(context.Background()) }()

	api := httptest.NewServer(infraapi.NewSimulator(1))
	defer api.Close()

	obs := newObserver(t, broker)
	defer obs.cli.Disconnect(100)

	cfg := testConfig(t, api.URL)
	cfg.MQTT.Broker = broker
	cfg.MQTT.QoS = 1
	svc, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	obs.waitFor(t, "homeassistant/foobarVIN/available", "true")
	obs.waitFor(t, "homeassistant/foobarVIN/diagsavailable", "true")
	obs.waitFor(t, "homeassistant/sensor/foobarVIN/odometer/config", "")
	obs.waitFor(t, "homeassistant/sensor/foobarVIN/odometer/state", "")

	if token := obs.cli.Publish("homeassistant/foobarVIN/command", 1, false, `{"command":"getLocation"}`); token.Wait() && token.Error() != nil {
		t.Fatalf("publish command: %v", token.Error())
	}
	obs.waitFor(t, "homeassistant/device_tracker/foobarVIN/getlocation/config", "")
	obs.waitFor(t, "homeassistant/device_tracker/foobarVIN/getlocation/state", "")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
	obs.waitFor(t, "homeassistant/foobarVIN/available", "false")
}
