package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "benchlink-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bench", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "benchlink-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bench" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.Order {
		t.Error("ordered delivery would run command handlers on the router goroutine")
	}
	if opts.TLSConfig != nil {
		t.Error("TLS configured without broker.tls")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "benchlink-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "benchlink/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var p statusPayload
	if err := json.Unmarshal(opts.WillPayload, &p); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if p.Status != statusOffline || p.Reason != reasonUnexpected || p.ClientID != "benchlink-test" {
		t.Errorf("will payload = %+v", p)
	}
}

func TestBuildStatusPayload_OmitsEmptyReason(t *testing.T) {
	var raw map[string]any
	if err := json.Unmarshal(buildStatusPayload("c1", statusOnline, ""), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["status"] != "online" {
		t.Errorf("status = %v", raw["status"])
	}
	if _, ok := raw["reason"]; ok {
		t.Error("online payload should not carry a reason")
	}
}
