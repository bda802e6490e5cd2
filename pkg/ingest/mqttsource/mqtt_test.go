package mqttsource

import (
	"strings"
	"testing"
	"time"

	"github.com/travigo/telemetria/pkg/config"
)

func TestBaseOptions(t *testing.T) {
	tests := []struct {
		name    string
		broker  string
		tls     bool
		wantErr bool
	}{
		{name: "plain tcp", broker: "tcp://localhost:1883"},
		{name: "mqtts", broker: "mqtts://broker.example.com:8883", tls: true},
		{name: "ssl", broker: "ssl://broker.example.com:8883", tls: true},
		{name: "missing scheme", broker: "localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options, err := baseOptions(config.MQTTConfig{Broker: tt.broker, Topic: "onibus/telemetria", QoS: 1})
			if (err != nil) != tt.wantErr {
				t.Fatalf("baseOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if (options.TLSConfig != nil && options.TLSConfig.ServerName != "") != tt.tls {
				t.Errorf("TLS config = %+v, want tls %v", options.TLSConfig, tt.tls)
			}
			if !strings.HasPrefix(options.ClientID, "servidor-") || len(options.ClientID) != len("servidor-")+8 {
				t.Errorf("ClientID = %q", options.ClientID)
			}
			if !options.CleanSession || !options.AutoReconnect {
				t.Error("expected a clean, auto reconnecting session")
			}
			if options.ConnectTimeout != 30*time.Second || options.MaxReconnectInterval != 5*time.Second {
				t.Errorf("timeouts = %v / %v", options.ConnectTimeout, options.MaxReconnectInterval)
			}
		})
	}
}

func TestBaseOptionsCredentials(t *testing.T) {
	options, err := baseOptions(config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		Username: "onibus",
		Password: "secret",
		ClientID: "fixed-id",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if options.Username != "onibus" || options.Password != "secret" {
		t.Errorf("credentials not applied: %q / %q", options.Username, options.Password)
	}
	if options.ClientID != "fixed-id" {
		t.Errorf("ClientID = %q", options.ClientID)
	}
}
