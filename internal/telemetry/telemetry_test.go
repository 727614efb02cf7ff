package telemetry

import (
	"context"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "disabled skips validation",
			cfg:     Config{Enabled: false},
			wantErr: false,
		},
		{
			name: "enabled valid local",
			cfg: Config{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				ServiceName: "linkd",
				Insecure:    true,
				SampleRatio: 1.0,
			},
			wantErr: false,
		},
		{
			name: "enabled missing endpoint",
			cfg: Config{
				Enabled:     true,
				ServiceName: "linkd",
			},
			wantErr: true,
		},
		{
			name: "enabled missing service name",
			cfg: Config{
				Enabled:  true,
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
		{
			name: "insecure remote rejected",
			cfg: Config{
				Enabled:     true,
				Endpoint:    "collector.example.com:4317",
				ServiceName: "linkd",
				Insecure:    true,
			},
			wantErr: true,
		},
		{
			name: "sample ratio out of range",
			cfg: Config{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				ServiceName: "linkd",
				Insecure:    true,
				SampleRatio: 2.0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.0.53:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"collector.example.com:4317", false},
		{"10.0.0.5:4317", false},
	}

	for _, tt := range tests {
		cfg := Config{Endpoint: tt.endpoint}
		if got := cfg.isLocalEndpoint(); got != tt.want {
			t.Errorf("isLocalEndpoint(%q) = %v, want %v", tt.endpoint, got, tt.want)
		}
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// No-op providers still usable.
	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := tel.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &Config{Enabled: true})
	if err == nil {
		t.Fatal("New() with invalid config = nil error, want error")
	}
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry

	tracer := tel.Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown() error = %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://collector:4318", "collector:4318"},
		{"http://localhost:4318", "localhost:4318"},
		{"localhost:4318", "localhost:4318"},
	}
	for _, tt := range tests {
		if got := stripScheme(tt.in); got != tt.want {
			t.Errorf("stripScheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
