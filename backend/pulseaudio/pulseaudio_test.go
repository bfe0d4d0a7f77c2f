package pulseaudio

import (
	"context"
	"errors"
	"testing"

	"github.com/the-jonsey/pulseaudio"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

func TestDetectServerKind(t *testing.T) {
	tests := []struct {
		name     string
		server   *pulseaudio.Server
		expected AudioServerKind
	}{
		{
			name: "PulseAudio server",
			server: &pulseaudio.Server{
				PackageName: "pulseaudio",
			},
			expected: ServerPulse,
		},
		{
			name: "PipeWire server (lowercase)",
			server: &pulseaudio.Server{
				PackageName: "pipewire-pulse",
			},
			expected: ServerPipeWire,
		},
		{
			name: "PipeWire server (uppercase)",
			server: &pulseaudio.Server{
				PackageName: "PipeWire",
			},
			expected: ServerPipeWire,
		},
		{
			name: "PipeWire server (mixed case)",
			server: &pulseaudio.Server{
				PackageName: "PiPeWiRe",
			},
			expected: ServerPipeWire,
		},
		{
			name: "Unknown server defaults to PulseAudio",
			server: &pulseaudio.Server{
				PackageName: "unknown-audio-server",
			},
			expected: ServerPulse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detectServerKind(tt.server)
			if result != tt.expected {
				t.Errorf("detectServerKind() = %v, want %v", result, tt.expected)
			}
		})
	}
}

type fakeMuter struct {
	muted   bool
	toggles int
	err     error
}

func (f *fakeMuter) ToggleMute() (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.toggles++
	f.muted = !f.muted
	return f.muted, nil
}

func TestReceive_Mutes(t *testing.T) {
	tests := []struct {
		name        string
		muted       bool
		wantToggles int
	}{
		{"unmuted sink", false, 1},
		{"already muted sink", true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMuter{muted: tt.muted}
			pa := &PulseAudioBackend{master: m}

			if err := pa.Receive(context.Background(), shutdown.Notice{}); err != nil {
				t.Fatalf("Receive() error = %v", err)
			}
			if !m.muted {
				t.Error("sink left unmuted")
			}
			if m.toggles != tt.wantToggles {
				t.Errorf("toggles = %d, want %d", m.toggles, tt.wantToggles)
			}
		})
	}
}

func TestReceive_Error(t *testing.T) {
	pa := &PulseAudioBackend{master: &fakeMuter{err: errors.New("connection refused")}}
	if err := pa.Receive(context.Background(), shutdown.Notice{}); err == nil {
		t.Error("Receive() error = nil, want mute error")
	}
}

func TestServerInfo(t *testing.T) {
	if _, err := (&PulseAudioBackend{}).ServerInfo(); err == nil {
		t.Error("ServerInfo() without server should fail")
	}

	pa := &PulseAudioBackend{
		server: &pulseaudio.Server{PackageName: "pipewire-pulse", PackageVersion: "1.0.5"},
		kind:   ServerPipeWire,
	}
	info, err := pa.ServerInfo()
	if err != nil {
		t.Fatalf("ServerInfo() error = %v", err)
	}
	if info.Kind != ServerPipeWire || info.Version != "1.0.5" {
		t.Errorf("ServerInfo() = %+v", info)
	}
}

func TestNew_Disabled(t *testing.T) {
	pa, err := New(context.Background(), &config.PulseAudioConfig{Enabled: false})
	if pa != nil || err != nil {
		t.Errorf("New(disabled) = %v, %v", pa, err)
	}
}
