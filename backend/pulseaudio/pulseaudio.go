// Package pulseaudio silences the audio server before power goes down, so
// the amplifier does not pop when the rails collapse.
package pulseaudio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/the-jonsey/pulseaudio"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

var errServerInfoUnavailable = errors.New("server info unavailable")

func New(ctx context.Context, cfg *config.PulseAudioConfig) (*PulseAudioBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	xdgRuntimeDir := cfg.XDGRuntimeDir
	if xdgRuntimeDir == "" {
		xdgRuntimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	address := fmt.Sprintf("%s/pulse/native", xdgRuntimeDir)

	c, err := pulseaudio.NewClient(address)
	if err != nil {
		return nil, err
	}
	server, err := c.ServerInfo()
	if err != nil {
		c.Close()
		return nil, err
	}

	kind := detectServerKind(server)
	logger.Info("[pulseaudio] connected to %s %s", kind, server.PackageVersion)

	return &PulseAudioBackend{
		client: c,
		master: c,
		server: server,
		kind:   kind,
	}, nil
}

func (pa *PulseAudioBackend) Name() string { return "pulseaudio" }

// Receive mutes the default sink. The server only exposes a toggle, so an
// already muted sink gets toggled twice.
func (pa *PulseAudioBackend) Receive(ctx context.Context, n shutdown.Notice) error {
	muted, err := pa.master.ToggleMute()
	if err != nil {
		return fmt.Errorf("failed to mute default sink: %w", err)
	}
	if !muted {
		if muted, err = pa.master.ToggleMute(); err != nil {
			return fmt.Errorf("failed to mute default sink: %w", err)
		}
	}
	logger.Debug("[pulseaudio] default sink muted: %t", muted)
	return nil
}

func (pa *PulseAudioBackend) ServerInfo() (*ServerInfo, error) {
	if pa.server == nil {
		return nil, errServerInfoUnavailable
	}
	return &ServerInfo{
		Kind:        pa.kind,
		Name:        pa.server.PackageName,
		Version:     pa.server.PackageVersion,
		DefaultSink: pa.server.DefaultSink,
	}, nil
}

func (pa *PulseAudioBackend) Close() {
	if pa.client != nil {
		pa.client.Close()
	}
}

func detectServerKind(s *pulseaudio.Server) AudioServerKind {
	if strings.Contains(strings.ToLower(s.PackageName), "pipewire") {
		return ServerPipeWire
	}
	return ServerPulse
}
