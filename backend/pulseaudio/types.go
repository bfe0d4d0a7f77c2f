package pulseaudio

import (
	"github.com/the-jonsey/pulseaudio"
)

type AudioServerKind string

const (
	ServerPulse    AudioServerKind = "pulseaudio"
	ServerPipeWire AudioServerKind = "pipewire"
)

type muter interface {
	ToggleMute() (bool, error)
}

type PulseAudioBackend struct {
	client *pulseaudio.Client
	master muter
	server *pulseaudio.Server
	kind   AudioServerKind
}

type ServerInfo struct {
	Kind        AudioServerKind `json:"kind"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	DefaultSink string          `json:"default_sink"`
}
