package haptics

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/b0bbywan/go-odio-powerd/config"
)

func sysfs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("0"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func read(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestNew_Disabled(t *testing.T) {
	for _, cfg := range []*config.HapticsConfig{nil, {Enabled: false}} {
		h, err := New(cfg)
		if h != nil || err != nil {
			t.Errorf("New(%v) = %v, %v, want nil, nil", cfg, h, err)
		}
	}
}

func TestVibrate_TimedOutput(t *testing.T) {
	fs := sysfs(t, filepath.Join(TimedOutputPath, "enable"))
	h, err := newBackend(fs, "")
	if err != nil {
		t.Fatalf("newBackend() error = %v", err)
	}

	if err := h.Vibrate(500 * time.Millisecond); err != nil {
		t.Fatalf("Vibrate() error = %v", err)
	}
	if got := read(t, fs, filepath.Join(TimedOutputPath, "enable")); got != "500" {
		t.Errorf("enable = %q, want 500", got)
	}
}

func TestVibrate_LEDClass(t *testing.T) {
	fs := sysfs(t,
		filepath.Join(LEDPath, "activate"),
		filepath.Join(LEDPath, "duration"),
	)
	h, err := newBackend(fs, "")
	if err != nil {
		t.Fatalf("newBackend() error = %v", err)
	}

	if err := h.Vibrate(250 * time.Millisecond); err != nil {
		t.Fatalf("Vibrate() error = %v", err)
	}
	if got := read(t, fs, filepath.Join(LEDPath, "duration")); got != "250" {
		t.Errorf("duration = %q, want 250", got)
	}
	if got := read(t, fs, filepath.Join(LEDPath, "activate")); got != "1" {
		t.Errorf("activate = %q, want 1", got)
	}
}

func TestNewBackend_ExplicitPath(t *testing.T) {
	fs := sysfs(t, "/sys/class/timed_output/motor/enable", filepath.Join(TimedOutputPath, "enable"))
	h, err := newBackend(fs, "/sys/class/timed_output/motor")
	if err != nil {
		t.Fatalf("newBackend() error = %v", err)
	}
	if h.path != "/sys/class/timed_output/motor" {
		t.Errorf("path = %q", h.path)
	}
}

func TestNewBackend_NoDevice(t *testing.T) {
	_, err := newBackend(afero.NewMemMapFs(), "")
	var noDev *NoDeviceError
	if !errors.As(err, &noDev) {
		t.Errorf("newBackend() error = %v, want *NoDeviceError", err)
	}
}

func TestVibrate_DeviceGone(t *testing.T) {
	fs := sysfs(t, filepath.Join(TimedOutputPath, "enable"))
	h, _ := newBackend(fs, "")
	h.fs = afero.NewReadOnlyFs(afero.NewMemMapFs())

	if err := h.Vibrate(time.Second); err == nil {
		t.Error("Vibrate() error = nil on a missing node")
	}
}
