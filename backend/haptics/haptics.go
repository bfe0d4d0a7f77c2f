// Package haptics drives the vibration motor through sysfs.
package haptics

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

const (
	TimedOutputPath = "/sys/class/timed_output/vibrator"
	LEDPath         = "/sys/class/leds/vibrator"
)

type driverKind int

const (
	kindTimedOutput driverKind = iota
	kindLED
)

// NoDeviceError means no supported vibrator node exists.
type NoDeviceError struct {
	Path string
}

func (e *NoDeviceError) Error() string {
	if e.Path == "" {
		return "haptics: no vibrator found"
	}
	return "haptics: no vibrator at " + e.Path
}

type HapticsBackend struct {
	fs   afero.Fs
	path string
	kind driverKind
}

// New probes for a vibrator. It returns nil, nil when haptics are disabled
// or the device has none.
func New(cfg *config.HapticsConfig) (*HapticsBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	h, err := newBackend(afero.NewOsFs(), cfg.Path)
	if err != nil {
		var noDev *NoDeviceError
		if errors.As(err, &noDev) {
			logger.Info("[haptics] %v, disabling backend", err)
			return nil, nil
		}
		return nil, err
	}
	logger.Info("[haptics] backend initialized on %s", h.path)
	return h, nil
}

func newBackend(afs afero.Fs, path string) (*HapticsBackend, error) {
	candidates := []string{TimedOutputPath, LEDPath}
	if path != "" {
		candidates = []string{path}
	}
	for _, dir := range candidates {
		if kind, ok := detect(afs, dir); ok {
			return &HapticsBackend{fs: afs, path: dir, kind: kind}, nil
		}
	}
	return nil, &NoDeviceError{Path: path}
}

func detect(afs afero.Fs, dir string) (driverKind, bool) {
	if ok, _ := afero.Exists(afs, filepath.Join(dir, "enable")); ok {
		return kindTimedOutput, true
	}
	if ok, _ := afero.Exists(afs, filepath.Join(dir, "activate")); ok {
		return kindLED, true
	}
	return 0, false
}

// Vibrate starts the motor for d and returns right away; the kernel stops
// it when d has elapsed.
func (h *HapticsBackend) Vibrate(d time.Duration) error {
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	logger.Debug("[haptics] vibrate %sms", ms)

	switch h.kind {
	case kindLED:
		if err := h.write("duration", ms); err != nil {
			return err
		}
		return h.write("activate", "1")
	default:
		return h.write("enable", ms)
	}
}

func (h *HapticsBackend) write(node, value string) error {
	path := filepath.Join(h.path, node)
	err := afero.WriteFile(h.fs, path, []byte(value), 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		return &NoDeviceError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("haptics: write %s: %w", path, err)
	}
	return nil
}
