package backend

import (
	"context"
	"time"

	"github.com/b0bbywan/go-odio-powerd/backend/haptics"
	"github.com/b0bbywan/go-odio-powerd/backend/kernel"
	"github.com/b0bbywan/go-odio-powerd/backend/login1"
	"github.com/b0bbywan/go-odio-powerd/config"
)

type powerDriver interface {
	Reboot(reason string) error
	RebootToRecovery(reason string) error
	PowerOff() error
}

type capabilityProber interface {
	CanReboot() (bool, error)
	CanPowerOff() (bool, error)
}

type vibrator interface {
	Vibrate(d time.Duration) error
}

// Power composes the configured driver with the haptics backend into the
// primitives used by the terminal step.
type Power struct {
	Driver string

	driver   powerDriver
	vibrator vibrator
	close    func()
}

type Capabilities struct {
	Driver      string `json:"driver"`
	CanReboot   bool   `json:"can_reboot"`
	CanPowerOff bool   `json:"can_poweroff"`
	Haptics     bool   `json:"haptics"`
}

func newPower(ctx context.Context, cfg *config.PowerConfig, hcfg *config.HapticsConfig) (*Power, error) {
	p := &Power{Driver: cfg.Driver}

	switch cfg.Driver {
	case config.DriverKernel:
		k, err := kernel.New(cfg)
		if err != nil {
			return nil, err
		}
		p.driver = k
	default:
		l, err := login1.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.driver = l
		p.close = l.Close
	}

	h, err := haptics.New(hcfg)
	if err != nil {
		return nil, err
	}
	if h != nil {
		p.vibrator = h
	}
	return p, nil
}

func (p *Power) Reboot(reason string) error {
	return p.driver.Reboot(reason)
}

func (p *Power) RebootToRecovery(reason string) error {
	return p.driver.RebootToRecovery(reason)
}

func (p *Power) PowerOff() error {
	return p.driver.PowerOff()
}

// Vibrate fails with a NoDeviceError when the device has no vibrator.
func (p *Power) Vibrate(d time.Duration) error {
	if p.vibrator == nil {
		return &haptics.NoDeviceError{}
	}
	return p.vibrator.Vibrate(d)
}

// Capabilities reports what the driver claims it can do. A failed probe
// counts as capable, matching how the actions themselves are attempted.
func (p *Power) Capabilities() Capabilities {
	caps := Capabilities{
		Driver:      p.Driver,
		CanReboot:   true,
		CanPowerOff: true,
		Haptics:     p.vibrator != nil,
	}
	if prober, ok := p.driver.(capabilityProber); ok {
		if can, err := prober.CanReboot(); err == nil {
			caps.CanReboot = can
		}
		if can, err := prober.CanPowerOff(); err == nil {
			caps.CanPowerOff = can
		}
	}
	return caps
}

func (p *Power) Close() {
	if p.close != nil {
		p.close()
	}
}
