package backend

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-powerd/backend/bluetooth"
	"github.com/b0bbywan/go-odio-powerd/backend/modem"
	"github.com/b0bbywan/go-odio-powerd/backend/mpris"
	"github.com/b0bbywan/go-odio-powerd/backend/notice"
	"github.com/b0bbywan/go-odio-powerd/backend/pulseaudio"
	"github.com/b0bbywan/go-odio-powerd/backend/systemd"
	"github.com/b0bbywan/go-odio-powerd/backend/udisks"
	"github.com/b0bbywan/go-odio-powerd/backend/zeroconf"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/events"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

type Backend struct {
	Power     *Power
	Modem     *modem.ModemBackend
	Bluetooth *bluetooth.BluetoothBackend
	UDisks    *udisks.UDisksBackend
	Systemd   *systemd.SystemdBackend

	Notice   *notice.Transport
	Hooks    *notice.HookReceiver
	Events   *notice.EventReceiver
	Zeroconf *zeroconf.ZeroConfBackend
	Pulse    *pulseaudio.PulseAudioBackend
	MPRIS    *mpris.MPRISBackend

	// Bus is the system bus connection shared by the signal receiver and
	// the trigger service. Nil when bus.enabled is off.
	Bus *dbus.Conn

	Broadcaster *Broadcaster
	progressC   chan events.Event
}

// New builds every enabled backend. Only a missing power driver is fatal: a
// collaborator that cannot connect stays nil and the pipeline treats it as
// unreachable.
func New(ctx context.Context, cfg *config.Config) (*Backend, error) {
	var b Backend
	var err error

	if b.Power, err = newPower(ctx, cfg.Power, cfg.Haptics); err != nil {
		return nil, err
	}

	if b.Modem, err = modem.New(cfg.Radio); err != nil {
		logger.Warn("[backend] radio unavailable: %v", err)
	}
	if b.Bluetooth, err = bluetooth.New(cfg.Bluetooth); err != nil {
		logger.Warn("[backend] bluetooth unavailable: %v", err)
	}
	if b.UDisks, err = udisks.New(cfg.Storage); err != nil {
		logger.Warn("[backend] storage unavailable: %v", err)
	}
	if b.Systemd, err = systemd.New(ctx, cfg.Lifecycle); err != nil {
		logger.Warn("[backend] lifecycle unavailable: %v", err)
	}

	if cfg.Bus.Enabled {
		if b.Bus, err = dbus.ConnectSystemBus(); err != nil {
			logger.Warn("[backend] system bus unavailable: %v", err)
		}
	}
	if b.Hooks, err = notice.NewHookReceiver(cfg.Hooks); err != nil {
		logger.Warn("[backend] hooks unavailable: %v", err)
	}
	if b.Zeroconf, err = zeroconf.New(ctx, cfg.Zeroconf); err != nil {
		logger.Warn("[backend] zeroconf unavailable: %v", err)
	}
	if b.Pulse, err = pulseaudio.New(ctx, cfg.Pulseaudio); err != nil {
		logger.Warn("[backend] pulseaudio unavailable: %v", err)
	}
	if b.MPRIS, err = mpris.New(ctx, cfg.MPRIS); err != nil {
		logger.Warn("[backend] mpris unavailable: %v", err)
	}

	b.Events = notice.NewEventReceiver()
	b.Notice = b.newTransport()

	b.progressC = make(chan events.Event, 16)
	b.Broadcaster = newBroadcasterFromBackend(ctx, &b)

	return &b, nil
}

// newTransport registers the receivers in delivery order: clients hear
// about the shutdown first, playback stops before the audio server goes
// quiet, and hook scripts run last.
func (b *Backend) newTransport() *notice.Transport {
	t := notice.NewTransport(b.Events)
	if b.Bus != nil {
		t.Add(notice.NewBusReceiver(b.Bus))
	}
	if b.MPRIS != nil {
		t.Add(b.MPRIS)
	}
	if b.Pulse != nil {
		t.Add(b.Pulse)
	}
	if b.Zeroconf != nil {
		t.Add(b.Zeroconf)
	}
	if b.Hooks != nil {
		t.Add(b.Hooks)
	}
	logger.Debug("[backend] notice receivers: %v", t.Receivers())
	return t
}

// Collaborators exposes the backends to the shutdown pipeline. Disabled
// backends stay nil interfaces rather than typed nil pointers.
func (b *Backend) Collaborators() shutdown.Collaborators {
	var c shutdown.Collaborators
	if b.Notice != nil {
		c.Broadcast = b.Notice
	}
	if b.Systemd != nil {
		c.Lifecycle = b.Systemd
	}
	if b.Modem != nil {
		c.Radio = b.Modem
	}
	if b.Bluetooth != nil {
		c.Wireless = b.Bluetooth
	}
	if b.UDisks != nil {
		c.Storage = b.UDisks
	}
	if b.Power != nil {
		c.Power = b.Power
	}
	return c
}

// Timings converts the shutdown config section into pipeline bounds.
func Timings(cfg *config.ShutdownConfig) shutdown.Timings {
	if cfg == nil {
		return shutdown.DefaultTimings()
	}
	return shutdown.Timings{
		Broadcast:    cfg.BroadcastTimeout,
		Lifecycle:    cfg.LifecycleTimeout,
		Storage:      cfg.StorageTimeout,
		MaxPolls:     cfg.MaxPolls,
		PollInterval: cfg.PollInterval,
		Vibrate:      cfg.Vibrate,
	}
}

func (b *Backend) Start() error {
	if b.Hooks != nil {
		if err := b.Hooks.Start(); err != nil {
			return err
		}
	}

	if b.Zeroconf != nil {
		if err := b.Zeroconf.Start(); err != nil {
			logger.Warn("[backend] zeroconf announcement failed: %v", err)
		}
	}

	return nil
}

func (b *Backend) Close() {
	if b.Zeroconf != nil {
		b.Zeroconf.Close()
	}
	if b.Hooks != nil {
		b.Hooks.Close()
	}
	if b.MPRIS != nil {
		b.MPRIS.Close()
	}
	if b.Pulse != nil {
		b.Pulse.Close()
	}
	if b.Systemd != nil {
		b.Systemd.Close()
	}
	if b.UDisks != nil {
		b.UDisks.Close()
	}
	if b.Bluetooth != nil {
		b.Bluetooth.Close()
	}
	if b.Modem != nil {
		b.Modem.Close()
	}
	if b.Power != nil {
		b.Power.Close()
	}
	if b.Bus != nil {
		if err := b.Bus.Close(); err != nil {
			logger.Warn("[backend] failed to close system bus: %v", err)
		}
	}
}
