package zeroconf

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

var errAlreadyStarted = errors.New("service already published")

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// ZeroConfBackend publishes the power API over mDNS and withdraws it when
// the device goes down.
type ZeroConfBackend struct {
	Config *config.ZeroConfig

	register registerFunc
	server   *zeroconf.Server
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

func New(ctx context.Context, cfg *config.ZeroConfig) (*ZeroConfBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if len(cfg.Listen) == 0 {
		logger.Info("[zeroconf] no interface to publish on, disabled")
		return nil, nil
	}

	subCtx, cancel := context.WithCancel(ctx)

	return &ZeroConfBackend{
		Config:   cfg,
		register: zeroconf.Register,
		ctx:      subCtx,
		cancel:   cancel,
	}, nil
}

func (z *ZeroConfBackend) Name() string { return "zeroconf" }

// Start publishes the service until the context is cancelled or Close is
// called.
func (z *ZeroConfBackend) Start() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.server != nil {
		return errAlreadyStarted
	}

	server, err := z.register(
		z.Config.InstanceName,
		z.Config.ServiceType,
		z.Config.Domain,
		z.Config.Port,
		z.Config.TxtRecords,
		z.Config.Listen,
	)
	if err != nil {
		return err
	}

	z.server = server
	logger.Info("[zeroconf] published %q (type: %s, port: %d)",
		z.Config.InstanceName, z.Config.ServiceType, z.Config.Port)

	go func() {
		<-z.ctx.Done()
		z.Close()
	}()

	return nil
}

// Receive withdraws the announcement so clients stop offering a device that
// is going away.
func (z *ZeroConfBackend) Receive(ctx context.Context, n shutdown.Notice) error {
	z.withdraw()
	return nil
}

func (z *ZeroConfBackend) withdraw() {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.server != nil {
		z.server.Shutdown()
		z.server = nil
		logger.Debug("[zeroconf] %q withdrawn", z.Config.InstanceName)
	}
}

func (z *ZeroConfBackend) Close() {
	z.withdraw()

	z.mu.Lock()
	defer z.mu.Unlock()
	if z.cancel != nil {
		z.cancel()
		z.cancel = nil
	}
}
