//go:build !linux

package kernel

import (
	"errors"

	"github.com/b0bbywan/go-odio-powerd/config"
)

type KernelBackend struct{}

func New(cfg *config.PowerConfig) (*KernelBackend, error) {
	if cfg == nil || cfg.Driver != config.DriverKernel {
		return nil, nil
	}
	return nil, errors.New("kernel power driver is only available on linux")
}

func (k *KernelBackend) Reboot(string) error           { return errors.ErrUnsupported }
func (k *KernelBackend) RebootToRecovery(string) error { return errors.ErrUnsupported }
func (k *KernelBackend) PowerOff() error               { return errors.ErrUnsupported }
