//go:build linux

// Package kernel issues power actions straight through reboot(2).
package kernel

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

// Syscall hooks, replaced in tests.
var (
	syncFunc     = unix.Sync
	rebootFunc   = unix.Reboot
	restart2Func = restart2
)

// NotHaltedError is returned when reboot(2) came back without an error,
// which only happens when something intercepted the call.
type NotHaltedError struct {
	Action string
}

func (e *NotHaltedError) Error() string {
	return "kernel: " + e.Action + " returned without halting"
}

type KernelBackend struct{}

// New returns nil, nil unless the kernel driver is configured.
func New(cfg *config.PowerConfig) (*KernelBackend, error) {
	if cfg == nil || cfg.Driver != config.DriverKernel {
		return nil, nil
	}
	if os.Geteuid() != 0 {
		logger.Warn("[kernel] not running as root, reboot(2) will be refused")
	}
	logger.Info("[kernel] backend initialized")
	return &KernelBackend{}, nil
}

// Reboot restarts the machine. A non-empty reason is passed to the
// bootloader as the reboot argument.
func (k *KernelBackend) Reboot(reason string) error {
	logger.Info("[kernel] syncing and rebooting (reason: %q)", reason)
	syncFunc()
	if reason == "" {
		return k.result("reboot", rebootFunc(unix.LINUX_REBOOT_CMD_RESTART))
	}
	return k.result("reboot", restart2Func(reason))
}

func (k *KernelBackend) RebootToRecovery(reason string) error {
	logger.Info("[kernel] syncing and rebooting to %s", reason)
	syncFunc()
	return k.result("reboot to recovery", restart2Func(reason))
}

func (k *KernelBackend) PowerOff() error {
	logger.Info("[kernel] syncing and powering off")
	syncFunc()
	return k.result("poweroff", rebootFunc(unix.LINUX_REBOOT_CMD_POWER_OFF))
}

func (k *KernelBackend) result(action string, err error) error {
	if err != nil {
		return fmt.Errorf("kernel %s: %w", action, err)
	}
	return &NotHaltedError{Action: action}
}

// restart2 is LINUX_REBOOT_CMD_RESTART2, which unix.Reboot cannot express.
func restart2(arg string) error {
	p, err := unix.BytePtrFromString(arg)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall6(unix.SYS_REBOOT,
		unix.LINUX_REBOOT_MAGIC1, unix.LINUX_REBOOT_MAGIC2,
		unix.LINUX_REBOOT_CMD_RESTART2, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
