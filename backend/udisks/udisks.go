// Package udisks flushes and unmounts removable storage before power-off.
package udisks

import (
	"bytes"
	"context"
	"sort"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

const (
	UDISKS_SERVICE    = "org.freedesktop.UDisks2"
	UDISKS_PATH       = "/org/freedesktop/UDisks2"
	UDISKS_FILESYSTEM = UDISKS_SERVICE + ".Filesystem"
	UDISKS_BLOCK      = UDISKS_SERVICE + ".Block"

	UDISKS_METHOD_UNMOUNT = UDISKS_FILESYSTEM + ".Unmount"
)

var syncFunc = unix.Sync

type UDisksBackend struct {
	conn  idbus.Conn
	close func() error
}

// Filesystem is a mounted UDisks2 filesystem.
type Filesystem struct {
	Path       dbus.ObjectPath
	MountPoint string
	System     bool
}

// New returns nil, nil when storage handling is disabled.
func New(cfg *config.StorageConfig) (*UDisksBackend, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	logger.Info("[udisks] backend initialized")
	return &UDisksBackend{conn: conn, close: conn.Close}, nil
}

func (u *UDisksBackend) Close() {
	if u.close != nil {
		if err := u.close(); err != nil {
			logger.Error("[udisks] failed to close D-Bus connection: %v", err)
		}
		u.close = nil
	}
}

// Filesystems lists mounted filesystems sorted by object path.
func (u *UDisksBackend) Filesystems(ctx context.Context) ([]Filesystem, error) {
	objects, err := idbus.GetManagedObjects(ctx, idbus.GetObject(u.conn, UDISKS_SERVICE, UDISKS_PATH))
	if err != nil {
		return nil, idbus.Wrap("udisks2", err)
	}

	var out []Filesystem
	for path, ifaces := range objects {
		fs, ok := ifaces[UDISKS_FILESYSTEM]
		if !ok {
			continue
		}
		mounts := idbus.MapByteArrays(fs, "MountPoints")
		if len(mounts) == 0 {
			continue
		}
		out = append(out, Filesystem{
			Path:       path,
			MountPoint: string(bytes.TrimRight(mounts[0], "\x00")),
			System:     idbus.MapBool(ifaces[UDISKS_BLOCK], "HintSystem"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Shutdown syncs and unmounts every non-system filesystem on its own
// goroutine. onComplete gets the number of failed unmounts.
func (u *UDisksBackend) Shutdown(ctx context.Context, onComplete func(int)) error {
	owned, err := idbus.NameHasOwner(ctx, u.conn, UDISKS_SERVICE)
	if err != nil || !owned {
		return &shutdown.UnreachableError{Service: "udisks2", Err: err}
	}

	go func() {
		syncFunc()
		onComplete(u.unmountAll(ctx))
	}()
	return nil
}

func (u *UDisksBackend) unmountAll(ctx context.Context) int {
	filesystems, err := u.Filesystems(ctx)
	if err != nil {
		logger.Warn("[udisks] failed to list filesystems: %v", err)
		return 1
	}

	failures := 0
	for _, fs := range filesystems {
		if fs.System {
			logger.Debug("[udisks] skipping system filesystem %s", fs.MountPoint)
			continue
		}
		logger.Info("[udisks] unmounting %s", fs.MountPoint)
		obj := u.conn.Object(UDISKS_SERVICE, fs.Path)
		if err := idbus.CallMethod(ctx, obj, UDISKS_METHOD_UNMOUNT, map[string]dbus.Variant{}); err != nil {
			logger.Warn("[udisks] failed to unmount %s: %v", fs.MountPoint, err)
			failures++
		}
	}
	return failures
}
