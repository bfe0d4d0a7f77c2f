package dbus

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
)

// DefaultTimeout bounds every D-Bus call that has no earlier deadline.
var DefaultTimeout = 5 * time.Second

// Conn is the part of *dbus.Conn the backends need to reach objects.
type Conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// Call invokes method on obj, bounded by ctx and DefaultTimeout.
func Call(ctx context.Context, obj dbus.BusObject, method string, args ...interface{}) (*dbus.Call, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{}
		}
		return nil, call.Err
	}
	return call, nil
}

// CallMethod calls a method and discards its reply.
func CallMethod(ctx context.Context, obj dbus.BusObject, method string, args ...interface{}) error {
	_, err := Call(ctx, obj, method, args...)
	return err
}

// GetProperty retrieves a single property from a D-Bus object.
func GetProperty(ctx context.Context, obj dbus.BusObject, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	call, err := Call(ctx, obj, PROP_GET, iface, prop)
	if err != nil {
		return dbus.Variant{}, err
	}
	if err := call.Store(&v); err != nil {
		return dbus.Variant{}, err
	}
	return v, nil
}

// SetProperty sets a single property on a D-Bus object.
func SetProperty(ctx context.Context, obj dbus.BusObject, iface, prop string, value interface{}) error {
	return CallMethod(ctx, obj, PROP_SET, iface, prop, dbus.MakeVariant(value))
}

// GetAllProperties retrieves all properties of a D-Bus interface in a single call.
func GetAllProperties(ctx context.Context, obj dbus.BusObject, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	call, err := Call(ctx, obj, PROP_GET_ALL, iface)
	if err != nil {
		return nil, err
	}
	return props, call.Store(&props)
}

// ManagedObjects is the reply of org.freedesktop.DBus.ObjectManager.
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// GetManagedObjects lists every object exported under an ObjectManager.
func GetManagedObjects(ctx context.Context, obj dbus.BusObject) (ManagedObjects, error) {
	var objects ManagedObjects
	call, err := Call(ctx, obj, MANAGED_OBJECTS)
	if err != nil {
		return nil, err
	}
	return objects, call.Store(&objects)
}

// NameHasOwner reports whether a well-known name is currently owned.
func NameHasOwner(ctx context.Context, conn Conn, name string) (bool, error) {
	var owned bool
	call, err := Call(ctx, conn.Object(DBUS_INTERFACE, DBUS_PATH), BUS_NAME_HAS_OWNER, name)
	if err != nil {
		return false, err
	}
	return owned, call.Store(&owned)
}

// GetObject returns a D-Bus object for the given service and object path.
func GetObject(conn Conn, service, path string) dbus.BusObject {
	return conn.Object(service, dbus.ObjectPath(path))
}

// --- Variant extraction helpers ---

// ExtractString extracts a string from a dbus.Variant.
func ExtractString(v dbus.Variant) (string, bool) {
	val, ok := v.Value().(string)
	return val, ok
}

// ExtractBool extracts a bool from a dbus.Variant.
func ExtractBool(v dbus.Variant) (bool, bool) {
	val, ok := v.Value().(bool)
	return val, ok
}

// --- Map helpers (props map[string]dbus.Variant) ---

// MapString extracts a string from a props map by key.
func MapString(props map[string]dbus.Variant, key string) string {
	if v, ok := props[key]; ok {
		s, _ := ExtractString(v)
		return s
	}
	return ""
}

// MapBool extracts a bool from a props map by key.
func MapBool(props map[string]dbus.Variant, key string) bool {
	if v, ok := props[key]; ok {
		b, _ := ExtractBool(v)
		return b
	}
	return false
}

// MapInt32 extracts an int32 from a props map by key.
func MapInt32(props map[string]dbus.Variant, key string) (int32, bool) {
	if v, ok := props[key]; ok {
		i, ok := v.Value().(int32)
		return i, ok
	}
	return 0, false
}

// MapByteArrays extracts an aay property, such as UDisks2 MountPoints.
func MapByteArrays(props map[string]dbus.Variant, key string) [][]byte {
	if v, ok := props[key]; ok {
		b, _ := v.Value().([][]byte)
		return b
	}
	return nil
}

// Keys returns the keys of a props map (useful for debug logging).
func Keys(props map[string]dbus.Variant) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	return keys
}
