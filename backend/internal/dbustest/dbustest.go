// Package dbustest provides an in-memory dbus.BusObject for backend tests.
package dbustest

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Handler answers one method call. The returned body is what Call.Store
// decodes.
type Handler func(args ...interface{}) ([]interface{}, error)

type Call struct {
	Method string
	Args   []interface{}
}

// Object records every method call and answers from Methods. Unknown
// methods fail with org.freedesktop.DBus.Error.UnknownMethod.
type Object struct {
	Dest    string
	ObjPath dbus.ObjectPath
	Methods map[string]Handler
	// Err, when set, fails every call.
	Err error

	mu    sync.Mutex
	calls []Call
}

func NewObject(dest string, path dbus.ObjectPath) *Object {
	return &Object{Dest: dest, ObjPath: path, Methods: make(map[string]Handler)}
}

// On registers a handler and returns the object for chaining.
func (o *Object) On(method string, h Handler) *Object {
	o.mu.Lock()
	o.Methods[method] = h
	o.mu.Unlock()
	return o
}

// Reply is a Handler that always answers body.
func Reply(body ...interface{}) Handler {
	return func(...interface{}) ([]interface{}, error) { return body, nil }
}

// Fail is a Handler that always fails with the named D-Bus error.
func Fail(name string) Handler {
	return func(...interface{}) ([]interface{}, error) {
		return nil, dbus.Error{Name: name}
	}
}

func (o *Object) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Call, len(o.calls))
	copy(out, o.calls)
	return out
}

// Methods called, in order.
func (o *Object) Called() []string {
	var out []string
	for _, c := range o.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func (o *Object) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	o.mu.Lock()
	o.calls = append(o.calls, Call{Method: method, Args: args})
	h := o.Methods[method]
	o.mu.Unlock()

	call := &dbus.Call{Destination: o.Dest, Path: o.ObjPath, Method: method, Args: args}
	if err := ctx.Err(); err != nil {
		call.Err = err
		return call
	}
	if o.Err != nil {
		call.Err = o.Err
		return call
	}
	if h == nil {
		call.Err = dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownMethod"}
		return call
	}
	call.Body, call.Err = h(args...)
	return call
}

func (o *Object) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	return o.CallWithContext(context.Background(), method, flags, args...)
}

func (o *Object) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call {
	return o.GoWithContext(context.Background(), method, flags, ch, args...)
}

func (o *Object) GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...interface{}) *dbus.Call {
	call := o.CallWithContext(ctx, method, flags, args...)
	if ch != nil {
		call.Done = ch
		ch <- call
	}
	return call
}

func (o *Object) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *Object) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *Object) GetProperty(p string) (dbus.Variant, error) {
	return dbus.Variant{}, dbus.Error{Name: "org.freedesktop.DBus.Error.NotSupported"}
}

func (o *Object) StoreProperty(p string, value interface{}) error {
	return dbus.Error{Name: "org.freedesktop.DBus.Error.NotSupported"}
}

func (o *Object) SetProperty(p string, v interface{}) error {
	return dbus.Error{Name: "org.freedesktop.DBus.Error.NotSupported"}
}

func (o *Object) Destination() string { return o.Dest }

func (o *Object) Path() dbus.ObjectPath { return o.ObjPath }

// Bus hands out registered objects. Objects nobody registered fail with
// org.freedesktop.DBus.Error.ServiceUnknown.
type Bus struct {
	mu      sync.Mutex
	objects map[string]*Object
}

func NewBus() *Bus {
	return &Bus{objects: make(map[string]*Object)}
}

// Add registers o and returns it.
func (b *Bus) Add(o *Object) *Object {
	b.mu.Lock()
	b.objects[o.Dest+string(o.ObjPath)] = o
	b.mu.Unlock()
	return o
}

func (b *Bus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.objects[dest+string(path)]; ok {
		return o
	}
	o := NewObject(dest, path)
	o.Err = dbus.Error{Name: "org.freedesktop.DBus.Error.ServiceUnknown"}
	b.objects[dest+string(path)] = o
	return o
}

// Lookup returns the object registered or handed out for dest and path.
func (b *Bus) Lookup(dest string, path dbus.ObjectPath) *Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[dest+string(path)]
}
