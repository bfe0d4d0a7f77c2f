package mpris

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-odio-powerd/backend/internal/dbus"
	"github.com/b0bbywan/go-odio-powerd/backend/internal/dbustest"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

func TestValidateBusName(t *testing.T) {
	tests := []struct {
		name    string
		busName string
		wantErr bool
	}{
		{"valid", "org.mpris.MediaPlayer2.spotify", false},
		{"valid instance", "org.mpris.MediaPlayer2.vlc.instance123", false},
		{"empty", "", true},
		{"wrong prefix", "org.freedesktop.DBus", true},
		{"bare prefix", "org.mpris.MediaPlayer2", true},
		{"double dot", "org.mpris.MediaPlayer2..evil", true},
		{"slash", "org.mpris.MediaPlayer2.a/b", true},
		{"newline", "org.mpris.MediaPlayer2.a\nb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateBusName(tt.busName); (err != nil) != tt.wantErr {
				t.Errorf("validateBusName(%q) error = %v, wantErr %v", tt.busName, err, tt.wantErr)
			}
		})
	}
}

func player(bus *dbustest.Bus, name, status string) *dbustest.Object {
	return bus.Add(dbustest.NewObject(name, MPRIS_PATH).
		On(idbus.PROP_GET, dbustest.Reply(dbus.MakeVariant(status))).
		On(MPRIS_METHOD_PAUSE, dbustest.Reply()))
}

func newTestBackend(names ...string) (*MPRISBackend, *dbustest.Bus) {
	bus := dbustest.NewBus()
	bus.Add(dbustest.NewObject(idbus.DBUS_INTERFACE, idbus.DBUS_PATH).
		On(dbusListNamesMethod, dbustest.Reply(names)))
	return &MPRISBackend{conn: bus, timeout: time.Second}, bus
}

func TestPlayers(t *testing.T) {
	m, _ := newTestBackend(
		"org.freedesktop.DBus",
		"org.mpris.MediaPlayer2.mpd",
		":1.42",
		"org.mpris.MediaPlayer2.spotifyd",
	)
	got, err := m.Players(context.Background())
	if err != nil {
		t.Fatalf("Players() error = %v", err)
	}
	want := []string{"org.mpris.MediaPlayer2.mpd", "org.mpris.MediaPlayer2.spotifyd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Players() = %v, want %v", got, want)
	}
}

func TestReceive_PausesOnlyPlaying(t *testing.T) {
	m, bus := newTestBackend("org.mpris.MediaPlayer2.mpd", "org.mpris.MediaPlayer2.kodi")
	mpd := player(bus, "org.mpris.MediaPlayer2.mpd", "Playing")
	kodi := player(bus, "org.mpris.MediaPlayer2.kodi", "Paused")

	if err := m.Receive(context.Background(), shutdown.Notice{}); err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if got := mpd.Called(); len(got) != 2 || got[1] != MPRIS_METHOD_PAUSE {
		t.Errorf("mpd calls = %v, want Get then Pause", got)
	}
	for _, c := range kodi.Called() {
		if c == MPRIS_METHOD_PAUSE {
			t.Error("paused player must not be paused again")
		}
	}
}

func TestReceive_OnePlayerFailing(t *testing.T) {
	m, bus := newTestBackend("org.mpris.MediaPlayer2.gone", "org.mpris.MediaPlayer2.mpd")
	mpd := player(bus, "org.mpris.MediaPlayer2.mpd", "Playing")

	err := m.Receive(context.Background(), shutdown.Notice{})
	if err == nil || !strings.Contains(err.Error(), "org.mpris.MediaPlayer2.gone") {
		t.Errorf("Receive() error = %v, want the missing player named", err)
	}
	if got := mpd.Called(); len(got) != 2 {
		t.Errorf("mpd calls = %v, the failing player must not stop the others", got)
	}
}

func TestReceive_BusUnreachable(t *testing.T) {
	m := &MPRISBackend{conn: dbustest.NewBus(), timeout: time.Second}
	var unreachable *shutdown.UnreachableError
	if err := m.Receive(context.Background(), shutdown.Notice{}); !errors.As(err, &unreachable) {
		t.Errorf("Receive() error = %v, want unreachable", err)
	}
}
