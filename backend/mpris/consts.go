package mpris

const (
	MPRIS_PREFIX       = "org.mpris.MediaPlayer2"
	MPRIS_PATH         = "/org/mpris/MediaPlayer2"
	MPRIS_PLAYER_IFACE = "org.mpris.MediaPlayer2.Player"

	MPRIS_METHOD_PAUSE = MPRIS_PLAYER_IFACE + ".Pause"
	MPRIS_PROP_STATUS  = "PlaybackStatus"

	dbusListNamesMethod = "org.freedesktop.DBus.ListNames"
)

type PlaybackStatus string

const (
	StatusPlaying PlaybackStatus = "Playing"
	StatusPaused  PlaybackStatus = "Paused"
	StatusStopped PlaybackStatus = "Stopped"
)
