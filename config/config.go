package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/b0bbywan/go-odio-powerd/logger"
)

const (
	AppName     = "odio-powerd"
	AppVersion  = "0.1.0"
	serviceType = "_odio-power._tcp"
	domain      = "local."

	DriverLogin1 = "login1"
	DriverKernel = "kernel"
)

type Config struct {
	Api        *ApiConfig
	Bus        *BusConfig
	Shutdown   *ShutdownConfig
	Power      *PowerConfig
	Haptics    *HapticsConfig
	Radio      *RadioConfig
	Bluetooth  *BluetoothConfig
	Storage    *StorageConfig
	Lifecycle  *LifecycleConfig
	Hooks      *HooksConfig
	Zeroconf   *ZeroConfig
	Pulseaudio *PulseAudioConfig
	MPRIS      *MPRISConfig
	LogLevel   logger.Level
	LogLevels  map[string]logger.Level
}

type ApiConfig struct {
	Enabled        bool
	Listen         []string
	ConfirmTimeout time.Duration
	CORSOrigins    []string
}

type BusConfig struct {
	Enabled bool
}

// ShutdownConfig holds the phase bounds of the shutdown pipeline.
type ShutdownConfig struct {
	BroadcastTimeout time.Duration
	LifecycleTimeout time.Duration
	StorageTimeout   time.Duration
	MaxPolls         int
	PollInterval     time.Duration
	Vibrate          time.Duration
}

type PowerConfig struct {
	Driver string
	Settle time.Duration
}

type HapticsConfig struct {
	Enabled bool
	Path    string
}

type RadioConfig struct {
	Enabled bool
}

type BluetoothConfig struct {
	Enabled bool
	Adapter string
}

type StorageConfig struct {
	Enabled bool
}

type LifecycleConfig struct {
	Enabled       bool
	SystemUnits   []string
	UserUnits     []string
	XDGRuntimeDir string
}

type HooksConfig struct {
	Enabled bool
	Dir     string
	Timeout time.Duration
}

type ZeroConfig struct {
	Enabled      bool
	InstanceName string
	ServiceType  string
	Domain       string
	Port         int
	TxtRecords   []string
	Listen       []net.Interface
}

type PulseAudioConfig struct {
	Enabled       bool
	XDGRuntimeDir string
}

type MPRISConfig struct {
	Enabled bool
	Timeout time.Duration
}

// parseLogLevel converts a string to a logger.Level
func parseLogLevel(levelStr string) logger.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return logger.DEBUG
	case "INFO":
		return logger.INFO
	case "WARN":
		return logger.WARN
	case "ERROR":
		return logger.ERROR
	case "FATAL":
		return logger.FATAL
	default:
		return logger.WARN // default
	}
}

func parseLogLevels(raw map[string]string) map[string]logger.Level {
	levels := make(map[string]logger.Level, len(raw))
	for component, level := range raw {
		levels[component] = parseLogLevel(level)
	}
	return levels
}

func interfaceForIP(ip string) (*net.Interface, error) {
	if ip == "127.0.0.1" || ip == "localhost" {
		return nil, nil
	}
	listenIP := net.ParseIP(ip)
	if listenIP == nil {
		return nil, fmt.Errorf("invalid bind: %s", ip)
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			var ifaceIP net.IP

			switch v := addr.(type) {
			case *net.IPNet:
				ifaceIP = v.IP
			case *net.IPAddr:
				ifaceIP = v.IP
			}

			if ifaceIP != nil && ifaceIP.Equal(listenIP) {
				return &iface, nil
			}
		}
	}

	return nil, fmt.Errorf("no interface found for IP %s", ip)
}

// Flags returns the command line flags understood by New.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a config file")
	fs.StringP("log-level", "l", "", "log level (DEBUG, INFO, WARN, ERROR)")
	fs.Bool("version", false, "print version and exit")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "WARN")
	v.SetDefault("log_levels", map[string]string{})

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen", []string{"127.0.0.1:8090"})
	v.SetDefault("api.confirm_timeout", "30s")
	v.SetDefault("api.cors.origins", []string{})

	v.SetDefault("bus.enabled", true)

	v.SetDefault("shutdown.broadcast_timeout", "10s")
	v.SetDefault("shutdown.lifecycle_timeout", "10s")
	v.SetDefault("shutdown.storage_timeout", "20s")
	v.SetDefault("shutdown.max_polls", 16)
	v.SetDefault("shutdown.poll_interval", "500ms")
	v.SetDefault("shutdown.vibrate", "500ms")

	v.SetDefault("power.driver", DriverLogin1)
	v.SetDefault("power.settle", "30s")

	v.SetDefault("haptics.enabled", true)
	v.SetDefault("haptics.path", "")

	v.SetDefault("radio.enabled", true)

	v.SetDefault("bluetooth.enabled", true)
	v.SetDefault("bluetooth.adapter", "hci0")

	v.SetDefault("storage.enabled", true)

	v.SetDefault("lifecycle.enabled", true)
	v.SetDefault("lifecycle.system_units", []string{})
	v.SetDefault("lifecycle.user_units", []string{})

	v.SetDefault("hooks.enabled", true)
	v.SetDefault("hooks.dir", filepath.Join("/etc", AppName, "shutdown.d"))
	v.SetDefault("hooks.timeout", "5s")

	v.SetDefault("zeroconf.enabled", false)
	v.SetDefault("pulseaudio.enabled", false)
	v.SetDefault("mpris.enabled", false)
	v.SetDefault("mpris.timeout", "2s")
}

// New loads the configuration from the config file lookup path and the
// given flags. flags may be nil.
func New(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")                       // name of config file (without extension)
	v.SetConfigType("yaml")                         // config file format
	v.AddConfigPath(filepath.Join("/etc", AppName)) // Global configuration path
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", AppName)) // User config path
	}

	if flags != nil {
		if f := flags.Lookup("log-level"); f != nil && f.Changed {
			if err := v.BindPFlag("LogLevel", f); err != nil {
				return nil, err
			}
		}
		if file, _ := flags.GetString("config"); file != "" {
			v.SetConfigFile(file)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with defaults if not found
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn("[config] failed to read config: %v", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	shutdownCfg := ShutdownConfig{
		BroadcastTimeout: v.GetDuration("shutdown.broadcast_timeout"),
		LifecycleTimeout: v.GetDuration("shutdown.lifecycle_timeout"),
		StorageTimeout:   v.GetDuration("shutdown.storage_timeout"),
		MaxPolls:         v.GetInt("shutdown.max_polls"),
		PollInterval:     v.GetDuration("shutdown.poll_interval"),
		Vibrate:          v.GetDuration("shutdown.vibrate"),
	}
	if shutdownCfg.MaxPolls <= 0 {
		return nil, fmt.Errorf("invalid shutdown.max_polls: %d", shutdownCfg.MaxPolls)
	}
	if shutdownCfg.Vibrate < 0 {
		shutdownCfg.Vibrate = 0
	}

	powerCfg := PowerConfig{
		Driver: strings.ToLower(v.GetString("power.driver")),
		Settle: v.GetDuration("power.settle"),
	}
	if powerCfg.Driver != DriverLogin1 && powerCfg.Driver != DriverKernel {
		return nil, fmt.Errorf("invalid power.driver: %q (want %s or %s)", powerCfg.Driver, DriverLogin1, DriverKernel)
	}

	apiCfg := ApiConfig{
		Enabled:        v.GetBool("api.enabled"),
		Listen:         v.GetStringSlice("api.listen"),
		ConfirmTimeout: v.GetDuration("api.confirm_timeout"),
		CORSOrigins:    v.GetStringSlice("api.cors.origins"),
	}
	if apiCfg.Enabled && len(apiCfg.Listen) == 0 {
		return nil, errors.New("api.listen must not be empty when the api is enabled")
	}
	if apiCfg.ConfirmTimeout <= 0 {
		apiCfg.ConfirmTimeout = 30 * time.Second
	}

	port, interfaces, err := zeroconfListen(apiCfg.Listen)
	if err != nil && apiCfg.Enabled {
		return nil, err
	}

	xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if xdgRuntimeDir == "" {
		xdgRuntimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}

	hooksTimeout := v.GetDuration("hooks.timeout")
	if hooksTimeout <= 0 {
		hooksTimeout = 5 * time.Second
	}

	mprisTimeout := v.GetDuration("mpris.timeout")
	if mprisTimeout <= 0 {
		mprisTimeout = 2 * time.Second
	}

	cfg := Config{
		Api:      &apiCfg,
		Bus:      &BusConfig{Enabled: v.GetBool("bus.enabled")},
		Shutdown: &shutdownCfg,
		Power:    &powerCfg,
		Haptics: &HapticsConfig{
			Enabled: v.GetBool("haptics.enabled"),
			Path:    v.GetString("haptics.path"),
		},
		Radio: &RadioConfig{Enabled: v.GetBool("radio.enabled")},
		Bluetooth: &BluetoothConfig{
			Enabled: v.GetBool("bluetooth.enabled"),
			Adapter: v.GetString("bluetooth.adapter"),
		},
		Storage: &StorageConfig{Enabled: v.GetBool("storage.enabled")},
		Lifecycle: &LifecycleConfig{
			Enabled:       v.GetBool("lifecycle.enabled"),
			SystemUnits:   v.GetStringSlice("lifecycle.system_units"),
			UserUnits:     v.GetStringSlice("lifecycle.user_units"),
			XDGRuntimeDir: xdgRuntimeDir,
		},
		Hooks: &HooksConfig{
			Enabled: v.GetBool("hooks.enabled"),
			Dir:     v.GetString("hooks.dir"),
			Timeout: hooksTimeout,
		},
		Zeroconf: &ZeroConfig{
			Enabled:      v.GetBool("zeroconf.enabled") && apiCfg.Enabled,
			InstanceName: AppName,
			ServiceType:  serviceType,
			Domain:       domain,
			Port:         port,
			TxtRecords:   []string{"version=" + AppVersion},
			Listen:       interfaces,
		},
		Pulseaudio: &PulseAudioConfig{
			Enabled:       v.GetBool("pulseaudio.enabled"),
			XDGRuntimeDir: xdgRuntimeDir,
		},
		MPRIS: &MPRISConfig{
			Enabled: v.GetBool("mpris.enabled"),
			Timeout: mprisTimeout,
		},
		LogLevel:  parseLogLevel(v.GetString("LogLevel")),
		LogLevels: parseLogLevels(v.GetStringMapString("log_levels")),
	}

	return &cfg, nil
}

// zeroconfListen derives the announced port and interfaces from the api
// listen addresses. The first address gives the port.
func zeroconfListen(listen []string) (int, []net.Interface, error) {
	var port int
	var interfaces []net.Interface
	for i, addr := range listen {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid api.listen %q: %w", addr, err)
		}
		if i == 0 {
			if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port <= 0 || port > 65535 {
				return 0, nil, fmt.Errorf("invalid port in api.listen %q", addr)
			}
		}
		if host == "" {
			continue
		}
		if inet, err := interfaceForIP(host); err == nil && inet != nil {
			interfaces = append(interfaces, *inet)
		}
	}
	return port, interfaces, nil
}
