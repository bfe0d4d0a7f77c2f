package backend

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
)

const (
	UNKNOWN         = "unknown"
	OS_RELEASE_FILE = "/etc/os-release"
)

var osVersion string

type ServerDeviceInfo struct {
	Hostname   string   `json:"hostname"`
	OSPlatform string   `json:"os_platform"`
	OSVersion  string   `json:"os_version"`
	APISW      string   `json:"api_sw"`
	APIVersion string   `json:"api_version"`
	Backends   Backends `json:"backends"`
}

type Backends struct {
	Power     string   `json:"power"`
	Haptics   bool     `json:"haptics"`
	Radio     bool     `json:"radio"`
	Bluetooth bool     `json:"bluetooth"`
	Storage   bool     `json:"storage"`
	Lifecycle bool     `json:"lifecycle"`
	Receivers []string `json:"receivers"`
}

func init() {
	osVersion = readOSRelease()
}

func parseKeyValue(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(value, `"`)
	}

	return out, scanner.Err()
}

func readOSRelease() string {
	file, err := os.Open(OS_RELEASE_FILE)
	if err != nil {
		return UNKNOWN
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("[backend] failed to close %s: %v", OS_RELEASE_FILE, err)
		}
	}()

	var content map[string]string
	content, err = parseKeyValue(file)
	if err != nil {
		logger.Debug("[backend] failed to parse %s: %v", OS_RELEASE_FILE, err)
	}

	switch {
	case content["PRETTY_NAME"] != "":
		return content["PRETTY_NAME"]
	case content["NAME"] != "":
		return content["NAME"]
	default:
		return UNKNOWN
	}
}

func (b *Backend) GetServerDeviceInfo() (ServerDeviceInfo, error) {
	hostname, err := os.Hostname()
	if err != nil {
		logger.Debug("[backend] failed to get hostname: %v", err)
		hostname = UNKNOWN
	}

	platform := runtime.GOOS + "/" + runtime.GOARCH

	return ServerDeviceInfo{
		Hostname:   hostname,
		OSPlatform: platform,
		OSVersion:  osVersion,
		APISW:      config.AppName,
		APIVersion: config.AppVersion,
		Backends: b.backends(),
	}, nil
}

func (b *Backend) backends() Backends {
	out := Backends{
		Radio:     b.Modem != nil,
		Bluetooth: b.Bluetooth != nil,
		Storage:   b.UDisks != nil,
		Lifecycle: b.Systemd != nil,
	}
	if b.Power != nil {
		out.Power = b.Power.Driver
		out.Haptics = b.Power.vibrator != nil
	}
	if b.Notice != nil {
		out.Receivers = b.Notice.Receivers()
	}
	return out
}
