package config

import (
	"fmt"
	"os"
	"strings"
)

// Kinds lists the template names accepted by Template.
var Kinds = []string{"serial", "legacy", "tcp", "file"}

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "serial", "dsmr5":
		return serialTemplate, nil
	case "legacy", "dsmr2":
		return legacyTemplate, nil
	case "tcp":
		return tcpTemplate, nil
	case "file":
		return fileTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const common = `name = "p1ctl"
http_addr = ":9200"
cors_origins = ["http://localhost:3000"]
heartbeat = "1m"
buffer_size = 1024
max_reconnects = 0
keep_invalid = false

[backoff]
initial = "500ms"
multiplier = 2.0
max = "30s"
jitter = true
`

const serialTemplate = common + `
[transport]
kind = "serial"
device = "/dev/ttyUSB0"
baud = 115200
data_bits = 8
parity = "N"
stop_bits = 1
`

// DSMR 2.2 and 3.0 meters.
const legacyTemplate = common + `
[transport]
kind = "serial"
device = "/dev/ttyUSB0"
baud = 9600
data_bits = 7
parity = "E"
stop_bits = 1
`

const tcpTemplate = common + `
[transport]
kind = "tcp"
address = "192.168.1.50:2001"
dial_timeout = "5s"
`

const fileTemplate = common + `
[transport]
kind = "file"
path = "capture.p1"
`
