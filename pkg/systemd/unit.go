package systemd

import (
	"bytes"
	"text/template"
	"time"
)

// UnitName is the unit the daemon is installed as.
const UnitName = "routined.service"

// Status is the state of a systemd unit.
type Status struct {
	Name        string
	Active      string // active, inactive, failed
	SubState    string // running, dead
	LoadState   string // loaded, not-found
	Description string
	ActiveSince time.Time
	MainPID     uint32
}

// Found is false when systemd does not know the unit.
func (s Status) Found() bool { return s.LoadState != "" && s.LoadState != "not-found" }

var unitTmpl = template.Must(template.New("unit").Parse(`[Unit]
Description=routined reminder daemon
After=network-online.target

[Service]
Type=notify
ExecStart={{.Exe}} serve --config {{.Config}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

// UnitFile renders a Type=notify unit running exe with configPath.
func UnitFile(exe, configPath string) (string, error) {
	var b bytes.Buffer
	err := unitTmpl.Execute(&b, struct{ Exe, Config string }{exe, configPath})
	return b.String(), err
}
