package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
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

type renderedConfig struct {
	Link struct {
		SSID             string `toml:"ssid" yaml:"ssid"`
		Passphrase       string `toml:"passphrase" yaml:"passphrase"`
		Interface        string `toml:"interface" yaml:"interface"`
		Supplicant       string `toml:"supplicant" yaml:"supplicant"`
		CoolDown         string `toml:"cooldown" yaml:"cooldown"`
		AssociateTimeout string `toml:"associate_timeout" yaml:"associate_timeout"`
	} `toml:"link" yaml:"link"`
	Stack struct {
		MaxSockets int `toml:"max_sockets" yaml:"max_sockets"`
		RXBuffer   int `toml:"rx_buffer" yaml:"rx_buffer"`
		TXBuffer   int `toml:"tx_buffer" yaml:"tx_buffer"`
	} `toml:"stack" yaml:"stack"`
	Session struct {
		Remote      string `toml:"remote" yaml:"remote"`
		Request     string `toml:"request" yaml:"request"`
		Pace        string `toml:"pace" yaml:"pace"`
		CoolDown    string `toml:"cooldown" yaml:"cooldown"`
		ReadyPoll   string `toml:"ready_poll" yaml:"ready_poll"`
		IdleTimeout string `toml:"idle_timeout" yaml:"idle_timeout"`
		ReadChunk   int    `toml:"read_chunk" yaml:"read_chunk"`
		MaxAttempts int    `toml:"max_attempts" yaml:"max_attempts"`
	} `toml:"session" yaml:"session"`
	Status struct {
		Listen      string   `toml:"listen" yaml:"listen"`
		CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
		Token       string   `toml:"token" yaml:"token"`
	} `toml:"status" yaml:"status"`
	Log struct {
		Level   string `toml:"level" yaml:"level"`
		File    string `toml:"file" yaml:"file"`
		NoColor bool   `toml:"no_color" yaml:"no_color"`
	} `toml:"log" yaml:"log"`
}

// Render encodes the effective configuration. The passphrase is masked unless
// reveal is set.
func Render(cfg Config, format string, reveal bool) ([]byte, error) {
	var out renderedConfig
	out.Link.SSID = cfg.Link.SSID
	out.Link.Passphrase = cfg.Link.Passphrase
	if !reveal && out.Link.Passphrase != "" {
		out.Link.Passphrase = "********"
	}
	out.Link.Interface = cfg.Link.Interface
	out.Link.Supplicant = cfg.Link.Supplicant
	out.Link.CoolDown = cfg.Link.CoolDown.String()
	out.Link.AssociateTimeout = cfg.Link.AssociateTimeout.String()
	out.Stack.MaxSockets = cfg.Stack.MaxSockets
	out.Stack.RXBuffer = cfg.Stack.RXBuffer
	out.Stack.TXBuffer = cfg.Stack.TXBuffer
	out.Session.Remote = cfg.Session.Remote
	out.Session.Request = cfg.Session.Request
	out.Session.Pace = cfg.Session.Pace.String()
	out.Session.CoolDown = cfg.Session.CoolDown.String()
	out.Session.ReadyPoll = cfg.Session.ReadyPoll.String()
	out.Session.IdleTimeout = cfg.Session.IdleTimeout.String()
	out.Session.ReadChunk = cfg.Session.ReadChunk
	out.Session.MaxAttempts = cfg.Session.MaxAttempts
	out.Status.Listen = cfg.Status.Listen
	out.Status.CorsOrigins = cfg.Status.CorsOrigins
	out.Status.Token = cfg.Status.Token
	if !reveal && out.Status.Token != "" {
		out.Status.Token = "********"
	}
	if out.Status.CorsOrigins == nil {
		out.Status.CorsOrigins = []string{}
	}
	out.Log.Level = cfg.Log.Level
	out.Log.File = cfg.Log.File
	out.Log.NoColor = cfg.Log.NoColor

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		return toml.Marshal(out)
	case "yaml", "yml":
		return yaml.Marshal(out)
	default:
		return nil, fmt.Errorf("unknown config format: %s", format)
	}
}

const tomlTemplate = `[link]
ssid = "edge-ap"
passphrase = ""
interface = "wlan0"
supplicant = ""
cooldown = "5s"
associate_timeout = "15s"

[stack]
max_sockets = 3
rx_buffer = 4096
tx_buffer = 4096

[session]
remote = "142.250.185.115:80"
request = "GET / HTTP/1.0\r\nHost: www.mobile-j.de\r\n\r\n"
pace = "1s"
cooldown = "3s"
ready_poll = "500ms"
idle_timeout = "10s"
read_chunk = 1024
max_attempts = 0

[status]
listen = ":9180"
cors_origins = []
token = ""

[log]
level = "info"
file = ""
no_color = false
`

const yamlTemplate = `link:
  ssid: edge-ap
  passphrase: ""
  interface: wlan0
  supplicant: ""
  cooldown: 5s
  associate_timeout: 15s
stack:
  max_sockets: 3
  rx_buffer: 4096
  tx_buffer: 4096
session:
  remote: 142.250.185.115:80
  request: "GET / HTTP/1.0\r\nHost: www.mobile-j.de\r\n\r\n"
  pace: 1s
  cooldown: 3s
  ready_poll: 500ms
  idle_timeout: 10s
  read_chunk: 1024
  max_attempts: 0
status:
  listen: ":9180"
  cors_origins: []
  token: ""
log:
  level: info
  file: ""
  no_color: false
`
