package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Link    *fileLink    `toml:"link" yaml:"link"`
	Stack   *fileStack   `toml:"stack" yaml:"stack"`
	Session *fileSession `toml:"session" yaml:"session"`
	Status  *fileStatus  `toml:"status" yaml:"status"`
	Log     *fileLog     `toml:"log" yaml:"log"`
}

type fileLink struct {
	SSID             *string `toml:"ssid" yaml:"ssid"`
	Passphrase       *string `toml:"passphrase" yaml:"passphrase"`
	Interface        *string `toml:"interface" yaml:"interface"`
	Supplicant       *string `toml:"supplicant" yaml:"supplicant"`
	CoolDown         *string `toml:"cooldown" yaml:"cooldown"`
	AssociateTimeout *string `toml:"associate_timeout" yaml:"associate_timeout"`
}

type fileStack struct {
	MaxSockets *int `toml:"max_sockets" yaml:"max_sockets"`
	RXBuffer   *int `toml:"rx_buffer" yaml:"rx_buffer"`
	TXBuffer   *int `toml:"tx_buffer" yaml:"tx_buffer"`
}

type fileSession struct {
	Remote      *string `toml:"remote" yaml:"remote"`
	Request     *string `toml:"request" yaml:"request"`
	Pace        *string `toml:"pace" yaml:"pace"`
	CoolDown    *string `toml:"cooldown" yaml:"cooldown"`
	ReadyPoll   *string `toml:"ready_poll" yaml:"ready_poll"`
	IdleTimeout *string `toml:"idle_timeout" yaml:"idle_timeout"`
	ReadChunk   *int    `toml:"read_chunk" yaml:"read_chunk"`
	MaxAttempts *int    `toml:"max_attempts" yaml:"max_attempts"`
}

type fileStatus struct {
	Listen      *string  `toml:"listen" yaml:"listen"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	Token       *string  `toml:"token" yaml:"token"`
}

type fileLog struct {
	Level   *string `toml:"level" yaml:"level"`
	File    *string `toml:"file" yaml:"file"`
	NoColor *bool   `toml:"no_color" yaml:"no_color"`
}

// Load reads path (TOML, or YAML for .yaml/.yml) over Default, applies env
// credential overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &raw)
	default:
		err = decodeTOML(data, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	cfg := Default()
	if err := raw.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeTOML(data []byte, out *fileConfig) error {
	meta, err := toml.Decode(string(data), out)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, out *fileConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (f fileConfig) apply(cfg *Config) error {
	if l := f.Link; l != nil {
		setString(&cfg.Link.SSID, l.SSID)
		setString(&cfg.Link.Passphrase, l.Passphrase)
		setString(&cfg.Link.Interface, l.Interface)
		setString(&cfg.Link.Supplicant, l.Supplicant)
		if err := setDuration(&cfg.Link.CoolDown, l.CoolDown, "link.cooldown"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Link.AssociateTimeout, l.AssociateTimeout, "link.associate_timeout"); err != nil {
			return err
		}
	}
	if s := f.Stack; s != nil {
		setInt(&cfg.Stack.MaxSockets, s.MaxSockets)
		setInt(&cfg.Stack.RXBuffer, s.RXBuffer)
		setInt(&cfg.Stack.TXBuffer, s.TXBuffer)
	}
	if s := f.Session; s != nil {
		setString(&cfg.Session.Remote, s.Remote)
		setString(&cfg.Session.Request, s.Request)
		for _, d := range []struct {
			dst  *time.Duration
			raw  *string
			name string
		}{
			{&cfg.Session.Pace, s.Pace, "session.pace"},
			{&cfg.Session.CoolDown, s.CoolDown, "session.cooldown"},
			{&cfg.Session.ReadyPoll, s.ReadyPoll, "session.ready_poll"},
			{&cfg.Session.IdleTimeout, s.IdleTimeout, "session.idle_timeout"},
		} {
			if err := setDuration(d.dst, d.raw, d.name); err != nil {
				return err
			}
		}
		setInt(&cfg.Session.ReadChunk, s.ReadChunk)
		setInt(&cfg.Session.MaxAttempts, s.MaxAttempts)
	}
	if s := f.Status; s != nil {
		if s.Listen != nil {
			cfg.Status.Listen = strings.TrimSpace(*s.Listen)
		}
		if s.CorsOrigins != nil {
			cfg.Status.CorsOrigins = normalizeList(s.CorsOrigins)
		}
		setString(&cfg.Status.Token, s.Token)
	}
	if l := f.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setString(&cfg.Log.File, l.File)
		if l.NoColor != nil {
			cfg.Log.NoColor = *l.NoColor
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, raw *string, name string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	*dst = d
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
