package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Viper reads YAML (or any viper format) with environment overrides: a key
// such as "database.url" is also looked up as DATABASE_URL. File-backed
// configs are watched, so keys read per request, like
// http.maintenance_endpoints, follow edits without a restart.
type Viper struct {
	mu sync.RWMutex
	v  *viper.Viper
}

func NewViper(file string) (*Viper, error) {
	v, err := loadFile(file)
	if err != nil {
		return nil, err
	}
	vc := &Viper{v: v}

	// The watcher instance is never read from. Each change is loaded into a
	// fresh tree and swapped in whole, so a bad edit keeps the last good one.
	watcher := newViper()
	watcher.SetConfigFile(file)
	watcher.OnConfigChange(func(ev fsnotify.Event) {
		next, err := loadFile(file)
		if err != nil {
			slog.Error("config reload failed", "path", file, "error", err)
			return
		}
		vc.mu.Lock()
		vc.v = next
		vc.mu.Unlock()
		slog.Info("config reloaded", "path", file, "op", ev.Op.String())
	})
	watcher.WatchConfig()

	return vc, nil
}

func loadFile(file string) (*viper.Viper, error) {
	v := newViper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// NewViperFromBytes parses data of the given viper config type, e.g. "yaml".
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config: type is required")
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func (vc *Viper) read(fn func(v *viper.Viper)) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	fn(vc.v)
}

func (vc *Viper) GetString(key string) (s string) {
	vc.read(func(v *viper.Viper) { s = v.GetString(key) })
	return s
}

func (vc *Viper) GetInt(key string) (n int) {
	vc.read(func(v *viper.Viper) { n = v.GetInt(key) })
	return n
}

func (vc *Viper) GetBool(key string) (b bool) {
	vc.read(func(v *viper.Viper) { b = v.GetBool(key) })
	return b
}

func (vc *Viper) GetSecond(key string) (d time.Duration) {
	vc.read(func(v *viper.Viper) { d = time.Duration(v.GetInt64(key)) * time.Second })
	return d
}

func (vc *Viper) GetDuration(key string) (d time.Duration) {
	vc.read(func(v *viper.Viper) { d = v.GetDuration(key) })
	return d
}

// GetBinary returns nil when the value is not valid base64.
func (vc *Viper) GetBinary(key string) []byte {
	data, err := base64.StdEncoding.DecodeString(vc.GetString(key))
	if err != nil {
		return nil
	}
	return data
}

// GetArray accepts a YAML list or a comma separated string, which is what an
// environment override can express.
func (vc *Viper) GetArray(key string) (out []string) {
	vc.read(func(v *viper.Viper) {
		if _, ok := v.Get(key).([]any); ok {
			out = v.GetStringSlice(key)
			return
		}
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			return
		}
		for part := range strings.SplitSeq(raw, ",") {
			out = append(out, strings.TrimSpace(part))
		}
	})
	return out
}

func (vc *Viper) GetMap(key string) map[string]string {
	m := make(map[string]string)
	for pair := range strings.SplitSeq(vc.GetString(key), ",") {
		if k, v, ok := strings.Cut(pair, ":"); ok {
			m[k] = v
		}
	}
	return m
}

func (vc *Viper) Close() error { return nil }
