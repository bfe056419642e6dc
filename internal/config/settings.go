package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/handiism/quicksong/internal/identity"
	ioutils "github.com/handiism/quicksong/internal/io"
	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding settings.
const EnvPrefix = "QUICKSONG"

// Settings holds all configuration options.
type Settings struct {
	// Paths
	DownloadPath string `json:"download_path" mapstructure:"download_path"`
	SongsPath    string `json:"songs_path" mapstructure:"songs_path"`
	CookiesFile  string `json:"cookies_file" mapstructure:"cookies_file"`

	// Account
	Username  string `json:"username" mapstructure:"username"`
	Password  string `json:"password" mapstructure:"password"`
	Signature string `json:"signature" mapstructure:"signature"`

	// Service
	BaseURL       string `json:"base_url" mapstructure:"base_url"`
	ErrorPagePath string `json:"error_page_path" mapstructure:"error_page_path"`

	// Proxy settings
	UseProxy          bool   `json:"use_proxy" mapstructure:"use_proxy"`
	ProxyScheme       string `json:"proxy_scheme" mapstructure:"proxy_scheme"`
	ProxyURL          string `json:"proxy_url" mapstructure:"proxy_url"`
	ProxyLimit        int    `json:"proxy_limit" mapstructure:"proxy_limit"`
	ProxyRefreshAfter int    `json:"proxy_refresh_after" mapstructure:"proxy_refresh_after"`
	ProbeURL          string `json:"probe_url" mapstructure:"probe_url"`

	// Download settings
	MaxInFlight int `json:"max_in_flight" mapstructure:"max_in_flight"`
	Workers     int `json:"workers" mapstructure:"workers"`
	RotateEvery int `json:"rotate_every" mapstructure:"rotate_every"`
	DrainBelow  int `json:"drain_below" mapstructure:"drain_below"`

	// Retry settings, durations in seconds. MaxRetries 0 means unlimited.
	RetryCooldown float64 `json:"retry_cooldown" mapstructure:"retry_cooldown"`
	RetryExponent float64 `json:"retry_exponent" mapstructure:"retry_exponent"`
	RetryMaxDelay float64 `json:"retry_max_delay" mapstructure:"retry_max_delay"`
	MaxRetries    int     `json:"max_retries" mapstructure:"max_retries"`

	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`
	AutoStart         bool    `json:"auto_start" mapstructure:"auto_start"`

	LogLevel string `json:"log_level" mapstructure:"log_level"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadPath: filepath.Join(homeDir, "Downloads"),
		SongsPath:    defaultSongsPath(homeDir),
		CookiesFile:  filepath.Join(DefaultDir(), "osu.cookies"),

		BaseURL:       osu.DefaultBaseURL,
		ErrorPagePath: osu.DefaultErrorPagePath,

		UseProxy:          false,
		ProxyScheme:       "http",
		ProxyURL:          identity.DefaultDirectoryURL,
		ProxyLimit:        identity.DefaultLimit,
		ProxyRefreshAfter: identity.DefaultRefreshAfter,
		ProbeURL:          identity.DefaultProbeURL,

		MaxInFlight:       5,
		Workers:           1,
		RotateEvery:       4,
		DrainBelow:        2,
		RetryCooldown:     0.5,
		RetryExponent:     2,
		RetryMaxDelay:     30,
		MaxRetries:        0,
		RequestsPerSecond: 2,

		LogLevel: "info",
	}
}

func defaultSongsPath(homeDir string) string {
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "osu!", "Songs")
		}
		return filepath.Join(homeDir, "AppData", "Local", "osu!", "Songs")
	}
	return filepath.Join(homeDir, "osu!", "Songs")
}

// DefaultDir returns the directory holding the config and cookie files.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "quicksong")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.json")
}

// ResolvePath maps a config path given on the command line to a file:
// empty means DefaultPath, and a directory means config.json inside it.
func ResolvePath(path string) string {
	if path == "" {
		return DefaultPath()
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, "config.json")
	}
	return path
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads settings from a JSON file, then applies QUICKSONG_*
// environment overrides. A missing file yields the defaults.
//
// The stored password is revealed only on the machine that saved it;
// elsewhere it is cleared.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if _, plain := os.LookupEnv(EnvPrefix + "_PASSWORD"); !plain && settings.Password != "" {
		settings.Password = revealPassword(settings.Password, settings.Signature)
	}
	return settings, nil
}

// setDefaults registers every key so environment overrides apply even
// when the file does not mention them.
func setDefaults(v *viper.Viper, s *Settings) {
	data, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	for k, val := range m {
		v.SetDefault(k, val)
	}
}

// Save writes settings to a JSON file. The password is stored obfuscated
// and bound to this machine's signature.
func (s *Settings) Save(path string) error {
	out := *s
	if out.Password != "" {
		hidden, err := hidePassword(out.Password)
		if err != nil {
			return err
		}
		out.Password = hidden
		out.Signature = Signature()
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return err
	}
	return ioutils.WriteFile(path, data, 0o600)
}

// Validate checks the directories a run needs. Failures are
// model.KindPath errors. An empty songs path disables the songs scan.
func (s *Settings) Validate() error {
	var errs []error
	if _, err := ioutils.CheckDir(s.DownloadPath); err != nil {
		errs = append(errs, fmt.Errorf("download_path: %w", err))
	}
	if s.SongsPath != "" {
		if _, err := ioutils.CheckDir(s.SongsPath); err != nil {
			errs = append(errs, fmt.Errorf("songs_path: %w", err))
		}
	}
	switch strings.ToLower(s.ProxyScheme) {
	case "", "http", "https", "socks5":
	default:
		return fmt.Errorf("proxy_scheme: unsupported scheme %q", s.ProxyScheme)
	}
	if len(errs) > 0 {
		return model.NewError(model.KindPath, 0, errors.Join(errs...))
	}
	return nil
}

// RetryPolicy converts the retry settings.
func (s *Settings) RetryPolicy() model.RetryPolicy {
	return model.RetryPolicy{
		Cooldown:   seconds(s.RetryCooldown),
		Exponent:   s.RetryExponent,
		MaxDelay:   seconds(s.RetryMaxDelay),
		MaxRetries: s.MaxRetries,
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
