package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

const EnvPrefix = "STORYREEL_"

// Config controls runtime behavior of the viewer.
type Config struct {
	Dev       bool   `env:"DEV"`
	DevHTTP   string `env:"DEV_HTTP"`
	LogPath   string `env:"LOG_PATH"`
	LogFormat string `env:"LOG_FORMAT"`
	Debug     bool   `env:"DEBUG"`
	DataDir   string `env:"DATA_DIR"`
	Demo      string `env:"DEMO"`
	ExitOnEnd bool   `env:"EXIT_ON_END"`

	Media MediaConfig `envPrefix:"MEDIA_"`
	UI    UIConfig    `envPrefix:"UI_"`
}

type MediaConfig struct {
	Preload              int    `env:"PRELOAD"`
	CacheMaxBytes        int64  `env:"CACHE_MAX_BYTES"`
	FetchRetries         uint64 `env:"FETCH_RETRIES"`
	AllowUnmutedAutoplay bool   `env:"ALLOW_UNMUTED_AUTOPLAY"`
	FFProbePath          string `env:"FFPROBE"`
	Offline              bool   `env:"OFFLINE"`
}

type UIConfig struct {
	StyleVariant string `env:"STYLE"`
	MotionLevel  string `env:"MOTION"`
	CellWidth    int    `env:"CELL_WIDTH"`
	CellHeight   int    `env:"CELL_HEIGHT"`
}

func DefaultConfig() Config {
	return Config{
		DevHTTP:   "127.0.0.1:17321",
		LogFormat: "json",
		Media: MediaConfig{
			Preload:       3,
			CacheMaxBytes: 64 << 20,
			FetchRetries:  3,
		},
		UI: UIConfig{
			StyleVariant: "dusk",
			MotionLevel:  "full",
			CellWidth:    8,
			CellHeight:   16,
		},
	}
}

// LoadConfig overlays STORYREEL_* environment variables on the defaults.
func LoadConfig() (Config, error) {
	return loadConfig(nil)
}

func loadConfig(environ map[string]string) (Config, error) {
	cfg := DefaultConfig()
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LogFormat {
	case "", "json", "text", "logfmt":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Media.Preload < 0 {
		return fmt.Errorf("invalid preload count %d", c.Media.Preload)
	}
	if c.Media.CacheMaxBytes < 0 {
		return fmt.Errorf("invalid cache size %d", c.Media.CacheMaxBytes)
	}
	switch c.UI.StyleVariant {
	case "", "dusk", "daylight", "retro":
	default:
		return fmt.Errorf("invalid ui style variant %q", c.UI.StyleVariant)
	}
	if c.UI.StyleVariant == "" {
		c.UI.StyleVariant = "dusk"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}
	if c.UI.CellWidth <= 0 {
		c.UI.CellWidth = 8
	}
	if c.UI.CellHeight <= 0 {
		c.UI.CellHeight = 16
	}

	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.New("cannot resolve user home directory")
		}
		c.DataDir = filepath.Join(home, ".local", "share", "storyreel")
	}

	return nil
}
