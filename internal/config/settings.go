package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AkatukiSora/mapassist/internal/game"
)

// EnvPrefix is prepended to every settings variable.
const EnvPrefix = "MAPASSIST_"

// Settings holds the runtime configuration read from the environment.
type Settings struct {
	APIEndpoint    string        `env:"API_ENDPOINT" envDefault:"http://localhost:8080/"`
	ProcessName    string        `env:"PROCESS_NAME" envDefault:"D2R.exe"`
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"100ms"`

	// PrefetchAreas and HiddenAreas are comma separated area names.
	PrefetchAreas string `env:"PREFETCH_AREAS"`
	HiddenAreas   string `env:"HIDDEN_AREAS"`

	ClearPrefetchedOnAreaChange bool `env:"CLEAR_PREFETCHED_ON_AREA_CHANGE" envDefault:"false"`
	ToggleViaInGameMap          bool `env:"TOGGLE_VIA_IN_GAME_MAP" envDefault:"true"`

	OffsetsFile      string        `env:"OFFSETS_FILE"`
	ArchivePath      string        `env:"ARCHIVE_PATH"`
	ArchiveRetention time.Duration `env:"ARCHIVE_RETENTION" envDefault:"168h"`
	FeedAddr         string        `env:"FEED_ADDR" envDefault:"127.0.0.1:5151"`
	Debug            bool          `env:"DEBUG"`
}

// LoadSettings reads Settings from the process environment.
func LoadSettings() (Settings, error) {
	return parseSettings(nil)
}

// parseSettings reads Settings from environ, or from the process environment
// when environ is nil.
func parseSettings(environ map[string]string) (Settings, error) {
	var s Settings
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if environ == nil {
		opts.Environment = env.ToMap(os.Environ())
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.normalize(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) normalize() error {
	s.APIEndpoint = strings.TrimSpace(s.APIEndpoint)
	if s.APIEndpoint == "" {
		return fmt.Errorf("%sAPI_ENDPOINT must not be empty", EnvPrefix)
	}
	// Request paths are appended to the endpoint verbatim.
	if !strings.HasSuffix(s.APIEndpoint, "/") {
		s.APIEndpoint += "/"
	}
	if s.UpdateInterval <= 0 {
		return fmt.Errorf("%sUPDATE_INTERVAL must be positive, got %s", EnvPrefix, s.UpdateInterval)
	}
	if s.ArchiveRetention < 0 {
		return fmt.Errorf("%sARCHIVE_RETENTION must not be negative, got %s", EnvPrefix, s.ArchiveRetention)
	}
	if strings.TrimSpace(s.ProcessName) == "" {
		return fmt.Errorf("%sPROCESS_NAME must not be empty", EnvPrefix)
	}
	return nil
}

// Prefetch returns the areas to warm as soon as a session starts.
func (s Settings) Prefetch() []game.Area {
	return game.ParseAreaList(s.PrefetchAreas)
}

// Hidden returns the areas in which no map is shown.
func (s Settings) Hidden() []game.Area {
	return game.ParseAreaList(s.HiddenAreas)
}
