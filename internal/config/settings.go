package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backend names accepted in Settings.Backend.
const (
	BackendFirestore   = "firestore"
	BackendGoogleTasks = "googletasks"
)

// Locator names accepted in Settings.Locator.
const (
	LocatorIP     = "ip"
	LocatorStatic = "static"
)

// Settings is the tunable part of the configuration.
// Values come from settings.yaml, overridden by TASKBOARD_* environment variables.
type Settings struct {
	Backend          string `yaml:"backend" env:"TASKBOARD_BACKEND" env-default:"firestore"`
	FirestoreProject string `yaml:"firestore_project" env:"TASKBOARD_FIRESTORE_PROJECT"`

	WebhookCreatedURL  string `yaml:"webhook_created_url" env:"TASKBOARD_WEBHOOK_CREATED_URL"`
	WebhookDeletedURL  string `yaml:"webhook_deleted_url" env:"TASKBOARD_WEBHOOK_DELETED_URL"`
	WebhookLocationURL string `yaml:"webhook_location_url" env:"TASKBOARD_WEBHOOK_LOCATION_URL"`

	GeocoderURL       string `yaml:"geocoder_url" env:"TASKBOARD_GEOCODER_URL" env-default:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string `yaml:"geocoder_user_agent" env:"TASKBOARD_GEOCODER_USER_AGENT" env-default:"taskboard/0.1"`

	Locator    string  `yaml:"locator" env:"TASKBOARD_LOCATOR" env-default:"ip"`
	LocatorURL string  `yaml:"locator_url" env:"TASKBOARD_LOCATOR_URL" env-default:"http://ip-api.com/json"`
	Latitude   float64 `yaml:"latitude" env:"TASKBOARD_LATITUDE"`
	Longitude  float64 `yaml:"longitude" env:"TASKBOARD_LONGITUDE"`

	LocationTTL     time.Duration `yaml:"location_ttl" env:"TASKBOARD_LOCATION_TTL" env-default:"5m"`
	LocationTimeout time.Duration `yaml:"location_timeout" env:"TASKBOARD_LOCATION_TIMEOUT" env-default:"10s"`

	NotifyMaxAttempts int           `yaml:"notify_max_attempts" env:"TASKBOARD_NOTIFY_MAX_ATTEMPTS" env-default:"3"`
	NotifyBaseDelay   time.Duration `yaml:"notify_base_delay" env:"TASKBOARD_NOTIFY_BASE_DELAY" env-default:"1s"`

	WeekStart string `yaml:"week_start" env:"TASKBOARD_WEEK_START" env-default:"sunday"`

	MetricsTextfile string `yaml:"metrics_textfile" env:"TASKBOARD_METRICS_TEXTFILE"`
	LogLevel        string `yaml:"log_level" env:"TASKBOARD_LOG_LEVEL" env-default:"debug"`
}

// DefaultSettings returns settings populated only from env-default tags.
func DefaultSettings() Settings {
	var s Settings
	_ = cleanenv.ReadEnv(&s)
	return s
}

// LoadSettings reads settings from path, falling back to the environment
// when the file does not exist.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if err := cleanenv.ReadConfig(path, &s); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&s); err != nil {
			return Settings{}, fmt.Errorf("read settings from env: %w", err)
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks enumerated values and numeric bounds.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendFirestore, BackendGoogleTasks:
	default:
		return fmt.Errorf("invalid backend: %q", s.Backend)
	}
	switch s.Locator {
	case LocatorIP, LocatorStatic:
	default:
		return fmt.Errorf("invalid locator: %q", s.Locator)
	}
	if _, err := ParseWeekday(s.WeekStart); err != nil {
		return err
	}
	if s.NotifyMaxAttempts < 1 {
		return fmt.Errorf("notify_max_attempts must be >= 1, got %d", s.NotifyMaxAttempts)
	}
	if s.LocationTTL <= 0 || s.LocationTimeout <= 0 {
		return errors.New("location_ttl and location_timeout must be positive")
	}
	return nil
}

// ParseWeekday parses an English weekday name, case-insensitive.
func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid week_start: %q", name)
}
