package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notekeep/internal/imaging"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Auth    AuthConfig        `yaml:"auth"`
	Images  ImagesConfig      `yaml:"images"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Images.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where the two note lists are persisted.
//
// Backend is one of:
//   - "fs" (default): one JSON file per list inside the Path directory.
//   - "sqlite": a key-value table in the database file at Path.
//   - "memory": nothing is persisted; Path is ignored.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFS, BackendSQLite, BackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend != BackendMemory, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ImagesConfig controls how attached pictures are recompressed.
type ImagesConfig struct {
	MaxDimension   int   `yaml:"max_dimension"`
	Quality        int   `yaml:"quality"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDimension, validation.Required, validation.Min(16), validation.Max(8192)),
		validation.Field(&c.Quality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1024))),
	)
}

// Encoder returns an image encoder for this configuration.
func (c *ImagesConfig) Encoder() *imaging.Encoder {
	return imaging.NewEncoder(c.MaxDimension, c.Quality)
}

// WatchConfig controls reloading when the list files are edited externally.
// Only the fs backend is watched.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(time.Minute)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend: BackendFS,
			Path:    "./data",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Images: ImagesConfig{
			MaxDimension:   imaging.DefaultMaxDimension,
			Quality:        imaging.DefaultQuality,
			MaxUploadBytes: 20 << 20,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
	}
}
