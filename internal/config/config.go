// Package config reads the settings of the KeepInTouch service from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/recents"
)

// EnvPrefix is prepended to the upper case setting names when read from the environment, for
// example KEEPINTOUCH_STORE_CACHE_SIZE.
const EnvPrefix = "KEEPINTOUCH"

type Config struct {
	Port          int                 `mapstructure:"port"`
	GinLogging    string              `mapstructure:"gin_logging"`
	Debug         bool                `mapstructure:"debug"`
	SeedFile      string              `mapstructure:"seed_file"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Device        DeviceConfig        `mapstructure:"device"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Migrate  bool   `mapstructure:"migrate"`
}

type StoreConfig struct {
	CacheSize              int     `mapstructure:"cache_size"`
	RejectDuplicates       bool    `mapstructure:"reject_duplicates"`
	RollbackOnPersistError bool    `mapstructure:"rollback_on_persist_error"`
	RadiusMeters           float64 `mapstructure:"radius_meters"`
	GeocodeWorkers         int     `mapstructure:"geocode_workers"`
}

type DeviceConfig struct {
	// Location is the initial device position as "latitude,longitude". Empty means unknown.
	Location string `mapstructure:"location"`
}

type NotificationsConfig struct {
	// Timezone is the IANA zone in which stored reminder dates are written and read. Contacts
	// logged without a date are stamped in it too.
	Timezone string `mapstructure:"timezone"`
}

// legacyEnv maps settings to the environment variables the service has always understood.
var legacyEnv = map[string]string{
	"port":              "PORT",
	"gin_logging":       "GIN_LOGGING",
	"database.user":     "DBUSER",
	"database.password": "DBPWD",
	"database.host":     "DBHOST",
}

func DefaultConfig() *Config {
	return &Config{
		Port:       8080,
		GinLogging: "on",
		Database: DatabaseConfig{
			Driver:  kv.DriverSQLite,
			Host:    "localhost:3306",
			Name:    "test",
			Migrate: true,
		},
		Store: StoreConfig{
			CacheSize:        recents.DefaultSize,
			RejectDuplicates: true,
			RadiusMeters:     geo.DefaultRadiusMeters,
			GeocodeWorkers:   geo.DefaultWorkers,
		},
		Notifications: NotificationsConfig{Timezone: "Local"},
	}
}

// Load reads the configuration. An explicit path must exist; without a path, keepintouch.yaml is
// searched in the working directory and in the user's config directory, and a missing file is
// not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("keepintouch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "keepintouch"))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "keepintouch"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key, so that environment variables are picked up for settings that
// do not appear in the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("port", cfg.Port)
	v.SetDefault("gin_logging", cfg.GinLogging)
	v.SetDefault("debug", cfg.Debug)
	v.SetDefault("seed_file", cfg.SeedFile)
	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.migrate", cfg.Database.Migrate)
	v.SetDefault("store.cache_size", cfg.Store.CacheSize)
	v.SetDefault("store.reject_duplicates", cfg.Store.RejectDuplicates)
	v.SetDefault("store.rollback_on_persist_error", cfg.Store.RollbackOnPersistError)
	v.SetDefault("store.radius_meters", cfg.Store.RadiusMeters)
	v.SetDefault("store.geocode_workers", cfg.Store.GeocodeWorkers)
	v.SetDefault("device.location", cfg.Device.Location)
	v.SetDefault("notifications.timezone", cfg.Notifications.Timezone)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.Database.Driver {
	case kv.DriverMemory, kv.DriverSQLite, kv.DriverMySQL:
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Store.CacheSize < 1 {
		return fmt.Errorf("config: store.cache_size must be positive")
	}
	if c.Store.RadiusMeters <= 0 {
		return fmt.Errorf("config: store.radius_meters must be positive")
	}
	if c.Store.GeocodeWorkers < 1 {
		return fmt.Errorf("config: store.geocode_workers must be positive")
	}
	if _, err := c.DeviceCoordinate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// RequestLogging reports whether HTTP requests are logged. Only "off" turns logging off.
func (c *Config) RequestLogging() bool {
	return !strings.EqualFold(strings.TrimSpace(c.GinLogging), "off")
}

// DefaultSQLiteFile is the database file used when the sqlite driver has no DSN.
const DefaultSQLiteFile = "keepintouch.db"

// DataSource returns the DSN for the configured SQL driver. An explicit DSN wins; otherwise MySQL
// is reached with the host, user, password and name settings.
func (c *Config) DataSource() string {
	switch {
	case c.Database.DSN != "":
		return c.Database.DSN
	case c.Database.Driver == kv.DriverMySQL:
		return kv.MySQLDSN(c.Database.User, c.Database.Password, c.Database.Host, c.Database.Name)
	case c.Database.Driver == kv.DriverSQLite:
		return DefaultSQLiteFile
	}
	return ""
}

// DeviceCoordinate returns the configured device position, or nil if none is set.
func (c *Config) DeviceCoordinate() (*model.Coordinate, error) {
	if strings.TrimSpace(c.Device.Location) == "" {
		return nil, nil
	}
	coords, err := model.ParseCoordinate(c.Device.Location)
	if err != nil {
		return nil, fmt.Errorf("config: device.location: %w", err)
	}
	return &coords, nil
}

// Location returns the time zone of reminder dates.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Notifications.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: notifications.timezone: %w", err)
	}
	return loc, nil
}
