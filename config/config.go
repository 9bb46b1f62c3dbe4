package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/angas/spotwindow/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

func (a AppConfigApi) GetPort() int16 {
	if a.Port == 0 {
		return 8080
	}
	return a.Port
}

type AppConfigDatabase struct {
	// "sqlite" or "postgres", default: "sqlite"
	Driver *string
	// SQLite file, default: "spotwindow.db"
	Path *string
	// PostgreSQL connection string, required for the postgres driver
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	// How many days prices should be stored in database before they get purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDriver() string {
	if d.Driver == nil {
		return "sqlite"
	}
	return strings.ToLower(*d.Driver)
}

func (d AppConfigDatabase) GetPath() string {
	if d.Path == nil {
		return "spotwindow.db"
	}
	return *d.Path
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 90
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigEntsoe struct {
	Token   string   // Security token of the ENTSO-E transparency platform
	Domain  string   // Bidding zone EIC code, default: Finland
	BaseUrl string   `mapstructure:"base_url"`
	Vat     *float64 // Multiplier applied to the spot price, default: 1.255
}

func (e AppConfigEntsoe) GetVat() float64 {
	if e.Vat == nil {
		return 1.255
	}
	return *e.Vat
}

type AppConfigSpotHinta struct {
	BaseUrl string `mapstructure:"base_url"`
}

type AppConfigTariff struct {
	ExchangeCents *float64 `mapstructure:"exchange_cents_kwh"` // Electricity exchange fee in cents/kWh
	MarginCents   *float64 `mapstructure:"margin_cents_kwh"`   // Retailer margin in cents/kWh
}

func (t AppConfigTariff) GetExchangeCents() float64 {
	if t.ExchangeCents == nil {
		return 6.7
	}
	return *t.ExchangeCents
}

func (t AppConfigTariff) GetMarginCents() float64 {
	if t.MarginCents == nil {
		return 0.5
	}
	return *t.MarginCents
}

type AppConfigMarket struct {
	// Market zone used for days, daytime and scheduling, default: "Europe/Helsinki"
	Timezone *string
	// Price interval length in minutes, 15 or 60, default: 15
	Granularity *int
}

func (m AppConfigMarket) GetTimezone() string {
	if m.Timezone == nil {
		return "Europe/Helsinki"
	}
	return *m.Timezone
}

func (m AppConfigMarket) GetGranularity() int {
	if m.Granularity == nil {
		return 15
	}
	return *m.Granularity
}

type AppConfigRedis struct {
	Addr     string
	Password string
	DB       int `mapstructure:"db"`
	Prefix   string
}

type AppConfigCache struct {
	// "memory" or "redis", default: "memory"
	Backend *string
	// Entries kept by the memory cache, default: 128
	Size  *int
	Redis AppConfigRedis
}

func (c AppConfigCache) GetBackend() string {
	if c.Backend == nil {
		return "memory"
	}
	return strings.ToLower(*c.Backend)
}

func (c AppConfigCache) GetSize() int {
	if c.Size == nil {
		return 128
	}
	return *c.Size
}

type AppConfigScheduler struct {
	RunAt            *string `mapstructure:"run_at"`
	TomorrowRunAt    *string `mapstructure:"tomorrow_run_at"`
	MaintenanceRunAt *string `mapstructure:"maintenance_run_at"`
	PublishRunAt     *string `mapstructure:"publish_run_at"`
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func (s AppConfigScheduler) GetRunAt() string { return orDefault(s.RunAt, "15 12 * * *") }

func (s AppConfigScheduler) GetTomorrowRunAt() string { return orDefault(s.TomorrowRunAt, "30 12 * * *") }

func (s AppConfigScheduler) GetMaintenanceRunAt() string {
	return orDefault(s.MaintenanceRunAt, "30 2 * * *")
}

func (s AppConfigScheduler) GetPublishRunAt() string { return orDefault(s.PublishRunAt, "*/15 * * * *") }

type AppConfigMqtt struct {
	Enabled     bool
	Broker      string
	Port        int16
	Username    string
	Password    string
	TopicPrefix *string `mapstructure:"topic_prefix"`
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	return orDefault(m.TopicPrefix, "spotwindow")
}

type AppConfigRateLimit struct {
	Rps   *float64 // Requests per second per server, 0 disables the limiter, default: 10
	Burst *int     // default: 20
}

func (r AppConfigRateLimit) GetRps() float64 {
	if r.Rps == nil {
		return 10
	}
	return *r.Rps
}

func (r AppConfigRateLimit) GetBurst() int {
	if r.Burst == nil {
		return 20
	}
	return *r.Burst
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api       AppConfigApi
	Database  AppConfigDatabase
	Entsoe    AppConfigEntsoe
	SpotHinta AppConfigSpotHinta `mapstructure:"spot_hinta"`
	Tariff    AppConfigTariff
	Market    AppConfigMarket
	Cache     AppConfigCache
	Scheduler AppConfigScheduler
	Mqtt      AppConfigMqtt
	RateLimit AppConfigRateLimit `mapstructure:"rate_limit"`
	Logging   AppConfigLogging
}

// Validate checks the values that have no sensible fallback.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Database.GetDriver() {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.GetDriver()))
	}
	if g := c.Market.GetGranularity(); g != 15 && g != 60 {
		errs = append(errs, fmt.Errorf("market.granularity must be 15 or 60, got %d", g))
	}
	if _, err := time.LoadLocation(c.Market.GetTimezone()); err != nil {
		errs = append(errs, fmt.Errorf("market.timezone: %w", err))
	}
	switch c.Cache.GetBackend() {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.GetBackend()))
	}
	if c.Mqtt.Enabled && c.Mqtt.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	return errors.Join(errs...)
}

// secrets can be given through the environment (or .env) without a config file entry
var envKeys = []string{
	"entsoe.token",
	"database.dsn",
	"cache.redis.password",
	"mqtt.username",
	"mqtt.password",
}

type Loader struct {
	v *viper.Viper
}

func NewLoader(path string) *Loader {
	// .env is optional, existing environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("unable to read .env file", slog.Any("error", err))
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return &Loader{v: v}
}

// Load reads the config file. Without an explicit path a missing file is fine, defaults and
// environment variables are used instead.
func (l *Loader) Load() (*AppConfig, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*AppConfig, error) {
	var c AppConfig
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// Watch calls onChange with the reloaded config whenever the config file is written.
// Invalid edits are logged and ignored.
func (l *Loader) Watch(logger *slog.Logger, onChange func(*AppConfig)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := l.unmarshal()
		if err != nil {
			logger.Warn("ignoring config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		onChange(c)
	})
	l.v.WatchConfig()
}

func Load(path string) (*AppConfig, error) {
	return NewLoader(path).Load()
}
