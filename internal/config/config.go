package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
	DataRef string `yaml:"data_ref" mapstructure:"data_ref"`

	OSRM   OSRMConfig   `yaml:"osrm" mapstructure:"osrm"`
	Join   JoinConfig   `yaml:"join" mapstructure:"join"`
	OD     ODConfig     `yaml:"od" mapstructure:"od"`
	Board  BoardConfig  `yaml:"board" mapstructure:"board"`
	RunLog RunLogConfig `yaml:"runlog" mapstructure:"runlog"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// OSRMConfig points the pipeline at a routing server.
type OSRMConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Profile   string  `yaml:"profile" mapstructure:"profile"`
	Chunk     int     `yaml:"chunk" mapstructure:"chunk"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JoinConfig tunes the record-linkage joins.
type JoinConfig struct {
	KmTol      float64 `yaml:"km_tol" mapstructure:"km_tol"`
	TargetSRID int     `yaml:"target_srid" mapstructure:"target_srid"`
}

// Origin is a travel-time source city.
type Origin struct {
	Name string  `yaml:"name" mapstructure:"name"`
	Lat  float64 `yaml:"lat" mapstructure:"lat"`
	Lon  float64 `yaml:"lon" mapstructure:"lon"`
}

// ODConfig configures the travel-time matrices.
type ODConfig struct {
	Origins []Origin `yaml:"origins" mapstructure:"origins"`
	TopN    int      `yaml:"top_n" mapstructure:"top_n"`
}

// BoardConfig configures the comparison board.
type BoardConfig struct {
	// Influence maps a candidate (board column) to the UFs whose highway
	// summaries roll up into it.
	Influence map[string][]string `yaml:"influence" mapstructure:"influence"`
}

// RunLogConfig selects the run-log backend.
type RunLogConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchSource is one raw input to materialize under the data lake.
type FetchSource struct {
	Name  string `yaml:"name" mapstructure:"name"`
	URL   string `yaml:"url" mapstructure:"url"`
	Dest  string `yaml:"dest" mapstructure:"dest"`
	Unzip bool   `yaml:"unzip" mapstructure:"unzip"`
}

// FetchConfig configures the raw-data downloads.
type FetchConfig struct {
	Sources     []FetchSource `yaml:"sources" mapstructure:"sources"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultOrigins returns the two candidate cities of the study.
func DefaultOrigins() []Origin {
	return []Origin{
		{Name: "Recife-PE", Lat: -8.0476, Lon: -34.8770},
		{Name: "Salvador-BA", Lat: -12.9714, Lon: -38.5014},
	}
}

// DefaultInfluence returns the candidate-to-UF rollup sets.
func DefaultInfluence() map[string][]string {
	return map[string][]string{
		"recife":   {"PE", "PB", "AL"},
		"salvador": {"BA", "SE", "AL"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CDCASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "data")
	v.SetDefault("data_ref", "2025-07")
	v.SetDefault("osrm.base_url", "http://localhost:5000")
	v.SetDefault("osrm.profile", "driving")
	v.SetDefault("osrm.chunk", 100)
	v.SetDefault("osrm.rate_limit", 5.0)
	v.SetDefault("join.km_tol", 2.0)
	v.SetDefault("join.target_srid", 4674)
	v.SetDefault("od.top_n", 500)
	v.SetDefault("runlog.driver", "sqlite")
	v.SetDefault("runlog.max_conns", 4)
	v.SetDefault("runlog.min_conns", 1)
	v.SetDefault("fetch.concurrency", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Struct-valued defaults that viper cannot express.
	if len(cfg.OD.Origins) == 0 {
		cfg.OD.Origins = DefaultOrigins()
	}
	if len(cfg.Board.Influence) == 0 {
		cfg.Board.Influence = DefaultInfluence()
	}

	return &cfg, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	var problems []string

	if c.Join.KmTol <= 0 {
		problems = append(problems, "join.km_tol must be > 0")
	}
	if c.OSRM.Chunk < 1 || c.OSRM.Chunk > 500 {
		problems = append(problems, "osrm.chunk must be between 1 and 500")
	}
	if c.OSRM.RateLimit <= 0 {
		problems = append(problems, "osrm.rate_limit must be > 0")
	}
	if c.OD.TopN < 1 {
		problems = append(problems, "od.top_n must be >= 1")
	}
	for _, o := range c.OD.Origins {
		if o.Name == "" || (o.Lat == 0 && o.Lon == 0) {
			problems = append(problems, "od.origins entries need name, lat and lon")
			break
		}
	}
	switch c.RunLog.Driver {
	case "", "sqlite":
	case "postgres":
		if c.RunLog.DSN == "" {
			problems = append(problems, "runlog.dsn is required when runlog.driver is postgres")
		}
	default:
		problems = append(problems, "runlog.driver must be sqlite or postgres")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// RawDir is where fetched inputs land.
func (c *Config) RawDir() string { return filepath.Join(c.DataDir, "raw") }

// InterimDir holds normalized intermediates.
func (c *Config) InterimDir() string { return filepath.Join(c.DataDir, "interim") }

// ProcessedDir holds final pipeline outputs.
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// RunLogDSN resolves the run-log DSN, defaulting the SQLite file into the
// data lake.
func (c *Config) RunLogDSN() string {
	if c.RunLog.DSN != "" {
		return c.RunLog.DSN
	}
	if c.RunLog.Driver == "" || c.RunLog.Driver == "sqlite" {
		return filepath.Join(c.DataDir, "runs.db")
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
