package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment override, e.g. DIAMOND_HTTP_ADDR.
	EnvPrefix = "DIAMOND"

	// DefaultHTTPAddr is the default TCP address the HTTP surface listens on.
	DefaultHTTPAddr = ":43127"
	// DefaultGRPCAddr is the default TCP address of the gRPC surface.
	DefaultGRPCAddr = ":43128"
	// DefaultPingInterval controls the keepalive cadence for WebSocket streams.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound request size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients bounds concurrent WebSocket streams. Zero disables the limit.
	DefaultMaxClients = 64

	// DefaultTokenLeeway tolerates clock skew when checking API token expiry.
	DefaultTokenLeeway = 2 * time.Second

	// DefaultRateWindow bounds how many simulate calls a client may make per window.
	DefaultRateWindow = time.Second
	// DefaultRateBurst sets how many simulate calls may be made per window.
	DefaultRateBurst = 20

	// DefaultLogLevel controls verbosity for service logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written. Empty logs to stdout only.
	DefaultLogPath = ""
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultStep is the arbiter step in seconds.
	DefaultStep = 0.005
	// DefaultTieEpsilon is the tie window of a race in seconds.
	DefaultTieEpsilon = 0.001
	// DefaultCatchWindow is the grace a fielder has to get under a ball in the air.
	DefaultCatchWindow = 0.1
	// DefaultThrowErrorThreshold is how far a throw may miss before it is an error, in feet.
	DefaultThrowErrorThreshold = 6.0
	// DefaultMaxPlayDuration caps the play clock in seconds after contact.
	DefaultMaxPlayDuration = 40.0
	// DefaultFrameRate paces streamed frames.
	DefaultFrameRate = 30.0

	// DefaultBatchWorkers bounds concurrent plays in a batch. Zero means one per CPU.
	DefaultBatchWorkers = 0
	// DefaultReplayDir is where replay bundles are written.
	DefaultReplayDir = "replays"
	// DefaultReplayMaxBundles caps retained replay bundles. Zero keeps all of them.
	DefaultReplayMaxBundles = 500
	// DefaultReplayMaxAge drops bundles older than this. Zero keeps them forever.
	DefaultReplayMaxAge = 7 * 24 * time.Hour
	// DefaultReplaySweep is how often retention runs.
	DefaultReplaySweep = 10 * time.Minute
)

// Config captures all runtime tunables for the play engine service.
type Config struct {
	HTTPAddr         string           `mapstructure:"http_addr"`
	GRPCAddr         string           `mapstructure:"grpc_addr"`
	AllowedOrigins   []string         `mapstructure:"-"`
	MaxPayloadBytes  int64            `mapstructure:"max_payload_bytes"`
	PingInterval     time.Duration    `mapstructure:"ping_interval"`
	MaxClients       int              `mapstructure:"max_clients"`
	TLSCertPath      string           `mapstructure:"tls_cert"`
	TLSKeyPath       string           `mapstructure:"tls_key"`
	GRPCClientCA     string           `mapstructure:"grpc_client_ca"`
	GRPCSecret       string           `mapstructure:"grpc_shared_secret"`
	TokenSecret      string           `mapstructure:"token_secret"`
	TokenLeeway      time.Duration    `mapstructure:"token_leeway"`
	RateWindow       time.Duration    `mapstructure:"rate_window"`
	RateBurst        int              `mapstructure:"rate_burst"`
	Logging          LoggingConfig    `mapstructure:"log"`
	Simulation       SimulationConfig `mapstructure:"simulation"`
	BatchWorkers     int              `mapstructure:"batch_workers"`
	ReplayDir        string           `mapstructure:"replay_dir"`
	ReplayMaxBundles int              `mapstructure:"replay_max_bundles"`
	ReplayMaxAge     time.Duration    `mapstructure:"replay_max_age"`
	ReplaySweep      time.Duration    `mapstructure:"replay_sweep"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SimulationConfig carries the play constants operators may tune.
type SimulationConfig struct {
	Step                float64 `mapstructure:"step"`
	TieEpsilon          float64 `mapstructure:"tie_epsilon"`
	CatchWindow         float64 `mapstructure:"catch_window"`
	ThrowErrorThreshold float64 `mapstructure:"throw_error_threshold"`
	MaxPlayDuration     float64 `mapstructure:"max_play_duration"`
	FrameRate           float64 `mapstructure:"frame_rate"`
}

// Load reads the service configuration from defaults, the optional config
// file and DIAMOND_* environment variables, returning every invalid override
// in one error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var problems []string
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		problems = append(problems, err.Error())
	}
	cfg.AllowedOrigins = parseList(v.GetString("allowed_origins"))
	cfg.TLSCertPath = strings.TrimSpace(cfg.TLSCertPath)
	cfg.TLSKeyPath = strings.TrimSpace(cfg.TLSKeyPath)
	cfg.GRPCClientCA = strings.TrimSpace(cfg.GRPCClientCA)
	cfg.GRPCSecret = strings.TrimSpace(cfg.GRPCSecret)
	cfg.TokenSecret = strings.TrimSpace(cfg.TokenSecret)
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
	cfg.Logging.Path = strings.TrimSpace(cfg.Logging.Path)

	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("grpc_addr", DefaultGRPCAddr)
	v.SetDefault("allowed_origins", "")
	v.SetDefault("max_payload_bytes", DefaultMaxPayloadBytes)
	v.SetDefault("ping_interval", DefaultPingInterval)
	v.SetDefault("max_clients", DefaultMaxClients)
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")
	v.SetDefault("grpc_client_ca", "")
	v.SetDefault("grpc_shared_secret", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("token_leeway", DefaultTokenLeeway)
	v.SetDefault("rate_window", DefaultRateWindow)
	v.SetDefault("rate_burst", DefaultRateBurst)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.path", DefaultLogPath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("log.compress", DefaultLogCompress)

	v.SetDefault("simulation.step", DefaultStep)
	v.SetDefault("simulation.tie_epsilon", DefaultTieEpsilon)
	v.SetDefault("simulation.catch_window", DefaultCatchWindow)
	v.SetDefault("simulation.throw_error_threshold", DefaultThrowErrorThreshold)
	v.SetDefault("simulation.max_play_duration", DefaultMaxPlayDuration)
	v.SetDefault("simulation.frame_rate", DefaultFrameRate)

	v.SetDefault("batch_workers", DefaultBatchWorkers)
	v.SetDefault("replay_dir", DefaultReplayDir)
	v.SetDefault("replay_max_bundles", DefaultReplayMaxBundles)
	v.SetDefault("replay_max_age", DefaultReplayMaxAge)
	v.SetDefault("replay_sweep", DefaultReplaySweep)
}

func (c *Config) validate() []string {
	var problems []string
	if c.MaxPayloadBytes <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_MAX_PAYLOAD_BYTES must be a positive integer, got %d", c.MaxPayloadBytes))
	}
	if c.PingInterval <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_PING_INTERVAL must be a positive duration, got %s", c.PingInterval))
	}
	if c.MaxClients < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_MAX_CLIENTS must be a non-negative integer, got %d", c.MaxClients))
	}
	if c.TokenLeeway < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_TOKEN_LEEWAY must not be negative, got %s", c.TokenLeeway))
	}
	if c.RateWindow <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_RATE_WINDOW must be a positive duration, got %s", c.RateWindow))
	}
	if c.RateBurst <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_RATE_BURST must be a positive integer, got %d", c.RateBurst))
	}
	if c.Logging.MaxSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_LOG_MAX_SIZE_MB must be a positive integer, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_LOG_MAX_BACKUPS must be a non-negative integer, got %d", c.Logging.MaxBackups))
	}
	if c.Logging.MaxAgeDays < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_LOG_MAX_AGE_DAYS must be a non-negative integer, got %d", c.Logging.MaxAgeDays))
	}
	sim := c.Simulation
	if !(sim.Step > 0) || sim.Step > 0.05 {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_STEP must be within (0, 0.05], got %g", sim.Step))
	}
	if sim.TieEpsilon < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_TIE_EPSILON must not be negative, got %g", sim.TieEpsilon))
	}
	if sim.CatchWindow < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_CATCH_WINDOW must not be negative, got %g", sim.CatchWindow))
	}
	if !(sim.ThrowErrorThreshold > 0) {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_THROW_ERROR_THRESHOLD must be positive, got %g", sim.ThrowErrorThreshold))
	}
	if !(sim.MaxPlayDuration > 0) {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_MAX_PLAY_DURATION must be positive, got %g", sim.MaxPlayDuration))
	}
	if !(sim.FrameRate > 0) {
		problems = append(problems, fmt.Sprintf("DIAMOND_SIMULATION_FRAME_RATE must be positive, got %g", sim.FrameRate))
	}
	if c.BatchWorkers < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_BATCH_WORKERS must be a non-negative integer, got %d", c.BatchWorkers))
	}
	if c.ReplayMaxBundles < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_REPLAY_MAX_BUNDLES must be a non-negative integer, got %d", c.ReplayMaxBundles))
	}
	if c.ReplayMaxAge < 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_REPLAY_MAX_AGE must not be negative, got %s", c.ReplayMaxAge))
	}
	if c.ReplaySweep <= 0 {
		problems = append(problems, fmt.Sprintf("DIAMOND_REPLAY_SWEEP must be a positive duration, got %s", c.ReplaySweep))
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		problems = append(problems, "DIAMOND_TLS_CERT and DIAMOND_TLS_KEY must be provided together")
	}
	if c.GRPCClientCA != "" && c.TLSCertPath == "" {
		problems = append(problems, "DIAMOND_GRPC_CLIENT_CA requires DIAMOND_TLS_CERT and DIAMOND_TLS_KEY")
	}
	return problems
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
