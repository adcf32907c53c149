// config.go - Configuration management for the privatepay daemon.
//
// Values come from, in increasing priority: DefaultConfig, an optional JSON or
// YAML file, PRIVATEPAY_* environment variables and command line flags.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"privatepay/internal/types"
)

const EnvPrefix = "PRIVATEPAY"

// MinTokenLength is the shortest accepted admin token or account key.
const MinTokenLength = 16

// Verifier backends.
const (
	VerifierChecksum = "checksum"
	VerifierGroth16  = "groth16"
)

// Config represents the daemon configuration
type Config struct {
	// Storage. An empty data dir keeps everything in memory.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Roles
	Admin        string `json:"admin" mapstructure:"admin"`
	Orchestrator string `json:"orchestrator" mapstructure:"orchestrator"`

	// API credentials. AdminToken authorizes /admin and /deposit; AccountKeys
	// maps an account address to the bearer key that acts for it.
	AdminToken  string            `json:"admin_token" mapstructure:"admin_token"`
	AccountKeys map[string]string `json:"account_keys" mapstructure:"account_keys"`

	// Proof verification
	Verifier          string `json:"verifier" mapstructure:"verifier"`
	ChecksumTolerance uint64 `json:"checksum_tolerance" mapstructure:"checksum_tolerance"`
	ProvingKeyPath    string `json:"proving_key_path" mapstructure:"proving_key_path"`
	VerifyingKeyPath  string `json:"verifying_key_path" mapstructure:"verifying_key_path"`
	VerdictCacheSize  int    `json:"verdict_cache_size" mapstructure:"verdict_cache_size"`

	// Settlement
	MinPrivacyScore uint64 `json:"min_privacy_score" mapstructure:"min_privacy_score"`
	GateWaitMillis  int    `json:"gate_wait_ms" mapstructure:"gate_wait_ms"`

	// Network
	ListenAddr     string   `json:"listen_addr" mapstructure:"listen_addr"`
	MetricsAddr    string   `json:"metrics_addr" mapstructure:"metrics_addr"`
	RateLimit      float64  `json:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `json:"rate_burst" mapstructure:"rate_burst"`
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`

	// Logging
	LogLevel     string `json:"log_level" mapstructure:"log_level"`
	LogFile      string `json:"log_file" mapstructure:"log_file"`
	AuditLogPath string `json:"audit_log_path" mapstructure:"audit_log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:           "",
		Verifier:          VerifierChecksum,
		ChecksumTolerance: 0,
		ProvingKeyPath:    "keys/payment_pk.bin",
		VerifyingKeyPath:  "keys/payment_vk.bin",
		VerdictCacheSize:  4096,
		MinPrivacyScore:   50,
		GateWaitMillis:    5000,
		ListenAddr:        ":8080",
		MetricsAddr:       ":9090",
		RateLimit:         10,
		RateBurst:         20,
		TimeoutSeconds:    15,
		AllowedOrigins:    []string{"*"},
		LogLevel:          "info",
		LogFile:           "",
		AuditLogPath:      "audit.jsonl",
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"data-dir":          "data_dir",
	"admin":             "admin",
	"orchestrator":      "orchestrator",
	"verifier":          "verifier",
	"listen":            "listen_addr",
	"metrics":           "metrics_addr",
	"log-level":         "log_level",
	"log-file":          "log_file",
	"audit-log":         "audit_log_path",
	"vk":                "verifying_key_path",
	"pk":                "proving_key_path",
	"min-privacy-score": "min_privacy_score",
}

// RegisterFlags adds the command line overrides to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("data-dir", d.DataDir, "badger data directory, in-memory when empty")
	fs.String("admin", d.Admin, "administrator address")
	fs.String("orchestrator", d.Orchestrator, "address the orchestrator uses on the ledger")
	fs.String("verifier", d.Verifier, "proof verifier backend: checksum or groth16")
	fs.String("listen", d.ListenAddr, "HTTP API listen address")
	fs.String("metrics", d.MetricsAddr, "prometheus listen address, disabled when empty")
	fs.String("log-level", d.LogLevel, "log level")
	fs.String("log-file", d.LogFile, "additional log file")
	fs.String("audit-log", d.AuditLogPath, "append-only JSONL audit log, disabled when empty")
	fs.String("vk", d.VerifyingKeyPath, "groth16 verifying key")
	fs.String("pk", d.ProvingKeyPath, "groth16 proving key")
	fs.Uint64("min-privacy-score", d.MinPrivacyScore, "lowest privacy score allowed to settle")
}

// Load reads the configuration. path may be empty and fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("admin", d.Admin)
	v.SetDefault("orchestrator", d.Orchestrator)
	v.SetDefault("verifier", d.Verifier)
	v.SetDefault("checksum_tolerance", d.ChecksumTolerance)
	v.SetDefault("proving_key_path", d.ProvingKeyPath)
	v.SetDefault("verifying_key_path", d.VerifyingKeyPath)
	v.SetDefault("verdict_cache_size", d.VerdictCacheSize)
	v.SetDefault("admin_token", d.AdminToken)
	v.SetDefault("min_privacy_score", d.MinPrivacyScore)
	v.SetDefault("gate_wait_ms", d.GateWaitMillis)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_burst", d.RateBurst)
	v.SetDefault("timeout_seconds", d.TimeoutSeconds)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("audit_log_path", d.AuditLogPath)
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := c.AdminAddress(); err != nil {
		result = multierror.Append(result, fmt.Errorf("admin: %w", err))
	}
	if _, err := c.OrchestratorAddress(); err != nil {
		result = multierror.Append(result, fmt.Errorf("orchestrator: %w", err))
	}
	if c.Admin != "" && c.Admin == c.Orchestrator {
		result = multierror.Append(result, errors.New("admin and orchestrator must differ"))
	}

	if len(c.AdminToken) < MinTokenLength {
		result = multierror.Append(result, fmt.Errorf("admin_token must be at least %d characters", MinTokenLength))
	}
	for account, key := range c.AccountKeys {
		if _, err := parseRole(account); err != nil {
			result = multierror.Append(result, fmt.Errorf("account_keys: %s: %w", account, err))
		}
		if len(key) < MinTokenLength {
			result = multierror.Append(result, fmt.Errorf("account_keys: key of %s must be at least %d characters", account, MinTokenLength))
		}
	}

	switch c.Verifier {
	case VerifierChecksum:
	case VerifierGroth16:
		if c.VerifyingKeyPath == "" {
			result = multierror.Append(result, errors.New("verifying_key_path is required by the groth16 verifier"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown verifier %q", c.Verifier))
	}

	if c.VerdictCacheSize <= 0 {
		result = multierror.Append(result, errors.New("verdict_cache_size must be positive"))
	}
	if c.MinPrivacyScore > 100 {
		result = multierror.Append(result, errors.New("min_privacy_score must be at most 100"))
	}
	if c.GateWaitMillis < 0 {
		result = multierror.Append(result, errors.New("gate_wait_ms must not be negative"))
	}
	if c.ListenAddr == "" {
		result = multierror.Append(result, errors.New("listen_addr is required"))
	}
	if c.RateLimit <= 0 {
		result = multierror.Append(result, errors.New("rate_limit must be positive"))
	}
	if c.RateBurst <= 0 {
		result = multierror.Append(result, errors.New("rate_burst must be positive"))
	}
	if c.TimeoutSeconds <= 0 {
		result = multierror.Append(result, errors.New("timeout_seconds must be positive"))
	}

	return result.ErrorOrNil()
}

// AdminAddress parses the administrator address.
func (c *Config) AdminAddress() (types.Address, error) {
	return parseRole(c.Admin)
}

// OrchestratorAddress parses the address the orchestrator acts as.
func (c *Config) OrchestratorAddress() (types.Address, error) {
	return parseRole(c.Orchestrator)
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GateWait bounds how long a component call waits for one in progress.
func (c *Config) GateWait() time.Duration {
	return time.Duration(c.GateWaitMillis) * time.Millisecond
}

func parseRole(s string) (types.Address, error) {
	if s == "" {
		return types.Address{}, errors.New("address is required")
	}
	a, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, err
	}
	if a.IsZero() {
		return types.Address{}, errors.New("zero address")
	}
	return a, nil
}
