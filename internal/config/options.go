package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HOTPLUGD_POLL_INTERVAL.
const EnvPrefix = "HOTPLUGD"

// Daemon option defaults
const (
	DefaultAdminAddr     = ":8090"
	DefaultSysfsRoot     = "/sys/devices/system/cpu"
	DefaultProcRoot      = "/proc"
	DefaultStrategy      = "threshold"
	DefaultRemoteTimeout = 100 * time.Millisecond
	DefaultLoadSmoothing = 0.5
)

// Options is the complete daemon configuration.
type Options struct {
	// AdminAddr is the listen address of the admin HTTP server. Empty disables it.
	AdminAddr string `mapstructure:"admin-addr"`
	// SysfsRoot is the directory holding possible, online and cpuN/online.
	SysfsRoot string `mapstructure:"sysfs-root" validate:"required"`
	// ProcRoot is the directory holding stat.
	ProcRoot string `mapstructure:"proc-root" validate:"required"`
	// LoadSmoothing is the EMA weight of a new run-queue sample, 1 meaning no smoothing.
	LoadSmoothing float64 `mapstructure:"load-smoothing" validate:"gt=0,lte=1"`

	// OracleStrategy selects the policy oracle backend.
	OracleStrategy string `mapstructure:"oracle" validate:"oneof=threshold remote"`
	// RemoteURL is the base URL of a remote oracle, http://host:port or unix:///path.
	RemoteURL string `mapstructure:"oracle-url" validate:"required_if=OracleStrategy remote"`
	// RemoteTimeout bounds a single remote oracle call.
	RemoteTimeout time.Duration `mapstructure:"oracle-timeout" validate:"gt=0"`
	// ThresholdFile is an optional YAML threshold table for the threshold oracle.
	ThresholdFile string `mapstructure:"threshold-file"`

	// InstanceID labels logs and metrics of this process.
	InstanceID string `mapstructure:"instance-id" validate:"required"`
	// Enabled is the initial state of the engine toggle.
	Enabled bool `mapstructure:"enabled"`

	Engine EngineConfig `mapstructure:",squash"`
}

// NewFlagSet returns the daemon flags with their defaults.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (yaml, json or toml).")
	fs.String("admin-addr", DefaultAdminAddr, "Admin HTTP listen address. Empty disables the admin server.")
	fs.String("sysfs-root", DefaultSysfsRoot, "Root of the cpu sysfs tree.")
	fs.String("proc-root", DefaultProcRoot, "Root of procfs.")
	fs.Float64("load-smoothing", DefaultLoadSmoothing, "EMA weight of a new run-queue sample in (0,1].")
	fs.String("oracle", DefaultStrategy, "Policy oracle backend: threshold or remote.")
	fs.String("oracle-url", "", "Base URL of the remote oracle (http://host:port or unix:///path).")
	fs.Duration("oracle-timeout", DefaultRemoteTimeout, "Timeout of one remote oracle call.")
	fs.String("threshold-file", "", "YAML threshold table for the threshold oracle.")
	fs.String("instance-id", "", "Instance ID used in logs and metrics. Generated when empty.")
	fs.Bool("enabled", true, "Start with the engine enabled.")
	fs.Duration("poll-interval", DefaultPollInterval, "Load sampling period.")
	fs.Uint32("divisor", DefaultDivisor, "Run-queue depth bucket width.")
	fs.Uint32("iowait-threshold", DefaultIOWaitThreshold, "Iowait percentage above which a falling depth is held. 0 disables.")
	fs.Duration("min-down-interval", DefaultMinDownInterval, "Minimum spacing between down transitions.")
	fs.Duration("start-delay", DefaultStartDelay, "Delay after enable before samples are forwarded.")
	return fs
}

// Load parses args into fs and resolves the options with flag, environment,
// config file and default precedence. A .env file in the working directory is
// loaded into the environment first when present.
func Load(fs *pflag.FlagSet, args []string) (*Options, error) {
	_ = godotenv.Load()

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks the daemon options, including the embedded engine tunables.
func (o *Options) Validate() error {
	if err := o.Engine.Validate(); err != nil {
		return err
	}
	if err := validate.StructExcept(o, "Engine"); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
