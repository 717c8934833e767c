package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PCS_WORKERS or PCS_CACHE_BACKEND
const EnvPrefix = "PCS"

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForCommand loads configuration for a command run from dir.
// Later sources win: defaults, global config, local config, .env and
// environment, then flags.
func (l *Loader) LoadForCommand(cmd *cobra.Command, dir string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(dir)
	l.loadEnvironment(dir)
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("artifact_base_url", DefaultArtifactBaseURL)
	viper.SetDefault("build_command", DefaultBuildCommand)
	viper.SetDefault("resolve_command", DefaultResolveCommand)
	viper.SetDefault("ddc_command", DefaultDDCCommand)
	viper.SetDefault("workers", DefaultWorkers)
	viper.SetDefault("compile_timeout", DefaultCompileTimeout)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("listen", DefaultListen)
	viper.SetDefault("cache.backend", DefaultCacheBackend)
	viper.SetDefault("cache.nats_url", DefaultNATSURL)
	viper.SetDefault("cache.redis_addr", DefaultRedisAddr)
}

// loadGlobalConfig loads the user's global configuration, if any
func (l *Loader) loadGlobalConfig() {
	globalPath := FindGlobalConfig()
	if globalPath == "" {
		return
	}

	viper.SetConfigFile(globalPath)
	_ = viper.ReadInConfig()
}

// loadLocalConfig merges the nearest .pcs.* file found from dir upwards
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(absDir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// loadEnvironment reads an optional .env file and enables PCS_* overrides
func (l *Loader) loadEnvironment(dir string) {
	if dir != "" {
		// godotenv never overrides variables that are already set
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	bind := func(key, flag string) {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}

	bind("log_level", "log-level")
	bind("workers", "workers")
	bind("work_dir", "work-dir")
	bind("sdk_path", "sdk")
	bind("sdk_version", "sdk-version")
	bind("compile_timeout", "timeout")
	bind("listen", "listen")
	bind("cache.backend", "cache-backend")
	bind("cache.path", "cache-dir")
}
