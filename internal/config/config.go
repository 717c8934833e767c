package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheBackendBolt   = "bolt"
	CacheBackendMemory = "memory"
	CacheBackendNATS   = "nats"
	CacheBackendRedis  = "redis"
	CacheBackendS3     = "s3"
)

// Default configuration values
const (
	DefaultArtifactBaseURL = "https://storage.googleapis.com/compilation_artifacts"
	DefaultWorkers         = 1
	DefaultCompileTimeout  = 2 * time.Minute
	DefaultLogLevel        = "info"
	DefaultListen          = ":8080"
	DefaultCacheBackend    = CacheBackendBolt
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultRedisAddr       = "127.0.0.1:6379"
)

var (
	DefaultBuildCommand   = []string{"dart", "run", "build_runner", "build", "--release", "--delete-conflicting-outputs", "--output", "web:build"}
	DefaultResolveCommand = []string{"dart", "pub", "get", "--no-precompile"}
	DefaultDDCCommand     = []string{"dartdevc", "--persistent_worker"}
)

var cacheBackends = []string{CacheBackendBolt, CacheBackendMemory, CacheBackendNATS, CacheBackendRedis, CacheBackendS3}

// Holds the configuration options for pcs
type Config struct {
	// Root of the Dart SDK; its version file is read when SDKVersion is empty
	SDKPath string

	// Toolchain version used for artifact URLs (e.g. 3.5.0)
	SDKVersion string

	// File holding the toolchain version
	SDKVersionFile string

	// Base URL hosting precompiled summaries and runtime modules
	ArtifactBaseURL string

	// Batch build pipeline, run inside the workspace
	BuildCommand []string

	// Dependency resolution command, run inside the workspace
	ResolveCommand []string

	// Incremental compiler started in persistent worker mode. It must speak
	// newline-delimited JSON work requests on stdin and stdout. A stock
	// dartdevc worker frames length-prefixed protobuf, so deployments point
	// this at a wrapper that translates to JSON.
	DDCCommand []string

	// Number of incremental compiler workers
	Workers int

	// Upper bound for a single compile; zero disables the limit
	CompileTimeout time.Duration

	// Parent directory for ephemeral workspaces
	WorkDir string

	// Log level (debug, info, warn, error)
	LogLevel string

	// Listen address for the HTTP server
	Listen string

	Cache CacheConfig
}

// CacheConfig selects and configures the dependency cache backing store
type CacheConfig struct {
	Backend string

	// Directory for the bolt backend
	Path string

	NATSURL    string
	NATSBucket string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

func Load() (*Config, error) {
	cfg := &Config{
		SDKPath:         viper.GetString("sdk_path"),
		SDKVersion:      viper.GetString("sdk_version"),
		SDKVersionFile:  viper.GetString("sdk_version_file"),
		ArtifactBaseURL: viper.GetString("artifact_base_url"),
		BuildCommand:    viper.GetStringSlice("build_command"),
		ResolveCommand:  viper.GetStringSlice("resolve_command"),
		DDCCommand:      viper.GetStringSlice("ddc_command"),
		Workers:         viper.GetInt("workers"),
		CompileTimeout:  viper.GetDuration("compile_timeout"),
		WorkDir:         viper.GetString("work_dir"),
		LogLevel:        viper.GetString("log_level"),
		Listen:          viper.GetString("listen"),
		Cache: CacheConfig{
			Backend:       viper.GetString("cache.backend"),
			Path:          viper.GetString("cache.path"),
			NATSURL:       viper.GetString("cache.nats_url"),
			NATSBucket:    viper.GetString("cache.nats_bucket"),
			RedisAddr:     viper.GetString("cache.redis_addr"),
			RedisPassword: viper.GetString("cache.redis_password"),
			RedisDB:       viper.GetInt("cache.redis_db"),
			S3Bucket:      viper.GetString("cache.s3_bucket"),
			S3Region:      viper.GetString("cache.s3_region"),
			S3Endpoint:    viper.GetString("cache.s3_endpoint"),
			S3Prefix:      viper.GetString("cache.s3_prefix"),
		},
	}

	// Apply defaults if not set
	if cfg.ArtifactBaseURL == "" {
		cfg.ArtifactBaseURL = DefaultArtifactBaseURL
	}

	if len(cfg.BuildCommand) == 0 {
		cfg.BuildCommand = slices.Clone(DefaultBuildCommand)
	}

	if len(cfg.ResolveCommand) == 0 {
		cfg.ResolveCommand = slices.Clone(DefaultResolveCommand)
	}

	if len(cfg.DDCCommand) == 0 {
		cfg.DDCCommand = slices.Clone(DefaultDDCCommand)
	}

	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}

	if c.CompileTimeout < 0 {
		return fmt.Errorf("invalid compile timeout: %s", c.CompileTimeout)
	}

	if len(c.BuildCommand) == 0 || len(c.ResolveCommand) == 0 || len(c.DDCCommand) == 0 {
		return fmt.Errorf("build, resolve and ddc commands must not be empty")
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if !slices.Contains(cacheBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	if c.Cache.Backend == CacheBackendS3 && c.Cache.S3Bucket == "" {
		return fmt.Errorf("cache.s3_bucket is required for the s3 backend")
	}

	if c.SDKVersion != "" {
		if _, err := semver.NewVersion(c.SDKVersion); err != nil {
			return fmt.Errorf("invalid sdk version %q: %v", c.SDKVersion, err)
		}
	}

	// Resolve paths
	for _, p := range []*string{&c.SDKPath, &c.SDKVersionFile, &c.WorkDir, &c.Cache.Path} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %v", *p, err)
		}

		*p = abs
	}

	return nil
}
