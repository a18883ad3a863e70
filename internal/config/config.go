package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/dirsync/internal/dirsync"
	"github.com/openmined/dirsync/internal/remote"
	"github.com/openmined/dirsync/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "DIRSYNC"
	configFileName = "config"
)

var (
	home, _            = os.UserHomeDir()
	DefaultDir         = filepath.Join(home, ".dirsync")
	DefaultConfigPath  = filepath.Join(DefaultDir, "config.yaml")
	DefaultLogFilePath = filepath.Join(DefaultDir, "logs", "dirsync.log")
	DefaultRegion      = "us-east-1"
)

var (
	ErrNoLocalRoot    = errors.New("local root is required")
	ErrNoRemoteRoot   = errors.New("remote root is required")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrNoBucket       = errors.New("s3 bucket is required")
	ErrNoFsRoot       = errors.New("fs root is required")
)

type Backend string

const (
	BackendFs Backend = "fs"
	BackendS3 Backend = "s3"
)

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	UseAccelerate bool   `yaml:"use_accelerate"`
}

// RemoteConfig converts to the remote package's S3 settings
func (c *S3Config) RemoteConfig() *remote.S3Config {
	return &remote.S3Config{
		BucketName:    c.Bucket,
		Region:        c.Region,
		Endpoint:      c.Endpoint,
		AccessKey:     c.AccessKey,
		SecretKey:     c.SecretKey,
		UseAccelerate: c.UseAccelerate,
	}
}

// Config is a single sync job plus its backend and logging settings
type Config struct {
	LocalRoot  string   `yaml:"local"`
	RemoteRoot string   `yaml:"remote"`
	Mode       string   `yaml:"mode"`
	Exists     string   `yaml:"exists"`
	Verify     string   `yaml:"verify"`
	RulesFile  string   `yaml:"rules"`
	Ignore     []string `yaml:"ignore"`
	MaxSize    string   `yaml:"max_size"`

	Backend Backend  `yaml:"backend"`
	FsRoot  string   `yaml:"fs_root"`
	S3      S3Config `yaml:"s3"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	JSON     bool   `yaml:"json"`

	Path string `yaml:"-"`

	// set by Validate
	SyncMode     dirsync.SyncMode    `yaml:"-"`
	ExistsPolicy remote.ExistsPolicy `yaml:"-"`
	VerifyPolicy remote.VerifyPolicy `yaml:"-"`
	Level        slog.Level          `yaml:"-"`
}

// SetDefaults registers the defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(dirsync.ModeUpdate))
	v.SetDefault("exists", remote.ExistsOverwrite.String())
	v.SetDefault("verify", remote.VerifyNone.String())
	v.SetDefault("backend", string(BackendFs))
	v.SetDefault("s3.region", DefaultRegion)
	v.SetDefault("log_file", DefaultLogFilePath)
	v.SetDefault("log_level", "info")
}

// Load reads the config file into v and wires up environment overrides.
// A missing config file is not an error unless it was set explicitly.
func Load(v *viper.Viper, configPath string, explicit bool) error {
	if explicit {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultDir)                            // ~/.dirsync
		v.AddConfigPath(filepath.Join(home, ".config/dirsync")) // then ~/.config/dirsync
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
	}

	// env vars win over the config file. DIRSYNC_S3_BUCKET -> s3.bucket
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if explicit || (!enoent && !ok) {
			return fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	return nil
}

// FromViper builds a Config from the merged view of flags, env and file
func FromViper(v *viper.Viper) *Config {
	return &Config{
		LocalRoot:  v.GetString("local"),
		RemoteRoot: v.GetString("remote"),
		Mode:       v.GetString("mode"),
		Exists:     v.GetString("exists"),
		Verify:     v.GetString("verify"),
		RulesFile:  v.GetString("rules"),
		Ignore:     v.GetStringSlice("ignore"),
		MaxSize:    v.GetString("max_size"),
		Backend:    Backend(strings.ToLower(v.GetString("backend"))),
		FsRoot:     v.GetString("fs_root"),
		S3: S3Config{
			Bucket:        v.GetString("s3.bucket"),
			Region:        v.GetString("s3.region"),
			Endpoint:      v.GetString("s3.endpoint"),
			AccessKey:     v.GetString("s3.access_key"),
			SecretKey:     v.GetString("s3.secret_key"),
			UseAccelerate: v.GetBool("s3.use_accelerate"),
		},
		LogFile:  v.GetString("log_file"),
		LogLevel: v.GetString("log_level"),
		JSON:     v.GetBool("json"),
		Path:     v.ConfigFileUsed(),
	}
}

// Validate normalizes paths and parses the mode, policies and log level
func (c *Config) Validate() error {
	var err error

	if strings.TrimSpace(c.LocalRoot) == "" {
		return ErrNoLocalRoot
	}
	if c.LocalRoot, err = utils.ResolvePath(c.LocalRoot); err != nil {
		return fmt.Errorf("local root: %w", err)
	}

	if strings.TrimSpace(c.RemoteRoot) == "" {
		return ErrNoRemoteRoot
	}

	if c.SyncMode, err = dirsync.ParseSyncMode(c.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if c.ExistsPolicy, err = remote.ParseExistsPolicy(c.Exists); err != nil {
		return fmt.Errorf("exists policy: %w", err)
	}
	if c.VerifyPolicy, err = remote.ParseVerifyPolicy(c.Verify); err != nil {
		return fmt.Errorf("verify policy: %w", err)
	}

	if c.RulesFile != "" {
		if c.RulesFile, err = utils.ResolvePath(c.RulesFile); err != nil {
			return fmt.Errorf("rules file: %w", err)
		}
		if !utils.FileExists(c.RulesFile) {
			return fmt.Errorf("rules file %s: %w", c.RulesFile, os.ErrNotExist)
		}
	}

	switch c.Backend {
	case BackendFs, "":
		c.Backend = BackendFs
		if strings.TrimSpace(c.FsRoot) == "" {
			return ErrNoFsRoot
		}
		if c.FsRoot, err = utils.ResolvePath(c.FsRoot); err != nil {
			return fmt.Errorf("fs root: %w", err)
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return ErrNoBucket
		}
		if c.S3.Region == "" {
			c.S3.Region = DefaultRegion
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	if c.LogFile == "" {
		c.LogFile = DefaultLogFilePath
	}
	if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	if c.LogLevel != "" {
		if err := c.Level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("log level: %w", err)
		}
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	return nil
}

// Save writes the job settings to path as YAML
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// LogValue hides the S3 secrets when the config is logged
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("local", c.LocalRoot),
		slog.String("remote", c.RemoteRoot),
		slog.String("mode", c.SyncMode.String()),
		slog.String("exists", c.ExistsPolicy.String()),
		slog.String("verify", c.VerifyPolicy.String()),
		slog.String("backend", string(c.Backend)),
		slog.String("accessKey", utils.MaskSecret(c.S3.AccessKey)),
		slog.String("config", c.Path),
	)
}
