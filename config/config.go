package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DefaultConfigOptions looks for kernel.yaml under $CONFIG_PATH (or
// "config" if unset), with no env-var prefix and no file watching.
func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}
	return ConfigOptions{
		BasePath: basePath,
		FileName: "kernel",
		FileType: "yaml",
	}
}

// WatchConfigOptions is DefaultConfigOptions with file-watch reload
// enabled, useful while iterating on a plugin's local config section.
func WatchConfigOptions() ConfigOptions {
	opts := DefaultConfigOptions()
	opts.WatchAble = true
	return opts
}

// NewConfig creates a Config from opts (or DefaultConfigOptions if none
// given). The backing file is optional: a missing file yields an empty
// Config that BindWithDefaults fills in from struct tags.
func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	opts := DefaultConfigOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}

	instance, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Config{instance: instance, opts: opts}, nil
}

// Bind unmarshals the config into instance, wiring up file-watch reload
// if opts.WatchAble is set.
func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}
	if instance == nil {
		return fmt.Errorf("target instance is nil")
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	if err := c.instance.Unmarshal(&instance); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	if c.opts.WatchAble {
		c.watchOnce.Do(func() {
			c.instance.WatchConfig()
			c.instance.OnConfigChange(func(e fsnotify.Event) {
				c.watchMutex.Lock()
				defer c.watchMutex.Unlock()
				if err := c.instance.Unmarshal(&instance); err != nil {
					return
				}
				if c.opts.OnChange != nil {
					c.opts.OnChange(e)
				}
			})
		})
	}
	return nil
}

// BindWithDefaults applies struct-tag defaults (via creasty/defaults)
// both before and after the file unmarshal, so file values win over
// defaults but fields the file never mentions still get their default.
func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	if err := c.Bind(instance); err != nil {
		return err
	}
	return defaults.Set(instance)
}

// Validate unmarshals the raw config into a generic map and, if it
// implements Validator, runs its check.
func (c *Config) Validate() error {
	var instance any
	if err := c.instance.Unmarshal(&instance); err != nil {
		return fmt.Errorf("failed to unmarshal for validation: %w", err)
	}
	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Export writes the current config state to path, creating parent
// directories as needed.
func (c *Config) Export(path string) error {
	if path == "" {
		return fmt.Errorf("export path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := c.instance.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return nil
}

// Snapshot captures the current config as a plain map, for later Restore.
func (c *Config) Snapshot() (map[string]any, error) {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	snapshot := make(map[string]any)
	if err := c.instance.Unmarshal(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	c.snapshot = snapshot
	return snapshot, nil
}

// Restore re-applies the last Snapshot taken.
func (c *Config) Restore() error {
	if c.snapshot == nil {
		return fmt.Errorf("no snapshot available to restore")
	}
	return c.RestoreFrom(c.snapshot)
}

// RestoreFrom applies an arbitrary snapshot map.
func (c *Config) RestoreFrom(snapshot map[string]any) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	for k, v := range snapshot {
		c.instance.Set(k, v)
	}
	c.snapshot = snapshot
	return nil
}

// Get reads a single config key.
func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return c.instance.Get(key)
}

// Set overrides a single config key in memory (not persisted).
func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	c.instance.Set(key, value)
}

// CreateConfig builds a viper instance from opts. A missing config file
// is not an error: the kernel has no required file-format surface (spec
// Non-goals exclude file formats from the core ABI), so callers are
// expected to fill gaps via BindWithDefaults.
func CreateConfig(opts ConfigOptions) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	path := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", opts.FileName, opts.FileType))
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	return v, nil
}
