package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Validator is implemented by a bound config struct that wants a
// post-unmarshal sanity check.
type Validator interface {
	Validate() error
}

// ConfigInterface is the Config surface kernel options and plugin config
// sections bind against.
type ConfigInterface interface {
	Bind(instance any) error
	Validate() error
	Export(path string) error
	Snapshot() (map[string]any, error)
	Restore() error
}

// Config wraps a viper instance with defaulting, validation, snapshotting,
// and optional file-watch reload.
type Config struct {
	instance   *viper.Viper
	opts       ConfigOptions
	watchOnce  sync.Once
	watchMutex sync.RWMutex
	snapshot   map[string]any
}

// ConfigOptions shapes where Config reads from and whether it watches
// for changes.
type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	WatchAble bool
	OnChange  func(e fsnotify.Event)
}
