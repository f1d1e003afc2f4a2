// Package config loads the optional ferry configuration file.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional ferry configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults. A nil field leaves the
// built-in default in place; flags given on the command line always win.
type DefaultsConfig struct {
	Backup      *string `toml:"backup"`   // backup method, e.g. "numbered"
	Suffix      *string `toml:"suffix"`   // simple backup suffix
	Preserve    *string `toml:"preserve"` // attribute list, e.g. "mode,timestamps"
	BWLimit     *string `toml:"bwlimit"`
	Verbose     *bool   `toml:"verbose"`
	Interactive *bool   `toml:"interactive"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Accent *string `toml:"accent"`
	Error  *string `toml:"error"`
	Muted  *string `toml:"muted"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ferry", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero
// Config; keys ferry does not know are rejected so typos do not go unseen.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, &UnknownKeyError{Path: path, Key: undecoded[0].String()}
	}
	return cfg, nil
}

// UnknownKeyError reports a key in the config file that ferry does not use.
type UnknownKeyError struct {
	Path string
	Key  string
}

func (e *UnknownKeyError) Error() string {
	return "unknown key " + e.Key + " in " + e.Path
}
