// Package config resolves the process environment consumed by the access
// layer. Values come from environment variables and, optionally, a TOML
// file; the environment wins over the file.
package config

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable names.
const (
	EnvHome           = "IMAS_HOME"
	EnvLocalHosts     = "IMAS_LOCAL_HOSTS"
	EnvLogLevel       = "IMAS_AL_LOG_LEVEL"
	EnvSerializeLevel = "IMAS_AL_SERIALIZE_LEVEL"
)

var keys = map[string]string{
	"home":            EnvHome,
	"local_hosts":     EnvLocalHosts,
	"log_level":       EnvLogLevel,
	"serialize_level": EnvSerializeLevel,
}

// Environment holds the resolved settings. The zero value has no home, no
// local hosts and no user lookup.
type Environment struct {
	// Home is the root of the shared legacy database tree.
	Home string
	// LocalHosts lists hosts for which a remote URI may be served by a
	// local backend.
	LocalHosts []string
	// LogLevel is a logger level name (error, warn, info, debug).
	LogLevel string
	// SerializeLevel is the zstd level name of the serialize backend.
	SerializeLevel string
	// LookupHome resolves an OS account name to its home directory.
	LookupHome func(username string) (string, error)
}

// IsLocalHost reports whether host is in the local allow-list.
func (e Environment) IsLocalHost(host string) bool {
	for _, h := range e.LocalHosts {
		if h == host {
			return true
		}
	}
	return false
}

// SplitHosts splits a semicolon separated host list, dropping empty tokens.
func SplitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ";") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Load reads the settings into v from the process environment and, when
// configFile is non-empty, from that TOML file.
func Load(v *viper.Viper, configFile string) (Environment, error) {
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return Environment{}, err
		}
	}
	v.SetDefault("log_level", "info")
	v.SetDefault("serialize_level", "default")

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Environment{}, fmt.Errorf("error reading configuration file '%s': %v", configFile, err)
		}
		for _, key := range v.AllKeys() {
			if _, ok := keys[key]; !ok {
				return Environment{}, fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var hosts []string
	if list, ok := v.Get("local_hosts").([]interface{}); ok {
		// TOML array
		for _, h := range list {
			hosts = append(hosts, SplitHosts(fmt.Sprint(h))...)
		}
	} else {
		hosts = SplitHosts(v.GetString("local_hosts"))
	}

	return Environment{
		Home:           v.GetString("home"),
		LocalHosts:     hosts,
		LogLevel:       v.GetString("log_level"),
		SerializeLevel: v.GetString("serialize_level"),
		LookupHome:     LookupHome,
	}, nil
}

// FromProcess returns the settings of the current process environment.
func FromProcess() Environment {
	env, err := Load(viper.New(), "")
	if err != nil {
		// binding environment keys only fails on an empty key
		panic(err)
	}
	return env
}

// LookupHome resolves the home directory of an OS account.
func LookupHome(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return "", err
	}
	if u.HomeDir == "" {
		return "", fmt.Errorf("user %s has no home directory", username)
	}
	return u.HomeDir, nil
}
