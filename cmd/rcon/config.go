package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	rcon "github.com/schultz-is/digest-rcon"
)

// EnvPassword is consulted when neither a flag nor the config file provides a password.
const EnvPassword = "RCON_PASSWORD"

// fileConfig mirrors the TOML layout:
//
//	default = "lobby"
//
//	[servers.lobby]
//	host = "127.0.0.1"
//	port = 27015
//	password_env = "LOBBY_RCON_PASSWORD"
//	buffer_size = 512
type fileConfig struct {
	Default string                `toml:"default"`
	Servers map[string]fileServer `toml:"servers"`
}

type fileServer struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Password    string `toml:"password"`
	PasswordEnv string `toml:"password_env"`

	// BufferSize is decoded loosely so that a float such as 1.5 is reported as a configuration
	// error rather than a TOML type error.
	BufferSize any `toml:"buffer_size"`
}

type serverConfig struct {
	Name string
	rcon.Config
}

type cliConfig struct {
	Default string

	// Servers is in file order.
	Servers []serverConfig
}

func (c cliConfig) lookup(name string) (serverConfig, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return serverConfig{}, false
}

// loadConfig reads the server table at path. Validation happens here, before any connection is
// attempted.
func loadConfig(path string) (cliConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}

	cfg := cliConfig{Default: strings.TrimSpace(raw.Default)}
	seen := make(map[string]bool)
	for _, key := range meta.Keys() {
		if len(key) < 2 || key[0] != "servers" || seen[key[1]] {
			continue
		}
		name := key[1]
		seen[name] = true
		fs := raw.Servers[name]

		sc := serverConfig{
			Name: name,
			Config: rcon.Config{
				Host:     strings.TrimSpace(fs.Host),
				Port:     fs.Port,
				Password: fs.Password,
			},
		}
		if sc.Password == "" && fs.PasswordEnv != "" {
			sc.Password = os.Getenv(fs.PasswordEnv)
		}
		if meta.IsDefined("servers", name, "buffer_size") {
			n, err := parseBufferSize("servers."+name+".buffer_size", fs.BufferSize)
			if err != nil {
				return cliConfig{}, err
			}
			sc.BufferSize = n
		}
		if err := sc.Validate(); err != nil {
			return cliConfig{}, fmt.Errorf("server %q: %w", name, err)
		}

		cfg.Servers = append(cfg.Servers, sc)
	}

	if cfg.Default != "" {
		if _, ok := cfg.lookup(cfg.Default); !ok {
			return cliConfig{}, &rcon.ConfigError{Field: "default", Reason: fmt.Sprintf("names unknown server %q", cfg.Default)}
		}
	}

	return cfg, nil
}

// parseBufferSize accepts only positive integers. Unlike [rcon.Config], an explicit zero is an
// error here since the key was provided.
func parseBufferSize(field string, v any) (int, error) {
	n, ok := v.(int64)
	if !ok || n <= 0 {
		return 0, &rcon.ConfigError{Field: field, Reason: fmt.Sprintf("must be a positive integer, got %v", v)}
	}
	return int(n), nil
}
