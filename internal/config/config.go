// Package config loads the server settings from config.toml next to the
// executable, then applies .env and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

const (
	FileName = "config.toml"
	EnvFile  = ".env"

	MinBattleSize = 2
)

var ErrInvalid = errors.New("invalid config")

// PartyOrigin decides who builds a player's party.
type PartyOrigin string

const (
	// PartyFromServer: the server generates a party and sends it in CanJoin.
	PartyFromServer PartyOrigin = "server"
	// PartyFromClient: the client brings its own party in Join.
	PartyFromClient PartyOrigin = "client"
)

type Config struct {
	Port        uint16      `toml:"port"`
	BattleSize  uint8       `toml:"battle_size"`
	PartyOrigin PartyOrigin `toml:"party_origin"`
	DatabaseURL string      `toml:"database_url"`
	LogLevel    string      `toml:"log_level"`
	Dex         string      `toml:"dex"`
}

func Default() Config {
	return Config{
		Port:        types.DefaultPort,
		BattleSize:  MinBattleSize,
		PartyOrigin: PartyFromClient,
		LogLevel:    "info",
	}
}

// Dir returns the directory holding the running executable, or "." if it
// cannot be determined.
func Dir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// Load reads dir/config.toml. A missing or undecodable file is replaced by
// the defaults. Values from dir/.env and then the process environment
// override the file.
func Load(dir string, log *zap.Logger) (Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path := filepath.Join(dir, FileName)

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("config file missing, writing defaults", zap.String("path", path))
		} else {
			log.Warn("config file unreadable, writing defaults", zap.String("path", path), zap.Error(err))
		}
		cfg = Default()
		if err := Write(path, cfg); err != nil {
			log.Warn("could not write config file", zap.String("path", path), zap.Error(err))
		}
	}

	dotenv, err := godotenv.Read(filepath.Join(dir, EnvFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ignoring unreadable .env", zap.Error(err))
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.override(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) override(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BATTLE_PORT"); ok {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("BATTLE_PORT %q: %w", v, ErrInvalid)
		}
		c.Port = uint16(port)
	}
	if v, ok := lookup("BATTLE_SIZE"); ok {
		size, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("BATTLE_SIZE %q: %w", v, ErrInvalid)
		}
		c.BattleSize = uint8(size)
	}
	if v, ok := lookup("BATTLE_PARTY_ORIGIN"); ok {
		c.PartyOrigin = PartyOrigin(v)
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.DatabaseURL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.BattleSize < MinBattleSize {
		return fmt.Errorf("battle_size %d is below %d: %w", c.BattleSize, MinBattleSize, ErrInvalid)
	}
	switch c.PartyOrigin {
	case PartyFromServer, PartyFromClient:
	default:
		return fmt.Errorf("party_origin %q: %w", c.PartyOrigin, ErrInvalid)
	}
	return nil
}

// Addr is the listen address for the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Write stores cfg as TOML at path.
func Write(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
