// Package config loads the driver's configuration document: TOML
// defaults overlaid by environment variables, themselves overridden by
// CLI flags (spec §6's explicit precedence order — defaults < TOML <
// env < CLI).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the full document, grouped the way spec §6 names its
// sections.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Paths       PathsConfig       `toml:"paths"`
	GameLoop    GameLoopConfig    `toml:"game_loop"`
	Combat      CombatConfig      `toml:"combat"`
	Security    SecurityConfig    `toml:"security"`
	Player      PlayerConfig      `toml:"player"`
	Performance PerformanceConfig `toml:"performance"`
	Llm         LlmConfig         `toml:"llm"`
	Memory      MemoryConfig      `toml:"memory"`
}

type ServerConfig struct {
	Port           int    `toml:"port"`
	MaxConnections int    `toml:"max_connections"`
	WelcomeMessage string `toml:"welcome_message"`
	MudName        string `toml:"mud_name"`
	Version        string `toml:"version"`
}

type PathsConfig struct {
	WorldDirectory   string `toml:"world_directory"`
	SaveDirectory    string `toml:"save_directory"`
	PlayersDirectory string `toml:"players_directory"`
	SaveFileName     string `toml:"save_file_name"`
	StartRoom        string `toml:"start_room"`
	PlayerBlueprint  string `toml:"player_blueprint"`
}

type GameLoopConfig struct {
	LoopDelayMs             int  `toml:"loop_delay_ms"`
	DefaultHeartbeatSeconds int  `toml:"default_heartbeat_seconds"`
	AutoSaveEnabled         bool `toml:"auto_save_enabled"`
	AutoSaveIntervalMinutes int  `toml:"auto_save_interval_minutes"`
}

type CombatConfig struct {
	RoundIntervalSeconds int `toml:"round_interval_seconds"`
	FleeChancePercent    int `toml:"flee_chance_percent"`
}

type SecurityConfig struct {
	HookTimeoutMs      int `toml:"hook_timeout_ms"`
	HeartbeatTimeoutMs int `toml:"heartbeat_timeout_ms"`
}

type PlayerConfig struct {
	StartingHP      int     `toml:"starting_hp"`
	CarryCapacity   int     `toml:"carry_capacity"`
	RegenPerHeartbeat int   `toml:"regen_per_heartbeat"`
	XpMultiplier    float64 `toml:"xp_multiplier"`
	BaseXpPerLevel  int     `toml:"base_xp_per_level"`
}

type PerformanceConfig struct {
	ForceGcOnUnload      bool `toml:"force_gc_on_unload"`
	ForceGcEveryNUnloads int  `toml:"force_gc_every_n_unloads"`
}

type LlmConfig struct {
	Enabled     bool    `toml:"enabled"`
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	APIKeyEnv   string  `toml:"api_key_env"`
}

type MemoryConfig struct {
	Enabled          bool   `toml:"enabled"`
	ConnectionString string `toml:"connection_string"`
}

// Load reads path as TOML over defaults(), then applies the env-var
// overlay. CLI flags are applied by the caller (cmd/jitrealm) after
// Load returns, since cobra owns flag parsing and config has no
// dependency on it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverlay(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           4000,
			MaxConnections: 100,
			WelcomeMessage: "Welcome to JitRealm.",
			MudName:        "JitRealm",
			Version:        "dev",
		},
		Paths: PathsConfig{
			WorldDirectory:   "World",
			SaveDirectory:    "save",
			PlayersDirectory: "players",
			SaveFileName:     "world.json",
			StartRoom:        "Rooms/start",
			PlayerBlueprint:  "Players/player",
		},
		GameLoop: GameLoopConfig{
			LoopDelayMs:             1000,
			DefaultHeartbeatSeconds: 10,
			AutoSaveEnabled:         true,
			AutoSaveIntervalMinutes: 15,
		},
		Combat: CombatConfig{
			RoundIntervalSeconds: 2,
			FleeChancePercent:    25,
		},
		Security: SecurityConfig{
			HookTimeoutMs:      50,
			HeartbeatTimeoutMs: 100,
		},
		Player: PlayerConfig{
			StartingHP:        20,
			CarryCapacity:     100,
			RegenPerHeartbeat: 1,
			XpMultiplier:      1.0,
			BaseXpPerLevel:    1000,
		},
		Performance: PerformanceConfig{
			ForceGcOnUnload:      false,
			ForceGcEveryNUnloads: 25,
		},
		Llm: LlmConfig{
			Enabled:     false,
			Provider:    "",
			Model:       "",
			Temperature: 0.7,
			APIKeyEnv:   "JITREALM_LLM_API_KEY",
		},
		Memory: MemoryConfig{
			Enabled:          false,
			ConnectionString: "",
		},
	}
}

// applyEnvOverlay applies JITREALM_-prefixed environment variables on top
// of whatever Load has parsed so far, per spec §6's config precedence.
// Only scalar fields a deployment plausibly needs to override at the
// environment layer (port, paths, LLM/memory secrets) are covered; the
// rest is reachable via the TOML document or CLI flags.
func applyEnvOverlay(cfg *Config) {
	if v, ok := os.LookupEnv("JITREALM_SERVER_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v, ok := os.LookupEnv("JITREALM_WORLD_DIRECTORY"); ok {
		cfg.Paths.WorldDirectory = v
	}
	if v, ok := os.LookupEnv("JITREALM_SAVE_DIRECTORY"); ok {
		cfg.Paths.SaveDirectory = v
	}
	if v, ok := os.LookupEnv("JITREALM_LLM_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Llm.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("JITREALM_LLM_MODEL"); ok {
		cfg.Llm.Model = v
	}
	if v, ok := os.LookupEnv("JITREALM_MEMORY_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Memory.Enabled = b
		}
	}
	if v, ok := os.LookupEnv("JITREALM_MEMORY_CONNECTION_STRING"); ok {
		cfg.Memory.ConnectionString = v
	}
}
