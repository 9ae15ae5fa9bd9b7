// Package config handles loading, defaulting, and validation of the mitplan
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/mitplan-engine/internal/classify"
	"github.com/large-farva/mitplan-engine/internal/cue"
	"github.com/large-farva/mitplan-engine/internal/jobs"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data       DataConfig        `toml:"data"       json:"data"`
	Logging    LoggingConfig     `toml:"logging"    json:"logging"`
	Server     ServerConfig      `toml:"server"     json:"server"`
	Source     SourceConfig      `toml:"source"     json:"source"`
	Demo       DemoConfig        `toml:"demo"       json:"demo"`
	Clock      ClockConfig       `toml:"clock"      json:"clock"`
	Combat     CombatConfig      `toml:"combat"     json:"combat"`
	Classifier ClassifierConfig  `toml:"classifier" json:"classifier"`
	Player     PlayerConfig      `toml:"player"     json:"player"`
	Timeline   TimelineConfig    `toml:"timeline"   json:"timeline"`
	Plans      PlansConfig       `toml:"plans"      json:"plans"`
	Zones      map[string]string `toml:"zones"      json:"zones"`
	Journal    JournalConfig     `toml:"journal"    json:"journal"`
	Cues       CuesConfig        `toml:"cues"       json:"cues"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// Source modes.
const (
	SourceOverlayPlugin = "overlayplugin"
	SourceNetlog        = "netlog"
	SourceReplay        = "replay"
	SourceDemo          = "demo"
	SourceNone          = "none"
)

type SourceConfig struct {
	Mode        string  `toml:"mode"         json:"mode"`
	OverlayURL  string  `toml:"overlay_url"  json:"overlay_url"`
	LogDir      string  `toml:"log_dir"      json:"log_dir"`
	FromStart   bool    `toml:"from_start"   json:"from_start"`
	ReplayFile  string  `toml:"replay_file"  json:"replay_file"`
	ReplaySpeed float64 `toml:"replay_speed" json:"replay_speed"`
}

type DemoConfig struct {
	IntervalSeconds int     `toml:"interval_seconds" json:"interval_seconds"`
	PullSeconds     int     `toml:"pull_seconds"     json:"pull_seconds"`
	WipeChance      float64 `toml:"wipe_chance"      json:"wipe_chance"`
}

type ClockConfig struct {
	TickMS int `toml:"tick_ms" json:"tick_ms"`
}

type CombatConfig struct {
	EndGraceMS   int `toml:"end_grace_ms"   json:"end_grace_ms"`
	EndedDecayMS int `toml:"ended_decay_ms" json:"ended_decay_ms"`
}

type ClassifierConfig struct {
	WipeProfile         string   `toml:"wipe_profile"          json:"wipe_profile"`
	ExtraWipeCommands   []string `toml:"extra_wipe_commands"   json:"extra_wipe_commands"`
	ExtraEngagePatterns []string `toml:"extra_engage_patterns" json:"extra_engage_patterns"`
}

type PlayerConfig struct {
	Job         string `toml:"job"           json:"job"`
	Role        string `toml:"role"          json:"role"`
	ShowOwnOnly bool   `toml:"show_own_only" json:"show_own_only"`
}

type TimelineConfig struct {
	WindowSeconds float64 `toml:"window_seconds" json:"window_seconds"`
	MaxItems      int     `toml:"max_items"      json:"max_items"`
}

type PlansConfig struct {
	Dir      string `toml:"dir"       json:"dir"`
	AutoLoad bool   `toml:"auto_load" json:"auto_load"`
	Watch    bool   `toml:"watch"     json:"watch"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path"    json:"path"`
}

type CuesConfig struct {
	Sound          bool   `toml:"sound"           json:"sound"`
	SoundType      string `toml:"sound_type"      json:"sound_type"`
	VoiceCountdown bool   `toml:"voice_countdown" json:"voice_countdown"`
	VoiceActions   bool   `toml:"voice_actions"   json:"voice_actions"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8787",
		},
		Source: SourceConfig{
			Mode:        SourceDemo,
			OverlayURL:  "ws://127.0.0.1:10501/ws",
			ReplaySpeed: 1,
		},
		Demo: DemoConfig{
			IntervalSeconds: 20,
			PullSeconds:     90,
			WipeChance:      0.5,
		},
		Clock: ClockConfig{
			TickMS: 100,
		},
		Combat: CombatConfig{
			EndGraceMS:   5000,
			EndedDecayMS: 3000,
		},
		Classifier: ClassifierConfig{
			WipeProfile: classify.DefaultWipeProfile,
		},
		Timeline: TimelineConfig{
			WindowSeconds: 30,
			MaxItems:      5,
		},
		Plans: PlansConfig{
			AutoLoad: true,
			Watch:    true,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Cues: CuesConfig{
			SoundType: cue.SoundInfo,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// PlansDir is plans.dir, or data.root/plans when unset.
func (c Config) PlansDir() string {
	if c.Plans.Dir != "" {
		return c.Plans.Dir
	}
	return filepath.Join(c.Data.Root, "plans")
}

// JournalPath is journal.path, or data.root/pulls.db when unset.
func (c Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Data.Root, "pulls.db")
}

// TickInterval is clock.tick_ms as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Clock.TickMS) * time.Millisecond
}

// EndGrace is combat.end_grace_ms as a duration.
func (c Config) EndGrace() time.Duration {
	return time.Duration(c.Combat.EndGraceMS) * time.Millisecond
}

// EndedDecay is combat.ended_decay_ms as a duration.
func (c Config) EndedDecay() time.Duration {
	return time.Duration(c.Combat.EndedDecayMS) * time.Millisecond
}

// Codes builds the classifier codes from the [classifier] section.
func (c Config) Codes() (classify.Codes, error) {
	return classify.NewCodes(c.Classifier.WipeProfile, c.Classifier.ExtraWipeCommands, c.Classifier.ExtraEngagePatterns)
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if !logLevels[cfg.Logging.Level] {
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	switch cfg.Source.Mode {
	case SourceOverlayPlugin:
		if cfg.Source.OverlayURL == "" {
			return errors.New("source.overlay_url must not be empty in overlayplugin mode")
		}
	case SourceNetlog:
		if cfg.Source.LogDir == "" {
			return errors.New("source.log_dir must not be empty in netlog mode")
		}
	case SourceReplay:
		if cfg.Source.ReplayFile == "" {
			return errors.New("source.replay_file must not be empty in replay mode")
		}
	case SourceDemo, SourceNone:
	default:
		return errors.New("source.mode must be one of overlayplugin, netlog, replay, demo, none")
	}
	if cfg.Source.ReplaySpeed <= 0 {
		return errors.New("source.replay_speed must be > 0")
	}
	if cfg.Demo.IntervalSeconds < 0 {
		return errors.New("demo.interval_seconds must be >= 0")
	}
	if cfg.Demo.PullSeconds < 10 {
		return errors.New("demo.pull_seconds must be >= 10")
	}
	if cfg.Demo.WipeChance < 0 || cfg.Demo.WipeChance > 1 {
		return errors.New("demo.wipe_chance must be between 0 and 1")
	}
	if cfg.Clock.TickMS < 10 || cfg.Clock.TickMS > 1000 {
		return errors.New("clock.tick_ms must be between 10 and 1000")
	}
	if cfg.Combat.EndGraceMS <= 0 {
		return errors.New("combat.end_grace_ms must be > 0")
	}
	if cfg.Combat.EndedDecayMS <= 0 {
		return errors.New("combat.ended_decay_ms must be > 0")
	}
	if _, err := cfg.Codes(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if cfg.Player.Job != "" {
		if _, ok := jobs.Lookup(cfg.Player.Job); !ok {
			return fmt.Errorf("player.job %q is not a known job", cfg.Player.Job)
		}
	}
	if cfg.Player.Role != "" && !jobs.RoleValidForJob(cfg.Player.Role, cfg.Player.Job) {
		return fmt.Errorf("player.role %q is not valid for job %q", cfg.Player.Role, cfg.Player.Job)
	}
	if cfg.Timeline.WindowSeconds <= 0 {
		return errors.New("timeline.window_seconds must be > 0")
	}
	if cfg.Timeline.MaxItems < 1 {
		return errors.New("timeline.max_items must be >= 1")
	}
	if !cue.ValidSoundType(cfg.Cues.SoundType) {
		return errors.New("cues.sound_type must be one of info, alert, alarm")
	}
	return nil
}
