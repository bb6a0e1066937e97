package config

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/history"
	"github.com/dyluth/easel/internal/presence"
	"github.com/dyluth/easel/internal/viewport"
	"github.com/dyluth/easel/pkg/board"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "easel.yml"

// Environment variables that override the file.
const (
	EnvRedisURL   = "EASEL_REDIS_URL"
	EnvBoard      = "EASEL_BOARD"
	EnvUserID     = "EASEL_USER_ID"
	EnvUserName   = "EASEL_USER_NAME"
	EnvUserColor  = "EASEL_USER_COLOR"
	EnvServerAddr = "EASEL_SERVER_ADDR"
)

// cursorPalette colors users that did not pick one.
var cursorPalette = []string{"#e91e63", "#3f51b5", "#009688", "#ff9800", "#795548", "#9c27b0", "#4caf50", "#607d8b"}

// EaselConfig represents the top-level easel.yml configuration
type EaselConfig struct {
	Version      string          `yaml:"version"`
	Board        string          `yaml:"board"`
	Redis        RedisConfig     `yaml:"redis"`
	User         board.Identity  `yaml:"user"`
	Presence     PresenceConfig  `yaml:"presence"`
	Drawing      DrawingConfig   `yaml:"drawing"`
	History      HistoryConfig   `yaml:"history"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	Zoom         viewport.Limits `yaml:"zoom"`
	Server       ServerConfig    `yaml:"server"`
}

// RedisConfig locates the shared store
type RedisConfig struct {
	URL   string `yaml:"url"`
	Image string `yaml:"image,omitempty"` // Image used by `easel up`
}

// PresenceConfig tunes cursor broadcasting
type PresenceConfig struct {
	Rate    float64       `yaml:"rate"`    // Writes per second
	Timeout time.Duration `yaml:"timeout"` // Staleness cutoff and record TTL
}

// DrawingConfig tunes the pen and shape tools
type DrawingConfig struct {
	MinStrokePoints int           `yaml:"min_stroke_points"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	Style           drawing.Style `yaml:"style"`
}

// HistoryConfig bounds the local undo stack
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// ServerConfig configures `easel serve`
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied and a random
// user id.
func Default() *EaselConfig {
	cfg := &EaselConfig{Version: "1.0"}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Validate performs strict validation on the configuration and fills in
// defaults for anything left unset.
func (c *EaselConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Board == "" {
		c.Board = "default"
	}
	if err := board.ValidateBoardID(c.Board); err != nil {
		return err
	}

	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}
	if c.Redis.Image == "" {
		c.Redis.Image = "redis:7-alpine"
	}

	if c.User.UserID == "" {
		c.User.UserID = uuid.New().String()
	}
	if c.User.DisplayName == "" {
		c.User.DisplayName = "anonymous-" + c.User.UserID[:min(4, len(c.User.UserID))]
	}
	if c.User.Color == "" {
		c.User.Color = colorFor(c.User.UserID)
	}

	if c.Presence.Rate == 0 {
		c.Presence.Rate = presence.DefaultOptions().Rate
	}
	if c.Presence.Rate < 0 {
		return fmt.Errorf("presence.rate must be > 0, got %g", c.Presence.Rate)
	}
	if c.Presence.Timeout == 0 {
		c.Presence.Timeout = presence.DefaultOptions().Timeout
	}
	if c.Presence.Timeout < time.Second {
		return fmt.Errorf("presence.timeout must be at least 1s, got %s", c.Presence.Timeout)
	}

	defaults := drawing.DefaultOptions()
	if c.Drawing.MinStrokePoints == 0 {
		c.Drawing.MinStrokePoints = defaults.MinStrokePoints
	}
	if c.Drawing.MinStrokePoints < 1 {
		return fmt.Errorf("drawing.min_stroke_points must be >= 1, got %d", c.Drawing.MinStrokePoints)
	}
	if c.Drawing.FlushInterval == 0 {
		c.Drawing.FlushInterval = defaults.FlushInterval
	}
	if c.Drawing.FlushInterval < 0 {
		return fmt.Errorf("drawing.flush_interval must be >= 0, got %s", c.Drawing.FlushInterval)
	}
	if c.Drawing.Style.Color == "" {
		c.Drawing.Style.Color = defaults.Style.Color
	}
	if c.Drawing.Style.StickyColor == "" {
		c.Drawing.Style.StickyColor = defaults.Style.StickyColor
	}
	if c.Drawing.Style.StrokeWidth == 0 {
		c.Drawing.Style.StrokeWidth = defaults.Style.StrokeWidth
	}
	if c.Drawing.Style.FontSize == 0 {
		c.Drawing.Style.FontSize = defaults.Style.FontSize
	}
	if c.Drawing.Style.StrokeWidth < 0 || c.Drawing.Style.FontSize < 0 {
		return fmt.Errorf("drawing.style sizes must be positive")
	}

	if c.History.Limit == 0 {
		c.History.Limit = history.DefaultLimit
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit must be >= 0, got %d", c.History.Limit)
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must be >= 0, got %s", c.WriteTimeout)
	}

	if c.Zoom == (viewport.Limits{}) {
		c.Zoom = viewport.DefaultLimits
	}
	if c.Zoom.Min <= 0 || c.Zoom.Max < c.Zoom.Min {
		return fmt.Errorf("zoom limits must satisfy 0 < min <= max, got %g..%g", c.Zoom.Min, c.Zoom.Max)
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	return nil
}

// ApplyEnv overlays EASEL_* variables read through getenv. Empty values are
// ignored.
func (c *EaselConfig) ApplyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{EnvRedisURL, &c.Redis.URL},
		{EnvBoard, &c.Board},
		{EnvUserID, &c.User.UserID},
		{EnvUserName, &c.User.DisplayName},
		{EnvUserColor, &c.User.Color},
		{EnvServerAddr, &c.Server.Addr},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// RedisOptions parses the Redis URL.
func (c *EaselConfig) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// CanvasConfig converts the file settings into a canvas configuration.
func (c *EaselConfig) CanvasConfig() canvas.Config {
	cfg := canvas.DefaultConfig(c.User)
	cfg.Drawing.MinStrokePoints = c.Drawing.MinStrokePoints
	cfg.Drawing.FlushInterval = c.Drawing.FlushInterval
	cfg.Drawing.Style = c.Drawing.Style
	cfg.Presence = presence.Options{Rate: c.Presence.Rate, Timeout: c.Presence.Timeout}
	cfg.HistoryLimit = c.History.Limit
	cfg.WriteTimeout = c.WriteTimeout
	cfg.ZoomLimits = c.Zoom
	return cfg
}

// Load reads easel.yml from the specified path, overlays the environment
// (including a .env file in the working directory, if present) and validates
// the result. A missing file at path is not an error when allowMissing is set;
// the defaults are used instead.
func Load(path string, allowMissing bool) (*EaselConfig, error) {
	config := &EaselConfig{Version: "1.0"}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		config = &EaselConfig{}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case allowMissing && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[Config] Ignoring unreadable .env file: %v", err)
	}
	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ParseEnvFile reads KEY=VALUE pairs without touching the process
// environment. Used by tests and by `easel up` to template a .env file.
func ParseEnvFile(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return env, nil
}

// WriteEnvFile writes a .env file pointing clients at a Redis port.
func WriteEnvFile(path, boardID string, port int) error {
	env := map[string]string{
		EnvRedisURL: "redis://localhost:" + strconv.Itoa(port) + "/0",
		EnvBoard:    boardID,
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

func colorFor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return cursorPalette[h.Sum32()%uint32(len(cursorPalette))]
}
