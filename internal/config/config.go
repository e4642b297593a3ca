// Package config loads pipeline configuration from the environment, the
// same flat env-var-with-inline-defaults idiom the teacher's
// cmd/desktop-bridge/main.go uses rather than a flag/config-file library.
package config

import (
	"os"
	"strconv"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// CodecMode selects the AVC420 (mono 4:2:0) or AVC444 (dual-subframe) path.
type CodecMode int

const (
	CodecAVC420 CodecMode = iota
	CodecAVC444
)

// Config holds every parameter the core specification exposes as
// configuration rather than a CLI flag.
type Config struct {
	CodecMode      CodecMode
	ColorMatrix    frame.ColorMatrix
	ColorRange     frame.ColorRange
	TargetFPS      int
	AuxRefreshIntervalFrames int
	DamageTileSize int
	DamageDiffThreshold float64

	// Negotiated capture resolution. The media-capture socket doesn't
	// renegotiate mid-session in this core, so the pipeline's caps are
	// fixed at startup from these.
	ScreenWidth  int
	ScreenHeight int

	// Ambient.
	HTTPPort      string
	XDGRuntimeDir string
	SessionID     string
}

// Default returns the specification's default configuration.
func Default() Config {
	return Config{
		CodecMode:                CodecAVC444,
		ColorMatrix:              frame.MatrixBT709,
		ColorRange:               frame.RangeStudio,
		TargetFPS:                30,
		AuxRefreshIntervalFrames: 30,
		DamageTileSize:           64,
		DamageDiffThreshold:      0.05,
		ScreenWidth:              1920,
		ScreenHeight:             1080,
		HTTPPort:                 "9876",
		XDGRuntimeDir:            "/run/user/1000",
	}
}

// FromEnv overlays environment variables on top of Default and validates
// the result. A ConfigurationError aborts initialization before any
// goroutine starts.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("RDP_CODEC_MODE"); v != "" {
		switch v {
		case "AVC420":
			cfg.CodecMode = CodecAVC420
		case "AVC444":
			cfg.CodecMode = CodecAVC444
		default:
			return cfg, rdperrors.Configurationf("config", "RDP_CODEC_MODE must be AVC420 or AVC444, got %q", v)
		}
	}

	if v := os.Getenv("RDP_COLOR_MATRIX"); v != "" {
		m, err := frame.ParseColorMatrix(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_COLOR_MATRIX: %v", err)
		}
		cfg.ColorMatrix = m
	}

	if v := os.Getenv("RDP_COLOR_RANGE"); v != "" {
		r, err := frame.ParseColorRange(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_COLOR_RANGE: %v", err)
		}
		cfg.ColorRange = r
	}

	if v := os.Getenv("RDP_TARGET_FPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_TARGET_FPS: %v", err)
		}
		cfg.TargetFPS = n
	}

	if v := os.Getenv("RDP_AUX_REFRESH_INTERVAL_FRAMES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_AUX_REFRESH_INTERVAL_FRAMES: %v", err)
		}
		cfg.AuxRefreshIntervalFrames = n
	}

	if v := os.Getenv("RDP_DAMAGE_TILE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_DAMAGE_TILE_SIZE: %v", err)
		}
		cfg.DamageTileSize = n
	}

	if v := os.Getenv("RDP_DAMAGE_DIFF_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "RDP_DAMAGE_DIFF_THRESHOLD: %v", err)
		}
		cfg.DamageDiffThreshold = f
	}

	if v := os.Getenv("GAMESCOPE_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "GAMESCOPE_WIDTH: %v", err)
		}
		cfg.ScreenWidth = n
	}
	if v := os.Getenv("GAMESCOPE_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, rdperrors.Configurationf("config", "GAMESCOPE_HEIGHT: %v", err)
		}
		cfg.ScreenHeight = n
	}

	if v := os.Getenv("SCREENSHOT_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		cfg.XDGRuntimeDir = v
	}
	if v := os.Getenv("HELIX_SESSION_ID"); v != "" {
		cfg.SessionID = v
	}

	return cfg, cfg.Validate()
}

// Validate checks every field against the bounds the core specification
// states in its external-interfaces section.
func (c Config) Validate() error {
	if c.TargetFPS < 1 || c.TargetFPS > 120 {
		return rdperrors.Configurationf("config", "target_fps must be in [1,120], got %d", c.TargetFPS)
	}
	if c.AuxRefreshIntervalFrames < 1 || c.AuxRefreshIntervalFrames > 600 {
		return rdperrors.Configurationf("config", "aux_refresh_interval_frames must be in [1,600], got %d", c.AuxRefreshIntervalFrames)
	}
	switch c.DamageTileSize {
	case 16, 32, 64, 128:
	default:
		return rdperrors.Configurationf("config", "damage_tile_size must be one of 16,32,64,128, got %d", c.DamageTileSize)
	}
	if c.DamageDiffThreshold <= 0.0 || c.DamageDiffThreshold > 1.0 {
		return rdperrors.Configurationf("config", "damage_diff_threshold must be in (0,1], got %v", c.DamageDiffThreshold)
	}
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		return rdperrors.Configurationf("config", "screen dimensions must be positive, got %dx%d", c.ScreenWidth, c.ScreenHeight)
	}
	return nil
}
