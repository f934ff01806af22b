package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Preset names accepted by PresetConfig.
const (
	PresetDefault      = "default"
	PresetSensitive    = "sensitive"
	PresetConservative = "conservative"
)

// EyeConfig tunes the eye closure classifier. Durations are seconds.
type EyeConfig struct {
	BlinkThreshold  float64 `json:"blink_threshold"`
	BlinkFrames     int     `json:"blink_frames"`
	DrowsyThreshold float64 `json:"drowsy_threshold"`
	DrowsyDuration  float64 `json:"drowsy_duration"`
}

// MouthConfig tunes the mouth opening classifier. Durations are seconds.
type MouthConfig struct {
	YawnThreshold     float64 `json:"yawn_threshold"`
	YawnDuration      float64 `json:"yawn_duration"`
	SpeakingThreshold float64 `json:"speaking_threshold"`
}

// HeadConfig tunes the head tilt classifier. Thresholds are absolute pitch
// in degrees; duration is seconds.
type HeadConfig struct {
	NormalThreshold float64 `json:"normal_threshold"`
	DrowsyThreshold float64 `json:"drowsy_threshold"`
	DrowsyDuration  float64 `json:"drowsy_duration"`
}

// FusionConfig tunes the alert fusion and escalation rule.
type FusionConfig struct {
	CombinationThreshold int     `json:"combination_threshold"`
	CriticalDuration     float64 `json:"critical_duration"`
}

// Config is the complete threshold surface for one detection session.
type Config struct {
	Eye    EyeConfig    `json:"eye"`
	Mouth  MouthConfig  `json:"mouth"`
	Head   HeadConfig   `json:"head"`
	Fusion FusionConfig `json:"fusion"`
}

// DefaultConfig returns the baseline tuning.
func DefaultConfig() Config {
	return Config{
		Eye: EyeConfig{
			BlinkThreshold:  0.25,
			BlinkFrames:     2,
			DrowsyThreshold: 0.22,
			DrowsyDuration:  1.2,
		},
		Mouth: MouthConfig{
			YawnThreshold:     0.6,
			YawnDuration:      1.2,
			SpeakingThreshold: 0.4,
		},
		Head: HeadConfig{
			NormalThreshold: 10.0,
			DrowsyThreshold: 15.0,
			DrowsyDuration:  1.5,
		},
		Fusion: FusionConfig{
			CombinationThreshold: 2,
			CriticalDuration:     3.0,
		},
	}
}

// PresetConfig returns a named tuning preset. Sensitive trades false
// positives for earlier warnings; conservative the reverse.
func PresetConfig(name string) (Config, error) {
	cfg := DefaultConfig()
	switch name {
	case PresetDefault, "":
	case PresetSensitive:
		cfg.Eye.DrowsyDuration = 1.0
		cfg.Mouth.YawnDuration = 0.8
		cfg.Head.DrowsyDuration = 1.0
		cfg.Fusion.CombinationThreshold = 1
		cfg.Fusion.CriticalDuration = 2.0
	case PresetConservative:
		cfg.Eye.DrowsyDuration = 2.5
		cfg.Mouth.YawnDuration = 2.0
		cfg.Head.DrowsyDuration = 2.5
		cfg.Fusion.CombinationThreshold = 3
		cfg.Fusion.CriticalDuration = 5.0
	default:
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}
	return cfg, nil
}

// Validate checks the tuning once at load time so the classifiers never
// have to re-check per frame.
func (c Config) Validate() error {
	if c.Eye.BlinkThreshold <= 0 || c.Eye.BlinkThreshold >= 1 {
		return fmt.Errorf("eye blink_threshold must be in (0,1), got %v", c.Eye.BlinkThreshold)
	}
	if c.Eye.DrowsyThreshold <= 0 || c.Eye.DrowsyThreshold >= 1 {
		return fmt.Errorf("eye drowsy_threshold must be in (0,1), got %v", c.Eye.DrowsyThreshold)
	}
	if c.Eye.DrowsyThreshold > c.Eye.BlinkThreshold {
		return fmt.Errorf("eye drowsy_threshold %v must not exceed blink_threshold %v",
			c.Eye.DrowsyThreshold, c.Eye.BlinkThreshold)
	}
	if c.Eye.BlinkFrames < 1 {
		return fmt.Errorf("eye blink_frames must be >= 1, got %d", c.Eye.BlinkFrames)
	}
	if c.Eye.DrowsyDuration <= 0 {
		return fmt.Errorf("eye drowsy_duration must be positive, got %v", c.Eye.DrowsyDuration)
	}

	if c.Mouth.YawnThreshold <= 0 || c.Mouth.YawnThreshold >= 1 {
		return fmt.Errorf("mouth yawn_threshold must be in (0,1), got %v", c.Mouth.YawnThreshold)
	}
	if c.Mouth.SpeakingThreshold <= 0 || c.Mouth.SpeakingThreshold >= c.Mouth.YawnThreshold {
		return fmt.Errorf("mouth speaking_threshold %v must be in (0, yawn_threshold %v)",
			c.Mouth.SpeakingThreshold, c.Mouth.YawnThreshold)
	}
	if c.Mouth.YawnDuration <= 0 {
		return fmt.Errorf("mouth yawn_duration must be positive, got %v", c.Mouth.YawnDuration)
	}

	if c.Head.NormalThreshold <= 0 {
		return fmt.Errorf("head normal_threshold must be positive, got %v", c.Head.NormalThreshold)
	}
	if c.Head.NormalThreshold >= c.Head.DrowsyThreshold {
		return fmt.Errorf("head normal_threshold %v must be below drowsy_threshold %v",
			c.Head.NormalThreshold, c.Head.DrowsyThreshold)
	}
	if c.Head.DrowsyDuration <= 0 {
		return fmt.Errorf("head drowsy_duration must be positive, got %v", c.Head.DrowsyDuration)
	}

	if c.Fusion.CombinationThreshold < 1 || c.Fusion.CombinationThreshold > 3 {
		return fmt.Errorf("fusion combination_threshold must be in [1,3], got %d", c.Fusion.CombinationThreshold)
	}
	if c.Fusion.CriticalDuration <= 0 {
		return fmt.Errorf("fusion critical_duration must be positive, got %v", c.Fusion.CriticalDuration)
	}
	return nil
}

// LoadConfig loads a Config from a JSON file. Fields omitted from the JSON
// keep their default values, so partial configs are safe.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// seconds converts a float seconds tuning value to a Duration.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
