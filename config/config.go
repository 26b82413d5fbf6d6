package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"trend-engine/internal/market"
)

// Config is the top-level service configuration, loaded from a JSON file
// with environment overrides applied afterwards.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Market  MarketConfig  `json:"market"`
	Redis   RedisConfig   `json:"redis"`
	Trend   TrendConfig   `json:"trend"`
	Scanner ScannerConfig `json:"scanner"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// MarketConfig holds market data provider settings.
type MarketConfig struct {
	BaseURL   string `json:"base_url"`
	StreamURL string `json:"stream_url"`
	MockMode  bool   `json:"mock_mode"` // serve deterministic synthetic data
}

// RedisConfig holds the optional shared bar cache settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ScannerConfig holds the background scan loop settings.
type ScannerConfig struct {
	Enabled      bool     `json:"enabled"`
	Symbols      []string `json:"symbols"`
	Timeframe    string   `json:"timeframe"`
	Lookback     int      `json:"lookback"`      // bars fetched per scan
	ScanInterval int      `json:"scan_interval"` // seconds between scans
	WorkerCount  int      `json:"worker_count"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON instead of console output
}

// TrendConfig holds every tunable of the trend-change detection engine.
// Validate rejects out-of-range values with a descriptive error; nothing is
// silently clamped.
type TrendConfig struct {
	UseTrendDetection  bool    `json:"use_trend_detection"`
	Sensitivity        int     `json:"trend_detection_sensitivity"` // 1..10
	MinTrendConfidence float64 `json:"min_trend_confidence"`        // 0..1
	EnableEarlySignals bool    `json:"enable_early_signals"`

	SwingWindow int `json:"swing_window"` // 0 derives from sensitivity
	AroonPeriod int `json:"aroon_period"` // 20..50

	TrendlineMaxActive   int     `json:"trendline_max_active"`
	TrendlineAngleMinDeg float64 `json:"trendline_angle_min_deg"`
	TrendlineAngleMaxDeg float64 `json:"trendline_angle_max_deg"`
	TrendlineMinTouches  int     `json:"trendline_min_touches"`
	RetestWindowBars     int     `json:"retest_window_bars"`
	RetestConfirmBars    int     `json:"retest_confirm_bars"`

	DivergenceMinSwingPairs int `json:"divergence_min_swing_pairs"`
	DivergenceLookback      int `json:"divergence_lookback"`

	StructureFollowThroughBars int     `json:"structure_follow_through_bars"`
	StructureMagnitudeWeight   float64 `json:"structure_magnitude_weight"`
	StructureVolumeWeight      float64 `json:"structure_volume_weight"`

	VolumeSpikeFactor    float64 `json:"volume_spike_factor"`
	VolumeBreakoutFactor float64 `json:"volume_breakout_factor"`

	TimeframeRelationships    map[string]string  `json:"timeframe_relationships"`
	RequireTimeframeAlignment bool               `json:"require_timeframe_alignment"`
	HigherTimeframeLookback   int                `json:"higher_timeframe_lookback"`
	SourceWeights             map[string]float64 `json:"source_weights"`
}

// ValidationError describes a configuration value outside its documented
// range. It is fatal and surfaced at load time, never per call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
		},
		Market: MarketConfig{
			MockMode: false,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Trend: DefaultTrendConfig(),
		Scanner: ScannerConfig{
			Symbols:      []string{"BTCUSDT", "ETHUSDT"},
			Timeframe:    "15m",
			Lookback:     200,
			ScanInterval: 60,
			WorkerCount:  4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// DefaultTrendConfig returns the engine defaults. The source weights are a
// baseline, not a law; deployments tune them per market.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		UseTrendDetection:          true,
		Sensitivity:                5,
		MinTrendConfidence:         0.6,
		EnableEarlySignals:         false,
		AroonPeriod:                25,
		TrendlineMaxActive:         10,
		TrendlineAngleMinDeg:       10,
		TrendlineAngleMaxDeg:       80,
		TrendlineMinTouches:        3,
		RetestWindowBars:           20,
		RetestConfirmBars:          3,
		DivergenceMinSwingPairs:    2,
		DivergenceLookback:         100,
		StructureFollowThroughBars: 2,
		StructureMagnitudeWeight:   0.6,
		StructureVolumeWeight:      0.4,
		VolumeSpikeFactor:          2.5,
		VolumeBreakoutFactor:       1.5,
		TimeframeRelationships: map[string]string{
			"1m":  "15m",
			"5m":  "1h",
			"15m": "4h",
			"1h":  "4h",
			"4h":  "1d",
		},
		RequireTimeframeAlignment: false,
		HigherTimeframeLookback:   150,
		SourceWeights: map[string]float64{
			"structure":  0.30,
			"divergence": 0.25,
			"aroon":      0.15,
			"trendline":  0.15,
			"volume":     0.10,
		},
	}
}

// EffectiveSwingWindow derives the pivot width from the sensitivity when no
// explicit window is configured: higher sensitivity means a tighter window
// and therefore more (earlier) pivots.
func (c *TrendConfig) EffectiveSwingWindow() int {
	if c.SwingWindow > 0 {
		return c.SwingWindow
	}
	window := 11 - c.Sensitivity
	if window < 3 {
		window = 3
	}
	if window > 10 {
		window = 10
	}
	return window
}

// Load reads the config file at path (defaults applied for a missing file),
// layers environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("MARKET_STREAM_URL"); v != "" {
		cfg.Market.StreamURL = v
	}
	if v := os.Getenv("MOCK_MODE"); v != "" {
		cfg.Market.MockMode = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks every documented range. The first violation is returned
// as a ValidationError.
func (c *Config) Validate() error {
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return invalid("server.port", fmt.Sprintf("got %d, want 1..65535", c.Server.Port))
	}
	if c.Scanner.Enabled {
		if len(c.Scanner.Symbols) == 0 {
			return invalid("scanner.symbols", "at least one symbol required when the scanner is enabled")
		}
		if !market.IsValidTimeframe(market.Timeframe(c.Scanner.Timeframe)) {
			return invalid("scanner.timeframe", fmt.Sprintf("unsupported timeframe %q", c.Scanner.Timeframe))
		}
		if c.Scanner.Lookback < 50 {
			return invalid("scanner.lookback", fmt.Sprintf("got %d, want >= 50", c.Scanner.Lookback))
		}
		if c.Scanner.ScanInterval < 1 {
			return invalid("scanner.scan_interval", fmt.Sprintf("got %d, want >= 1 second", c.Scanner.ScanInterval))
		}
		if c.Scanner.WorkerCount < 1 {
			return invalid("scanner.worker_count", fmt.Sprintf("got %d, want >= 1", c.Scanner.WorkerCount))
		}
	}
	return c.Trend.Validate()
}

// Validate checks the engine tunables against their documented ranges.
func (c *TrendConfig) Validate() error {
	if c.Sensitivity < 1 || c.Sensitivity > 10 {
		return invalid("trend.trend_detection_sensitivity", fmt.Sprintf("got %d, want 1..10", c.Sensitivity))
	}
	if c.MinTrendConfidence < 0 || c.MinTrendConfidence > 1 {
		return invalid("trend.min_trend_confidence", fmt.Sprintf("got %v, want 0..1", c.MinTrendConfidence))
	}
	if c.AroonPeriod < 20 || c.AroonPeriod > 50 {
		return invalid("trend.aroon_period", fmt.Sprintf("got %d, want 20..50", c.AroonPeriod))
	}
	if c.SwingWindow < 0 {
		return invalid("trend.swing_window", fmt.Sprintf("got %d, want >= 0", c.SwingWindow))
	}
	if c.TrendlineMaxActive < 1 {
		return invalid("trend.trendline_max_active", fmt.Sprintf("got %d, want >= 1", c.TrendlineMaxActive))
	}
	if c.TrendlineAngleMinDeg <= 0 || c.TrendlineAngleMinDeg >= 90 {
		return invalid("trend.trendline_angle_min_deg", fmt.Sprintf("got %v, want (0, 90)", c.TrendlineAngleMinDeg))
	}
	if c.TrendlineAngleMaxDeg <= c.TrendlineAngleMinDeg || c.TrendlineAngleMaxDeg >= 90 {
		return invalid("trend.trendline_angle_max_deg",
			fmt.Sprintf("got %v, want (trendline_angle_min_deg, 90)", c.TrendlineAngleMaxDeg))
	}
	if c.TrendlineMinTouches < 2 {
		return invalid("trend.trendline_min_touches", fmt.Sprintf("got %d, want >= 2", c.TrendlineMinTouches))
	}
	if c.RetestWindowBars < 1 {
		return invalid("trend.retest_window_bars", fmt.Sprintf("got %d, want >= 1", c.RetestWindowBars))
	}
	if c.RetestConfirmBars < 1 {
		return invalid("trend.retest_confirm_bars", fmt.Sprintf("got %d, want >= 1", c.RetestConfirmBars))
	}
	if c.DivergenceMinSwingPairs < 1 {
		return invalid("trend.divergence_min_swing_pairs", fmt.Sprintf("got %d, want >= 1", c.DivergenceMinSwingPairs))
	}
	if c.DivergenceLookback < 20 {
		return invalid("trend.divergence_lookback", fmt.Sprintf("got %d, want >= 20", c.DivergenceLookback))
	}
	if c.StructureFollowThroughBars < 1 {
		return invalid("trend.structure_follow_through_bars", fmt.Sprintf("got %d, want >= 1", c.StructureFollowThroughBars))
	}
	if c.StructureMagnitudeWeight < 0 {
		return invalid("trend.structure_magnitude_weight", fmt.Sprintf("got %v, want >= 0", c.StructureMagnitudeWeight))
	}
	if c.StructureVolumeWeight < 0 {
		return invalid("trend.structure_volume_weight", fmt.Sprintf("got %v, want >= 0", c.StructureVolumeWeight))
	}
	if c.StructureMagnitudeWeight+c.StructureVolumeWeight <= 0 {
		return invalid("trend.structure_magnitude_weight", "magnitude and volume weights must sum above zero")
	}
	if c.VolumeSpikeFactor <= 1 {
		return invalid("trend.volume_spike_factor", fmt.Sprintf("got %v, want > 1", c.VolumeSpikeFactor))
	}
	if c.VolumeBreakoutFactor <= 1 {
		return invalid("trend.volume_breakout_factor", fmt.Sprintf("got %v, want > 1", c.VolumeBreakoutFactor))
	}
	if c.HigherTimeframeLookback < 50 {
		return invalid("trend.higher_timeframe_lookback", fmt.Sprintf("got %d, want >= 50", c.HigherTimeframeLookback))
	}

	for tf, higher := range c.TimeframeRelationships {
		if !market.IsValidTimeframe(market.Timeframe(tf)) {
			return invalid("trend.timeframe_relationships", fmt.Sprintf("unsupported timeframe %q", tf))
		}
		if !market.IsValidTimeframe(market.Timeframe(higher)) {
			return invalid("trend.timeframe_relationships", fmt.Sprintf("unsupported higher timeframe %q for %q", higher, tf))
		}
		if market.Timeframe(higher).Duration() <= market.Timeframe(tf).Duration() {
			return invalid("trend.timeframe_relationships",
				fmt.Sprintf("higher timeframe %q must be longer than %q", higher, tf))
		}
	}

	known := map[string]bool{
		"structure": true, "divergence": true, "aroon": true,
		"trendline": true, "volume": true,
	}
	for source, weight := range c.SourceWeights {
		if !known[source] {
			return invalid("trend.source_weights", fmt.Sprintf("unknown source %q", source))
		}
		if weight < 0 || weight > 1 {
			return invalid("trend.source_weights", fmt.Sprintf("weight for %q is %v, want 0..1", source, weight))
		}
	}

	return nil
}

// HigherTimeframe resolves the configured higher timeframe for tf, if any.
func (c *TrendConfig) HigherTimeframe(tf market.Timeframe) (market.Timeframe, bool) {
	higher, ok := c.TimeframeRelationships[string(tf)]
	if !ok {
		return "", false
	}
	return market.Timeframe(higher), true
}
