package defs

import (
	"time"

	"go.uber.org/zap"
)

const DefaultDB = "gengar"

// Intervals.
const (
	DefaultLookback    = -14 * 24 * time.Hour
	DownloaderInterval = 5 * time.Minute
	TimeoutInterval    = 5 * time.Second
)

type Config struct {
	Dexcom   DexcomConfig   `yaml:"dexcom"`
	Mongo    MongoConfig    `yaml:"mongo"`
	HTTP     HTTPConfig     `yaml:"http"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Timezone string         `yaml:"timezone"`
	Logger   *zap.Logger    `yaml:"_,omitempty"`
}

type DexcomConfig struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
	Patient  string `yaml:"patient"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// AnalysisConfig holds every tunable consumed by the detectors and metrics.
// It is passed by value and never mutated during a detection call.
type AnalysisConfig struct {
	// Interval is the fixed sampling interval in minutes.
	Interval   float64     `yaml:"interval"`
	Thresholds Thresholds  `yaml:"thresholds"`
	Range      RangeConfig `yaml:"range"`

	// MinLength is the minimum episode/excursion duration in minutes.
	MinLength float64 `yaml:"minLength"`
	// EndLength is how long (minutes) glucose must stay back on the normal
	// side for an episode or excursion to count as ended.
	EndLength float64 `yaml:"endLength"`
	// Z is the standard deviation multiplier for excursions.
	Z          float64 `yaml:"z"`
	MAGEWindow int     `yaml:"mageWindow"`
}

// Thresholds are the severity bands in mg/dL.
type Thresholds struct {
	HypoLvl2  float64 `yaml:"hypoLvl2"`
	HypoLvl1  float64 `yaml:"hypoLvl1"`
	HyperLvl0 float64 `yaml:"hyperLvl0"`
	HyperLvl1 float64 `yaml:"hyperLvl1"`
	HyperLvl2 float64 `yaml:"hyperLvl2"`
}

type RangeConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// DefaultConfig is decoded over, so fields missing from the config file
// keep these values.
func DefaultConfig() Config {
	return Config{
		Mongo:    MongoConfig{Database: DefaultDB},
		HTTP:     HTTPConfig{Addr: ":4242"},
		Analysis: DefaultAnalysisConfig(),
	}
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Interval: 5,
		Thresholds: Thresholds{
			HypoLvl2:  54,
			HypoLvl1:  70,
			HyperLvl0: 140,
			HyperLvl1: 180,
			HyperLvl2: 250,
		},
		Range:      RangeConfig{Low: 70, High: 180},
		MinLength:  15,
		EndLength:  15,
		Z:          2,
		MAGEWindow: 9,
	}
}

// SamplingInterval returns the configured interval as a duration.
func (ac AnalysisConfig) SamplingInterval() time.Duration {
	return time.Duration(ac.Interval * float64(time.Minute))
}
