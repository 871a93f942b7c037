package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"go-sonify/data"
	"go-sonify/sonify"
)

// SynthBackend selects where notes go
type SynthBackend string

const (
	BackendMIDI   SynthBackend = "midi"   // MIDI output port
	BackendRecord SynthBackend = "record" // Standard MIDI File only
)

// PlaybackConfig holds the transport tunables
type PlaybackConfig struct {
	Duration       time.Duration `yaml:"duration"`
	RowsPerTick    int           `yaml:"rowsPerTick"`
	TickInterval   time.Duration `yaml:"tickInterval"`
	Lookahead      time.Duration `yaml:"lookahead,omitempty"`
	StaleTolerance time.Duration `yaml:"staleTolerance"`
	// master gain and mute, on top of each track's own
	Gain  int  `yaml:"gain"`
	Muted bool `yaml:"muted,omitempty"`
}

// DataConfig describes the CSV being sonified
type DataConfig struct {
	Path       string `yaml:"path,omitempty"`
	TimeColumn string `yaml:"timeColumn"`
	TimeMode   string `yaml:"timeMode"`
}

// EncodingConfig configures one note attribute. Either Function or
// Variables/Values is used; with neither the stock default applies.
type EncodingConfig struct {
	Column    string   `yaml:"column,omitempty"` // defaults to the track column
	Default   *int     `yaml:"default,omitempty"`
	Octave    *int     `yaml:"octave,omitempty"` // pitch only
	Function  string   `yaml:"function,omitempty"`
	Min       int      `yaml:"min,omitempty"`
	Max       int      `yaml:"max,omitempty"`
	Variables []string `yaml:"variables,omitempty"`
	Values    []string `yaml:"values,omitempty"`
}

// FilterConfig restricts a track to some values of a column
type FilterConfig struct {
	Column string   `yaml:"column"`
	Values []string `yaml:"values"`
}

// TrackConfig defines one sonified column. Tracks play on consecutive MIDI
// channels in the order listed.
type TrackConfig struct {
	Column   string          `yaml:"column"`
	Program  int             `yaml:"program"`
	Gain     *int            `yaml:"gain,omitempty"`
	Muted    bool            `yaml:"muted,omitempty"`
	Pitch    *EncodingConfig `yaml:"pitch,omitempty"`
	Duration *EncodingConfig `yaml:"duration,omitempty"`
	Velocity *EncodingConfig `yaml:"velocity,omitempty"`
	Filter   *FilterConfig   `yaml:"filter,omitempty"`
}

// SynthConfig defines the synth output
type SynthConfig struct {
	Backend  SynthBackend `yaml:"backend"`
	PortName string       `yaml:"portName,omitempty"`
	Record   string       `yaml:"record,omitempty"` // also write a .mid file
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file
}

// Config is the main configuration structure
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Data     DataConfig     `yaml:"data"`
	Tracks   []TrackConfig  `yaml:"tracks,omitempty"`
	Synth    SynthConfig    `yaml:"synth"`
	UI       UIConfig       `yaml:"ui,omitempty"`
	Debug    bool           `yaml:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	d := sonify.DefaultConfig()
	return &Config{
		Playback: PlaybackConfig{
			Duration:       d.Duration,
			RowsPerTick:    d.RowsPerTick,
			TickInterval:   d.TickInterval,
			Lookahead:      d.Lookahead,
			StaleTolerance: d.StaleTolerance,
			Gain:           100,
		},
		Data: DataConfig{
			TimeColumn: "time",
			TimeMode:   string(data.TimeTempoBasic),
		},
		Synth: SynthConfig{
			Backend: BackendMIDI,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sonify"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing keys keep their defaults.
func LoadFrom(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, raw, 0644)
}

// TransportConfig converts the playback section for the transport
func (c *Config) TransportConfig() sonify.Config {
	return sonify.Config{
		Duration:       c.Playback.Duration,
		RowsPerTick:    c.Playback.RowsPerTick,
		TickInterval:   c.Playback.TickInterval,
		Lookahead:      c.Playback.Lookahead,
		StaleTolerance: c.Playback.StaleTolerance,
	}
}

// TimeMode parses the data section's time mode
func (c *Config) TimeMode() (data.TimeMode, error) {
	return data.ParseTimeMode(c.Data.TimeMode)
}

// BuildTracks creates the configured tracks against table, which supplies
// the column ranges functional encodings need.
func (c *Config) BuildTracks(table *data.Table) ([]*sonify.EncodedTrack, error) {
	if len(c.Tracks) > 16 {
		return nil, fmt.Errorf("%d tracks configured, at most 16 MIDI channels", len(c.Tracks))
	}
	var tracks []*sonify.EncodedTrack
	for i, tc := range c.Tracks {
		tr, err := tc.Build(uint8(i), table)
		if err != nil {
			return nil, fmt.Errorf("track %d (%s): %w", i, tc.Column, err)
		}
		tracks = append(tracks, tr)
	}
	return tracks, nil
}

// Build creates the track on channel
func (tc TrackConfig) Build(channel uint8, table *data.Table) (*sonify.EncodedTrack, error) {
	if tc.Column == "" {
		return nil, errors.New("no column")
	}
	if tc.Program < 0 || tc.Program > 127 {
		return nil, fmt.Errorf("program %d out of range", tc.Program)
	}

	tr := sonify.NewEncodedTrack(channel, strconv.Itoa(tc.Program), tc.Column)
	encodings := []struct {
		param sonify.Param
		cfg   *EncodingConfig
	}{
		{sonify.ParamValue, tc.Pitch},
		{sonify.ParamDuration, tc.Duration},
		{sonify.ParamVelocity, tc.Velocity},
	}
	for _, e := range encodings {
		pe := tr.Encoding(e.param)
		if e.cfg != nil {
			if err := e.cfg.apply(pe); err != nil {
				return nil, fmt.Errorf("%s: %w", e.param, err)
			}
		}
		if lo, hi, ok := table.Range(pe.Column); ok {
			pe.Range = sonify.ColumnRange{Lo: lo, Hi: hi}
		}
	}

	if tc.Gain != nil {
		tr.SetGain(*tc.Gain)
	}
	tr.SetMuted(tc.Muted)
	if tc.Filter != nil {
		tr.SetFilter(tc.Filter.Column, tc.Filter.Values...)
	}
	return tr, nil
}

func (ec *EncodingConfig) apply(pe *sonify.ParameterEncoding) error {
	if ec.Column != "" {
		pe.Column = ec.Column
	}
	octave := pe.Octave
	if ec.Octave != nil {
		octave = *ec.Octave
		pe.Octave = octave
	}

	switch {
	case ec.Function != "":
		hi := ec.Max
		if hi == 0 {
			hi = 127
			if pe.Param == sonify.ParamValue {
				hi = 12
			}
		}
		if err := pe.AssignFunctional(sonify.FunctionKind(ec.Function), ec.Min, hi); err != nil {
			return err
		}
	case len(ec.Variables) > 0:
		if err := pe.AssignHandpicked(ec.Variables, ec.Values, octave); err != nil {
			return err
		}
	}

	if ec.Default != nil {
		pe.Default = *ec.Default
	}
	return nil
}

// AutoTracks fills an empty track list with one track per numeric column,
// each mapping the column's range linearly onto an octave.
func (c *Config) AutoTracks(table *data.Table) {
	if len(c.Tracks) > 0 {
		return
	}
	for _, col := range table.Columns() {
		if col == c.Data.TimeColumn || len(c.Tracks) == 16 {
			continue
		}
		if _, _, ok := table.Range(col); !ok {
			continue
		}
		c.Tracks = append(c.Tracks, TrackConfig{
			Column: col,
			Pitch:  &EncodingConfig{Function: string(sonify.FunctionLinear)},
		})
	}
}
