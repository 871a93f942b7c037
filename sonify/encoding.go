package sonify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go-sonify/data"
)

// Param is the note attribute a ParameterEncoding produces
type Param string

const (
	ParamValue    Param = "value"
	ParamDuration Param = "duration"
	ParamVelocity Param = "velocity"
)

// FunctionKind selects the mapping of a Functional encoding
type FunctionKind string

const (
	FunctionLinear FunctionKind = "linear"
)

var (
	ErrUnknownParam    = errors.New("unknown encoded parameter")
	ErrUnknownFunction = errors.New("unknown encoding function")
	ErrBadNoteName     = errors.New("bad note name")
)

// Encoding is either Handpicked or Functional.
type Encoding interface {
	isEncoding()
}

// Handpicked maps column values to parameters directly.
type Handpicked map[string]int

// Functional maps the column's numeric range onto [Min, Max].
type Functional struct {
	Kind     FunctionKind
	Min, Max int
}

func (Handpicked) isEncoding() {}
func (Functional) isEncoding() {}

// ColumnRange is the numeric extent of a column, needed by Functional encodings.
type ColumnRange struct {
	Lo, Hi float64
}

var noteNames = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5,
	"F#": 6, "GB": 6, "G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// NoteNumber converts a note name in an octave to a MIDI key (C4 = 60).
func NoteNumber(name string, octave int) (int, error) {
	semi, ok := noteNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadNoteName, name)
	}
	key := (octave+1)*12 + semi
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("%w: %s%d out of range", ErrBadNoteName, name, octave)
	}
	return key, nil
}

// ParameterEncoding turns one column of a row into one note attribute.
type ParameterEncoding struct {
	Param    Param
	Column   string
	Default  int
	Octave   int // pitch only
	Encoding Encoding
	Range    ColumnRange
}

// NewParameterEncoding returns an encoding with the stock defaults for param:
// pitch 80, 300ms duration, full velocity.
func NewParameterEncoding(param Param, column string) (*ParameterEncoding, error) {
	pe := &ParameterEncoding{Param: param, Column: column, Encoding: Handpicked{}}
	switch param {
	case ParamValue:
		pe.Default = 80
		pe.Octave = 4
		pe.Encoding = Functional{Kind: FunctionLinear, Min: 0, Max: 12}
	case ParamDuration:
		pe.Default = 300
	case ParamVelocity:
		pe.Default = 127
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParam, param)
	}
	return pe, nil
}

// AssignHandpicked sets a handpicked mapping. For pitch, values may be note
// names ("C#") placed in octave, or plain numbers. The first value also
// becomes the default, like the original editor does.
func (pe *ParameterEncoding) AssignHandpicked(variables, values []string, octave int) error {
	if len(variables) != len(values) {
		return fmt.Errorf("%d variables for %d values", len(variables), len(values))
	}
	m := make(Handpicked, len(variables))
	for i, v := range variables {
		p, err := pe.parse(values[i], octave)
		if err != nil {
			return err
		}
		m[v] = p
	}
	if len(values) > 0 {
		pe.Default = m[variables[0]]
	}
	pe.Octave = octave
	pe.Encoding = m
	return nil
}

// AssignFunctional sets a functional mapping.
func (pe *ParameterEncoding) AssignFunctional(kind FunctionKind, lo, hi int) error {
	if kind != FunctionLinear {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, kind)
	}
	pe.Encoding = Functional{Kind: kind, Min: lo, Max: hi}
	return nil
}

func (pe *ParameterEncoding) parse(v string, octave int) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	if pe.Param == ParamValue {
		return NoteNumber(v, octave)
	}
	return 0, fmt.Errorf("bad %s value %q", pe.Param, v)
}

// Get computes the parameter for row, falling back to Default when the
// column is missing or the value has no mapping.
func (pe *ParameterEncoding) Get(row data.Row) int {
	raw, ok := row.Get(pe.Column)
	if !ok {
		return pe.Default
	}
	switch enc := pe.Encoding.(type) {
	case Handpicked:
		if p, ok := enc[raw]; ok {
			return p
		}
		return pe.Default
	case Functional:
		v, ok := row.Float(pe.Column)
		if !ok {
			return pe.Default
		}
		out := enc.linear(v, pe.Range)
		if pe.Param == ParamValue {
			out += (pe.Octave + 1) * 12
		}
		return out
	}
	return pe.Default
}

func (f Functional) linear(v float64, r ColumnRange) int {
	span := r.Hi - r.Lo
	if span <= 0 {
		return f.Min
	}
	ratio := (v - r.Lo) / span
	ratio = max(0, min(1, ratio))
	return f.Min + int(ratio*float64(f.Max-f.Min)+0.5)
}

// EncodedTrack is a track built from three parameter encodings and an
// optional row filter.
type EncodedTrack struct {
	channel  uint8
	resource string
	column   string

	mu       sync.RWMutex
	value    *ParameterEncoding
	duration *ParameterEncoding
	velocity *ParameterEncoding

	filterColumn string
	filterValues map[string]bool

	gain  int // percent applied to velocity
	muted bool
}

// NewEncodedTrack creates a track reading every parameter from column with
// default encodings. resource is handed to Synth.Load when the track is added.
func NewEncodedTrack(channel uint8, resource, column string) *EncodedTrack {
	value, _ := NewParameterEncoding(ParamValue, column)
	duration, _ := NewParameterEncoding(ParamDuration, column)
	velocity, _ := NewParameterEncoding(ParamVelocity, column)
	return &EncodedTrack{
		channel:  channel,
		resource: resource,
		column:   column,
		value:    value,
		duration: duration,
		velocity: velocity,
		gain:     100,
	}
}

func (t *EncodedTrack) Channel() uint8   { return t.channel }
func (t *EncodedTrack) Resource() string { return t.resource }

// Column returns the column the track was created for.
func (t *EncodedTrack) Column() string { return t.column }

// Encoding returns the encoding for a parameter so callers can configure it.
func (t *EncodedTrack) Encoding(p Param) *ParameterEncoding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch p {
	case ParamValue:
		return t.value
	case ParamDuration:
		return t.duration
	case ParamVelocity:
		return t.velocity
	}
	return nil
}

// SetFilter restricts the track to rows whose column holds one of values.
// An empty column clears the filter.
func (t *EncodedTrack) SetFilter(column string, values ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filterColumn = column
	t.filterValues = make(map[string]bool, len(values))
	for _, v := range values {
		t.filterValues[v] = true
	}
}

// SetGain sets the velocity scale in percent.
func (t *EncodedTrack) SetGain(percent int) {
	t.mu.Lock()
	t.gain = max(0, percent)
	t.mu.Unlock()
}

// SetMuted silences the track without removing it.
func (t *EncodedTrack) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()
}

// Muted reports whether the track is muted.
func (t *EncodedTrack) Muted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.muted
}

// GenerateNotes implements Track.
func (t *EncodedTrack) GenerateNotes(row data.Row) ([]Note, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.muted {
		return nil, nil
	}
	if t.filterColumn != "" {
		v, _ := row.Get(t.filterColumn)
		if !t.filterValues[v] {
			return nil, nil
		}
	}

	duration := t.duration.Get(row)
	if duration <= 0 {
		return nil, fmt.Errorf("row %d: non-positive duration %d", row.Index, duration)
	}
	velocity := t.velocity.Get(row) * t.gain / 100

	return []Note{{
		Channel:  t.channel,
		Value:    clamp7(t.value.Get(row)),
		Duration: duration,
		Velocity: clamp7(velocity),
		TFactor:  row.TFactor,
	}}, nil
}
