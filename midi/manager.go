package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-sonify/debug"
)

// ScanTimeout bounds port enumeration. CoreMIDI can hang.
const ScanTimeout = 3 * time.Second

var (
	ErrScanTimeout = errors.New("midi: port scan timed out")
	ErrNoPort      = errors.New("midi: output port not found")
)

// OutPorts lists the output ports, giving up after ScanTimeout
func OutPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(ScanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		debug.Warn("midi", "port scan timed out after %v", ScanTimeout)
		return nil, ErrScanTimeout
	}
}

// OutPortNames returns the names of the output ports
func OutPortNames() ([]string, error) {
	outs, err := OutPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names, nil
}

// FindOutPort picks the port called name. An exact match wins, then the first
// case-insensitive substring match; an empty name picks the first port.
func FindOutPort(name string) (drivers.Out, error) {
	outs, err := OutPorts()
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, ErrNoPort
	}
	if name == "" {
		return outs[0], nil
	}

	for _, p := range outs {
		if p.String() == name {
			return p, nil
		}
	}
	want := strings.ToLower(name)
	for _, p := range outs {
		if strings.Contains(strings.ToLower(p.String()), want) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoPort, name)
}

// OpenPort finds the output port called name and opens it as a synth backend
func OpenPort(name string) (*Port, error) {
	out, err := FindOutPort(name)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", out.String(), err)
	}
	debug.Log("midi", "opened output %s", out.String())
	return NewPort(out.String(), send), nil
}
