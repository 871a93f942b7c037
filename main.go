package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-sonify/config"
	"go-sonify/data"
	"go-sonify/debug"
	"go-sonify/midi"
	"go-sonify/sonify"
	"go-sonify/theme"
	"go-sonify/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-sonify/config.yaml)")
	dataPath := flag.String("data", "", "CSV file to sonify, overrides data.path")
	record := flag.String("record", "", "also write the performance to this .mid file")
	flag.Parse()

	if err := run(*configPath, *dataPath, *record); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func run(configPath, dataPath, record string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dataPath != "" {
		cfg.Data.Path = dataPath
	}
	if record != "" {
		cfg.Synth.Record = record
	}

	if cfg.Debug {
		if err := debug.Enable(""); err != nil {
			return fmt.Errorf("debug log: %w", err)
		}
		defer debug.Disable()
	}

	if cfg.Data.Path == "" {
		return errors.New("no data file: pass -data or set data.path in the config")
	}
	mode, err := cfg.TimeMode()
	if err != nil {
		return err
	}
	table, skipped, err := data.LoadCSV(cfg.Data.Path, cfg.Data.TimeColumn, mode)
	if err != nil {
		return err
	}
	if skipped > 0 {
		debug.Warn("main", "%d rows without a readable %q skipped", skipped, cfg.Data.TimeColumn)
	}
	debug.Log("main", "loaded %d rows from %s", table.Len(), cfg.Data.Path)

	cfg.AutoTracks(table)
	tracks, err := cfg.BuildTracks(table)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%s has no numeric columns to sonify", cfg.Data.Path)
	}

	synth, recorder, closeSynth, err := openSynth(cfg.Synth)
	if err != nil {
		return err
	}
	defer closeSynth()

	transport := sonify.NewTransport(cfg.TransportConfig(), table, synth)
	transport.SetGain(cfg.Playback.Gain)
	transport.SetMuted(cfg.Playback.Muted)
	for _, tr := range tracks {
		if err := transport.AddTrack(tr); err != nil {
			return err
		}
	}

	th := theme.New(nil)
	if cfg.UI.Palette != "" {
		palette, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transport.StartRuntime(ctx)

	m := tui.NewModel(transport, th, filepath.Base(cfg.Data.Path))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()

	if recorder != nil {
		if err := recorder.WriteFile(cfg.Synth.Record); err != nil {
			return err
		}
		fmt.Printf("Recording saved to %s\n", cfg.Synth.Record)
	}
	return nil
}

// openSynth builds the configured backend. recorder is non-nil when the
// performance should be saved.
func openSynth(sc config.SynthConfig) (synth sonify.Synth, recorder *midi.Recorder, closeFn func(), err error) {
	closeFn = func() {}

	switch sc.Backend {
	case config.BackendMIDI, "":
		port, err := midi.OpenPort(sc.PortName)
		if err != nil {
			return nil, nil, nil, err
		}
		synth = port
		closeFn = func() { port.Close() }
	case config.BackendRecord:
		if sc.Record == "" {
			return nil, nil, nil, errors.New("record backend needs synth.record or -record")
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown synth backend %q", sc.Backend)
	}

	if sc.Record != "" {
		recorder = midi.NewRecorder(synth)
		synth = recorder
	}
	return synth, recorder, closeFn, nil
}
