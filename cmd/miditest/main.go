package main

import (
	"fmt"
	"os"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-sonify/midi"
	"go-sonify/sonify"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "note":
		playNote(os.Args[2:])
	case "scale":
		playScale(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                      - List MIDI output ports")
	fmt.Println("  note [port] [program]     - Play middle C")
	fmt.Println("  scale [port] [program]    - Play a C major scale")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Printf("(waiting up to %v...)\n", midi.ScanTimeout)

	names, err := midi.OutPortNames()
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
	if len(names) == 0 {
		fmt.Println("  (none)")
	}
}

// open returns the port named by args[0] with the program in args[1] loaded
func open(args []string) (*midi.Port, bool) {
	name, program := "", "0"
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		program = args[1]
	}

	port, err := midi.OpenPort(name)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return nil, false
	}
	fmt.Printf("Using output: %s\n", port.Name())
	if err := port.Load(0, program); err != nil {
		fmt.Printf("Error: %v\n", err)
		port.Close()
		return nil, false
	}
	return port, true
}

func playNote(args []string) {
	port, ok := open(args)
	if !ok {
		return
	}
	defer port.Close()

	key, _ := sonify.NoteNumber("C", 4)
	fmt.Printf("Playing key %d for 500ms\n", key)
	port.ScheduleNote(0, 0, uint8(key), 500*time.Millisecond, 100)
	time.Sleep(700 * time.Millisecond)
	fmt.Println("Done!")
}

func playScale(args []string) {
	port, ok := open(args)
	if !ok {
		return
	}
	defer port.Close()

	step := 250 * time.Millisecond
	for i, name := range []string{"C", "D", "E", "F", "G", "A", "B"} {
		key, _ := sonify.NoteNumber(name, 4)
		port.ScheduleNote(time.Duration(i)*step, 0, uint8(key), step, 100)
		fmt.Printf("  %s4 = %d\n", name, key)
	}
	key, _ := sonify.NoteNumber("C", 5)
	port.ScheduleNote(7*step, 0, uint8(key), 2*step, 100)

	time.Sleep(10 * step)
	fmt.Println("Done!")
}
