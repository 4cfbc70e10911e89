package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go-midivel/config"
	"go-midivel/midi"
	"go-midivel/pipeline"
	"go-midivel/split"
	"go-midivel/stats"
	"go-midivel/token"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		return
	}

	var err error
	arg := os.Args[2]
	switch os.Args[1] {
	case "events":
		err = listEvents(arg)
	case "tokens":
		err = listTokens(arg)
	case "instruments":
		err = listInstruments(arg)
	case "notes":
		err = listNotes(arg)
	case "mnn":
		err = meanMNN(arg)
	case "split":
		err = showSplit(arg)
	case "windows":
		window := 50
		if len(os.Args) > 3 {
			window, err = strconv.Atoi(os.Args[3])
			if err != nil {
				break
			}
		}
		err = showWindows(arg, window)
	default:
		usage()
		return
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI inspection")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  events <file>          - List merged events with delta times")
	fmt.Println("  tokens <file>          - List (time_delta, pitch, velocity) tokens")
	fmt.Println("  instruments <file>     - List instruments and their note counts")
	fmt.Println("  notes <file>           - List every note per instrument, in seconds")
	fmt.Println("  mnn <file>             - Print the mean MIDI note number")
	fmt.Println("  split <dir>            - Show the train/validation/test split")
	fmt.Println("  windows <dir> [length] - Build datasets and print their shapes")
}

func listEvents(path string) error {
	f, err := midi.ReadFile(path, midi.Seconds)
	if err != nil {
		return err
	}
	fmt.Printf("=== %s: %d tracks, %d events ===\n", path, f.Tracks, f.Len())
	i := 0
	for ev := range f.Events() {
		fmt.Printf("  %5d: %s\n", i, ev)
		i++
	}
	return nil
}

func listTokens(path string) error {
	f, err := midi.ReadFile(path, midi.Seconds)
	if err != nil {
		return err
	}
	toks := token.Tokenize(f.Events(), false)
	fmt.Printf("=== %s: %d tokens ===\n", path, len(toks))
	for i, t := range toks {
		fmt.Printf("  %5d: %s\n", i, t)
	}
	return nil
}

func listInstruments(path string) error {
	f, err := midi.ReadFile(path, midi.Ticks)
	if err != nil {
		return err
	}
	for i, inst := range f.Instruments() {
		fmt.Printf("Instrument %d - Program: %d, Is Drum: %t, Track: %d, Channel: %d, Notes: %d\n",
			i, inst.Program, inst.IsDrum, inst.Track, inst.Channel, inst.Notes)
	}
	return nil
}

func listNotes(path string) error {
	f, err := midi.ReadFile(path, midi.Seconds)
	if err != nil {
		return err
	}
	notes := f.Notes()
	for i, inst := range f.Instruments() {
		fmt.Printf("Instrument %d - Program: %d, Is Drum: %t\n", i, inst.Program, inst.IsDrum)
		fmt.Printf("Notes for Instrument %d:\n", i)
		for _, n := range notes {
			if n.Track != inst.Track || n.Channel != inst.Channel {
				continue
			}
			fmt.Printf("  Start: %.3f, End: %.3f, Pitch: %d, Velocity: %d\n", n.Start, n.End, n.Pitch, n.Velocity)
		}
	}
	return nil
}

func meanMNN(path string) error {
	f, err := midi.ReadFile(path, midi.Ticks)
	if err != nil {
		return err
	}
	st, err := stats.MeanMNN(f)
	if err != nil {
		return err
	}
	fmt.Println("Mean MNN:", st.MeanMNN)
	return nil
}

func showSplit(dir string) error {
	files, err := split.ListMIDIFiles(dir)
	if err != nil {
		return err
	}
	r, err := split.Files(files, split.DefaultOptions())
	if err != nil {
		return err
	}
	for _, g := range []struct {
		name  string
		files []string
	}{{"train", r.Train}, {"validation", r.Validation}, {"test", r.Test}} {
		fmt.Printf("=== %s (%d) ===\n", g.name, len(g.files))
		for _, f := range g.files {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}

func showWindows(dir string, window int) error {
	cfg := config.DefaultConfig()
	cfg.Dataset.Window = window
	if err := cfg.Validate(); err != nil {
		return err
	}
	v := &pipeline.Velocity{Dataset: cfg.Dataset, Training: cfg.Training}
	r, err := v.Run(context.Background(), dir)
	if err != nil {
		return err
	}
	fmt.Println(r.Summary())
	for _, s := range r.Splits() {
		if s.Data.Len() == 0 {
			continue
		}
		fmt.Printf("%s window 0 starts at token %d, target velocity %g\n", s.Name, s.Data.Starts[0], s.Data.Targets[0])
	}
	return nil
}
