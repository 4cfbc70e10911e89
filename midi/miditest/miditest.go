// Package miditest writes small standard MIDI files for tests.
package miditest

import (
	"os"
	"path/filepath"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution is the ticks per quarter note of every written file
const Resolution = 480

// Msg is one message of a fixture track
type Msg struct {
	Delta uint32 // ticks since the previous message of the same track
	Data  []byte
}

// On is a note-on message
func On(delta uint32, ch, key, vel uint8) Msg {
	return Msg{Delta: delta, Data: gomidi.NoteOn(ch, key, vel)}
}

// Off is a note-off message
func Off(delta uint32, ch, key uint8) Msg {
	return Msg{Delta: delta, Data: gomidi.NoteOff(ch, key)}
}

// ZeroOn is a note-on carrying velocity 0 (running note-off convention)
func ZeroOn(delta uint32, ch, key uint8) Msg {
	return Msg{Delta: delta, Data: []byte{0x90 | ch, key, 0}}
}

// CC is a control change message
func CC(delta uint32, ch, ctl, val uint8) Msg {
	return Msg{Delta: delta, Data: gomidi.ControlChange(ch, ctl, val)}
}

// Program is a program change message
func Program(delta uint32, ch, prog uint8) Msg {
	return Msg{Delta: delta, Data: gomidi.ProgramChange(ch, prog)}
}

// Tempo is a tempo meta message
func Tempo(delta uint32, bpm float64) Msg {
	return Msg{Delta: delta, Data: smf.MetaTempo(bpm)}
}

// Notes returns n note-on/note-off pairs on channel 0, each a quarter long,
// with pitches and velocities cycling so every token differs
func Notes(n int) []Msg {
	msgs := make([]Msg, 0, 2*n)
	for i := 0; i < n; i++ {
		key := uint8(40 + i%40)
		vel := uint8(1 + (i*7)%126)
		msgs = append(msgs, On(0, 0, key, vel), Off(Resolution, 0, key))
	}
	return msgs
}

// Build assembles a file with one track per argument
func Build(tracks ...[]Msg) *smf.SMF {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(Resolution)
	for _, msgs := range tracks {
		var tr smf.Track
		for _, m := range msgs {
			tr.Add(m.Delta, m.Data)
		}
		tr.Close(0)
		s.Add(tr)
	}
	return s
}

// Write stores a fixture file named name under dir and returns its path
func Write(t testing.TB, dir, name string, tracks ...[]Msg) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := Build(tracks...).WriteFile(path); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// WriteCorrupt stores bytes that no MIDI parser accepts
func WriteCorrupt(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("MThd this is not a midi file"), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
