package midi

import "fmt"

// MIDI message types
const (
	Other         uint8 = 0x00
	NoteOff       uint8 = 0x80
	NoteOn        uint8 = 0x90
	CC            uint8 = 0xB0
	ProgramChange uint8 = 0xC0
	Meta          uint8 = 0xFF
)

// DrumChannel is the zero-based General MIDI percussion channel
const DrumChannel uint8 = 9

// TimeUnit selects how Event.Time is measured
type TimeUnit int

const (
	Seconds TimeUnit = iota
	Ticks
)

// ParseTimeUnit maps a config name to a TimeUnit
func ParseTimeUnit(name string) (TimeUnit, error) {
	switch name {
	case "", "seconds":
		return Seconds, nil
	case "ticks":
		return Ticks, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", name)
}

func (u TimeUnit) String() string {
	if u == Ticks {
		return "ticks"
	}
	return "seconds"
}

// Event is one timed message read from a MIDI file
type Event struct {
	Type     uint8   // NoteOn, NoteOff, CC, ProgramChange, Meta, Other
	Time     float64 // delta since the previous message of the merged stream
	Track    int
	Channel  uint8
	Note     uint8 // key for notes, controller for CC, program for ProgramChange
	Velocity uint8 // velocity for notes, value for CC
}

// IsNote reports whether the event starts or ends a note
func (e Event) IsNote() bool {
	return e.Type == NoteOn || e.Type == NoteOff
}

// IsDrum reports whether the event sits on the percussion channel
func (e Event) IsDrum() bool {
	return e.Type != Meta && e.Type != Other && e.Channel == DrumChannel
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("note_on  t=%g ch=%d note=%d vel=%d", e.Time, e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("note_off t=%g ch=%d note=%d", e.Time, e.Channel, e.Note)
	case CC:
		return fmt.Sprintf("cc       t=%g ch=%d ctl=%d val=%d", e.Time, e.Channel, e.Note, e.Velocity)
	case ProgramChange:
		return fmt.Sprintf("program  t=%g ch=%d prog=%d", e.Time, e.Channel, e.Note)
	case Meta:
		return fmt.Sprintf("meta     t=%g", e.Time)
	}
	return fmt.Sprintf("other    t=%g", e.Time)
}
