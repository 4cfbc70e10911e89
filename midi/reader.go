package midi

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// default tempo until the first tempo meta event
const defaultBPM = 120.0

// Instrument summarises the notes one track plays on one channel
type Instrument struct {
	Track   int
	Channel uint8
	Program uint8
	IsDrum  bool
	Notes   int
}

// Note is a sounding note: a note-on paired with the note-off that ends it.
// Start and End are absolute, in the file's unit.
type Note struct {
	Track    int
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Start    float64
	End      float64
}

// File is a parsed MIDI file with its tracks merged into one stream
type File struct {
	Path   string
	Unit   TimeUnit
	Tracks int

	events      []Event
	notes       []Note
	instruments []Instrument
}

// ReadFile opens and parses the MIDI file at path
func ReadFile(path string, unit TimeUnit) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Kind: ReadUnreadable, Err: err}
	}
	defer f.Close()
	return Read(bufio.NewReader(f), path, unit)
}

// Read parses a MIDI stream; name is only used in errors
func Read(r io.Reader, name string, unit TimeUnit) (*File, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		kind := ReadMalformed
		var perr *os.PathError
		if errors.As(err, &perr) {
			kind = ReadUnreadable
		}
		return nil, &FileReadError{Path: name, Kind: kind, Err: err}
	}
	return fromSMF(s, name, unit), nil
}

type timed struct {
	abs   int64
	track int
	msg   smf.Message
}

func fromSMF(s *smf.SMF, name string, unit TimeUnit) *File {
	var merged []timed
	for i, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			merged = append(merged, timed{abs: abs, track: i, msg: ev.Message})
		}
	}
	// Tracks were appended in order, so ties keep track order
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].abs < merged[b].abs
	})

	resolution := 0.0
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		resolution = float64(mt)
	}
	if unit == Seconds && resolution == 0 {
		// SMPTE timing has no tempo map to apply
		unit = Ticks
	}

	file := &File{
		Path:   name,
		Unit:   unit,
		Tracks: len(s.Tracks),
		events: make([]Event, 0, len(merged)),
	}

	bpm := defaultBPM
	var last int64
	for _, m := range merged {
		delta := float64(m.abs - last)
		last = m.abs
		if unit == Seconds {
			delta = delta * 60 / (bpm * resolution)
		}

		ev := classify(m.msg)
		ev.Time = delta
		ev.Track = m.track
		file.events = append(file.events, ev)

		var tempo float64
		if m.msg.GetMetaTempo(&tempo) && tempo > 0 {
			bpm = tempo
		}
	}
	file.notes = pairNotes(file.events)
	file.instruments = instrumentsOf(file.events, file.notes)
	return file
}

// classify maps a message onto Event; a zero-velocity note-on is a note-off
func classify(msg smf.Message) Event {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOff(&ch, &key, &vel):
		return Event{Type: NoteOff, Channel: ch, Note: key}
	case msg.GetNoteOn(&ch, &key, &vel):
		if vel == 0 {
			return Event{Type: NoteOff, Channel: ch, Note: key}
		}
		return Event{Type: NoteOn, Channel: ch, Note: key, Velocity: vel}
	case msg.GetControlChange(&ch, &key, &vel):
		return Event{Type: CC, Channel: ch, Note: key, Velocity: vel}
	case msg.GetProgramChange(&ch, &key):
		return Event{Type: ProgramChange, Channel: ch, Note: key}
	case msg.IsMeta():
		return Event{Type: Meta}
	}
	return Event{Type: Other}
}

type noteKey struct {
	track   int
	channel uint8
	pitch   uint8
}

type openNote struct {
	start    float64
	velocity uint8
}

// pairNotes matches note-ons with note-offs per track, channel and pitch.
// A note-off ends every open note of its key that started earlier; when all
// of them started at the same instant it ends only the oldest. Note-ons
// that are never ended are dropped. The result is ordered by start time.
func pairNotes(events []Event) []Note {
	open := make(map[noteKey][]openNote)
	var notes []Note
	now := 0.0
	for _, ev := range events {
		now += ev.Time
		if !ev.IsNote() {
			continue
		}
		k := noteKey{ev.Track, ev.Channel, ev.Note}
		if ev.Type == NoteOn {
			open[k] = append(open[k], openNote{start: now, velocity: ev.Velocity})
			continue
		}

		pending := open[k]
		if len(pending) == 0 {
			continue
		}
		var keep []openNote
		for _, o := range pending {
			if o.start < now {
				notes = append(notes, Note{Track: k.track, Channel: k.channel, Pitch: k.pitch, Velocity: o.velocity, Start: o.start, End: now})
			} else {
				keep = append(keep, o)
			}
		}
		if len(keep) == len(pending) {
			o := keep[0]
			notes = append(notes, Note{Track: k.track, Channel: k.channel, Pitch: k.pitch, Velocity: o.velocity, Start: o.start, End: now})
			keep = keep[1:]
		}
		open[k] = keep
	}
	sort.SliceStable(notes, func(a, b int) bool {
		return notes[a].Start < notes[b].Start
	})
	return notes
}

// instrumentsOf groups notes by (track, channel), in order of first note-on;
// the program is the last program change seen before that note-on
func instrumentsOf(events []Event, notes []Note) []Instrument {
	type slot struct {
		track   int
		channel uint8
	}
	programs := make(map[slot]uint8)
	index := make(map[slot]int)
	var out []Instrument

	for _, ev := range events {
		k := slot{ev.Track, ev.Channel}
		switch ev.Type {
		case ProgramChange:
			programs[k] = ev.Note
		case NoteOn:
			if _, ok := index[k]; !ok {
				index[k] = len(out)
				out = append(out, Instrument{
					Track:   ev.Track,
					Channel: ev.Channel,
					Program: programs[k],
					IsDrum:  ev.Channel == DrumChannel,
				})
			}
		}
	}
	for _, n := range notes {
		out[index[slot{n.Track, n.Channel}]].Notes++
	}

	kept := out[:0]
	for _, inst := range out {
		if inst.Notes > 0 {
			kept = append(kept, inst)
		}
	}
	return kept
}

// Events yields every message of the file in merged order
func (f *File) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, ev := range f.events {
			if !yield(ev) {
				return
			}
		}
	}
}

// Len returns the number of messages in the file
func (f *File) Len() int {
	return len(f.events)
}

// Notes returns the paired notes of every track, ordered by start time
func (f *File) Notes() []Note {
	return f.notes
}

// Instruments returns one entry per (track, channel) with at least one
// paired note, in order of first note-on
func (f *File) Instruments() []Instrument {
	return f.instruments
}
