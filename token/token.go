package token

import (
	"fmt"
	"iter"
	"math"

	"go-midivel/midi"
)

// SentinelPitch is outside the MIDI range and only used by Sentinel
const SentinelPitch uint8 = 255

// Token is the model-facing (time delta, pitch, velocity) tuple
type Token struct {
	TimeDelta float64
	Pitch     uint8
	Velocity  uint8 // 0 for note-offs and zero-velocity note-ons
}

// Sentinel marks the boundary between two files of one split
var Sentinel = Token{TimeDelta: math.Inf(1), Pitch: SentinelPitch}

// IsSentinel reports whether t is a file boundary marker
func (t Token) IsSentinel() bool {
	return t.Pitch == SentinelPitch
}

// Features returns the token as a numeric row
func (t Token) Features() [3]float64 {
	return [3]float64{t.TimeDelta, float64(t.Pitch), float64(t.Velocity)}
}

func (t Token) String() string {
	if t.IsSentinel() {
		return "(boundary)"
	}
	return fmt.Sprintf("(%g, %d, %d)", t.TimeDelta, t.Pitch, t.Velocity)
}

// Tokenize turns one file's events into tokens. The running time resets
// at the start of every call; events that produce no token leave it alone.
func Tokenize(events iter.Seq[midi.Event], skipDrums bool) []Token {
	var tokens []Token
	last := 0.0
	for ev := range events {
		if !ev.IsNote() || (skipDrums && ev.IsDrum()) {
			continue
		}
		delta := ev.Time - last
		last = ev.Time

		var vel uint8
		if ev.Type == midi.NoteOn && ev.Velocity > 0 {
			vel = ev.Velocity
		}
		tokens = append(tokens, Token{TimeDelta: delta, Pitch: ev.Note, Velocity: vel})
	}
	return tokens
}
