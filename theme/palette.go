package theme

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type RGB [3]uint8

// RGBA converts to a standard library color for plotting
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}

type Palette struct {
	Name   string
	Colors []RGB
}

// viridis-like default, used when no palette file is configured
const defaultGPL = `GIMP Palette
Name: midivel
Columns: 0
# dark to bright
 68   1  84
 72  40 120
 62  74 137
 49 104 142
 38 130 142
 31 158 137
 53 183 121
109 205  89
180 222  44
253 231  37
`

// Default returns the built-in palette
func Default() *Palette {
	p, err := ParseGPL(strings.NewReader(defaultGPL), "default")
	if err != nil {
		panic(err)
	}
	return p
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGPL(f, path)
}

// ParseGPL parses GIMP palette text; name is only used in errors. The
// first non-blank line must be the "GIMP Palette" header and every color
// row needs three components in 0-255, optionally followed by a name.
func ParseGPL(r io.Reader, name string) (*Palette, error) {
	p := &Palette{}
	scanner := bufio.NewScanner(r)
	header := false

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line[0] == '#':
			continue
		case !header:
			if line != "GIMP Palette" {
				return nil, fmt.Errorf("palette %s: missing GIMP Palette header", name)
			}
			header = true
			continue
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		case strings.HasPrefix(line, "Columns:"):
			continue
		}

		c, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("palette %s line %d: %w", name, n, err)
		}
		p.Colors = append(p.Colors, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found in palette %s", name)
	}
	return p, nil
}

func parseRow(line string) (RGB, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return RGB{}, fmt.Errorf("want R G B, got %q", line)
	}
	var c RGB
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("component %q: must be 0-255", fields[i])
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// Lookup maps a position in [0, 1] onto the palette, blending neighbours.
// Out-of-range and NaN positions clamp to the ends.
func (p *Palette) Lookup(pos float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case last == 0 || !(pos > 0):
		return p.Colors[0]
	case pos >= 1:
		return p.Colors[last]
	}

	x := pos * float64(last)
	i := int(x)
	a, b := p.Colors[i], p.Colors[i+1]
	var c RGB
	for k := range c {
		c[k] = mix(a[k], b[k], x-float64(i))
	}
	return c
}

// mix rounds to the nearest component
func mix(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
