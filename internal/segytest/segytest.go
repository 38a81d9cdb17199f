// Package segytest encodes small SEG-Y files for tests and demo fixtures.
package segytest

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"golang.org/x/text/encoding/charmap"

	"example.com/segyview/internal/segy"
)

// File describes a synthetic SEG-Y file. Zero values give a big-endian,
// EBCDIC, IEEE float Rev 1 file.
type File struct {
	Order    segy.ByteOrder
	Format   segy.SampleFormat
	ASCII    bool
	Revision uint16
	// IntervalUs defaults to 4000.
	IntervalUs int16
	// Samples defaults to the length of the first trace.
	Samples int
	Lines   []string
	// Extended holds the card lines of each extended textual block.
	Extended [][]string
	// ExtendedCount overrides the count written to the binary header.
	ExtendedCount *int16
	Traces        [][]float64
	// TrailingBytes are appended after the last trace block.
	TrailingBytes int
}

func (f File) engine() binary.ByteOrder {
	return f.Order.Engine()
}

func (f File) format() segy.SampleFormat {
	if f.Format == 0 {
		return segy.FormatIEEEFloat32
	}
	return f.Format
}

func (f File) samples() int {
	if f.Samples > 0 {
		return f.Samples
	}
	if len(f.Traces) > 0 {
		return len(f.Traces[0])
	}
	return 0
}

func (f File) interval() int16 {
	if f.IntervalUs == 0 {
		return 4000
	}
	return f.IntervalUs
}

// Bytes encodes the whole file.
func (f File) Bytes() []byte {
	out := make([]byte, 0, segy.FileHeaderSize)
	out = append(out, f.textBlock(f.Lines)...)
	out = append(out, f.BinaryHeader()...)
	for _, block := range f.Extended {
		out = append(out, f.textBlock(block)...)
	}
	for i, tr := range f.Traces {
		out = append(out, f.TraceHeader(i)...)
		out = append(out, f.EncodeSamples(tr)...)
	}
	return append(out, make([]byte, f.TrailingBytes)...)
}

// Write encodes the file to path.
func (f File) Write(path string) error {
	return os.WriteFile(path, f.Bytes(), 0o644)
}

// TextBlock encodes up to 40 card lines as a 3200-byte block.
func (f File) textBlock(lines []string) []byte {
	block := make([]byte, segy.TextualHeaderSize)
	for card := 0; card < segy.CardCount; card++ {
		line := ""
		if card < len(lines) {
			line = lines[card]
		} else if len(lines) == 0 {
			line = fmt.Sprintf("C%2d", card+1)
		}
		for col := 0; col < segy.CardSize; col++ {
			r := ' '
			if col < len(line) {
				r = rune(line[col])
			}
			block[card*segy.CardSize+col] = f.encodeRune(r)
		}
	}
	return block
}

func (f File) encodeRune(r rune) byte {
	if f.ASCII {
		return byte(r)
	}
	b, ok := charmap.CodePage1047.EncodeRune(r)
	if !ok {
		return 0x40
	}
	return b
}

// BinaryHeader encodes the 400-byte binary header.
func (f File) BinaryHeader() []byte {
	bo := f.engine()
	h := make([]byte, segy.BinaryHeaderSize)
	bo.PutUint32(h[0:], 1)
	bo.PutUint32(h[4:], 1)
	bo.PutUint32(h[8:], 1)
	bo.PutUint16(h[12:], uint16(len(f.Traces)))
	bo.PutUint16(h[16:], uint16(f.interval()))
	bo.PutUint16(h[18:], uint16(f.interval()))
	bo.PutUint16(h[20:], uint16(f.samples()))
	bo.PutUint16(h[22:], uint16(f.samples()))
	bo.PutUint16(h[24:], uint16(f.format()))
	bo.PutUint16(h[26:], 1)
	bo.PutUint16(h[28:], 1)
	bo.PutUint16(h[54:], 1)
	bo.PutUint16(h[300:], f.Revision)
	bo.PutUint16(h[302:], 1)
	ext := int16(len(f.Extended))
	if f.ExtendedCount != nil {
		ext = *f.ExtendedCount
	}
	bo.PutUint16(h[304:], uint16(ext))
	return h
}

// TraceHeader encodes the 240-byte header of trace i.
func (f File) TraceHeader(i int) []byte {
	bo := f.engine()
	h := make([]byte, segy.TraceHeaderSize)
	bo.PutUint32(h[0:], uint32(i+1))
	bo.PutUint32(h[4:], uint32(i+1))
	bo.PutUint32(h[8:], 1)
	bo.PutUint32(h[12:], uint32(i+1))
	bo.PutUint32(h[20:], uint32(100+i))
	bo.PutUint16(h[28:], 1)
	bo.PutUint16(h[70:], uint16(0xFFF6)) // coordinate scaler -10
	bo.PutUint32(h[72:], uint32(500000+25*i))
	bo.PutUint32(h[76:], 6000000)
	bo.PutUint32(h[80:], uint32(500000+25*i))
	bo.PutUint32(h[84:], 6000000)
	bo.PutUint16(h[88:], 1)
	bo.PutUint16(h[114:], uint16(f.samples()))
	bo.PutUint16(h[116:], uint16(f.interval()))
	bo.PutUint32(h[180:], uint32(500000+25*i))
	bo.PutUint32(h[184:], 6000000)
	bo.PutUint32(h[188:], 1000)
	bo.PutUint32(h[192:], uint32(2000+i))
	copy(h[232:], "SEG00000")
	return h
}

// EncodeSamples encodes values in the file's sample format. Integer formats
// round; fixed-point samples carry a zero gain.
func (f File) EncodeSamples(values []float64) []byte {
	bo := f.engine()
	format := f.format()
	width := format.BytesPerSample()
	n := f.samples()
	out := make([]byte, n*width)
	for i := 0; i < n && i < len(values); i++ {
		v := values[i]
		p := out[i*width:]
		switch format {
		case segy.FormatIBMFloat32:
			bo.PutUint32(p, segy.Float32ToIBM(float32(v)))
		case segy.FormatIEEEFloat32:
			bo.PutUint32(p, math.Float32bits(float32(v)))
		case segy.FormatInt32:
			bo.PutUint32(p, uint32(int32(math.Round(v))))
		case segy.FormatInt16:
			bo.PutUint16(p, uint16(int16(math.Round(v))))
		case segy.FormatInt8:
			p[0] = byte(int8(math.Round(v)))
		case segy.FormatFixedPointWithGain:
			p[0] = 0
			p[1] = 0
			bo.PutUint16(p[2:], uint16(int16(math.Round(v))))
		}
	}
	return out
}

// Ramp returns n samples 1, 2, ..., n.
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

// Sine returns n samples of amp·sin(2πi/period + phase).
func Sine(n int, amp, period, phase float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*float64(i)/period+phase)
	}
	return out
}
