package segy

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const (
	TextualHeaderSize = 3200
	CardCount         = 40
	CardSize          = 80

	ebcdicC     = 0xC3
	asciiC      = 0x43
	ebcdicSpace = 0x40
	asciiSpace  = 0x20
	cardHitsMin = 10
)

// TextEncoding is the detected character set of a textual header.
type TextEncoding int

const (
	EncodingEBCDIC TextEncoding = iota
	EncodingASCII
)

func (e TextEncoding) String() string {
	if e == EncodingASCII {
		return "ascii"
	}
	return "ebcdic"
}

func (e TextEncoding) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *TextEncoding) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ascii":
		*e = EncodingASCII
	case "ebcdic":
		*e = EncodingEBCDIC
	default:
		return fmt.Errorf("unknown text encoding %q", s)
	}
	return nil
}

// ebcdicTable maps EBCDIC (IBM-1047) bytes to printable ASCII. Anything that
// does not land in 0x20-0x7E or '\n' maps to a space.
var ebcdicTable = buildEBCDICTable()

func buildEBCDICTable() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		r := charmap.CodePage1047.DecodeByte(byte(i))
		table[i] = printable(r)
	}
	return table
}

func printable(r rune) byte {
	if r == '\n' || (r >= 0x20 && r <= 0x7E) {
		return byte(r)
	}
	return ' '
}

// DetectTextEncoding guesses whether a textual header block is EBCDIC or
// ASCII. The guess is a heuristic: ties fall back to EBCDIC.
func DetectTextEncoding(data []byte) TextEncoding {
	var ebcdicHits, asciiHits int
	for card := 0; card < CardCount; card++ {
		pos := card * CardSize
		if pos >= len(data) {
			break
		}
		switch data[pos] {
		case ebcdicC:
			ebcdicHits++
		case asciiC:
			asciiHits++
		}
	}
	if ebcdicHits > cardHitsMin {
		return EncodingEBCDIC
	}
	if asciiHits > cardHitsMin {
		return EncodingASCII
	}

	var ebcdicSpaces, asciiSpaces int
	for _, b := range data {
		switch b {
		case ebcdicSpace:
			ebcdicSpaces++
		case asciiSpace:
			asciiSpaces++
		}
	}
	if asciiSpaces > 0 && asciiSpaces >= 2*ebcdicSpaces {
		return EncodingASCII
	}
	return EncodingEBCDIC
}

// DecodeEBCDIC converts EBCDIC bytes to printable ASCII.
func DecodeEBCDIC(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ebcdicTable[c]
	}
	return string(out)
}

func decodeASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = printable(rune(c))
	}
	return string(out)
}

// TextualHeader holds the 40 card images of a 3200-byte textual block.
type TextualHeader struct {
	Lines    []string     `json:"lines"`
	Encoding TextEncoding `json:"encoding"`

	raw []byte
}

// NewTextualHeader detects the encoding of a 3200-byte block and decodes it
// into card lines.
func NewTextualHeader(data []byte) (*TextualHeader, error) {
	if len(data) != TextualHeaderSize {
		return nil, segyError("textual header", "must be exactly %d bytes, got %d", TextualHeaderSize, len(data))
	}
	enc := DetectTextEncoding(data)
	lines := make([]string, CardCount)
	for i := range lines {
		card := data[i*CardSize : (i+1)*CardSize]
		if enc == EncodingEBCDIC {
			lines[i] = DecodeEBCDIC(card)
		} else {
			lines[i] = decodeASCII(card)
		}
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &TextualHeader{Lines: lines, Encoding: enc, raw: raw}, nil
}

// Raw returns a copy of the original bytes of the primary block.
func (h *TextualHeader) Raw() []byte {
	out := make([]byte, len(h.raw))
	copy(out, h.raw)
	return out
}

// AppendLines adds the cards of an extended textual block.
func (h *TextualHeader) AppendLines(lines []string) {
	h.Lines = append(h.Lines, lines...)
}

// Text joins the card lines with newlines, trimming trailing blanks per card.
func (h *TextualHeader) Text() string {
	var b strings.Builder
	for i, line := range h.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(line, " "))
	}
	return b.String()
}
