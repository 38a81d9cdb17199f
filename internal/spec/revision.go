package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Revision is a SEG-Y revision family with its own field table.
type Revision int

const (
	Rev0 Revision = iota
	Rev1
	Rev2
	Rev21
)

var revisionNames = [...]string{"Rev 0", "Rev 1", "Rev 2", "Rev 2.1"}
var revisionDocs = [...]string{"rev0", "rev1", "rev2", "rev2_1"}

func (r Revision) String() string {
	if r < Rev0 || r > Rev21 {
		return fmt.Sprintf("Revision(%d)", int(r))
	}
	return revisionNames[r]
}

// Document is the name of the embedded document defining the revision.
func (r Revision) Document() string {
	if r < Rev0 || r > Rev21 {
		return revisionDocs[Rev0]
	}
	return revisionDocs[r]
}

func (r Revision) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Resolve maps the 16-bit revision field of a binary header to a revision.
// The high byte selects the major revision; 0x0201 is Rev 2.1. Some
// writers store a bare 1 or 2 in the low byte, which is accepted too.
// Unknown majors fall back to Rev 0.
func Resolve(code uint16) Revision {
	major := code >> 8
	minor := code & 0xFF
	switch major {
	case 0x00:
		switch minor {
		case 1:
			return Rev1
		case 2:
			return Rev2
		}
		return Rev0
	case 0x01:
		return Rev1
	case 0x02:
		if code == 0x0201 {
			return Rev21
		}
		return Rev2
	}
	return Rev0
}

// ErrInvalidRevision is returned for revision strings that are neither a
// code nor a known label.
var ErrInvalidRevision = errors.New("invalid revision")

// ParseRevisionCode accepts a revision code as written on the command line:
// decimal ("256"), hexadecimal ("0x0201") or a label ("2.1", "rev2").
func ParseRevisionCode(s string) (uint16, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "rev") {
	case "0":
		return 0x0000, nil
	case "1":
		return 0x0100, nil
	case "2":
		return 0x0200, nil
	case "2.1", "2_1":
		return 0x0201, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidRevision, s)
	}
	return uint16(v), nil
}
