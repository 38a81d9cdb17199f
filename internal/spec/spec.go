package spec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSpec marks a malformed or inconsistent specification document.
var ErrInvalidSpec = errors.New("invalid header specification")

// HeaderFieldSpec describes one header field. Byte ranges are 1-based and
// inclusive; binary header ranges are file positions (3201-3600).
type HeaderFieldSpec struct {
	Name        string            `json:"name"`
	FieldKey    string            `json:"field_key"`
	ByteStart   int               `json:"byte_start"`
	ByteEnd     int               `json:"byte_end"`
	DataType    string            `json:"data_type"`
	Description string            `json:"description"`
	Required    bool              `json:"required"`
	CodeMapping map[string]string `json:"code_mapping,omitempty"`
}

// Size is the byte width of the field.
func (f HeaderFieldSpec) Size() int {
	return f.ByteEnd - f.ByteStart + 1
}

// Label returns the code mapping label for v, if any.
func (f HeaderFieldSpec) Label(v int64) (string, bool) {
	if f.CodeMapping == nil {
		return "", false
	}
	label, ok := f.CodeMapping[fmt.Sprint(v)]
	return label, ok
}

type BinaryHeaderSpec struct {
	Size       int               `json:"size"`
	ByteOffset int               `json:"byte_offset"`
	Fields     []HeaderFieldSpec `json:"fields"`
}

type TraceHeaderSpec struct {
	Size   int               `json:"size"`
	Fields []HeaderFieldSpec `json:"fields"`
}

// Table is a materialized field table for one revision.
type Table struct {
	Revision     Revision         `json:"revision"`
	Version      string           `json:"version"`
	Reference    string           `json:"reference"`
	BinaryHeader BinaryHeaderSpec `json:"binary_header"`
	TraceHeader  TraceHeaderSpec  `json:"trace_header"`
}

// Field looks up a trace or binary header field by key.
func (t *Table) Field(section Section, key string) (HeaderFieldSpec, bool) {
	for _, f := range t.fields(section) {
		if f.FieldKey == key {
			return f, true
		}
	}
	return HeaderFieldSpec{}, false
}

// Fields returns the fields of one section.
func (t *Table) Fields(section Section) []HeaderFieldSpec {
	return t.fields(section)
}

func (t *Table) fields(section Section) []HeaderFieldSpec {
	if section == SectionBinary {
		return t.BinaryHeader.Fields
	}
	return t.TraceHeader.Fields
}

func (t *Table) clone() *Table {
	out := *t
	out.BinaryHeader.Fields = cloneFields(t.BinaryHeader.Fields)
	out.TraceHeader.Fields = cloneFields(t.TraceHeader.Fields)
	return &out
}

func cloneFields(in []HeaderFieldSpec) []HeaderFieldSpec {
	out := make([]HeaderFieldSpec, len(in))
	for i, f := range in {
		if f.CodeMapping != nil {
			m := make(map[string]string, len(f.CodeMapping))
			for k, v := range f.CodeMapping {
				m[k] = v
			}
			f.CodeMapping = m
		}
		out[i] = f
	}
	return out
}

// Section selects the binary or the trace header.
type Section int

const (
	SectionBinary Section = iota
	SectionTrace
)

func (s Section) String() string {
	if s == SectionBinary {
		return "binary"
	}
	return "trace"
}

// ParseSection accepts "binary" or "trace".
func ParseSection(s string) (Section, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "bin":
		return SectionBinary, nil
	case "trace", "":
		return SectionTrace, nil
	}
	return 0, fmt.Errorf("unknown header section %q", s)
}

var knownTypes = map[string]int{
	"int8":    1,
	"uint8":   1,
	"int16":   2,
	"uint16":  2,
	"int32":   4,
	"uint32":  4,
	"uint64":  8,
	"float64": 8,
	"string":  0,
	"s8":      0,
}

// Validate checks a materialized table: non-empty keys, ordered byte ranges
// inside the header, unique keys and known type tags wide enough for their
// range.
func (t *Table) Validate() error {
	if err := validateFields("binary_header", t.BinaryHeader.Fields, t.BinaryHeader.ByteOffset, t.BinaryHeader.Size); err != nil {
		return err
	}
	return validateFields("trace_header", t.TraceHeader.Fields, 0, t.TraceHeader.Size)
}

func validateFields(section string, fields []HeaderFieldSpec, offset, size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s: size must be positive", ErrInvalidSpec, section)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: %s: no fields", ErrInvalidSpec, section)
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		key := strings.TrimSpace(f.FieldKey)
		if key == "" {
			return fmt.Errorf("%w: %s[%d]: empty field_key", ErrInvalidSpec, section, i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s[%d]: duplicate field_key %q", ErrInvalidSpec, section, i, key)
		}
		seen[key] = struct{}{}
		if f.ByteStart <= offset || f.ByteEnd < f.ByteStart {
			return fmt.Errorf("%w: %s[%d]: %s has invalid byte range %d-%d", ErrInvalidSpec, section, i, key, f.ByteStart, f.ByteEnd)
		}
		if f.ByteEnd > offset+size {
			return fmt.Errorf("%w: %s[%d]: %s ends at byte %d beyond header end %d", ErrInvalidSpec, section, i, key, f.ByteEnd, offset+size)
		}
		width, ok := knownTypes[strings.ToLower(f.DataType)]
		if !ok {
			return fmt.Errorf("%w: %s[%d]: %s has unknown data_type %q", ErrInvalidSpec, section, i, key, f.DataType)
		}
		if width > f.Size() {
			return fmt.Errorf("%w: %s[%d]: %s spans %d bytes, %s needs %d", ErrInvalidSpec, section, i, key, f.Size(), f.DataType, width)
		}
	}
	return nil
}
