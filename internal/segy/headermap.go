package segy

import (
	"fmt"
	"math"
	"strings"

	"example.com/segyview/internal/spec"
)

// ParseHeaderMap decodes every field of a header block into a map keyed by
// field key. Field byte ranges are 1-based and inclusive, relative to the
// start of header.
func ParseHeaderMap(header []byte, fields []spec.HeaderFieldSpec, order ByteOrder) (map[string]any, error) {
	return ParseHeaderMapAt(header, 0, fields, order)
}

// ParseHeaderMapAt is ParseHeaderMap for tables whose byte ranges are
// absolute file positions; base is the file offset of header[0].
func ParseHeaderMapAt(header []byte, base int, fields []spec.HeaderFieldSpec, order ByteOrder) (map[string]any, error) {
	const op = "header map"
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		start := f.ByteStart - 1 - base
		end := f.ByteEnd - base
		if start < 0 || end < start || end > len(header) {
			return nil, segyError(op, "slice out of bounds for %s (bytes %d-%d)", f.FieldKey, f.ByteStart, f.ByteEnd)
		}
		v, err := decodeField(header[start:end], f.DataType, order)
		if err != nil {
			return nil, wrapSegy(op, err, "field %s", f.FieldKey)
		}
		values[f.FieldKey] = v
	}
	return values, nil
}

type shortFieldError struct {
	dataType string
	have     int
}

func (e shortFieldError) Error() string {
	return fmt.Sprintf("only %d bytes for %s", e.have, e.dataType)
}

func decodeField(b []byte, dataType string, order ByteOrder) (any, error) {
	bo := order.Engine()
	need := func(n int) error {
		if len(b) < n {
			return shortFieldError{dataType: dataType, have: len(b)}
		}
		return nil
	}
	switch strings.ToLower(dataType) {
	case "int8":
		if err := need(1); err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case "uint8":
		if err := need(1); err != nil {
			return nil, err
		}
		return uint64(b[0]), nil
	case "int16":
		if err := need(2); err != nil {
			return nil, err
		}
		return int64(int16(bo.Uint16(b))), nil
	case "int32":
		if err := need(4); err != nil {
			return nil, err
		}
		return int64(int32(bo.Uint32(b))), nil
	case "uint16":
		if err := need(2); err != nil {
			return nil, err
		}
		return uint64(bo.Uint16(b)), nil
	case "uint32":
		if err := need(4); err != nil {
			return nil, err
		}
		return uint64(bo.Uint32(b)), nil
	case "uint64":
		if err := need(8); err != nil {
			return nil, err
		}
		return bo.Uint64(b), nil
	case "float64":
		if err := need(8); err != nil {
			return nil, err
		}
		return math.Float64frombits(bo.Uint64(b)), nil
	}
	return strings.Trim(strings.ToValidUTF8(string(b), "�"), "\x00 "), nil
}
