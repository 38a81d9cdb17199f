package segy

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Kind classifies a decode or access failure.
type Kind int

const (
	// KindIO marks failures at the OS boundary (open, stat, map, read).
	KindIO Kind = iota + 1
	// KindSegy marks structural violations of the file itself.
	KindSegy
	// KindValidation marks bad caller input or size arithmetic overflow.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSegy:
		return "segy"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	ErrIO         = errors.New("segy: io error")
	ErrSegy       = errors.New("segy: malformed file")
	ErrValidation = errors.New("segy: invalid request")
)

// Error is the typed error returned by every decode and access operation.
// errors.Is matches it against ErrIO, ErrSegy and ErrValidation by kind.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindIO
	case ErrSegy:
		return e.Kind == KindSegy
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func ioError(op string, err error, format string, args ...any) error {
	return &Error{Kind: KindIO, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func segyError(op string, format string, args ...any) error {
	return &Error{Kind: KindSegy, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapSegy(op string, err error, format string, args ...any) error {
	return &Error{Kind: KindSegy, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func validationError(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// checkedMul multiplies two non-negative ints, reporting overflow.
func checkedMul(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt {
		return 0, false
	}
	return int(lo), true
}

// checkedAdd adds two non-negative ints, reporting overflow.
func checkedAdd(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
