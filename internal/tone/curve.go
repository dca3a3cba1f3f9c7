package tone

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MinLevel = 0
	MaxLevel = Levels - 1
)

var (
	ErrValueRange   = errors.New("control point value out of range")
	ErrUnknownPoint = errors.New("unknown control point")
	ErrUnknownField = errors.New("unknown control point field")
)

type Point string

const (
	PointEnter Point = "enter"
	PointExit  Point = "exit"
)

type Field string

const (
	FieldIn  Field = "in"
	FieldOut Field = "out"
)

func ParsePoint(s string) (Point, error) {
	switch p := Point(strings.ToLower(strings.TrimSpace(s))); p {
	case PointEnter, PointExit:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPoint, s)
}

func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldIn, FieldOut:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// ControlPoint anchors one end of the tone curve.
type ControlPoint struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// CurveState is the pair of control points being edited. Enter.In <= Exit.In
// holds for every state reachable through SetControlPoint and DefaultCurve.
// The out values are independent, so the curve may invert brightness.
type CurveState struct {
	Enter ControlPoint `json:"enter"`
	Exit  ControlPoint `json:"exit"`
}

// DefaultCurve is the identity mapping (0,0)-(255,255).
func DefaultCurve() CurveState {
	return CurveState{
		Enter: ControlPoint{In: MinLevel, Out: MinLevel},
		Exit:  ControlPoint{In: MaxLevel, Out: MaxLevel},
	}
}

// Reset returns the default curve. It exists so callers holding a state can
// spell the operation the way the editor names it.
func (s CurveState) Reset() CurveState {
	return DefaultCurve()
}

func (s CurveState) IsIdentity() bool {
	return s == DefaultCurve()
}

// SetControlPoint returns s with one field replaced. An edit that would move
// Enter.In above Exit.In, or Exit.In below Enter.In, is rejected: s comes back
// unchanged with accepted=false and a nil error. Errors are reserved for
// values outside [0,255] and unknown point or field names.
func (s CurveState) SetControlPoint(p Point, f Field, value int) (next CurveState, accepted bool, err error) {
	if value < MinLevel || value > MaxLevel {
		return s, false, fmt.Errorf("%w: %s.%s=%d", ErrValueRange, p, f, value)
	}
	if f != FieldIn && f != FieldOut {
		return s, false, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}

	next = s
	switch p {
	case PointEnter:
		if f == FieldIn {
			if value > s.Exit.In {
				return s, false, nil
			}
			next.Enter.In = value
		} else {
			next.Enter.Out = value
		}
	case PointExit:
		if f == FieldIn {
			if value < s.Enter.In {
				return s, false, nil
			}
			next.Exit.In = value
		} else {
			next.Exit.Out = value
		}
	default:
		return s, false, fmt.Errorf("%w: %q", ErrUnknownPoint, p)
	}
	return next, true, nil
}

// Validate reports whether s could have been produced by edits from the
// default curve. Useful for states that arrive from outside.
func (s CurveState) Validate() error {
	for _, v := range [...]struct {
		name  string
		value int
	}{
		{"enter.in", s.Enter.In},
		{"enter.out", s.Enter.Out},
		{"exit.in", s.Exit.In},
		{"exit.out", s.Exit.Out},
	} {
		if v.value < MinLevel || v.value > MaxLevel {
			return fmt.Errorf("%w: %s=%d", ErrValueRange, v.name, v.value)
		}
	}
	if s.Enter.In > s.Exit.In {
		return fmt.Errorf("enter.in %d is above exit.in %d", s.Enter.In, s.Exit.In)
	}
	return nil
}

func (s CurveState) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", s.Enter.In, s.Enter.Out, s.Exit.In, s.Exit.Out)
}
