package simerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   error
	}{
		{"config", Configf("network.Initialize", "%w: wall 3", ErrUnknownReactor), Configuration, ErrUnknownReactor},
		{"numerical", NumericalAt("integrators.BDF.Step", 1.5, []float64{1, 2}, ErrConvergence), Numerical, ErrConvergence},
		{"clipping", ClippingAt("network.Advance", 2, 1e-3), Clipping, ErrNegativeAmount},
		{"wrapped", fmt.Errorf("advance: %w", NumericalAt("op", 0, nil, ErrNonFinite)), Numerical, ErrNonFinite},
		{"plain", errors.New("boom"), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if tt.is != nil && !errors.Is(tt.err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.is)
			}
		})
	}
}

func TestNumericalAtCopiesState(t *testing.T) {
	y := []float64{1, 2, 3}
	err := NumericalAt("op", 0.25, y, ErrStepTooSmall)
	y[0] = 99

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.State[0] != 1 {
		t.Errorf("state aliased caller slice: %v", e.State)
	}
	if e.Time != 0.25 {
		t.Errorf("Time = %v, want 0.25", e.Time)
	}
	if !strings.Contains(err.Error(), "t=0.25") {
		t.Errorf("message %q missing time", err.Error())
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		Configuration: "configuration error",
		Numerical:     "numerical error",
		Clipping:      "state clipping",
		Kind(42):      "unknown error",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
