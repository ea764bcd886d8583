package main

import (
	"math"
	"testing"
)

func TestParseAngle(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		// Plain numbers
		{"1.5707", 1.5707, true},
		{"-0.5", -0.5, true},
		{"0", 0, true},
		{"42", 42, true},
		{"3.14e-2", 0.0314, true},

		// Pi expressions
		{"pi", math.Pi, true},
		{"PI", math.Pi, true},
		{"Pi", math.Pi, true},
		{"pi/2", math.Pi / 2, true},
		{"pi/4", math.Pi / 4, true},
		{"2pi", 2 * math.Pi, true},
		{"2*pi", 2 * math.Pi, true},
		{"3pi/4", 3 * math.Pi / 4, true},
		{"3*pi/4", 3 * math.Pi / 4, true},
		{"0.5pi", math.Pi / 2, true},
		{"-pi", -math.Pi, true},
		{"-pi/2", -math.Pi / 2, true},
		{"-3*pi/4", -3 * math.Pi / 4, true},

		// Whitespace
		{" pi ", math.Pi, true},
		{" pi / 2 ", math.Pi / 2, true},
		{" 3 * pi / 4 ", 3 * math.Pi / 4, true},

		// Invalid
		{"", 0, false},
		{"abc", 0, false},
		{"pi/0", 0, false},
		{"pi//2", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseAngle(tt.input)
		if ok != tt.ok {
			t.Errorf("parseAngle(%q): ok=%v, want ok=%v", tt.input, ok, tt.ok)
			continue
		}
		if ok && math.Abs(got-tt.want) > 1e-10 {
			t.Errorf("parseAngle(%q) = %g, want %g", tt.input, got, tt.want)
		}
	}
}

func TestFormatAngle(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{math.Pi, "pi"},
		{math.Pi / 2, "pi/2"},
		{math.Pi / 4, "pi/4"},
		{math.Pi / 3, "pi/3"},
		{3 * math.Pi / 4, "3*pi/4"},
		{-math.Pi, "-pi"},
		{-math.Pi / 2, "-pi/2"},
		{2 * math.Pi, "2*pi"},
		{1.5, "1.5"},
		{0, "0"},
		{0.01, "0.01"},
	}

	for _, tt := range tests {
		got := formatAngle(tt.input)
		if got != tt.want {
			t.Errorf("formatAngle(%g) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAngleRoundTrip(t *testing.T) {
	vals := []float64{
		math.Pi, math.Pi / 2, 3 * math.Pi / 4, -math.Pi / 3,
		2 * math.Pi, 1.234, -0.5,
	}
	for _, v := range vals {
		s := formatAngle(v)
		got, ok := parseAngle(s)
		if !ok {
			t.Errorf("formatAngle(%g) = %q did not parse back", v, s)
			continue
		}
		if math.Abs(got-v) > 1e-10 {
			t.Errorf("round trip %g -> %q -> %g", v, s, got)
		}
	}
}

func TestSplitAngles(t *testing.T) {
	if vals := splitAngles("pi/2"); len(vals) != 1 || math.Abs(vals[0]-math.Pi/2) > 1e-10 {
		t.Errorf("splitAngles('pi/2') = %v", vals)
	}
	if vals := splitAngles("pi/2, pi/4"); len(vals) != 2 {
		t.Errorf("splitAngles('pi/2, pi/4') = %v", vals)
	}
	if vals := splitAngles("1.5"); len(vals) != 1 || vals[0] != 1.5 {
		t.Errorf("splitAngles('1.5') = %v", vals)
	}

	// Any bad part fails the whole list
	if vals := splitAngles("abc"); vals != nil {
		t.Errorf("splitAngles('abc') = %v, want nil", vals)
	}
	if vals := splitAngles("pi/2,garbage"); vals != nil {
		t.Errorf("splitAngles('pi/2,garbage') = %v, want nil", vals)
	}
	if vals := splitAngles(""); vals != nil {
		t.Errorf("splitAngles('') = %v, want nil", vals)
	}
}
