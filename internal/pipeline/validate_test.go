package pipeline

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-5, 0.5},
		{10, 1.5},
		{1.0, 1.0},
		{0.75, 0.75},
		{0, 1.0},
		{math.NaN(), 1.0},
		{math.Inf(1), 1.5},
	}

	for _, tt := range tests {
		if got := ClampSpeed(tt.in); got != tt.want {
			t.Errorf("ClampSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSpeed(t *testing.T) {
	tests := map[string]float64{
		"1.2":  1.2,
		" 2 ":  1.5,
		"fast": 1.0,
		"":     1.0,
		"0":    1.0,
		"-1":   0.5,
	}
	for in, want := range tests {
		if got := ParseSpeed(in); got != want {
			t.Errorf("ParseSpeed(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"1280x720", 1280, 720, false},
		{"1080x1920", 1080, 1920, false},
		{"640X480", 640, 480, false},
		{"", 1280, 720, false},
		{"abcxdef", 0, 0, true},
		{"1280", 0, 0, true},
		{"0x720", 0, 0, true},
		{"-1x720", 0, 0, true},
		{"99999x720", 0, 0, true},
		{"1280x720x3", 0, 0, true},
		{"1281x720", 0, 0, true},
		{"1280x721", 0, 0, true},
		{"1x1", 0, 0, true},
		{"2x2", 2, 2, false},
		{"7680x4320", 7680, 4320, false},
	}

	for _, tt := range tests {
		w, h, err := ParseResolution(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidResolution) || !errors.Is(err, ErrValidation) {
				t.Errorf("ParseResolution(%q) error = %v, want ErrInvalidResolution", tt.in, err)
			}
			continue
		}
		if err != nil || w != tt.w || h != tt.h {
			t.Errorf("ParseResolution(%q) = %d, %d, %v; want %d, %d", tt.in, w, h, err, tt.w, tt.h)
		}
	}
}

func TestValidateText(t *testing.T) {
	if got, err := ValidateText("  Hello world.  ", 100); err != nil || got != "Hello world." {
		t.Errorf("ValidateText() = %q, %v", got, err)
	}

	if _, err := ValidateText(" \n\t ", 100); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	if _, err := ValidateText(strings.Repeat("é", 11), 10); !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}

	if _, err := ValidateText(strings.Repeat("é", 10), 10); err != nil {
		t.Errorf("exactly max runes should pass: %v", err)
	}
}
