package detector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/adapters/detector"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		isTTY    bool
		ci       string
		expected detector.OutputMode
	}{
		{"tty without CI", true, "", detector.ModePretty},
		{"tty with CI=true", true, "true", detector.ModeLinear},
		{"tty with CI=1", true, "1", detector.ModeLinear},
		{"tty with CI=false", true, "false", detector.ModePretty},
		{"pipe", false, "", detector.ModeLinear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.Detect(tt.isTTY, tt.ci))
		})
	}
}

func TestDetectEnvironment_CI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.Equal(t, detector.ModeLinear, detector.DetectEnvironment())
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name         string
		autoDetected detector.OutputMode
		userFlag     string
		expected     detector.OutputMode
	}{
		{"auto respects detection (pretty)", detector.ModePretty, "auto", detector.ModePretty},
		{"auto respects detection (linear)", detector.ModeLinear, "auto", detector.ModeLinear},
		{"empty flag respects detection", detector.ModePretty, "", detector.ModePretty},
		{"pretty overrides detection", detector.ModeLinear, "pretty", detector.ModePretty},
		{"linear overrides detection", detector.ModePretty, "linear", detector.ModeLinear},
		{"ci is an alias for linear", detector.ModePretty, "ci", detector.ModeLinear},
		{"quiet overrides detection", detector.ModePretty, "quiet", detector.ModeQuiet},
		{"unknown falls back to detection", detector.ModeLinear, "fancy", detector.ModeLinear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.ResolveMode(tt.autoDetected, tt.userFlag))
		})
	}
}

func TestOutputMode_String(t *testing.T) {
	assert.Equal(t, "auto", detector.ModeAuto.String())
	assert.Equal(t, "pretty", detector.ModePretty.String())
	assert.Equal(t, "linear", detector.ModeLinear.String())
	assert.Equal(t, "quiet", detector.ModeQuiet.String())
}
