package output_test

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/ui/output"
)

func TestColorProfile_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, output.ColorProfile())
	assert.Equal(t, termenv.Ascii, output.ColorProfileANSI())
}

func TestColorProfileANSI(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.Equal(t, termenv.ANSI, output.ColorProfileANSI())
}

func TestNewWithProfile_Ascii(t *testing.T) {
	var buf bytes.Buffer
	out := output.NewWithProfile(&buf, output.ColorProfileASCII)

	styled := out.String("hello").Foreground(out.Color("#FF0000")).String()
	_, _ = out.WriteString(styled)

	assert.Equal(t, "hello", buf.String())
}

func TestNew_NilWriter(t *testing.T) {
	assert.NotPanics(t, func() {
		out := output.New(nil)
		assert.NotNil(t, out)
	})
}
