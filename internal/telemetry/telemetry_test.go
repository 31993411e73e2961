package telemetry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

func TestFormatSensorFrame(t *testing.T) {
	t.Parallel()

	f := sensors.Frame{Raw: [4]uint16{123, 0, 4095, 42}}
	// The exact serial-link format; external tooling parses this.
	assert.Equal(t, "S1: 123, S2: 0, S3: 4095, S4: 42", FormatSensorFrame(f))
}

func TestWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := Writer{W: &buf}
	require.NoError(t, w.Emit("S1: 1, S2: 2, S3: 3, S4: 4"))
	assert.Equal(t, "S1: 1, S2: 2, S3: 3, S4: 4\n", buf.String())
}

type failingEmitter struct {
	err error
}

func (f failingEmitter) Emit(string) error { return f.err }

func TestMulti_AllEmittersGetTheLine(t *testing.T) {
	t.Parallel()

	var first, second bytes.Buffer
	boom := errors.New("link down")
	m := Multi{
		Writer{W: &first},
		failingEmitter{err: boom},
		Writer{W: &second},
	}

	err := m.Emit("hello")
	assert.ErrorIs(t, err, boom)

	// A failing emitter in the middle must not starve the ones after it.
	assert.Equal(t, "hello\n", first.String())
	assert.Equal(t, "hello\n", second.String())
}

func TestMulti_NoErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := Multi{Writer{W: &buf}, Discard{}}
	assert.NoError(t, m.Emit("line"))
	assert.Equal(t, "line\n", buf.String())
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Discard{}.Emit("anything"))
}
