// Package telemetry formats and ships the calibration log lines. The sensor
// line format is a compatibility surface: external tooling parses it, so it
// must stay exactly "S1: <int>, S2: <int>, S3: <int>, S4: <int>".
package telemetry

import (
	"errors"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/micromouse_core/internal/sensors"
)

// Emitter ships one text line. An emitter reports I/O failures to the
// caller but must never halt the control flow.
type Emitter interface {
	Emit(line string) error
}

// FormatSensorFrame renders a frame in the fixed serial-link format.
func FormatSensorFrame(f sensors.Frame) string {
	return fmt.Sprintf("S1: %d, S2: %d, S3: %d, S4: %d",
		f.Raw[0], f.Raw[1], f.Raw[2], f.Raw[3])
}

// Writer emits lines to any io.Writer (stdout, a test buffer, an open
// serial port).
type Writer struct {
	W io.Writer
}

func (w Writer) Emit(line string) error {
	_, err := fmt.Fprintln(w.W, line)
	if err != nil {
		return fmt.Errorf("telemetry write: %w", err)
	}
	return nil
}

// MQTT publishes each line on a topic.
type MQTT struct {
	Client mqtt.Client
	Topic  string
}

func (m MQTT) Emit(line string) error {
	token := m.Client.Publish(m.Topic, 0, false, line)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry publish: %w", err)
	}
	return nil
}

// Multi fans a line out to several emitters. Every emitter gets the line
// even if an earlier one fails; the errors are joined.
type Multi []Emitter

func (m Multi) Emit(line string) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every line, for procedures run without a telemetry link.
type Discard struct{}

func (Discard) Emit(string) error { return nil }
