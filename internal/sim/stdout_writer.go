// Writer selection for telemetry printed to STDOUT
package sim

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// NewStdoutWriter returns the stdout writer for mode: "json", "color", or
// "auto" (color on a terminal, JSON otherwise). "none" and "" return nil.
func NewStdoutWriter(mode string) (TelemetryWriter, error) {
	switch mode {
	case "", "none":
		return nil, nil
	case "json":
		return NewJSONStdoutWriter(), nil
	case "color":
		return NewColorStdoutWriter(), nil
	case "auto":
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return NewColorStdoutWriter(), nil
		}
		return NewJSONStdoutWriter(), nil
	default:
		return nil, fmt.Errorf("unknown stdout mode %q", mode)
	}
}
