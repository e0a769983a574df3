//go:build headless

package sink

import (
	"errors"
	"fmt"

	"audiotv/pump"
)

// OpenOto always fails in headless builds.
func OpenOto(sampleRate int) (pump.Sink, error) {
	return nil, fmt.Errorf("%w: %w", pump.ErrDeviceOpen, errors.New("built without audio support"))
}
