package renderer

import (
	"slices"

	"github.com/smazurov/mediagraph/internal/engine"
)

// Flip methods understood by the orientation stage.
const (
	FlipNone = iota
	FlipClockwise
	FlipRotate180
	FlipCounterclockwise
	FlipHorizontal
	FlipVertical
	FlipUpperLeftDiagonal
	FlipUpperRightDiagonal
)

// SourceOrientationElement is the element inside a source graph that accepts
// an orientation when the source rotates in hardware.
const SourceOrientationElement = "video-source"

const propSourceOrientation = "orientation"

var mirroredFlips = [4]int{FlipHorizontal, FlipUpperRightDiagonal, FlipVertical, FlipUpperLeftDiagonal}

// FlipMethod maps clockwise quarter turns and horizontal mirroring to a flip
// method. Rotations above 3 wrap.
func FlipMethod(rotation uint8, mirror bool) int {
	r := int(rotation % 4)
	if mirror {
		return mirroredFlips[r]
	}
	return r
}

// Channels driven by the disabled state.
var disabledChannels = []string{"SATURATION", "BRIGHTNESS"}

// applyDisabled drives the saturation and brightness channels to their
// minimum when disabled and to the midpoint of their range otherwise.
func applyDisabled(cb engine.ColorBalance, disabled bool) error {
	for _, ch := range cb.BalanceChannels() {
		if !slices.Contains(disabledChannels, ch.Label) {
			continue
		}
		value := ch.Midpoint()
		if disabled {
			value = ch.Min
		}
		if err := cb.SetBalance(ch.Label, value); err != nil {
			return err
		}
	}
	return nil
}
