// Package geometry computes the vertical crop window for a source frame.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/forPelevin/reelcut/internal/types"
)

// Target aspect ratio, width:height.
const (
	AspectW = 9
	AspectH = 16
)

// ErrCannotReframe means the source is too narrow for a full-height 9:16 window.
var ErrCannotReframe = errors.New("source too narrow for 9:16 crop")

// TargetWidth is the 9:16 window width for a frame of the given height.
func TargetWidth(height int) int {
	return int(math.Round(float64(height) * AspectW / AspectH))
}

// Crop centres a full-height 9:16 window on cx and clamps it inside the frame.
func Crop(width, height int, cx float64) (types.CropWindow, error) {
	if width <= 0 || height <= 0 {
		return types.CropWindow{}, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	tw := TargetWidth(height)
	if tw > width {
		return types.CropWindow{}, fmt.Errorf("%w: %dx%d needs width %d", ErrCannotReframe, width, height, tw)
	}
	if math.IsNaN(cx) || math.IsInf(cx, 0) {
		cx = float64(width) / 2
	}
	x := int(math.Round(cx - float64(tw)/2))
	x = max(0, min(x, width-tw))
	return types.CropWindow{X: x, Width: tw, Height: height}, nil
}

// Filter renders w as an ffmpeg crop filter argument.
func Filter(w types.CropWindow) string {
	return fmt.Sprintf("crop=%d:%d:%d:0", w.Width, w.Height, w.X)
}
