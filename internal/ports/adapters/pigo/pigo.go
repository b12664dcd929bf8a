package pigo

import (
	_ "embed"
	"fmt"
	"image"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"

	"github.com/forPelevin/reelcut/internal/ports"
)

const (
	defaultMinSize    = 40
	defaultMinQuality = 5.0
	iouThreshold      = 0.2
)

// facefinder is the frontal face cascade shipped with pigo v1.4.6.
//
//go:embed cascade/facefinder
var facefinder []byte

// Detector finds frontal faces with a pigo cascade. The cascade is unpacked
// on first use.
type Detector struct {
	cascadePath string
	minSize     int
	minQuality  float32

	once       sync.Once
	classifier *pigo.Pigo
	loadErr    error
}

// New returns a detector for the cascade at cascadePath, or for the built-in
// facefinder cascade when cascadePath is empty.
func New(cascadePath string, minSize int, minQuality float64) *Detector {
	if minSize <= 0 {
		minSize = defaultMinSize
	}
	if minQuality <= 0 {
		minQuality = defaultMinQuality
	}
	return &Detector{cascadePath: cascadePath, minSize: minSize, minQuality: float32(minQuality)}
}

func (d *Detector) load() error {
	d.once.Do(func() {
		b := facefinder
		if d.cascadePath != "" {
			var err error
			if b, err = os.ReadFile(d.cascadePath); err != nil {
				d.loadErr = fmt.Errorf("read face cascade: %w", err)
				return
			}
		}
		classifier, err := pigo.NewPigo().Unpack(b)
		if err != nil {
			d.loadErr = fmt.Errorf("unpack face cascade: %w", err)
			return
		}
		d.classifier = classifier
	})
	return d.loadErr
}

func (d *Detector) Detect(img image.Image) ([]ports.Face, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	src := pigo.ImgToNRGBA(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, iouThreshold)

	return toFaces(dets, d.minQuality), nil
}

// toFaces converts centre-based detections into top-left boxes and drops
// those under the quality floor.
func toFaces(dets []pigo.Detection, minQuality float32) []ports.Face {
	out := make([]ports.Face, 0, len(dets))
	for _, det := range dets {
		if det.Q < minQuality {
			continue
		}
		half := float64(det.Scale) / 2
		out = append(out, ports.Face{
			X:      float64(det.Col) - half,
			Y:      float64(det.Row) - half,
			Width:  float64(det.Scale),
			Height: float64(det.Scale),
			Score:  float64(det.Q),
		})
	}
	return out
}
