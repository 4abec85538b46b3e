// Package detect defines the object detector contract consumed by the
// geolocation pipeline and its two implementations: a model-backed ONNX
// detector and a stub for deployments without a model.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
)

// BBox is a pixel-space bounding box, top-left origin, y-down. It marshals
// to the wire form [x, y, w, h].
type BBox struct {
	X int
	Y int
	W int
	H int
}

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.W, b.H})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("bbox must be [x,y,w,h]: %w", err)
	}
	b.X, b.Y, b.W, b.H = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Center returns the box centre in pixel coordinates.
func (b BBox) Center() (float64, float64) {
	return float64(b.X) + float64(b.W)/2.0, float64(b.Y) + float64(b.H)/2.0
}

// Clamp constrains the box to lie inside a wxh image.
func (b BBox) Clamp(w, h int) BBox {
	if b.X < 0 {
		b.W += b.X
		b.X = 0
	}
	if b.Y < 0 {
		b.H += b.Y
		b.Y = 0
	}
	if b.X > w {
		b.X = w
	}
	if b.Y > h {
		b.Y = h
	}
	if b.X+b.W > w {
		b.W = w - b.X
	}
	if b.Y+b.H > h {
		b.H = h - b.Y
	}
	if b.W < 0 {
		b.W = 0
	}
	if b.H < 0 {
		b.H = 0
	}
	return b
}

// Detection is a single detector output.
type Detection struct {
	Label      string      `json:"label"`
	BBox       BBox        `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Mask       interface{} `json:"mask"`
}

// Detector produces detections for one decoded image. Implementations may
// block on I/O or inference and must respect ctx cancellation.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Stub is the fallback detector used when no model is configured. It returns
// a single centred box covering 70% of the frame.
type Stub struct{}

func (Stub) Detect(_ context.Context, img image.Image) ([]Detection, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	return []Detection{{
		Label: "building",
		BBox: BBox{
			X: int(float64(w) * 0.15),
			Y: int(float64(h) * 0.15),
			W: int(float64(w) * 0.7),
			H: int(float64(h) * 0.7),
		},
		Confidence: 0.6,
	}}, nil
}
