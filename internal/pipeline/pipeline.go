// Package pipeline composes decoding, detection, the geolocation estimator
// cascade and the optional enrichers into the per-task processing core.
//
// The pipeline is a pure function of (bytes, metadata) plus the collaborators
// it was constructed with. It spawns no concurrency and keeps no state across
// tasks; the outer loop may run several pipelines in parallel.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/tgagor/groundsight/internal/detect"
	"github.com/tgagor/groundsight/internal/geo"
	"github.com/tgagor/groundsight/internal/geocode"
	"github.com/tgagor/groundsight/internal/imagery"
	"github.com/tgagor/groundsight/internal/ocr"
)

// INS is the inertial telemetry block a task may carry. All fields are
// optional; the cascade decides per-arm which ones it needs.
type INS struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	AltM     *float64 `json:"alt_m"`
	Yaw      *float64 `json:"yaw"`
	Pitch    *float64 `json:"pitch"`
	Roll     *float64 `json:"roll"`
	FocalMM  *float64 `json:"focal_mm"`
	SensorMM *float64 `json:"sensor_mm"`
}

// Metadata is the recognized portion of a task's metadata mapping.
type Metadata struct {
	INS *INS `json:"ins"`
}

// ParseMetadata extracts the recognized fields from a raw task metadata
// mapping. Malformed metadata degrades to empty, it never fails the task.
func ParseMetadata(raw json.RawMessage) Metadata {
	var m Metadata
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Warn().Err(err).Msg("Malformed task metadata, ignoring")
		return Metadata{}
	}
	return m
}

// DetectionResult is a detection augmented with its geolocation and the
// optional enrichments.
type DetectionResult struct {
	detect.Detection
	Geolocation *geo.Location `json:"geolocation"`
	OCRText     *string       `json:"ocr_text"`
	Address     *string       `json:"address"`
}

// Output is the result of processing one task. Detections keep detector
// order. ImageGeolocation is the image-level EXIF fix, independent of the
// per-detection cascade.
type Output struct {
	Detections       []DetectionResult `json:"detections"`
	ImageGeolocation *geo.Location     `json:"image_geolocation"`
}

// Pipeline owns the collaborators for one worker. Detector is required.
// A nil Locator skips the visual-retrieval arm and a nil Regressor falls back
// to the static placeholder floor; New wires placeholders for both. OCR and
// Geocoder may be nil, absence is a normal state.
type Pipeline struct {
	Detector  detect.Detector
	Locator   Locator
	Regressor Regressor
	OCR       ocr.Engine
	Geocoder  *geocode.Client
}

// New returns a pipeline around the given detector with the fallback
// estimator arms wired to their placeholder implementations.
func New(det detect.Detector) *Pipeline {
	return &Pipeline{
		Detector:  det,
		Locator:   PlaceholderLocator{},
		Regressor: PlaceholderRegressor{},
	}
}

// Process runs the full pipeline over one image. The returned error is
// non-nil only for a decode failure or context cancellation; in both cases
// the output is empty and must not be emitted. All other failures degrade
// per component: no detections, no enrichment, or a fallback geolocation.
func (p *Pipeline) Process(ctx context.Context, data []byte, meta Metadata) (Output, error) {
	img, err := imagery.Decode(data)
	if err != nil {
		return Output{}, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	imgW, imgH := bounds.Dx(), bounds.Dy()

	exifSummary := imagery.ExtractExif(data)
	imageGeo := imageGeolocation(exifSummary)

	dets, err := p.Detector.Detect(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("Detector failed, continuing with no detections")
		dets = nil
	}

	out := Output{
		Detections:       make([]DetectionResult, 0, len(dets)),
		ImageGeolocation: imageGeo,
	}

	for _, det := range dets {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		det.BBox = det.BBox.Clamp(imgW, imgH)

		loc := p.locate(ctx, img, det.BBox, imgW, imgH, exifSummary, imageGeo, meta.INS)

		result := DetectionResult{
			Detection:   det,
			Geolocation: loc,
			OCRText:     p.recognizeText(ctx, img, det.BBox),
		}
		if loc != nil {
			result.Address = p.reverseGeocode(ctx, loc)
		}
		out.Detections = append(out.Detections, result)
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	return out, nil
}

// imageGeolocation derives the image-level fix from EXIF GPS alone.
func imageGeolocation(s imagery.Summary) *geo.Location {
	if !s.HasGPS() {
		return nil
	}
	lat, lon, ok := s.GPSDecimal()
	if !ok {
		return nil
	}
	return &geo.Location{
		Lat:          lat,
		Lon:          lon,
		Confidence:   0.95,
		ErrorRadiusM: 10,
		Method:       geo.MethodExif,
	}
}

// recognizeText crops the detection and runs OCR. Failures and empty text
// yield nil.
func (p *Pipeline) recognizeText(ctx context.Context, img image.Image, box detect.BBox) *string {
	if p.OCR == nil || box.W <= 0 || box.H <= 0 {
		return nil
	}
	crop := imaging.Crop(img, image.Rect(box.X, box.Y, box.X+box.W, box.Y+box.H))
	text, err := p.OCR.Recognize(ctx, crop)
	if err != nil {
		log.Debug().Err(err).Msg("OCR failed")
		return nil
	}
	if text == "" {
		return nil
	}
	return &text
}

// reverseGeocode resolves the fix to an address. Failures yield nil.
func (p *Pipeline) reverseGeocode(ctx context.Context, loc *geo.Location) *string {
	if p.Geocoder == nil {
		return nil
	}
	address, err := p.Geocoder.Reverse(ctx, loc.Lat, loc.Lon)
	if err != nil {
		log.Debug().Err(err).Msg("Reverse geocode failed")
		return nil
	}
	return &address
}
