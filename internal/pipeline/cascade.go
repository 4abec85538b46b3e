package pipeline

import (
	"context"
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/tgagor/groundsight/internal/camera"
	"github.com/tgagor/groundsight/internal/detect"
	"github.com/tgagor/groundsight/internal/geo"
	"github.com/tgagor/groundsight/internal/imagery"
)

// fallbackAltM is assumed when the exif_corrected arm has no INS altitude.
const fallbackAltM = 50.0

// locate runs the estimator cascade for one detection. Arms are tried in
// fixed precedence order and the first non-nil fix wins; the regressor floor
// guarantees the result is never nil.
func (p *Pipeline) locate(ctx context.Context, img image.Image, box detect.BBox,
	imgW, imgH int, exifSummary imagery.Summary, imageGeo *geo.Location, ins *INS) *geo.Location {

	if loc := exifCorrected(box, imgW, imgH, exifSummary, imageGeo, ins); loc != nil {
		return loc
	}
	if loc := insProjection(box, imgW, imgH, ins); loc != nil {
		return loc
	}
	if loc := p.visualRetrieval(ctx, img); loc != nil {
		return loc
	}
	return p.georegFloor(ctx, img)
}

// exifCorrected shifts the image-level EXIF fix by the detection's pixel
// offset from the frame centre, using a flat ground plane approxAlt below a
// level camera. The tangent approximation ignores actual camera pitch; that
// is a known accuracy caveat of this arm.
func exifCorrected(box detect.BBox, imgW, imgH int,
	exifSummary imagery.Summary, imageGeo *geo.Location, ins *INS) *geo.Location {

	if imageGeo == nil {
		return nil
	}

	cx, cy := box.Center()
	dx := cx - float64(imgW)/2.0
	dy := cy - float64(imgH)/2.0

	focalPx := float64(max(imgW, imgH))
	if focalMM, ok := exifSummary.FocalLengthMM(); ok {
		focalPx = camera.FocalPixels(focalMM, camera.DefaultSensorWidthMM, imgW)
	}

	approxAlt := fallbackAltM
	if ins != nil && ins.AltM != nil {
		approxAlt = *ins.AltM
	}

	metersX := approxAlt * math.Tan(dx/focalPx)
	metersY := approxAlt * math.Tan(dy/focalPx)

	// image y is down, so a positive dy shifts the target south
	lat, lon := geo.OffsetLatLon(imageGeo.Lat, imageGeo.Lon, metersX, -metersY)

	return &geo.Location{
		Lat:          lat,
		Lon:          lon,
		Confidence:   0.85,
		ErrorRadiusM: math.Max(10, approxAlt*0.2),
		Method:       geo.MethodExifCorrected,
	}
}

// insProjection casts the bbox-centre ray from the INS pose onto the ground
// plane. Requires lat, lon and alt_m; missing rotation fields default to 0.
func insProjection(box detect.BBox, imgW, imgH int, ins *INS) *geo.Location {
	if ins == nil || ins.Lat == nil || ins.Lon == nil || ins.AltM == nil {
		return nil
	}

	pose := camera.Pose{
		Lat:      *ins.Lat,
		Lon:      *ins.Lon,
		AltM:     *ins.AltM,
		YawDeg:   deref(ins.Yaw),
		PitchDeg: deref(ins.Pitch),
		RollDeg:  deref(ins.Roll),
	}
	if ins.FocalMM != nil {
		sensorMM := camera.DefaultSensorWidthMM
		if ins.SensorMM != nil {
			sensorMM = *ins.SensorMM
		}
		focalPx := camera.FocalPixels(*ins.FocalMM, sensorMM, imgW)
		pose.FocalPx = &focalPx
	}

	return camera.ProjectBBoxCenter(box.X, box.Y, box.W, box.H, imgW, imgH, pose)
}

func (p *Pipeline) visualRetrieval(ctx context.Context, img image.Image) *geo.Location {
	if p.Locator == nil {
		return nil
	}
	loc, err := p.Locator.Locate(ctx, img)
	if err != nil {
		log.Debug().Err(err).Msg("Visual retrieval failed")
		return nil
	}
	return loc
}

// georegFloor is the cascade floor: it must always produce a fix. A failing
// or invalid regressor result degrades to the static placeholder.
func (p *Pipeline) georegFloor(ctx context.Context, img image.Image) *geo.Location {
	if p.Regressor != nil {
		loc, err := p.Regressor.Estimate(ctx, img)
		if err == nil && loc.Valid() {
			return &loc
		}
		if err != nil {
			log.Warn().Err(err).Msg("Geo regressor failed, using static floor")
		}
	}
	floor, _ := PlaceholderRegressor{}.Estimate(ctx, img)
	return &floor
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
