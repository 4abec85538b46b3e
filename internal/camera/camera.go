// Package camera models a pinhole camera on a georeferenced platform and
// projects pixel rays onto the ground plane.
//
// Frame conventions:
//   - camera frame: +x right, +y down (image convention), +z forward
//   - body frame (aerospace): +x forward, +y right, +z down
//   - attitude: R = Rz(yaw) * Ry(pitch) * Rx(roll), body -> NED
//   - world frame: ENU (east, north, up) centred at the camera
//
// A level camera (yaw=pitch=roll=0) therefore looks due north along the
// horizon; pitch -90 looks straight down.
package camera

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tgagor/groundsight/internal/geo"
)

// DefaultSensorWidthMM is assumed when the sensor size is unknown
// (full-frame width).
const DefaultSensorWidthMM = 36.0

// minRayVertical rejects near-horizontal rays whose ground intersection is
// numerically meaningless.
const minRayVertical = 1e-6

// Pose is the camera position and attitude from INS telemetry. Angles are
// degrees. FocalPx is optional; when nil the projector falls back to
// max(imgW, imgH), which is very low accuracy.
type Pose struct {
	Lat      float64
	Lon      float64
	AltM     float64
	YawDeg   float64
	PitchDeg float64
	RollDeg  float64
	FocalPx  *float64
}

// FocalPixels converts a focal length in millimetres to pixels for the given
// image width. A non-positive sensor width falls back to the full-frame
// default.
func FocalPixels(focalMM, sensorMM float64, imgW int) float64 {
	if sensorMM <= 0 {
		sensorMM = DefaultSensorWidthMM
	}
	return focalMM * (float64(imgW) / sensorMM)
}

// PixelDirection back-projects pixel (u, v) through principal point (cx, cy)
// and focal lengths (fx, fy) into a unit direction in the camera frame.
func PixelDirection(u, v, cx, cy, fx, fy float64) *mat.VecDense {
	x := (u - cx) / fx
	y := (v - cy) / fy
	d := mat.NewVecDense(3, []float64{x, y, 1})
	d.ScaleVec(1/mat.Norm(d, 2), d)
	return d
}

// AttitudeMatrix builds the body-to-NED rotation Rz(yaw)*Ry(pitch)*Rx(roll)
// for angles in degrees.
func AttitudeMatrix(yawDeg, pitchDeg, rollDeg float64) *mat.Dense {
	yaw := yawDeg * math.Pi / 180.0
	pitch := pitchDeg * math.Pi / 180.0
	roll := rollDeg * math.Pi / 180.0

	rz := mat.NewDense(3, 3, []float64{
		math.Cos(yaw), -math.Sin(yaw), 0,
		math.Sin(yaw), math.Cos(yaw), 0,
		0, 0, 1,
	})
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(pitch), 0, math.Sin(pitch),
		0, 1, 0,
		-math.Sin(pitch), 0, math.Cos(pitch),
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(roll), -math.Sin(roll),
		0, math.Sin(roll), math.Cos(roll),
	})

	var r mat.Dense
	r.Mul(ry, rx)
	r.Mul(rz, &r)
	return &r
}

// worldDirection rotates a camera-frame direction into the ENU world frame
// for the given attitude.
func worldDirection(dCam *mat.VecDense, yawDeg, pitchDeg, rollDeg float64) (east, north, up float64) {
	// camera (right, down, forward) -> body (forward, right, down)
	body := mat.NewVecDense(3, []float64{
		dCam.AtVec(2),
		dCam.AtVec(0),
		dCam.AtVec(1),
	})

	r := AttitudeMatrix(yawDeg, pitchDeg, rollDeg)
	var ned mat.VecDense
	ned.MulVec(r, body)

	// NED -> ENU
	return ned.AtVec(1), ned.AtVec(0), -ned.AtVec(2)
}

// ProjectBBoxCenter casts the ray through the bbox centre onto the horizontal
// ground plane pose.AltM below the camera and returns the intersection as an
// ins_projection fix. It returns nil when the ray is near-horizontal or
// points into the sky.
func ProjectBBoxCenter(bx, by, bw, bh, imgW, imgH int, pose Pose) *geo.Location {
	u := float64(bx) + float64(bw)/2.0
	v := float64(by) + float64(bh)/2.0

	cx := float64(imgW) / 2.0
	cy := float64(imgH) / 2.0

	focalPx := float64(max(imgW, imgH))
	if pose.FocalPx != nil && *pose.FocalPx > 0 {
		focalPx = *pose.FocalPx
	}

	dCam := PixelDirection(u, v, cx, cy, focalPx, focalPx)
	east, north, up := worldDirection(dCam, pose.YawDeg, pose.PitchDeg, pose.RollDeg)

	if math.Abs(up) < minRayVertical {
		return nil
	}
	// Ground plane sits at z = -AltM in the camera-centred ENU frame.
	t := -pose.AltM / up
	if t <= 0 {
		return nil
	}

	lat, lon := geo.OffsetLatLon(pose.Lat, pose.Lon, east*t, north*t)

	// Error grows at grazing angles: small pitch errors magnify horizontal
	// error as the vertical component shrinks.
	errM := math.Max(5.0, pose.AltM*0.1+2.0/math.Abs(up))

	return &geo.Location{
		Lat:          lat,
		Lon:          lon,
		Confidence:   0.8,
		ErrorRadiusM: errM,
		Method:       geo.MethodINSProjection,
	}
}
