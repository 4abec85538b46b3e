package pipeline

import (
	"context"
	"image"

	"github.com/tgagor/groundsight/internal/geo"
)

// Locator is the visual-retrieval arm of the cascade: match the image
// against a reference gallery and return a coarse fix. A nil result or an
// error advances the cascade.
type Locator interface {
	Locate(ctx context.Context, img image.Image) (*geo.Location, error)
}

// Regressor is the cascade floor: a coarse scene-level coordinate regressor.
// It must always return a fix; errors degrade to the static placeholder.
type Regressor interface {
	Estimate(ctx context.Context, img image.Image) (geo.Location, error)
}

// Reference point for the placeholder arms, pending real retrieval and
// regression models. The cascade contract (ordering, confidence floors,
// guaranteed non-nil floor) is what downstream consumers depend on.
const (
	placeholderLat = 55.75
	placeholderLon = 37.61
)

// PlaceholderLocator stands in for a visual-retrieval model. It returns a
// deterministic low-confidence fix at the configured reference point.
type PlaceholderLocator struct {
	Lat float64
	Lon float64
}

func (l PlaceholderLocator) Locate(_ context.Context, _ image.Image) (*geo.Location, error) {
	lat, lon := l.Lat, l.Lon
	if lat == 0 && lon == 0 {
		lat, lon = placeholderLat, placeholderLon
	}
	return &geo.Location{
		Lat:          lat,
		Lon:          lon,
		Confidence:   0.25,
		ErrorRadiusM: 2000,
		Method:       geo.MethodVisualRetrieval,
	}, nil
}

// PlaceholderRegressor stands in for a coarse geo regressor. It never fails.
type PlaceholderRegressor struct {
	Lat float64
	Lon float64
}

func (r PlaceholderRegressor) Estimate(_ context.Context, _ image.Image) (geo.Location, error) {
	lat, lon := r.Lat, r.Lon
	if lat == 0 && lon == 0 {
		lat, lon = placeholderLat, placeholderLon
	}
	return geo.Location{
		Lat:          lat,
		Lon:          lon,
		Confidence:   0.1,
		ErrorRadiusM: 20000,
		Method:       geo.MethodGeoreg,
	}, nil
}
