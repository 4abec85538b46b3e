package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgagor/groundsight/internal/detect"
	"github.com/tgagor/groundsight/internal/geo"
	"github.com/tgagor/groundsight/internal/pipeline"
)

func TestTask_Unmarshal(t *testing.T) {
	raw := `{
		"image_id": "img-42",
		"image_url": "s3://images/raw/img_42.jpg",
		"metadata": {"ins": {"lat": 55.75, "lon": 37.61, "alt_m": 100}}
	}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(raw), &task))
	require.NoError(t, task.Validate())

	assert.Equal(t, "img-42", task.ImageID)
	assert.Equal(t, "s3://images/raw/img_42.jpg", task.ImageURL)

	meta := pipeline.ParseMetadata(task.Metadata)
	require.NotNil(t, meta.INS)
	assert.InDelta(t, 55.75, *meta.INS.Lat, 1e-9)
	assert.Nil(t, meta.INS.Yaw)
}

func TestTask_Validate(t *testing.T) {
	assert.Error(t, (&Task{ImageURL: "x"}).Validate())
	assert.Error(t, (&Task{ImageID: "x"}).Validate())
	assert.NoError(t, (&Task{ImageID: "x", ImageURL: "y"}).Validate())
}

func TestNewResult_Envelope(t *testing.T) {
	address := "Tverskaya St, Moscow"
	dr := pipeline.DetectionResult{
		Detection: detect.Detection{
			Label:      "building",
			BBox:       detect.BBox{X: 10, Y: 20, W: 30, H: 40},
			Confidence: 0.6,
		},
		Geolocation: &geo.Location{
			Lat: 55.75, Lon: 37.61, Confidence: 0.85, ErrorRadiusM: 10,
			Method: geo.MethodExifCorrected,
		},
		Address: &address,
	}
	meta := json.RawMessage(`{"ins":{"alt_m":100}}`)
	now := time.Date(2024, 6, 1, 12, 30, 45, 987654321, time.UTC)

	r := NewResult("img-42", dr, meta, "worker-7", now)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"image_id": "img-42",
		"detection": {"label": "building", "bbox": [10,20,30,40], "confidence": 0.6, "mask": null},
		"geolocation": {"lat": 55.75, "lon": 37.61, "confidence": 0.85,
			"error_radius_m": 10, "method": "exif_corrected"},
		"address": "Tverskaya St, Moscow",
		"metadata": {"ins":{"alt_m":100}},
		"worker": "worker-7",
		"processed_at": "2024-06-01T12:30:45Z"
	}`, string(data))
}

func TestNewResult_TimestampIsUTCSecondPrecision(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	now := time.Date(2024, 6, 1, 15, 30, 45, 500000000, loc)

	r := NewResult("img", pipeline.DetectionResult{}, nil, "w", now)
	assert.Equal(t, "2024-06-01T12:30:45Z", r.ProcessedAt)
}

func TestNewResult_NullFields(t *testing.T) {
	r := NewResult("img", pipeline.DetectionResult{
		Detection: detect.Detection{Label: "building"},
	}, nil, "w", time.Unix(0, 0))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["geolocation"])
	assert.Nil(t, decoded["address"])
	assert.Nil(t, decoded["metadata"])
}
