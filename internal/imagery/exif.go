package imagery

import (
	"bytes"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// gpsIfdPath is the IFD that holds GPS tags in the flattened tag dump.
const gpsIfdPath = "IFD/GPSInfo"

// Summary holds EXIF tags keyed by their human-readable names, with GPS tags
// broken out into their own map. Values keep the decoded dsoprea types
// (rationals, shorts, ASCII strings).
type Summary struct {
	Tags map[string]interface{}
	GPS  map[string]interface{}
}

// Empty reports whether no tags were extracted at all.
func (s Summary) Empty() bool {
	return len(s.Tags) == 0 && len(s.GPS) == 0
}

// HasGPS reports whether a GPS sub-block was present.
func (s Summary) HasGPS() bool {
	return len(s.GPS) > 0
}

// ExtractExif pulls EXIF tags out of raw image bytes. Parsing problems are
// soft failures: the result is an empty summary, never an error. JPEG bytes
// take the segment-list fast path so only the APP1 payload is scanned.
func ExtractExif(data []byte) Summary {
	s := Summary{
		Tags: map[string]interface{}{},
		GPS:  map[string]interface{}{},
	}

	rawExif := rawExifBytes(data)
	if rawExif == nil {
		return s
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return s
	}

	for _, tag := range entries {
		if tag.IfdPath == gpsIfdPath {
			s.GPS[tag.TagName] = tag.Value
		} else if _, seen := s.Tags[tag.TagName]; !seen {
			s.Tags[tag.TagName] = tag.Value
		}
	}
	return s
}

func rawExifBytes(data []byte) []byte {
	if bytes.HasPrefix(data, []byte{0xff, 0xd8}) {
		jmp := jpegstructure.NewJpegMediaParser()
		intfc, err := jmp.ParseBytes(data)
		if err == nil {
			sl := intfc.(*jpegstructure.SegmentList)
			if _, s, err := sl.FindExif(); err == nil {
				if _, rawExif, err := s.Exif(); err == nil {
					return rawExif
				}
			}
		}
		// fall through to the generic scan; the JPEG may carry EXIF in a
		// non-standard segment
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil
	}
	return rawExif
}

// GPSDecimal derives decimal (lat, lon) from the GPS sub-block. Latitude and
// longitude are three rationals (deg, min, sec); the hemisphere refs negate
// south and west. Any missing or malformed component yields ok=false.
func (s Summary) GPSDecimal() (lat, lon float64, ok bool) {
	latVals := toFloats(s.GPS["GPSLatitude"])
	lonVals := toFloats(s.GPS["GPSLongitude"])
	latRef, latRefOK := refString(s.GPS["GPSLatitudeRef"])
	lonRef, lonRefOK := refString(s.GPS["GPSLongitudeRef"])

	if len(latVals) != 3 || len(lonVals) != 3 || !latRefOK || !lonRefOK {
		return 0, 0, false
	}

	lat = dmsToDecimal(latVals)
	lon = dmsToDecimal(lonVals)
	if latRef == "S" {
		lat = -lat
	}
	if lonRef == "W" {
		lon = -lon
	}
	return lat, lon, true
}

// FocalLengthMM returns the EXIF FocalLength tag in millimetres.
func (s Summary) FocalLengthMM() (float64, bool) {
	vals := toFloats(s.Tags["FocalLength"])
	if len(vals) == 0 || vals[0] <= 0 {
		return 0, false
	}
	return vals[0], true
}

func dmsToDecimal(dms []float64) float64 {
	return dms[0] + dms[1]/60.0 + dms[2]/3600.0
}

// refString coerces a hemisphere reference that may arrive as ASCII text or
// raw bytes.
func refString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(strings.Trim(t, "\x00")), true
	case []byte:
		return strings.TrimSpace(strings.Trim(string(t), "\x00")), true
	}
	return "", false
}

// toFloats coerces the numeric value shapes dsoprea produces into float64s.
// Unknown shapes yield nil.
func toFloats(v interface{}) []float64 {
	switch t := v.(type) {
	case []exifcommon.Rational:
		out := make([]float64, 0, len(t))
		for _, r := range t {
			if r.Denominator == 0 {
				return nil
			}
			out = append(out, float64(r.Numerator)/float64(r.Denominator))
		}
		return out
	case []exifcommon.SignedRational:
		out := make([]float64, 0, len(t))
		for _, r := range t {
			if r.Denominator == 0 {
				return nil
			}
			out = append(out, float64(r.Numerator)/float64(r.Denominator))
		}
		return out
	case []uint16:
		out := make([]float64, 0, len(t))
		for _, n := range t {
			out = append(out, float64(n))
		}
		return out
	case []uint32:
		out := make([]float64, 0, len(t))
		for _, n := range t {
			out = append(out, float64(n))
		}
		return out
	case []float64:
		return t
	}
	return nil
}
