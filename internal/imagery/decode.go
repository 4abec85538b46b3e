package imagery

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/adrium/goheif"
	"github.com/chai2010/webp"
)

// Decode decodes raw image bytes into a raster. JPEG, PNG, GIF, TIFF and BMP
// go through the registered stdlib/x-image decoders; HEIC and WebP are
// sniffed from their container magic because their decoders are not
// registered with the image package.
func Decode(data []byte) (image.Image, error) {
	switch {
	case isHEIC(data):
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode heic: %w", err)
		}
		return img, nil
	case isWebP(data):
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// isHEIC checks the ISO-BMFF ftyp brand at offset 8.
func isHEIC(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := string(data[8:12])
	switch brand {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}
