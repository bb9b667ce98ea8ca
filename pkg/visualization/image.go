package visualization

import (
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"go.trai.ch/zerr"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"volmesh/internal/models"
)

// Format is an image file format for rendered slices.
type Format string

const (
	// FormatJPEG is lossy 8-bit output
	FormatJPEG Format = "jpeg"

	// FormatTIFF keeps the full 16-bit range
	FormatTIFF Format = "tiff"
)

// ParseFormat validates an image format name.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	}
	return "", zerr.With(zerr.Wrap(models.ErrInvalidParameter, "image format must be jpeg or tiff"), "format", name)
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatTIFF {
		return "tif"
	}
	return "jpg"
}

// ToGray16 maps a slice onto a 16-bit grey image, stretching its own
// min..max range over the full scale. Row r of the slice becomes image row r.
func ToGray16(s Slice) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.Cols, s.Rows))
	if len(s.Data) == 0 {
		return img
	}

	lo, hi := floats.Min(s.Data), floats.Max(s.Data)
	span := hi - lo
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			value := 0.0
			if span > 0 {
				value = (s.At(r, c) - lo) / span
			}
			img.SetGray16(c, r, color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, value)) * 65535))})
		}
	}
	return img
}

// SaveImage writes img to filename in the given format
func SaveImage(img image.Image, filename string, format Format) error {
	file, err := os.Create(filename)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create image file"), "path", filename)
	}
	defer file.Close()

	switch format {
	case FormatTIFF:
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to encode image"), "path", filename)
	}

	return file.Close()
}
