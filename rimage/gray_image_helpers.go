// Package rimage contains the grayscale image handling used by feature detection and matching.
package rimage

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// MinImageSide is the smallest width or height of an image frames are processed at.
const MinImageSide = 10

// ErrImageTooSmall is returned when a pixel buffer cannot hold the image it claims to describe.
var ErrImageTooSmall = errors.New("image buffer too small")

// BufferHolds reports whether a buffer of n bytes holds a width x height 8-bit image. The sizes
// are compared by division so that huge dimensions cannot overflow the product.
func BufferHolds(n, width, height int) bool {
	return width > 0 && height > 0 && width <= n/height
}

// GrayFromBytes copies a row-major 8-bit grayscale buffer into an image.Gray. Bytes past
// width*height are ignored.
func GrayFromBytes(pix []byte, width, height int) (*image.Gray, error) {
	if width < MinImageSide || height < MinImageSide {
		return nil, errors.Wrapf(ErrImageTooSmall, "dimensions %dx%d below %d", width, height, MinImageSide)
	}
	if !BufferHolds(len(pix), width, height) {
		return nil, errors.Wrapf(ErrImageTooSmall, "have %d bytes, too few for %dx%d", len(pix), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, pix[:width*height])
	return img, nil
}

// MakeGray converts any image to an image.Gray anchored at the origin, using the luminance
// weights of imaging.Grayscale.
func MakeGray(pic image.Image) *image.Gray {
	if g, ok := pic.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	gray := imaging.Grayscale(pic)
	result := image.NewGray(gray.Bounds())
	draw.Draw(result, result.Bounds(), gray, gray.Bounds().Min, draw.Src)
	return result
}

// GrayBytes returns the row-major pixel buffer of img.
func GrayBytes(img *image.Gray) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w {
		return img.Pix[:w*h]
	}
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		start := y * img.Stride
		out = append(out, img.Pix[start:start+w]...)
	}
	return out
}
