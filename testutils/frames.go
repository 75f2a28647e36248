package testutils

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// TextureCell is the side, in pixels, of the cells of the synthetic texture.
const TextureCell = 12

// TexturedFrame renders a deterministic grayscale texture of random-intensity square cells,
// shifted by (offsetX, offsetY) pixels, as a row-major buffer. Rendering the same texture with a
// growing offset simulates a camera translating over a flat scene.
func TexturedFrame(width, height, offsetX, offsetY int) []byte {
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		cy := floorDiv(y-offsetY, TextureCell)
		for x := 0; x < width; x++ {
			pix[y*width+x] = cellIntensity(floorDiv(x-offsetX, TextureCell), cy)
		}
	}
	return pix
}

// RectangleImage returns a black image of the given size with one filled rectangle of intensity v.
func RectangleImage(width, height int, rect image.Rectangle, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, rect, &image.Uniform{color.Gray{v}}, image.Point{}, draw.Src)
	return img
}

// FrameShift returns the integer pixel offset of frame i for a texture moving speed pixels per frame.
func FrameShift(i int, speed float64) int {
	return int(math.Round(float64(i) * speed))
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// cellIntensity hashes a cell coordinate to an intensity.
func cellIntensity(cx, cy int) uint8 {
	h := uint32(cx)*73856093 ^ uint32(cy)*19349663
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return uint8(h)
}
