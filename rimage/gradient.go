package rimage

import (
	"image"

	"go.viam.com/motiontrack/utils"
)

// GradientField holds the horizontal and vertical intensity gradients of an image, with
// intensities scaled to [0, 1]. Border pixels, where the kernel does not fit, are zero.
type GradientField struct {
	width  int
	height int
	gx     []float64
	gy     []float64
}

// Width returns the width of the field.
func (gf *GradientField) Width() int {
	return gf.width
}

// Height returns the height of the field.
func (gf *GradientField) Height() int {
	return gf.height
}

// At returns the gradient at x, y.
func (gf *GradientField) At(x, y int) (float64, float64) {
	i := y*gf.width + x
	return gf.gx[i], gf.gy[i]
}

// SobelGradients computes the Sobel gradient field of img. Each response is divided by the kernel
// weight so that a unit step edge yields a gradient of one.
func SobelGradients(img *image.Gray) *GradientField {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gf := &GradientField{width: w, height: h, gx: make([]float64, w*h), gy: make([]float64, w*h)}
	if w < 3 || h < 3 {
		return gf
	}
	sobelX, sobelY := GetSobelX(), GetSobelY()
	norm := 1 / (255 * sobelX.Weight())

	utils.ParallelForEachRow(1, h-1, func(y int) {
		for x := 1; x < w-1; x++ {
			var sx, sy float64
			for ky := 0; ky < sobelX.Height; ky++ {
				row := (y + ky - 1) * img.Stride
				for kx := 0; kx < sobelX.Width; kx++ {
					v := float64(img.Pix[row+x+kx-1])
					sx += v * sobelX.At(kx, ky)
					sy += v * sobelY.At(kx, ky)
				}
			}
			gf.gx[y*w+x] = sx * norm
			gf.gy[y*w+x] = sy * norm
		}
	})
	return gf
}
