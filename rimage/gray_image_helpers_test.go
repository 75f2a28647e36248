package rimage

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestGrayFromBytes(t *testing.T) {
	pix := make([]byte, 12*10+5)
	for i := range pix {
		pix[i] = byte(i)
	}
	img, err := GrayFromBytes(pix, 12, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 12, 10))
	test.That(t, img.GrayAt(3, 2).Y, test.ShouldEqual, byte(27))

	// the image does not alias the caller's buffer
	pix[0] = 200
	test.That(t, img.GrayAt(0, 0).Y, test.ShouldEqual, byte(0))
	test.That(t, GrayBytes(img), test.ShouldHaveLength, 120)

	_, err = GrayFromBytes(pix, 9, 10)
	test.That(t, errors.Is(err, ErrImageTooSmall), test.ShouldBeTrue)
	_, err = GrayFromBytes(pix[:50], 12, 10)
	test.That(t, errors.Is(err, ErrImageTooSmall), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "have 50 bytes, too few for 12x10")

	// the product of these sides wraps around
	const huge = 1<<32 - 1
	_, err = GrayFromBytes(make([]byte, 100), huge, huge)
	test.That(t, errors.Is(err, ErrImageTooSmall), test.ShouldBeTrue)
}

func TestBufferHolds(t *testing.T) {
	for _, tc := range []struct {
		n, width, height int
		want             bool
	}{
		{120, 12, 10, true},
		{121, 12, 10, true},
		{119, 12, 10, false},
		{100, 0, 10, false},
		{100, 10, 0, false},
		{100, -10, -10, false},
		{100, 1<<32 - 1, 1<<32 - 1, false},
		{100, 1 << 62, 4, false},
	} {
		test.That(t, BufferHolds(tc.n, tc.width, tc.height), test.ShouldEqual, tc.want)
	}
}

func TestMakeGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			rgba.Set(x, y, color.RGBA{100, 100, 100, 255})
		}
	}
	g := MakeGray(rgba)
	test.That(t, g.Bounds(), test.ShouldResemble, rgba.Bounds())
	test.That(t, int(g.GrayAt(2, 1).Y), test.ShouldAlmostEqual, 100, 1)

	already := image.NewGray(image.Rect(0, 0, 5, 5))
	test.That(t, MakeGray(already), test.ShouldEqual, already)

	sub := image.NewGray(image.Rect(0, 0, 8, 8)).SubImage(image.Rect(2, 2, 6, 5)).(*image.Gray)
	sub.SetGray(2, 2, color.Gray{Y: 9})
	bytes := GrayBytes(sub)
	test.That(t, bytes, test.ShouldHaveLength, 12)
	test.That(t, bytes[0], test.ShouldEqual, byte(9))
}

func TestSobelGradients(t *testing.T) {
	// vertical step edge between columns 4 and 5
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	gf := SobelGradients(img)
	test.That(t, gf.Width(), test.ShouldEqual, 10)
	test.That(t, gf.Height(), test.ShouldEqual, 10)

	gx, gy := gf.At(4, 5)
	test.That(t, gx, test.ShouldAlmostEqual, 1)
	test.That(t, gy, test.ShouldAlmostEqual, 0)
	gx, _ = gf.At(5, 5)
	test.That(t, gx, test.ShouldAlmostEqual, 1)
	gx, _ = gf.At(2, 5)
	test.That(t, gx, test.ShouldAlmostEqual, 0)

	// borders are left at zero
	gx, gy = gf.At(0, 0)
	test.That(t, gx, test.ShouldEqual, 0.)
	test.That(t, gy, test.ShouldEqual, 0.)

	gx, gy = gf.At(4, 0)
	test.That(t, gx, test.ShouldEqual, 0.)
	test.That(t, gy, test.ShouldEqual, 0.)

	tiny := SobelGradients(image.NewGray(image.Rect(0, 0, 2, 2)))
	test.That(t, tiny.Width(), test.ShouldEqual, 2)
}
