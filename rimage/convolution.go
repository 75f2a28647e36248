package rimage

// Kernel is a small convolution kernel stored row major.
type Kernel struct {
	Content [][]float64
	Height  int
	Width   int
}

// At returns the kernel weight at column x and row y.
func (k Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// Weight returns the sum of the absolute values of the kernel weights on one side of its centre,
// which normalises a gradient response to the intensity range.
func (k Kernel) Weight() float64 {
	var sum float64
	for _, row := range k.Content {
		for _, v := range row {
			if v > 0 {
				sum += v
			}
		}
	}
	return sum
}

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{[][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	},
		3,
		3,
	}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{[][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	},
		3,
		3,
	}
}
