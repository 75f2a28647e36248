package matrix

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// VectorSampler draws vectors whose components are independent zero-mean normal samples.
type VectorSampler struct {
	dist distuv.Normal
}

// NewVectorSampler returns a sampler with standard deviation sigma on every axis.
func NewVectorSampler(sigma float64) *VectorSampler {
	return &VectorSampler{dist: distuv.Normal{Mu: 0, Sigma: sigma}}
}

// Sample returns one noise vector. A sampler with zero sigma always returns the zero vector.
func (s *VectorSampler) Sample() r3.Vector {
	if s.dist.Sigma == 0 {
		return r3.Vector{}
	}
	return r3.Vector{X: s.dist.Rand(), Y: s.dist.Rand(), Z: s.dist.Rand()}
}
