package registration

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// grid is a dense complex array laid out x fastest.
type grid struct {
	shape []int
	data  []complex128
}

func newGrid(shape []int) *grid {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return &grid{shape: append([]int(nil), shape...), data: make([]complex128, n)}
}

// fftPlans caches one 1-D transform per axis length.
type fftPlans map[int]*fourier.CmplxFFT

func (p fftPlans) get(n int) *fourier.CmplxFFT {
	if t, ok := p[n]; ok {
		return t
	}
	t := fourier.NewCmplxFFT(n)
	p[n] = t
	return t
}

// transform applies the separable N-D DFT in place. The inverse is scaled
// by 1/N so that a forward and inverse pass round trip.
func (g *grid) transform(plans fftPlans, inverse bool) {
	stride := 1
	for _, n := range g.shape {
		if n > 1 {
			plan := plans.get(n)
			line := make([]complex128, n)
			outer := len(g.data) / n
			for o := 0; o < outer; o++ {
				// o enumerates every line along axis: split it into the part
				// below the axis and the part above.
				lo := o % stride
				hi := o / stride
				base := hi*stride*n + lo
				for i := 0; i < n; i++ {
					line[i] = g.data[base+i*stride]
				}
				if inverse {
					plan.Sequence(line, line)
				} else {
					plan.Coefficients(line, line)
				}
				for i := 0; i < n; i++ {
					g.data[base+i*stride] = line[i]
				}
			}
		}
		stride *= n
	}

	if inverse {
		scale := complex(1/float64(len(g.data)), 0)
		for i := range g.data {
			g.data[i] *= scale
		}
	}
}
