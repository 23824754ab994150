package registration

import (
	"context"
	"math"
	"math/cmplx"

	"golang.org/x/sync/errgroup"
)

// field is a real N-D array laid out x fastest.
type field struct {
	shape []int
	data  []float64
}

// nccInput holds one image and its mask for masked correlation.
type nccInput struct {
	values field
	mask   []float64
}

// maskedNCC computes the masked normalized cross correlation of fixed and
// moving for every shift s with -(F-1) <= s <= M-1 per axis. The result has
// shape F+M-1 and element k holds shift k-(F-1).
//
// Shifts whose overlap is below minOverlap mask pixels, or where either
// image is constant over the overlap, are set to 0.
func maskedNCC(ctx context.Context, fixed, moving nccInput, minOverlap float64) (field, error) {
	dim := len(fixed.values.shape)
	padded := make([]int, dim)
	outShape := make([]int, dim)
	for i := 0; i < dim; i++ {
		outShape[i] = fixed.values.shape[i] + moving.values.shape[i] - 1
		padded[i] = outShape[i]
	}

	f, fm := fixed.values.data, fixed.mask
	m, mm := moving.values.data, moving.mask
	fixedTerms := [][]float64{
		fm,
		product(f, fm),
		product(f, f, fm),
	}
	movingTerms := [][]float64{
		mm,
		product(m, mm),
		product(m, m, mm),
	}

	// spectra[0..2] fixed, spectra[3..5] moving
	spectra := make([]*grid, 6)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 6; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, shape := fixedTerms, fixed.values.shape
			j := i
			if i >= 3 {
				src, shape, j = movingTerms, moving.values.shape, i-3
			}
			gr := embed(src[j], shape, padded)
			gr.transform(fftPlans{}, false)
			spectra[i] = gr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return field{}, err
	}

	// pairs index into spectra: (fixed term, moving term)
	pairs := [6][2]int{
		{0, 3}, // overlap
		{1, 3}, // sum f
		{0, 4}, // sum m
		{2, 3}, // sum f^2
		{0, 5}, // sum m^2
		{1, 4}, // sum f*m
	}
	sums := make([]field, 6)
	g, gctx = errgroup.WithContext(ctx)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sums[i] = correlate(spectra[p[0]], spectra[p[1]], fixed.values.shape, outShape)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return field{}, err
	}

	out := field{shape: outShape, data: make([]float64, len(sums[0].data))}
	overlap, sf, sm, sff, smm, sfm := sums[0].data, sums[1].data, sums[2].data, sums[3].data, sums[4].data, sums[5].data
	for k := range out.data {
		o := math.Round(overlap[k])
		if o <= 0 || o < minOverlap {
			continue
		}
		varF := sff[k] - sf[k]*sf[k]/o
		varM := smm[k] - sm[k]*sm[k]/o
		den := varF * varM
		if varF <= varianceEpsilon*o || varM <= varianceEpsilon*o || den <= 0 {
			continue
		}
		ncc := (sfm[k] - sf[k]*sm[k]/o) / math.Sqrt(den)
		out.data[k] = math.Max(-1, math.Min(1, ncc))
	}
	return out, nil
}

// varianceEpsilon is the per-pixel variance below which an overlap region
// counts as constant.
const varianceEpsilon = 1e-6

func product(factors ...[]float64) []float64 {
	out := make([]float64, len(factors[0]))
	for i := range out {
		v := 1.0
		for _, f := range factors {
			v *= f[i]
		}
		out[i] = v
	}
	return out
}

// embed copies values of the given shape into the low corner of a zero
// grid of shape padded.
func embed(values []float64, shape, padded []int) *grid {
	g := newGrid(padded)
	dim := len(shape)
	idx := make([]int, dim)
	for _, v := range values {
		off, stride := 0, 1
		for i := 0; i < dim; i++ {
			off += idx[i] * stride
			stride *= padded[i]
		}
		g.data[off] = complex(v, 0)
		for i := 0; i < dim; i++ {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return g
}

// correlate returns c(s) = sum_x a(x) b(x+s) from the spectra of a and b,
// rearranged so that element k holds shift k-(F-1).
func correlate(a, b *grid, fixedShape, outShape []int) field {
	prod := newGrid(a.shape)
	for i := range prod.data {
		prod.data[i] = cmplx.Conj(a.data[i]) * b.data[i]
	}
	prod.transform(fftPlans{}, true)

	dim := len(outShape)
	out := field{shape: outShape, data: make([]float64, len(prod.data))}
	idx := make([]int, dim)
	for k := range out.data {
		off, stride := 0, 1
		for i := 0; i < dim; i++ {
			s := idx[i] - (fixedShape[i] - 1)
			if s < 0 {
				s += a.shape[i]
			}
			off += s * stride
			stride *= a.shape[i]
		}
		out.data[k] = real(prod.data[off])
		for i := 0; i < dim; i++ {
			idx[i]++
			if idx[i] < outShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out
}
