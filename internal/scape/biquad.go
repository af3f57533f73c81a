package scape

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// CoefficientsPerStage is the number of genes consumed by one biquad stage:
// a0, a1, a2, b1, b2.
const CoefficientsPerStage = 5

const impulseSamples = 32

var ErrCoefficientCount = errors.New("gene count is not a multiple of the biquad coefficient count")

// Biquad is a two-pole two-zero section in transposed direct form II.
type Biquad struct {
	z1, z2             float64
	a0, a1, a2, b1, b2 float64
}

// Reset clears both the delay line and the coefficients.
func (b *Biquad) Reset() {
	*b = Biquad{}
}

// ClearState clears the delay line only.
func (b *Biquad) ClearState() {
	b.z1, b.z2 = 0, 0
}

func (b *Biquad) Coefficients() [CoefficientsPerStage]float64 {
	return [CoefficientsPerStage]float64{b.a0, b.a1, b.a2, b.b1, b.b2}
}

func (b *Biquad) SetCoefficients(c [CoefficientsPerStage]float64) {
	b.a0, b.a1, b.a2, b.b1, b.b2 = c[0], c[1], c[2], c[3], c[4]
}

func (b *Biquad) Process(in float64) float64 {
	out := b.a0*in + b.z1
	b.z1 = b.a1*in + b.z2 - b.b1*out
	b.z2 = b.a2*in - b.b2*out
	return out
}

// Stable reports whether both poles lie strictly inside the unit circle.
func (b *Biquad) Stable() bool {
	return math.Abs(b.b2) < 1 && math.Abs(b.b1) < 1+b.b2
}

// Cascade chains biquad stages, each fed by the previous stage's output.
type Cascade struct {
	stages []*Biquad
}

// NewCascade builds one stage per five scaled signed genes, in gene order.
func NewCascade(genes Genotype) (*Cascade, error) {
	if genes.Count()%CoefficientsPerStage != 0 {
		return nil, fmt.Errorf("%w: count=%d", ErrCoefficientCount, genes.Count())
	}
	values := genes.ScaledSigned()
	rows := genes.Count() / CoefficientsPerStage
	c := &Cascade{stages: make([]*Biquad, 0, rows)}
	for row := 0; row < rows; row++ {
		var coeffs [CoefficientsPerStage]float64
		copy(coeffs[:], values[row*CoefficientsPerStage:(row+1)*CoefficientsPerStage])
		stage := &Biquad{}
		stage.SetCoefficients(coeffs)
		c.stages = append(c.stages, stage)
	}
	return c, nil
}

func (c *Cascade) Stages() int {
	return len(c.stages)
}

func (c *Cascade) Process(in float64) float64 {
	out := in
	for _, stage := range c.stages {
		out = stage.Process(out)
	}
	return out
}

func (c *Cascade) Stable() bool {
	for _, stage := range c.stages {
		if !stage.Stable() {
			return false
		}
	}
	return true
}

// ImpulseResponse clears every delay line and returns the first n output
// samples for a unit impulse.
func (c *Cascade) ImpulseResponse(n int) []float64 {
	for _, stage := range c.stages {
		stage.ClearState()
	}
	out := make([]float64, n)
	for i := range out {
		in := 0.0
		if i == 0 {
			in = 1
		}
		out[i] = c.Process(in)
	}
	return out
}

// BiquadScape scores a chromosome encoding a biquad cascade. The score is a
// placeholder heuristic over the scaled coefficients, |1 - sum(0.5 - v)| / count,
// not a filter-quality measure.
type BiquadScape struct{}

func (BiquadScape) Name() string {
	return "biquad"
}

func (BiquadScape) Evaluate(ctx context.Context, genes Genotype) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if genes.Count() == 0 {
		return 0, nil, ErrNoGenes
	}
	cascade, err := NewCascade(genes)
	if err != nil {
		return 0, nil, err
	}

	sum := 0.0
	for _, v := range genes.ScaledSigned() {
		sum += 0.5 - v
	}
	fitness := math.Abs(1-sum) / float64(genes.Count())

	energy := 0.0
	for _, sample := range cascade.ImpulseResponse(impulseSamples) {
		energy += sample * sample
	}
	return Fitness(fitness), Trace{
		"stages":         cascade.Stages(),
		"stable":         cascade.Stable(),
		"impulse_energy": energy,
	}, nil
}
