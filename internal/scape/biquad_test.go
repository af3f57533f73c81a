package scape

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genebits/internal/genotype"
)

type stubGenes struct {
	signed   []float64
	unsigned []float64
}

func (s stubGenes) Count() int                { return len(s.signed) }
func (s stubGenes) ScaledSigned() []float64   { return s.signed }
func (s stubGenes) ScaledUnsigned() []float64 { return s.unsigned }

func TestBiquadProcessTransposedDirectFormII(t *testing.T) {
	var b Biquad
	b.SetCoefficients([CoefficientsPerStage]float64{0.5, 0.25, 0.125, -0.5, 0.25})
	assert.Equal(t, [CoefficientsPerStage]float64{0.5, 0.25, 0.125, -0.5, 0.25}, b.Coefficients())

	y0 := b.Process(1)
	assert.InDelta(t, 0.5, y0, 1e-12)
	// z1 = 0.25 + 0 - (-0.5*0.5) = 0.5, z2 = 0.125 - 0.25*0.5 = 0
	y1 := b.Process(0)
	assert.InDelta(t, 0.5, y1, 1e-12)
	// z1 = 0 + 0 - (-0.5*0.5) = 0.25, z2 = -0.25*0.5 = -0.125
	y2 := b.Process(0)
	assert.InDelta(t, 0.25, y2, 1e-12)

	b.ClearState()
	assert.InDelta(t, 0.5, b.Process(1), 1e-12, "cleared state restarts the response")

	b.Reset()
	assert.Equal(t, [CoefficientsPerStage]float64{}, b.Coefficients())
	assert.Equal(t, 0.0, b.Process(1))
}

func TestBiquadStability(t *testing.T) {
	var b Biquad
	b.SetCoefficients([CoefficientsPerStage]float64{1, 0, 0, -0.5, 0.25})
	assert.True(t, b.Stable())
	b.SetCoefficients([CoefficientsPerStage]float64{1, 0, 0, 0, -1})
	assert.False(t, b.Stable())
}

func TestNewCascadeSplitsStages(t *testing.T) {
	genes := stubGenes{signed: []float64{1, 0, 0, 0, 0, 0.5, 0, 0, 0, 0}}
	cascade, err := NewCascade(genes)
	require.NoError(t, err)
	require.Equal(t, 2, cascade.Stages())

	response := cascade.ImpulseResponse(4)
	assert.InDelta(t, 0.5, response[0], 1e-12)
	assert.InDelta(t, 0.0, response[1], 1e-12)

	again := cascade.ImpulseResponse(4)
	assert.Equal(t, response, again, "impulse response must start from a clear state")

	_, err = NewCascade(stubGenes{signed: []float64{1, 2, 3}})
	assert.ErrorIs(t, err, ErrCoefficientCount)
}

func TestBiquadScapePlaceholderScore(t *testing.T) {
	genes := stubGenes{signed: []float64{0.5, 0.5, 0.5, 0.5, 0.5}}
	fitness, trace, err := BiquadScape{}.Evaluate(context.Background(), genes)
	require.NoError(t, err)
	// sum(0.5 - v) = 0, so |1 - 0| / 5
	assert.InDelta(t, 0.2, float64(fitness), 1e-12)
	assert.Equal(t, 1, trace["stages"])

	genes = stubGenes{signed: []float64{0, -1, 0.25, 0, 0}}
	fitness, _, err = BiquadScape{}.Evaluate(context.Background(), genes)
	require.NoError(t, err)
	assert.InDelta(t, math.Abs(1-(0.5+1.5+0.25+0.5+0.5))/5, float64(fitness), 1e-12)
}

func TestBiquadScapeRejectsBadShapes(t *testing.T) {
	_, _, err := BiquadScape{}.Evaluate(context.Background(), stubGenes{})
	assert.ErrorIs(t, err, ErrNoGenes)
	_, _, err = BiquadScape{}.Evaluate(context.Background(), stubGenes{signed: []float64{1, 2}})
	assert.ErrorIs(t, err, ErrCoefficientCount)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = BiquadScape{}.Evaluate(ctx, stubGenes{signed: make([]float64, 5)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBiquadScapeScoresChromosome(t *testing.T) {
	c, err := genotype.New(genotype.Config{Word: 16, Count: 10, Randomize: true, MutationProbability: 0.1}, rand.New(rand.NewSource(4)))
	require.NoError(t, err)

	fitness, trace, err := BiquadScape{}.Evaluate(context.Background(), c)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, float64(fitness), 0.0)
	assert.Equal(t, 2, trace["stages"])
}
