package scape

import (
	"context"
	"errors"
)

type Fitness float64

type Trace map[string]any

var ErrNoGenes = errors.New("genotype has no words to score")

// Genotype is the read-only view of a chromosome a scape scores.
type Genotype interface {
	Count() int
	ScaledSigned() []float64
	ScaledUnsigned() []float64
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, genes Genotype) (Fitness, Trace, error)
}
