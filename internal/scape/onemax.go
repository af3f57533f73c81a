package scape

import "context"

// OneMaxScape rewards large unsigned genes: fitness is the mean scaled
// unsigned value, in [0, 1).
type OneMaxScape struct{}

func (OneMaxScape) Name() string {
	return "onemax"
}

func (OneMaxScape) Evaluate(ctx context.Context, genes Genotype) (Fitness, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if genes.Count() == 0 {
		return 0, nil, ErrNoGenes
	}
	total := 0.0
	best := 0.0
	for _, v := range genes.ScaledUnsigned() {
		total += v
		if v > best {
			best = v
		}
	}
	return Fitness(total / float64(genes.Count())), Trace{"best_gene": best}, nil
}
