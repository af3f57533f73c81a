package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const (
	// wheelSlots is the number of slots the total fitness is spread over.
	wheelSlots = 1000
	// rollRange bounds the raw draw used by the transposition shuffle.
	rollRange = 65536
)

var (
	ErrDegenerateFitness = errors.New("degenerate population fitness")
	ErrEmptyWheel        = errors.New("roulette wheel has no selectable entries")
	ErrNoDistinctPair    = errors.New("roulette wheel cannot yield two distinct parents")
)

// Scored is anything carrying a fitness value.
type Scored interface {
	Fitness() float64
}

type ShuffleMode string

const (
	// ShuffleTranspose applies len(wheel) random pairwise swaps.
	ShuffleTranspose ShuffleMode = "transpose"
	// ShuffleFisherYates applies an unbiased permutation.
	ShuffleFisherYates ShuffleMode = "fisher_yates"
)

func ParseShuffleMode(name string) (ShuffleMode, error) {
	switch ShuffleMode(name) {
	case "", ShuffleTranspose:
		return ShuffleTranspose, nil
	case ShuffleFisherYates:
		return ShuffleFisherYates, nil
	default:
		return "", fmt.Errorf("unsupported wheel shuffle: %s", name)
	}
}

// RouletteWheel selects population indices with probability proportional to
// fitness share. Each entity gets floor(1000*fitness/total) slots; entities
// whose share rounds to zero can never be drawn.
type RouletteWheel struct {
	wheel      []int
	population int
	distinct   int
}

func NewRouletteWheel[T Scored](rng *rand.Rand, population []T, mode ShuffleMode) (*RouletteWheel, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("%w: empty population", ErrDegenerateFitness)
	}

	total, maxFitness := 0.0, 0.0
	for i, item := range population {
		f := item.Fitness()
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, fmt.Errorf("%w: fitness %g at index %d", ErrDegenerateFitness, f, i)
		}
		total += f
		maxFitness = math.Max(maxFitness, f)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: total fitness is zero", ErrDegenerateFitness)
	}
	// Near the float64 limit the sum or the slot product overflows; shares
	// are then taken over fitness relative to the largest value.
	scale := 1.0
	if math.IsInf(total, 1) || math.IsInf(wheelSlots*maxFitness, 1) {
		scale = maxFitness
		total = 0
		for _, item := range population {
			total += item.Fitness() / scale
		}
	}

	w := &RouletteWheel{population: len(population)}
	for i, item := range population {
		share := int(math.Floor(wheelSlots * (item.Fitness() / scale) / total))
		if share > 0 {
			w.distinct++
		}
		for j := 0; j < share; j++ {
			w.wheel = append(w.wheel, i)
		}
	}
	if len(w.wheel) == 0 {
		return nil, fmt.Errorf("%w: %d entities all rounded to zero share", ErrEmptyWheel, len(population))
	}

	switch mode {
	case "", ShuffleTranspose:
		w.transpose(rng)
	case ShuffleFisherYates:
		rng.Shuffle(len(w.wheel), func(i, j int) {
			w.wheel[i], w.wheel[j] = w.wheel[j], w.wheel[i]
		})
	default:
		return nil, fmt.Errorf("unsupported wheel shuffle: %s", mode)
	}
	return w, nil
}

func (w *RouletteWheel) transpose(rng *rand.Rand) {
	n := len(w.wheel)
	if n <= 2 {
		return
	}
	roll := func() int {
		return rng.Intn(rollRange) % n
	}
	for i := 0; i < n; i++ {
		first := roll()
		second := first
		for second == first {
			second = roll()
		}
		w.wheel[first], w.wheel[second] = w.wheel[second], w.wheel[first]
	}
}

// Draw returns the population index stored at a uniformly random slot. Only a
// wheel built by NewRouletteWheel has slots; the zero value reports
// ErrEmptyWheel.
func (w *RouletteWheel) Draw(rng *rand.Rand) (int, error) {
	if len(w.wheel) == 0 {
		return 0, ErrEmptyWheel
	}
	return w.wheel[rng.Intn(len(w.wheel))], nil
}

// DrawPair draws two different population indices.
func (w *RouletteWheel) DrawPair(rng *rand.Rand) (int, int, error) {
	if w.distinct < 2 {
		return 0, 0, fmt.Errorf("%w: %d selectable entities", ErrNoDistinctPair, w.distinct)
	}
	first, err := w.Draw(rng)
	if err != nil {
		return 0, 0, err
	}
	second := first
	for second == first {
		if second, err = w.Draw(rng); err != nil {
			return 0, 0, err
		}
	}
	return first, second, nil
}

func (w *RouletteWheel) Len() int {
	return len(w.wheel)
}

// Selectable reports how many population entries own at least one slot.
func (w *RouletteWheel) Selectable() int {
	return w.distinct
}

// Entries returns a copy of the wheel in its shuffled order.
func (w *RouletteWheel) Entries() []int {
	return append([]int(nil), w.wheel...)
}

// Counts returns the number of slots owned by each population index.
func (w *RouletteWheel) Counts() []int {
	counts := make([]int, w.population)
	for _, idx := range w.wheel {
		counts[idx]++
	}
	return counts
}
