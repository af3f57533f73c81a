package genotype

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"genebits/internal/bitvec"
)

const (
	DefaultWord                = 16
	DefaultMutationProbability = 0.1

	// mutationScale is the resolution of the mutation chance draw.
	mutationScale = 10000
	maxWord       = 64
)

// ErrContractViolation marks caller errors: bad arguments, mismatched parents,
// out-of-range positions. Operations that return it leave every receiver and
// argument unchanged.
var ErrContractViolation = errors.New("contract violation")

var (
	ErrInvalidConfig      = fmt.Errorf("%w: invalid chromosome config", ErrContractViolation)
	ErrNoPartner          = fmt.Errorf("%w: no coparent presented", ErrContractViolation)
	ErrSelfReproduction   = fmt.Errorf("%w: no self-reproduction", ErrContractViolation)
	ErrIncompatibleLength = fmt.Errorf("%w: incompatible parent/coparent chromosome length", ErrContractViolation)
	ErrEmptyChromosome    = fmt.Errorf("%w: chromosome has no bits", ErrContractViolation)
	ErrRandomSource       = fmt.Errorf("%w: random source is required", ErrContractViolation)
)

type Config struct {
	Word                int
	Count               int
	Randomize           bool
	MutationProbability float64
}

// Chromosome is a bit-string genotype of Count words, Word bits each.
type Chromosome struct {
	word  int
	count int
	bits  int
	mask  uint64

	divisor         float64
	unsignedDivisor float64

	mutationProbability float64
	fitness             float64

	genes *bitvec.Vector
}

// Offspring is the result of a crossover. Point is the bit position the
// parents were cut at; FirstMutation and SecondMutation hold the index flipped
// in each child by reproduction, or -1.
type Offspring struct {
	First          *Chromosome
	Second         *Chromosome
	Point          int
	FirstMutation  int
	SecondMutation int
}

func New(cfg Config, rng *rand.Rand) (*Chromosome, error) {
	if cfg.Word < 1 || cfg.Word > maxWord {
		return nil, fmt.Errorf("%w: word must be in [1, %d], got %d", ErrInvalidConfig, maxWord, cfg.Word)
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("%w: count must be >= 0, got %d", ErrInvalidConfig, cfg.Count)
	}
	p := cfg.MutationProbability
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: mutation probability must be in [0, 1], got %g", ErrInvalidConfig, p)
	}
	if cfg.Randomize && rng == nil {
		return nil, ErrRandomSource
	}

	c := newChromosome(cfg.Word, cfg.Count, p)
	if cfg.Randomize {
		c.fill(rng)
	}
	return c, nil
}

// FromVector wraps a copy of v as a chromosome of word-bit genes.
func FromVector(word int, mutationProbability float64, v *bitvec.Vector) (*Chromosome, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil bit vector", ErrInvalidConfig)
	}
	if word < 1 || word > maxWord || v.Len()%word != 0 {
		return nil, fmt.Errorf("%w: %d bits do not split into %d-bit words", ErrInvalidConfig, v.Len(), word)
	}
	c, err := New(Config{Word: word, Count: v.Len() / word, MutationProbability: mutationProbability}, nil)
	if err != nil {
		return nil, err
	}
	c.genes = v.Clone()
	return c, nil
}

func newChromosome(word, count int, mutationProbability float64) *Chromosome {
	mask := ^uint64(0)
	if word < maxWord {
		mask = 1<<word - 1
	}
	return &Chromosome{
		word:                word,
		count:               count,
		bits:                word * count,
		mask:                mask,
		divisor:             math.Ldexp(1, word-1),
		unsignedDivisor:     math.Ldexp(1, word),
		mutationProbability: mutationProbability,
		genes:               bitvec.New(word * count),
	}
}

func (c *Chromosome) Word() int                    { return c.word }
func (c *Chromosome) Count() int                   { return c.count }
func (c *Chromosome) Bits() int                    { return c.bits }
func (c *Chromosome) Mask() uint64                 { return c.mask }
func (c *Chromosome) Divisor() float64             { return c.divisor }
func (c *Chromosome) UnsignedDivisor() float64     { return c.unsignedDivisor }
func (c *Chromosome) MutationProbability() float64 { return c.mutationProbability }
func (c *Chromosome) Fitness() float64             { return c.fitness }

func (c *Chromosome) SetFitness(fitness float64) {
	c.fitness = fitness
}

// SetDivisor overrides the signed scaling divisor.
func (c *Chromosome) SetDivisor(divisor float64) error {
	if divisor == 0 || math.IsNaN(divisor) || math.IsInf(divisor, 0) {
		return fmt.Errorf("%w: divisor must be finite and non-zero, got %g", ErrContractViolation, divisor)
	}
	c.divisor = divisor
	return nil
}

// Genes returns a copy of the bit buffer.
func (c *Chromosome) Genes() *bitvec.Vector {
	return c.genes.Clone()
}

// Clone returns an independent copy, fitness included.
func (c *Chromosome) Clone() *Chromosome {
	out := *c
	out.genes = c.genes.Clone()
	return &out
}

// RandomFill overwrites every bit with an independent fair coin flip.
func (c *Chromosome) RandomFill(rng *rand.Rand) error {
	if rng == nil {
		return ErrRandomSource
	}
	c.fill(rng)
	return nil
}

func (c *Chromosome) fill(rng *rand.Rand) {
	for i := 0; i < c.bits; i++ {
		_ = c.genes.Set(i, rng.Intn(2) == 1)
	}
}

// RandomWord returns a uniform value in [0, Mask()].
func (c *Chromosome) RandomWord(rng *rand.Rand) uint64 {
	return rng.Uint64() & c.mask
}

func (c *Chromosome) Signed() []int64 {
	values, err := c.genes.Signed(c.word)
	if err != nil {
		panic(fmt.Sprintf("genotype: broken chromosome invariant: %v", err))
	}
	return values
}

func (c *Chromosome) Unsigned() []uint64 {
	values, err := c.genes.Unsigned(c.word)
	if err != nil {
		panic(fmt.Sprintf("genotype: broken chromosome invariant: %v", err))
	}
	return values
}

// ScaledSigned returns Signed() divided by Divisor(), roughly [-1, 1) with the
// default divisor.
func (c *Chromosome) ScaledSigned() []float64 {
	values := c.Signed()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v) / c.divisor
	}
	return out
}

// ScaledUnsigned returns Unsigned() divided by UnsignedDivisor(), in [0, 1).
func (c *Chromosome) ScaledUnsigned() []float64 {
	values := c.Unsigned()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v) / c.unsignedDivisor
	}
	return out
}

func (c *Chromosome) Scale(value float64) float64 {
	return value / c.divisor
}

// Chop copies the bits before and from position at. The chromosome is unchanged.
func (c *Chromosome) Chop(at int) (*bitvec.Vector, *bitvec.Vector, error) {
	if at < 0 || at > c.bits {
		return nil, nil, fmt.Errorf("%w: chop position %d not in [0, %d]", ErrContractViolation, at, c.bits)
	}
	head, err := c.genes.Slice(0, at)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	tail, err := c.genes.Slice(at, c.bits)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return head, tail, nil
}

// Splice replaces the bit buffer with mostSignificant followed by
// leastSignificant. The joined length must equal Bits().
func (c *Chromosome) Splice(mostSignificant, leastSignificant *bitvec.Vector) error {
	joined := bitvec.Concat(mostSignificant, leastSignificant)
	if joined.Len() != c.bits {
		return fmt.Errorf("%w: spliced %d bits into a %d-bit chromosome", ErrIncompatibleLength, joined.Len(), c.bits)
	}
	c.genes = joined
	return nil
}

// Crossover cuts both parents at (at mod Bits()) and swaps tails. A zero cut
// point is redrawn from [0, Bits()] until non-zero, so a cut at Bits() (children
// equal to their parents) is possible but a cut at 0 is not.
func (c *Chromosome) Crossover(rng *rand.Rand, coparent *Chromosome, at int) (Offspring, error) {
	if rng == nil {
		return Offspring{}, ErrRandomSource
	}
	if coparent == nil {
		return Offspring{}, ErrNoPartner
	}
	if c.bits != coparent.bits {
		return Offspring{}, fmt.Errorf("%w: %d != %d", ErrIncompatibleLength, c.bits, coparent.bits)
	}
	if c.bits == 0 {
		return Offspring{}, ErrEmptyChromosome
	}

	point := at % c.bits
	if point < 0 {
		point += c.bits
	}
	for point == 0 {
		point = rng.Intn(c.bits + 1)
	}

	coHead, coTail, err := coparent.Chop(point)
	if err != nil {
		return Offspring{}, err
	}
	head, tail, err := c.Chop(point)
	if err != nil {
		return Offspring{}, err
	}

	first := c.child()
	second := c.child()
	if err := first.Splice(head, coTail); err != nil {
		return Offspring{}, err
	}
	if err := second.Splice(coHead, tail); err != nil {
		return Offspring{}, err
	}
	return Offspring{First: first, Second: second, Point: point, FirstMutation: -1, SecondMutation: -1}, nil
}

// child returns an empty chromosome shaped like c, carrying its divisor and
// mutation probability.
func (c *Chromosome) child() *Chromosome {
	out := newChromosome(c.word, c.count, c.mutationProbability)
	out.divisor = c.divisor
	return out
}

// Mutate flips at most one uniformly chosen bit with probability
// MutationProbability() and returns its index, or -1 when nothing flipped.
func (c *Chromosome) Mutate(rng *rand.Rand) (int, error) {
	if rng == nil {
		return -1, ErrRandomSource
	}
	if c.bits == 0 {
		return -1, nil
	}
	threshold := int(math.Floor(mutationScale * c.mutationProbability))
	if rng.Intn(mutationScale)+1 > threshold {
		return -1, nil
	}
	target := rng.Intn(c.bits)
	if err := c.genes.Invert(target); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	return target, nil
}

// ReproduceWith crosses c with partner at a random point and mutates each child.
func (c *Chromosome) ReproduceWith(rng *rand.Rand, partner *Chromosome) (Offspring, error) {
	if partner == nil {
		return Offspring{}, ErrNoPartner
	}
	if partner == c {
		return Offspring{}, ErrSelfReproduction
	}
	if c.bits != partner.bits {
		return Offspring{}, fmt.Errorf("%w: %d != %d", ErrIncompatibleLength, c.bits, partner.bits)
	}

	offspring, err := c.Crossover(rng, partner, 0)
	if err != nil {
		return Offspring{}, err
	}
	if offspring.FirstMutation, err = offspring.First.Mutate(rng); err != nil {
		return Offspring{}, err
	}
	if offspring.SecondMutation, err = offspring.Second.Mutate(rng); err != nil {
		return Offspring{}, err
	}
	return offspring, nil
}
