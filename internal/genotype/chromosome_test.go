package genotype

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"genebits/internal/bitvec"
)

func mustChromosome(t *testing.T, rng *rand.Rand, word, count int, p float64) *Chromosome {
	t.Helper()
	c, err := New(Config{Word: word, Count: count, Randomize: rng != nil, MutationProbability: p}, rng)
	if err != nil {
		t.Fatalf("new chromosome: %v", err)
	}
	return c
}

func mustVector(t *testing.T, s string) *bitvec.Vector {
	t.Helper()
	v, err := bitvec.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestNewDerivedConstants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ word, count int }{{1, 0}, {4, 3}, {16, 10}, {32, 10}, {64, 2}} {
		c := mustChromosome(t, rng, tc.word, tc.count, 0.1)
		if c.Bits() != tc.word*tc.count || c.Genes().Len() != tc.word*tc.count {
			t.Fatalf("word=%d count=%d: bits=%d len=%d", tc.word, tc.count, c.Bits(), c.Genes().Len())
		}
		if c.Divisor() != math.Ldexp(1, tc.word-1) || c.UnsignedDivisor() != math.Ldexp(1, tc.word) {
			t.Fatalf("word=%d: divisor=%g unsigned=%g", tc.word, c.Divisor(), c.UnsignedDivisor())
		}
		if c.Fitness() != 0 {
			t.Fatalf("expected zero initial fitness, got %g", c.Fitness())
		}
	}

	c := mustChromosome(t, nil, 4, 1, 0)
	if c.Mask() != 0xf {
		t.Fatalf("unexpected 4-bit mask %b", c.Mask())
	}
	if mustChromosome(t, nil, 64, 1, 0).Mask() != math.MaxUint64 {
		t.Fatal("expected full 64-bit mask")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{Word: 0, Count: 1},
		{Word: 65, Count: 1},
		{Word: 8, Count: -1},
		{Word: 8, Count: 1, MutationProbability: 1.5},
		{Word: 8, Count: 1, MutationProbability: math.NaN()},
	}
	for _, cfg := range cases {
		if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %+v: expected invalid config, got %v", cfg, err)
		}
	}
	if _, err := New(Config{Word: 8, Count: 1, Randomize: true}, nil); !errors.Is(err, ErrRandomSource) {
		t.Fatalf("expected random source error, got %v", err)
	}
}

func TestRandomFillIsBitLevelAndSeeded(t *testing.T) {
	a := mustChromosome(t, rand.New(rand.NewSource(7)), 32, 8, 0.1)
	b := mustChromosome(t, rand.New(rand.NewSource(7)), 32, 8, 0.1)
	if !a.Genes().Equal(b.Genes()) {
		t.Fatal("expected equal seeds to produce equal chromosomes")
	}

	big := mustChromosome(t, rand.New(rand.NewSource(3)), 16, 256, 0)
	ones, err := bitvec.Distance(big.Genes(), bitvec.New(big.Bits()))
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	ratio := float64(ones) / float64(big.Bits())
	if ratio < 0.45 || ratio > 0.55 {
		t.Fatalf("expected roughly half the bits set, got %.3f", ratio)
	}
}

func TestDecodeAndScale(t *testing.T) {
	c, err := FromVector(4, 0, mustVector(t, "0001"+"1111"+"1000"+"0111"))
	if err != nil {
		t.Fatalf("from vector: %v", err)
	}

	signed := c.Signed()
	wantSigned := []int64{1, -1, -8, 7}
	unsigned := c.Unsigned()
	wantUnsigned := []uint64{1, 15, 8, 7}
	for i := range wantSigned {
		if signed[i] != wantSigned[i] || unsigned[i] != wantUnsigned[i] {
			t.Fatalf("word %d: signed=%d unsigned=%d", i, signed[i], unsigned[i])
		}
	}

	scaled := c.ScaledSigned()
	for i, v := range signed {
		if math.Abs(scaled[i]-float64(v)/c.Divisor()) > 1e-12 {
			t.Fatalf("word %d: scaled %g != %d/%g", i, scaled[i], v, c.Divisor())
		}
		if math.Abs(c.Scale(float64(v))-scaled[i]) > 1e-12 {
			t.Fatalf("word %d: Scale disagrees with ScaledSigned", i)
		}
		if scaled[i] < -1 || scaled[i] >= 1 {
			t.Fatalf("word %d: scaled signed %g outside [-1, 1)", i, scaled[i])
		}
	}
	if got := c.ScaledUnsigned(); got[1] != 15.0/16.0 || got[0] != 1.0/16.0 {
		t.Fatalf("unexpected scaled unsigned values: %v", got)
	}
}

func TestScaledSignedTracksDivisorOverride(t *testing.T) {
	c := mustChromosome(t, rand.New(rand.NewSource(5)), 12, 6, 0)
	if err := c.SetDivisor(100); err != nil {
		t.Fatalf("set divisor: %v", err)
	}
	scaled := c.ScaledSigned()
	for i, v := range c.Signed() {
		if math.Abs(scaled[i]-float64(v)/100) > 1e-12 {
			t.Fatalf("word %d: %g != %d/100", i, scaled[i], v)
		}
	}
	if err := c.SetDivisor(0); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected contract violation for zero divisor, got %v", err)
	}
	if c.Divisor() != 100 {
		t.Fatalf("rejected divisor must not be applied, got %g", c.Divisor())
	}
	if c.UnsignedDivisor() != 4096 {
		t.Fatalf("unsigned divisor must not follow SetDivisor, got %g", c.UnsignedDivisor())
	}
}

func TestChopSpliceRoundTrip(t *testing.T) {
	c := mustChromosome(t, rand.New(rand.NewSource(11)), 8, 5, 0)
	original := c.Genes()
	for p := 0; p <= c.Bits(); p++ {
		head, tail, err := c.Chop(p)
		if err != nil {
			t.Fatalf("chop %d: %v", p, err)
		}
		if head.Len() != p || tail.Len() != c.Bits()-p {
			t.Fatalf("chop %d: lengths %d/%d", p, head.Len(), tail.Len())
		}
		if !c.Genes().Equal(original) {
			t.Fatalf("chop %d mutated the chromosome", p)
		}
		if err := c.Splice(head, tail); err != nil {
			t.Fatalf("splice %d: %v", p, err)
		}
		if !c.Genes().Equal(original) {
			t.Fatalf("splice(chop(%d)) did not reconstruct the original", p)
		}
	}

	if _, _, err := c.Chop(-1); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if _, _, err := c.Chop(c.Bits() + 1); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

func TestSpliceRejectsWrongLength(t *testing.T) {
	c, err := FromVector(4, 0, mustVector(t, "10101100"))
	if err != nil {
		t.Fatalf("from vector: %v", err)
	}
	err = c.Splice(mustVector(t, "111"), mustVector(t, "0"))
	if !errors.Is(err, ErrIncompatibleLength) {
		t.Fatalf("expected incompatible length, got %v", err)
	}
	if c.Genes().String() != "10101100" {
		t.Fatalf("failed splice mutated the chromosome: %s", c.Genes())
	}
}

func TestCrossoverExplicitPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, _ := FromVector(4, 0, mustVector(t, "00000000"))
	b, _ := FromVector(4, 0, mustVector(t, "11111111"))

	out, err := a.Crossover(rng, b, 11)
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	if out.Point != 3 {
		t.Fatalf("expected point 11 mod 8 = 3, got %d", out.Point)
	}
	if out.First.Genes().String() != "00011111" || out.Second.Genes().String() != "11100000" {
		t.Fatalf("unexpected children %s %s", out.First.Genes(), out.Second.Genes())
	}
	if a.Genes().String() != "00000000" || b.Genes().String() != "11111111" {
		t.Fatal("crossover mutated a parent")
	}

	neg, err := a.Crossover(rng, b, -3)
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	if neg.Point != 5 {
		t.Fatalf("expected negative offset to wrap to 5, got %d", neg.Point)
	}
}

func TestCrossoverChildrenShareBoundary(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	a := mustChromosome(t, rng, 16, 4, 0.2)
	b := mustChromosome(t, rng, 16, 4, 0.2)
	seenFull := false

	for i := 0; i < 2000; i++ {
		out, err := a.Crossover(rng, b, 0)
		if err != nil {
			t.Fatalf("crossover: %v", err)
		}
		if out.Point <= 0 || out.Point > a.Bits() {
			t.Fatalf("crossover point %d not in (0, %d]", out.Point, a.Bits())
		}
		if out.Point == a.Bits() {
			seenFull = true
		}
		if out.First.Bits()+out.Second.Bits() != 2*a.Bits() {
			t.Fatalf("children carry %d bits, want %d", out.First.Bits()+out.Second.Bits(), 2*a.Bits())
		}

		aHead, aTail, _ := a.Chop(out.Point)
		bHead, bTail, _ := b.Chop(out.Point)
		if !out.First.Genes().Equal(bitvec.Concat(aHead, bTail)) {
			t.Fatalf("first child does not match split at %d", out.Point)
		}
		if !out.Second.Genes().Equal(bitvec.Concat(bHead, aTail)) {
			t.Fatalf("second child does not match split at %d", out.Point)
		}
		if out.First.Word() != a.Word() || out.First.Count() != a.Count() || out.First.MutationProbability() != 0.2 {
			t.Fatalf("child shape differs from parent: %s", out.First)
		}
	}
	if !seenFull {
		t.Fatal("expected a cut at the full length to be reachable")
	}
}

func TestCrossoverContract(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := mustChromosome(t, rng, 8, 2, 0)
	short := mustChromosome(t, rng, 8, 1, 0)
	empty := mustChromosome(t, nil, 8, 0, 0)

	if _, err := a.Crossover(rng, nil, 0); !errors.Is(err, ErrNoPartner) {
		t.Fatalf("expected no partner, got %v", err)
	}
	if _, err := a.Crossover(rng, short, 0); !errors.Is(err, ErrIncompatibleLength) {
		t.Fatalf("expected incompatible length, got %v", err)
	}
	if _, err := empty.Crossover(rng, mustChromosome(t, nil, 8, 0, 0), 0); !errors.Is(err, ErrEmptyChromosome) {
		t.Fatalf("expected empty chromosome, got %v", err)
	}
	if _, err := a.Crossover(nil, short, 0); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

func TestMutateAlwaysFlipsExactlyOneBit(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	c := mustChromosome(t, rng, 8, 3, 1.0)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		before := c.Genes()
		idx, err := c.Mutate(rng)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		if idx < 0 || idx >= c.Bits() {
			t.Fatalf("flip index %d not in [0, %d)", idx, c.Bits())
		}
		seen[idx] = true
		d, _ := bitvec.Distance(before, c.Genes())
		if d != 1 {
			t.Fatalf("expected exactly one flipped bit, got %d", d)
		}
	}
	if len(seen) != c.Bits() {
		t.Fatalf("expected every bit to be reachable, saw %d of %d", len(seen), c.Bits())
	}
}

func TestMutateNeverFlipsAtZeroProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	c := mustChromosome(t, rng, 8, 3, 0)
	before := c.Genes()
	for i := 0; i < 20000; i++ {
		idx, err := c.Mutate(rng)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		if idx != -1 {
			t.Fatalf("unexpected flip at %d", idx)
		}
	}
	if !c.Genes().Equal(before) {
		t.Fatal("zero-probability mutation changed the chromosome")
	}
}

func TestMutateRateApproximatesProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	c := mustChromosome(t, rng, 8, 4, 0.25)
	flips := 0
	const trials = 20000
	for i := 0; i < trials; i++ {
		if idx, _ := c.Mutate(rng); idx >= 0 {
			flips++
		}
	}
	rate := float64(flips) / trials
	if rate < 0.23 || rate > 0.27 {
		t.Fatalf("expected mutation rate near 0.25, got %.4f", rate)
	}
}

func TestReproduceWith(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	a := mustChromosome(t, rng, 16, 5, 1.0)
	b := mustChromosome(t, rng, 16, 5, 1.0)
	aGenes, bGenes := a.Genes(), b.Genes()

	out, err := a.ReproduceWith(rng, b)
	if err != nil {
		t.Fatalf("reproduce: %v", err)
	}
	if out.First == nil || out.Second == nil {
		t.Fatal("expected two children")
	}
	if out.FirstMutation < 0 || out.SecondMutation < 0 {
		t.Fatalf("expected both children mutated at p=1, got %d %d", out.FirstMutation, out.SecondMutation)
	}
	if !a.Genes().Equal(aGenes) || !b.Genes().Equal(bGenes) {
		t.Fatal("reproduction mutated a parent")
	}

	aHead, aTail, _ := a.Chop(out.Point)
	bHead, bTail, _ := b.Chop(out.Point)
	d1, _ := bitvec.Distance(out.First.Genes(), bitvec.Concat(aHead, bTail))
	d2, _ := bitvec.Distance(out.Second.Genes(), bitvec.Concat(bHead, aTail))
	if d1 != 1 || d2 != 1 {
		t.Fatalf("expected each child one flip away from its crossover, got %d %d", d1, d2)
	}
}

func TestMutateIndexIsUniformOverBits(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	c := mustChromosome(t, rng, 4, 2, 1.0)
	const mutations = 40000
	hits := make([]int, c.Bits())
	for i := 0; i < mutations; i++ {
		idx, err := c.Mutate(rng)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		hits[idx]++
	}
	want := mutations / c.Bits()
	for bit, n := range hits {
		if n < want*9/10 || n > want*11/10 {
			t.Fatalf("bit %d flipped %d times, want about %d: %v", bit, n, want, hits)
		}
	}
}

func TestReproduceWithChildrenInheritParentSettings(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	a := mustChromosome(t, rng, 8, 4, 0.35)
	b := mustChromosome(t, rng, 8, 4, 0.8)
	if err := a.SetDivisor(100); err != nil {
		t.Fatalf("set divisor: %v", err)
	}

	out, err := a.ReproduceWith(rng, b)
	if err != nil {
		t.Fatalf("reproduce: %v", err)
	}
	for _, child := range []*Chromosome{out.First, out.Second} {
		if child.MutationProbability() != 0.35 {
			t.Fatalf("expected inherited mutation probability 0.35, got %g", child.MutationProbability())
		}
		if child.Divisor() != 100 {
			t.Fatalf("expected inherited divisor 100, got %g", child.Divisor())
		}
	}
}

func TestReproduceWithContract(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	a := mustChromosome(t, rng, 8, 2, 0.5)
	before := a.Genes()

	if _, err := a.ReproduceWith(rng, a); !errors.Is(err, ErrSelfReproduction) {
		t.Fatalf("expected self-reproduction error, got %v", err)
	}
	twin := a.Clone()
	if _, err := a.ReproduceWith(rng, twin); err != nil {
		t.Fatalf("an equal but distinct partner is allowed: %v", err)
	}
	if _, err := a.ReproduceWith(rng, mustChromosome(t, rng, 8, 3, 0.5)); !errors.Is(err, ErrIncompatibleLength) {
		t.Fatalf("expected incompatible length, got %v", err)
	}
	if _, err := a.ReproduceWith(rng, nil); !errors.Is(err, ErrNoPartner) {
		t.Fatalf("expected no partner, got %v", err)
	}
	if !errors.Is(ErrSelfReproduction, ErrContractViolation) {
		t.Fatal("self-reproduction must be a contract violation")
	}
	if !a.Genes().Equal(before) {
		t.Fatal("rejected reproduction mutated the parent")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	a := mustChromosome(t, rng, 8, 2, 1.0)
	a.SetFitness(0.75)
	b := a.Clone()
	if b.Fitness() != 0.75 || !b.Genes().Equal(a.Genes()) {
		t.Fatal("clone lost state")
	}
	if _, err := b.Mutate(rng); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if b.Genes().Equal(a.Genes()) {
		t.Fatal("mutating a clone changed the original")
	}
}

func TestRandomWordWithinMask(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	c := mustChromosome(t, nil, 5, 1, 0)
	for i := 0; i < 1000; i++ {
		if w := c.RandomWord(rng); w > c.Mask() {
			t.Fatalf("random word %d exceeds mask %d", w, c.Mask())
		}
	}
}
