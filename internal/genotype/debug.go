package genotype

import (
	"fmt"
	"strconv"
	"strings"
)

// Format returns a human-readable multiline dump of the chromosome: its shape,
// scaling constants, fitness and one line per word in binary, hex, signed
// integer and scaled form.
func Format(c *Chromosome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "word: %d\n", c.word)
	fmt.Fprintf(&b, "count: %d\n", c.count)
	fmt.Fprintf(&b, "bits: %d\n", c.bits)
	fmt.Fprintf(&b, "mask: 0b%s\n", strconv.FormatUint(c.mask, 2))
	fmt.Fprintf(&b, "divisor: %g\n", c.divisor)
	fmt.Fprintf(&b, "mutation_probability: %g\n", c.mutationProbability)
	fmt.Fprintf(&b, "fitness: %g\n", c.fitness)
	fmt.Fprintf(&b, "words: %d\n", c.count)

	unsigned := c.Unsigned()
	hexDigits := (c.word + 3) / 4
	for i, value := range c.Signed() {
		fmt.Fprintf(&b, "  %0*b  %0*x  %d  %g\n",
			c.word, unsigned[i],
			hexDigits, unsigned[i],
			value,
			c.Scale(float64(value)),
		)
	}
	return b.String()
}

func (c *Chromosome) String() string {
	return fmt.Sprintf("chromosome word=%d count=%d fitness=%g genes=%s", c.word, c.count, c.fitness, c.genes)
}
