package security

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// DefaultReferencePrefix prefixes references when the caller passes none.
const DefaultReferencePrefix = "DS"

const (
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomTokenSize = 9
)

// ReferenceGenerator builds transaction references of the form
// <prefix>_<unix millis>_<hash>. Uniqueness is probabilistic only.
type ReferenceGenerator struct {
	now   func() time.Time
	token func() string
}

// NewReferenceGenerator creates a generator using the wall clock.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		now:   time.Now,
		token: randomToken,
	}
}

// WithClock returns a copy of g that reads time from now.
func (g *ReferenceGenerator) WithClock(now func() time.Time) *ReferenceGenerator {
	clone := *g
	clone.now = now
	return &clone
}

// Generate returns a fresh reference.
func (g *ReferenceGenerator) Generate(prefix string) string {
	if prefix == "" {
		prefix = DefaultReferencePrefix
	}

	ts := g.now().UnixMilli()
	hash := simpleHash(fmt.Sprintf("%d%s", ts, g.token()))

	return fmt.Sprintf("%s_%d_%s", prefix, ts, hash)
}

var defaultGenerator = NewReferenceGenerator()

// GenerateReference returns a fresh reference from the package generator.
func GenerateReference(prefix string) string {
	return defaultGenerator.Generate(prefix)
}

// simpleHash folds s into a 32-bit rolling hash (h*31 + c) rendered in base 36.
// Not cryptographic.
func simpleHash(s string) string {
	var h int32
	for _, c := range s {
		h = (h << 5) - h + int32(c)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return strconv.FormatInt(abs, 36)
}

func randomToken() string {
	var b strings.Builder
	b.Grow(randomTokenSize)
	for i := 0; i < randomTokenSize; i++ {
		b.WriteByte(base36Alphabet[rand.IntN(len(base36Alphabet))])
	}
	return b.String()
}
