package order

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
)

// maxNumberAttempts bounds the randomized generator's collision retry
// loop. Exhausting it means the id space is pathologically saturated or
// the randomness source is broken; operators should be alerted.
const maxNumberAttempts = 5

// ErrNumberSpaceExhausted is returned when no unique order number could
// be generated within the attempt bound. It is fatal, not retryable.
var ErrNumberSpaceExhausted = errors.New("order number space exhausted")

// NumberGenerator produces globally unique human-readable order numbers
// of the form ORD-YYYYMMDD-<12 digits>.
type NumberGenerator interface {
	Next(ctx context.Context) (string, error)
}

// SequenceFunc returns the next value of the global monotonic counter.
type SequenceFunc func(ctx context.Context) (int64, error)

// SequenceNumbers derives order numbers from a single monotonic
// sequence shared by all sellers. The number format carries no seller
// discriminator, so only a global counter keeps numbers collision free.
// This is the primary generator.
type SequenceNumbers struct {
	next SequenceFunc
	now  func() time.Time
}

// NewSequenceNumbers creates a SequenceNumbers generator.
func NewSequenceNumbers(next SequenceFunc) *SequenceNumbers {
	return &SequenceNumbers{next: next, now: time.Now}
}

// Next returns ORD-YYYYMMDD-<12-digit sequence value>.
func (g *SequenceNumbers) Next(ctx context.Context) (string, error) {
	seq, err := g.next(ctx)
	if err != nil {
		return "", errors.Wrap(err, "next order sequence")
	}
	return fmt.Sprintf("ORD-%s-%012d", g.now().UTC().Format("20060102"), seq), nil
}

// ExistsFunc reports whether an order number is already taken.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// RandomNumbers builds candidates from an 8-digit time component plus 4
// random digits and checks them for uniqueness, retrying up to
// maxNumberAttempts. Kept as a defensive fallback for deployments
// without the sequence table.
type RandomNumbers struct {
	exists ExistsFunc
	now    func() time.Time
	randN  func(n int) int
}

// NewRandomNumbers creates a RandomNumbers generator.
func NewRandomNumbers(exists ExistsFunc) *RandomNumbers {
	return &RandomNumbers{
		exists: exists,
		now:    time.Now,
		randN:  rand.IntN,
	}
}

// Next returns a fresh unique order number or ErrNumberSpaceExhausted
// after maxNumberAttempts collisions.
func (g *RandomNumbers) Next(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		now := g.now().UTC()
		candidate := fmt.Sprintf("ORD-%s-%08d%04d",
			now.Format("20060102"),
			now.UnixMilli()%100_000_000,
			g.randN(10_000),
		)

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "check order number")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrNumberSpaceExhausted
}
