package outcome

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/example/agrilens/internal/intake"
)

// Request is what a Selector is asked to judge.
type Request struct {
	Kind  Kind
	Asset *intake.Asset
}

// Selector chooses the outcome of an analysis run.
type Selector interface {
	Select(ctx context.Context, req Request) (*Outcome, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context, req Request) (*Outcome, error)

// Select implements Selector.
func (f SelectorFunc) Select(ctx context.Context, req Request) (*Outcome, error) {
	return f(ctx, req)
}

// RandomSelector is the mock analyzer: it ignores the image and draws a
// canned outcome from a uniform value in [0, 1).
type RandomSelector struct {
	draw func() float64
}

// NewRandomSelector builds a RandomSelector. A nil draw uses math/rand/v2.
func NewRandomSelector(draw func() float64) *RandomSelector {
	if draw == nil {
		draw = rand.Float64
	}
	return &RandomSelector{draw: draw}
}

// Select implements Selector.
func (s *RandomSelector) Select(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch req.Kind {
	case KindDisease:
		return PickDiagnosis(s.draw()), nil
	case KindGrade:
		return PickGrade(s.draw()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
}

// PickDiagnosis maps a uniform draw to a diagnosis, 50/50.
func PickDiagnosis(r float64) *Outcome {
	if r > 0.5 {
		return EarlyBlight()
	}
	return Healthy()
}

// PickGrade maps a uniform draw to a grade: A above 0.6, B above 0.3, C
// otherwise, giving a 40/30/30 split.
func PickGrade(r float64) *Outcome {
	switch {
	case r > 0.6:
		return GradeA()
	case r > 0.3:
		return GradeB()
	default:
		return GradeC()
	}
}

// FallbackSelector asks primary first and falls back to secondary when the
// primary fails for any reason other than cancellation.
type FallbackSelector struct {
	primary   Selector
	secondary Selector
	onErr     func(error)
}

// NewFallbackSelector builds a FallbackSelector. onErr may be nil.
func NewFallbackSelector(primary, secondary Selector, onErr func(error)) *FallbackSelector {
	return &FallbackSelector{primary: primary, secondary: secondary, onErr: onErr}
}

// Select implements Selector.
func (s *FallbackSelector) Select(ctx context.Context, req Request) (*Outcome, error) {
	out, err := s.primary.Select(ctx, req)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if s.onErr != nil {
		s.onErr(err)
	}
	return s.secondary.Select(ctx, req)
}
