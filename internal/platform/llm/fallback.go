package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
)

type fallback struct {
	providers []Provider
}

// WithFallback tries each provider in order and returns the first success.
// Only provider failures move on to the next vendor; a canceled context stops immediately.
func WithFallback(providers ...Provider) Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return &fallback{providers: out}
}

func (f *fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ",")
}

func (f *fallback) Complete(ctx context.Context, req Request) (*Completion, error) {
	if len(f.providers) == 0 {
		return nil, apperr.Provider("none", errors.New("no providers configured"))
	}
	var errs []error
	for _, p := range f.providers {
		c, err := p.Complete(ctx, req)
		if err == nil {
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, apperr.Provider(p.Name(), ctx.Err())
		}
		errs = append(errs, err)
	}
	return nil, apperr.Provider(f.Name(), errors.Join(errs...))
}
