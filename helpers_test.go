package kvo

import (
	"context"

	"github.com/pumped-fn/kvo/pkg/pubsub"
)

func countEvents(n *int) pubsub.Handler {
	return func(ctx context.Context, ev pubsub.Event) error {
		*n++
		return nil
	}
}

func recordArgs(got *[]any) pubsub.Handler {
	return func(ctx context.Context, ev pubsub.Event) error {
		*got = append(*got, ev.Arg(0))
		return nil
	}
}

func syncDelivery() pubsub.SubscribeOption {
	return pubsub.Synchronous()
}

// counting returns a property that counts its invocations. Reads return the
// count, writes return the value written.
func counting(calls *int, dependentKeys ...string) *Property {
	return NewProperty(func(ctx *PropertyCtx) (any, error) {
		*calls++
		if v, ok := ctx.Value(); ok {
			return v, nil
		}
		return *calls, nil
	}, dependentKeys...)
}
