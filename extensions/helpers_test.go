package extensions

import (
	"errors"

	"github.com/pumped-fn/kvo"
)

type account struct {
	kvo.Observable
	Owner   string
	Balance int
}

var errOverdrawn = errors.New("overdrawn")

func (a *account) Properties() kvo.Properties {
	return kvo.Properties{
		"summary": kvo.NewProperty(func(ctx *kvo.PropertyCtx) (any, error) {
			self := ctx.Object.(*account)
			if self.Balance < 0 {
				return nil, errOverdrawn
			}
			return self.Owner, nil
		}, "owner", "balance").Cacheable(),
	}
}
