package cache

import "context"

// Observed reports hit or miss for every Get on the wrapped store.
type Observed struct {
	Store
	record func(result string)
}

func NewObserved(inner Store, record func(result string)) *Observed {
	return &Observed{Store: inner, record: record}
}

func (o *Observed) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok := o.Store.Get(ctx, key)
	if o.record != nil {
		if ok {
			o.record("hit")
		} else {
			o.record("miss")
		}
	}
	return val, ok
}
