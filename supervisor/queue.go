package supervisor

import "context"

// unbounded relays values from in to out through a growing in-memory
// slice rather than a fixed-capacity channel, so a multi-producer,
// single-consumer stream (the URL channel and the record channel, per
// §5's shared-resource policy) never blocks a sender merely because the
// consumer is temporarily behind. out closes once in closes and every
// pending value has been relayed, or once ctx is done.
func unbounded[T any](ctx context.Context, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var pending []T
		closed := false
		for {
			if closed && len(pending) == 0 {
				return
			}
			if len(pending) == 0 {
				select {
				case v, ok := <-in:
					if !ok {
						closed, in = true, nil
						continue
					}
					pending = append(pending, v)
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case v, ok := <-in:
				if !ok {
					closed, in = true, nil
					continue
				}
				pending = append(pending, v)
			case out <- pending[0]:
				pending = pending[1:]
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
