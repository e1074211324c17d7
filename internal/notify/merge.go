package notify

import (
	"context"
	"sync"

	"netstatus/internal/models"
)

// Merge fans several event channels into one. The result is closed once
// every input is closed or ctx is done.
func Merge(ctx context.Context, inputs ...<-chan models.ConnectivityEvent) <-chan models.ConnectivityEvent {
	out := make(chan models.ConnectivityEvent)
	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for _, in := range inputs {
		go func(in <-chan models.ConnectivityEvent) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
