package async

import (
	"context"
	"time"
)

// Debounce collapses bursts of events arriving on eventsChan into one
// handler call: once no new event has arrived for interval, handler runs
// with the most recently received event. It blocks until ctx is canceled,
// so callers run it in its own goroutine.
func Debounce(ctx context.Context, interval time.Duration, eventsChan <-chan interface{}, handler func(event interface{})) {
	var timer <-chan time.Time
	var latest interface{}
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventsChan:
			latest = event
			timer = time.After(interval)
		case <-timer:
			handler(latest)
			timer = nil
		}
	}
}
