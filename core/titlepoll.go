package core

import (
	"context"
	"time"
)

// titlePoller checks a view's title at a fixed interval and commits the
// first change it sees. It stops after that commit, after maxAttempts
// checks, or when its context ends.
type titlePoller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startTitlePoll(ctx context.Context, interval time.Duration, maxAttempts int, last string, read func(context.Context) (string, error), commit func(string)) *titlePoller {
	ctx, cancel := context.WithCancel(ctx)
	p := &titlePoller{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for attempt := 0; attempt < maxAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			title, err := read(ctx)
			if err != nil || title == "" || title == last {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			commit(title)
			return
		}
	}()
	return p
}

// Stop cancels the poll and waits for it to exit. Safe on nil.
func (p *titlePoller) Stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed once the poll exits.
func (p *titlePoller) Done() <-chan struct{} {
	return p.done
}
