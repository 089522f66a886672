package telegram

import (
	"context"
	"sync"
	"time"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Poller long-polls getUpdates and feeds updates into the channel.
type Poller struct {
	channel  *Channel
	cancel   context.CancelFunc
	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a Poller bound to the channel.
func NewPoller(ch *Channel) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		channel: ch,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	go p.loop()
}

// Stop cancels the polling loop and waits for it to finish.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(p.cancel)
	<-p.done
}

// loop runs the long-polling loop until Stop is called. Consecutive
// failures pause polling so a broken network or token does not spin.
func (p *Poller) loop() {
	defer close(p.done)

	ch := p.channel
	var offset int
	var consecutiveErrors int

	for {
		if p.ctx.Err() != nil {
			return
		}

		updates, err := ch.client.GetUpdates(p.ctx, GetUpdatesRequest{
			Offset:         offset,
			Timeout:        ch.config.PollingTimeout,
			AllowedUpdates: []string{"message", "edited_message"},
		})
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			ch.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollingErrors {
				ch.logger.Warn("polling paused after consecutive errors", "pause", errorPauseDuration)
				select {
				case <-p.ctx.Done():
					return
				case <-time.After(errorPauseDuration):
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0

		for i := range updates {
			offset = updates[i].UpdateID + 1
			ch.processUpdate(&updates[i])
		}
	}
}
