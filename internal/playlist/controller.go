package playlist

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
	"github.com/fonoslabs/tremolo/pkg/events"
)

// Player is the slice of the playback engine the controller drives.
type Player interface {
	Play(item api.PlayableItem)
}

// Controller advances the queue on natural track end and on next/previous
// transport commands. A finished catalog preview leaves the queue
// position untouched; only library tracks participate in auto-advance.
type Controller struct {
	queue  *Queue
	player Player
	log    *logrus.Entry
}

func NewController(queue *Queue, player Player) *Controller {
	return &Controller{
		queue:  queue,
		player: player,
		log:    logrus.WithField("component", "queue-controller"),
	}
}

// Run consumes playback events until the context is done.
func (c *Controller) Run(ctx context.Context, bus *events.EventBus) {
	finished := bus.Subscribe(api.EventTrackFinished)
	next := bus.Subscribe(api.EventRemoteNext)
	previous := bus.Subscribe(api.EventRemotePrevious)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-finished:
				if !ok {
					return
				}
				c.handleFinished(ev)
			case _, ok := <-next:
				if !ok {
					return
				}
				c.Next()
			case _, ok := <-previous:
				if !ok {
					return
				}
				c.Previous()
			}
		}
	}()
}

func (c *Controller) handleFinished(ev api.AudioEvent) {
	if item, ok := ev.Payload.(*api.PlayableItem); ok && item != nil {
		if item.Source == api.SourceCatalog {
			c.log.Debug("catalog preview finished, queue untouched")
			return
		}
	}
	c.Next()
}

// Next plays the next queued track, if any.
func (c *Controller) Next() {
	track := c.queue.Next()
	if track == nil {
		c.log.Debug("end of queue")
		return
	}
	c.player.Play(api.FromTrack(track))
}

// Previous plays the previous queued track, if any.
func (c *Controller) Previous() {
	track := c.queue.Previous()
	if track == nil {
		return
	}
	c.player.Play(api.FromTrack(track))
}

// PlayIndex jumps the queue to index and starts it.
func (c *Controller) PlayIndex(index int) error {
	if err := c.queue.JumpTo(index); err != nil {
		return err
	}
	if track := c.queue.Current(); track != nil {
		c.player.Play(api.FromTrack(track))
	}
	return nil
}
