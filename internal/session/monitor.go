package session

import (
	"context"

	"github.com/sirupsen/logrus"
)

type InterruptionPhase int

const (
	InterruptionBegan InterruptionPhase = iota
	InterruptionEnded
)

// InterruptionEvent is a platform interruption (phone call, alarm).
// ShouldResume is only meaningful on the Ended phase.
type InterruptionEvent struct {
	Phase        InterruptionPhase
	ShouldResume bool
}

type RouteChangeReason int

const (
	RouteUnknown RouteChangeReason = iota
	RouteOldDeviceUnavailable
	RouteNewDeviceAvailable
	RouteCategoryChange
)

type RouteChangeEvent struct {
	Reason RouteChangeReason
}

// Controller is the slice of the playback engine the monitor drives.
// Pause and Resume take effect on the engine's run loop, which keeps the
// published state consistent for observers.
type Controller interface {
	Playing() bool
	Pause()
	Resume()
}

// Monitor translates session interruptions and route changes into
// pause/resume decisions. It distinguishes "paused by interruption" from
// "paused by the user": a session the user paused is never auto-resumed.
type Monitor struct {
	ctl Controller
	log *logrus.Entry

	pausedByInterruption bool
}

func NewMonitor(ctl Controller) *Monitor {
	return &Monitor{
		ctl: ctl,
		log: logrus.WithField("component", "monitor"),
	}
}

// HandleInterruption processes one interruption phase.
func (m *Monitor) HandleInterruption(ev InterruptionEvent) {
	switch ev.Phase {
	case InterruptionBegan:
		m.pausedByInterruption = m.ctl.Playing()
		if m.pausedByInterruption {
			m.log.Debug("interruption began, pausing")
			m.ctl.Pause()
		}
	case InterruptionEnded:
		shouldResume := ev.ShouldResume && m.pausedByInterruption
		// The remembered flag is cleared no matter how the
		// interruption ended.
		m.pausedByInterruption = false
		if shouldResume {
			m.log.Debug("interruption ended, resuming")
			m.ctl.Resume()
		}
	}
}

// HandleRouteChange processes one route change. Losing the old output
// device (headphones unplugged) pauses; gaining a new one does nothing.
func (m *Monitor) HandleRouteChange(ev RouteChangeEvent) {
	switch ev.Reason {
	case RouteOldDeviceUnavailable, RouteCategoryChange:
		if m.ctl.Playing() {
			m.log.Debug("output route lost, pausing")
			m.ctl.Pause()
		}
	case RouteNewDeviceAvailable:
		// Never auto-resume onto a new device.
	}
}

// Run consumes platform event channels until the context is done.
func (m *Monitor) Run(ctx context.Context, interruptions <-chan InterruptionEvent, routes <-chan RouteChangeEvent) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-interruptions:
				if !ok {
					return
				}
				m.HandleInterruption(ev)
			case ev, ok := <-routes:
				if !ok {
					return
				}
				m.HandleRouteChange(ev)
			}
		}
	}()
}
