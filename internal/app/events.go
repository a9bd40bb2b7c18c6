package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/tickdemo/internal/counter"
	"github.com/sweeney/tickdemo/internal/dispatch"
	"github.com/sweeney/tickdemo/internal/input"
	"github.com/sweeney/tickdemo/internal/mode"
	"github.com/sweeney/tickdemo/internal/mqtt"
	"github.com/sweeney/tickdemo/internal/render"
	"github.com/sweeney/tickdemo/internal/rtos"
	"github.com/sweeney/tickdemo/internal/status"
)

// eventBacklog bounds the events waiting for PublishEvents.
const eventBacklog = 64

// handleInput runs on the render task once per frame. The counter is
// sampled before dispatching so a frame never races the increments it wakes.
func (s *System) handleInput(st input.State, now rtos.Tick) {
	s.Display.Value()
	for _, sig := range s.Dispatcher.Handle(st, now) {
		if sig == dispatch.SignalQuit {
			s.requestQuit()
		}
	}
}

// drawHUD runs on the render task under the screen lock.
func (s *System) drawHUD(scr render.Screen) {
	scr.DrawText(fmt.Sprintf("Counter: %d", s.Display.Last()), 10, render.Height-render.FontSize*2, render.Black)
	scr.DrawText(fmt.Sprintf("Mode: %s", s.Machine.Current()), 10, render.FontSize*1.5, render.Gray)
}

func (s *System) onFrame(now rtos.Tick, fps int) {
	s.Tracker.UpdateFrame(uint64(now), s.Display.Last(), fps)
	s.Tracker.SetTasks(taskStatuses(s.Kernel.Tasks()))
}

func taskStatuses(infos []rtos.TaskInfo) []status.TaskStatus {
	out := make([]status.TaskStatus, len(infos))
	for i, ti := range infos {
		out[i] = status.TaskStatus{Name: ti.Name, Priority: int(ti.Priority), State: string(ti.State)}
	}
	return out
}

// onResetTimer builds the reset timer callback. It runs on the timer service
// and only queues the event.
func (s *System) onResetTimer() func(*rtos.Timer) {
	var before uint32
	reset := counter.ResetCallback(s.Counter, func() {
		s.Tracker.RecordReset()
		s.emit(mqtt.Event{
			Timestamp: time.Now(),
			Type:      mqtt.EventCounterReset,
			Tick:      uint64(s.Kernel.Now()),
			Mode:      mode.ModeA.String(),
			Counter:   before,
		})
	})
	return func(t *rtos.Timer) {
		if v, ok := s.Counter.Read(); ok {
			before = v
		}
		reset(t)
	}
}

// onTransition runs on the mode task after every completed transition.
func (s *System) onTransition(from, to mode.Mode) {
	s.Tracker.RecordTransition(to.String())
	s.emit(mqtt.Event{
		Timestamp: time.Now(),
		Type:      mqtt.EventModeChanged,
		Tick:      uint64(s.Kernel.Now()),
		Mode:      to.String(),
		From:      from.String(),
	})
}

// emit queues ev for PublishEvents without blocking the calling task.
func (s *System) emit(ev mqtt.Event) {
	if s.publisher == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Printf("app: event backlog full, dropping %s", ev.Type)
	}
}

// PublishEvents hands queued events to the publisher until ctx is done.
// Publish failures are logged and never stop the loop.
func (s *System) PublishEvents(ctx context.Context) error {
	if s.publisher == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			log.Printf("event: %s tick=%d mode=%s", ev.Type, ev.Tick, ev.Mode)
			if err := s.publisher.Publish(ev); err != nil {
				log.Printf("publish error: %v", err)
			}
		}
	}
}

// StatusEvent builds a lifecycle event carrying the current status snapshot.
func (s *System) StatusEvent(event, reason string) mqtt.SystemEvent {
	if cs, ok := s.publisher.(mqtt.ConnectionStatus); ok {
		s.Tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := s.Tracker.Snapshot()
	return mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}

// PublishStatus publishes a lifecycle event. It is a no-op without a
// publisher.
func (s *System) PublishStatus(event, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSystem(s.StatusEvent(event, reason)); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}
