// Package inproc implements an in-memory fan-out broker.Broker, used by
// tests to exercise the worker loop and engine facade without a real
// broker process.
package inproc

import (
	"sync"

	"github.com/distmcts/distmcts/internal/broker"
)

const chanBuffer = 64

// Broker is an in-memory, mutex-guarded fan-out implementation of
// broker.Broker. Safe for concurrent use by multiple workers and
// clients within one process.
type Broker struct {
	mu sync.Mutex

	commandSubs []chan broker.Command
	actionSubs  []chan broker.ActionMessage
	walkLogSubs map[uint64][]chan broker.WalkLogEnvelope
}

// New returns an empty in-memory broker.
func New() *Broker {
	return &Broker{walkLogSubs: make(map[uint64][]chan broker.WalkLogEnvelope)}
}

type subscription struct {
	unsubscribe func()
	once        sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

func (b *Broker) PublishCommand(cmd broker.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.commandSubs {
		select {
		case ch <- cmd:
		default:
			// A slow subscriber drops the command rather than blocking the
			// publisher; a dropped command is not redelivered.
		}
	}
	return nil
}

func (b *Broker) SubscribeCommands() (<-chan broker.Command, broker.Subscription, error) {
	ch := make(chan broker.Command, chanBuffer)
	b.mu.Lock()
	b.commandSubs = append(b.commandSubs, ch)
	b.mu.Unlock()

	sub := &subscription{unsubscribe: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.commandSubs = removeChan(b.commandSubs, ch)
		close(ch)
	}}
	return ch, sub, nil
}

func (b *Broker) PublishAction(msg broker.ActionMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.actionSubs {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Broker) SubscribeActions() (<-chan broker.ActionMessage, broker.Subscription, error) {
	ch := make(chan broker.ActionMessage, chanBuffer)
	b.mu.Lock()
	b.actionSubs = append(b.actionSubs, ch)
	b.mu.Unlock()

	sub := &subscription{unsubscribe: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.actionSubs = removeChan(b.actionSubs, ch)
		close(ch)
	}}
	return ch, sub, nil
}

func (b *Broker) PublishWalkLog(env broker.WalkLogEnvelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.walkLogSubs[env.GamestateID] {
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

func (b *Broker) SubscribeWalkLog(gamestateID uint64) (<-chan broker.WalkLogEnvelope, broker.Subscription, error) {
	ch := make(chan broker.WalkLogEnvelope, chanBuffer)
	b.mu.Lock()
	b.walkLogSubs[gamestateID] = append(b.walkLogSubs[gamestateID], ch)
	b.mu.Unlock()

	sub := &subscription{unsubscribe: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.walkLogSubs[gamestateID] = removeChan(b.walkLogSubs[gamestateID], ch)
		close(ch)
	}}
	return ch, sub, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.commandSubs {
		close(ch)
	}
	for _, ch := range b.actionSubs {
		close(ch)
	}
	for _, subs := range b.walkLogSubs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.commandSubs = nil
	b.actionSubs = nil
	b.walkLogSubs = make(map[uint64][]chan broker.WalkLogEnvelope)
	return nil
}

func removeChan[T any](chans []chan T, target chan T) []chan T {
	out := chans[:0]
	for _, ch := range chans {
		if ch != target {
			out = append(out, ch)
		}
	}
	return out
}
