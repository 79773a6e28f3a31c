// Package clientfarm implements the client side of a search request:
// publish a fresh gamestate to the worker fleet, collect candidate best
// actions within a deadline, and return the most recent one seen.
package clientfarm

import (
	"encoding/binary"
	"time"

	"github.com/distmcts/distmcts/internal/broker"
	"github.com/distmcts/distmcts/pkg/game"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// HardDeadlineFloor is the minimum amount of time Request waits for a
// matching actions reply, regardless of the caller's requested timeout.
// A var, not a const, so tests can shrink it instead of running for a
// real 5 seconds.
var HardDeadlineFloor = 5 * time.Second

// ErrTimeout is returned when no matching actions reply arrives within
// the (possibly extended) deadline.
var ErrTimeout = errors.New("clientfarm: timed out waiting for a best-action reply")

// NewGamestateID returns a fresh random 64-bit gamestate id, derived from
// a UUID's random bits rather than a freshly-seeded math/rand source.
func NewGamestateID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// Request publishes gameType/encodedState as a new gamestate, then
// collects best-action replies for at least timeout, extended to
// max(timeout, HardDeadlineFloor) if nothing has arrived yet. It returns
// the encoded action from the most recent matching reply.
func Request(br broker.Broker, gameType string, encodedState []byte, timeout time.Duration) (string, error) {
	actionsCh, sub, err := br.SubscribeActions()
	if err != nil {
		return "", errors.Wrap(err, "clientfarm: subscribe actions")
	}
	defer sub.Unsubscribe()

	id := NewGamestateID()
	if err := br.PublishCommand(broker.NewGamestateCommand(gameType, id, encodedState)); err != nil {
		return "", errors.Wrap(err, "clientfarm: publish new-gamestate")
	}

	hardDeadline := timeout
	if hardDeadline < HardDeadlineFloor {
		hardDeadline = HardDeadlineFloor
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	hardTimer := time.NewTimer(hardDeadline)
	defer hardTimer.Stop()

	var latest string
	haveAny := false

	for {
		select {
		case msg := <-actionsCh:
			if msg.GamestateID != id {
				continue
			}
			latest = msg.BestMove
			haveAny = true
		case <-deadline.C:
			if haveAny {
				return latest, nil
			}
			klog.V(1).Infof("clientfarm: gamestate %d: soft deadline elapsed with no reply, extending to hard cap", id)
		case <-hardTimer.C:
			if haveAny {
				return latest, nil
			}
			return "", ErrTimeout
		}
	}
}

// DecodeAction is a convenience wrapper turning a Request's encoded
// action string back into a game.Action via adapter.
func DecodeAction(adapter game.Adapter, encoded string) (game.Action, error) {
	return adapter.DecodeAction(encoded)
}
