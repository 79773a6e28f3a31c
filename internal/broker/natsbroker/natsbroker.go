// Package natsbroker implements broker.Broker over core NATS pub/sub
// (not JetStream): commands and actions as plain broadcast subjects, and
// one subject per gamestate for its ordered walk-log stream. Core NATS
// subjects already give per-publisher ordered, at-most-once delivery to
// every live subscriber, which is all the broker contract needs; adding
// JetStream's persistence would buy durability this system's Non-goals
// explicitly don't want (resumability across restarts).
package natsbroker

import (
	"encoding/json"
	"fmt"

	"github.com/distmcts/distmcts/internal/broker"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const (
	subjectCommands = "commands"
	subjectActions  = "actions"
)

func gamestateSubject(id uint64) string {
	return fmt.Sprintf("gamestate.%d", id)
}

// Broker adapts a *nats.Conn to broker.Broker.
type Broker struct {
	conn *nats.Conn
}

// Connect dials url (e.g. from an environment variable read by the
// caller) and returns a ready Broker.
func Connect(url string) (*Broker, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrap(err, "natsbroker: connect")
	}
	return &Broker{conn: conn}, nil
}

type subscription struct{ sub *nats.Subscription }

func (s *subscription) Unsubscribe() {
	_ = s.sub.Unsubscribe()
}

func (b *Broker) PublishCommand(cmd broker.Command) error {
	return b.publish(subjectCommands, cmd)
}

func (b *Broker) SubscribeCommands() (<-chan broker.Command, broker.Subscription, error) {
	out := make(chan broker.Command, 64)
	sub, err := b.conn.Subscribe(subjectCommands, func(msg *nats.Msg) {
		var cmd broker.Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return
		}
		out <- cmd
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "natsbroker: subscribe commands")
	}
	return out, &subscription{sub: sub}, nil
}

func (b *Broker) PublishAction(msg broker.ActionMessage) error {
	return b.publish(subjectActions, msg)
}

func (b *Broker) SubscribeActions() (<-chan broker.ActionMessage, broker.Subscription, error) {
	out := make(chan broker.ActionMessage, 64)
	sub, err := b.conn.Subscribe(subjectActions, func(msg *nats.Msg) {
		var am broker.ActionMessage
		if err := json.Unmarshal(msg.Data, &am); err != nil {
			return
		}
		out <- am
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "natsbroker: subscribe actions")
	}
	return out, &subscription{sub: sub}, nil
}

func (b *Broker) PublishWalkLog(env broker.WalkLogEnvelope) error {
	return b.publish(gamestateSubject(env.GamestateID), env)
}

func (b *Broker) SubscribeWalkLog(gamestateID uint64) (<-chan broker.WalkLogEnvelope, broker.Subscription, error) {
	out := make(chan broker.WalkLogEnvelope, 64)
	sub, err := b.conn.Subscribe(gamestateSubject(gamestateID), func(msg *nats.Msg) {
		var env broker.WalkLogEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		out <- env
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "natsbroker: subscribe walk log")
	}
	return out, &subscription{sub: sub}, nil
}

func (b *Broker) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "natsbroker: marshal for %s", subject)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "natsbroker: publish to %s", subject)
	}
	return nil
}

func (b *Broker) Close() error {
	b.conn.Close()
	return nil
}
