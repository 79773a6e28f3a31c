// Package broker defines the pub/sub contract workers and clients use to
// exchange commands, best-action replies, and per-gamestate walk-log
// streams, plus the message envelopes carried on each channel.
package broker

import "github.com/distmcts/distmcts/pkg/walklog"

// CommandKind discriminates the three command variants carried on the
// commands channel.
type CommandKind string

const (
	CommandNewGamestate CommandKind = "NewGamestate"
	CommandNewConfig    CommandKind = "NewConfig"
	CommandStop         CommandKind = "Stop"
)

// Command is a tagged-union message on the commands channel, consumed by
// every worker.
type Command struct {
	DCModule string      `json:"dc_module"`
	DCName   string      `json:"dc_name"`
	Kind     CommandKind `json:"kind"`

	// NewGamestate
	GameType     string `json:"game_type,omitempty"`
	GamestateID  uint64 `json:"gamestate_id,omitempty"`
	EncodedState []byte `json:"encoded_state,omitempty"`

	// NewConfig
	ConfigJSON []byte `json:"config_json,omitempty"`
}

const dcModule = "broker"

// NewGamestateCommand builds a new-gamestate command.
func NewGamestateCommand(gameType string, gamestateID uint64, encodedState []byte) Command {
	return Command{
		DCModule: dcModule, DCName: string(CommandNewGamestate), Kind: CommandNewGamestate,
		GameType: gameType, GamestateID: gamestateID, EncodedState: encodedState,
	}
}

// NewConfigCommand builds a new-config command.
func NewConfigCommand(configJSON []byte) Command {
	return Command{DCModule: dcModule, DCName: string(CommandNewConfig), Kind: CommandNewConfig, ConfigJSON: configJSON}
}

// StopCommand builds a stop command.
func StopCommand() Command {
	return Command{DCModule: dcModule, DCName: string(CommandStop), Kind: CommandStop}
}

// ActionMessage is published by a worker on the actions channel with its
// current best move for gamestateID. The client filters by GamestateID.
type ActionMessage struct {
	GamestateID    uint64 `json:"gamestate_id"`
	BestMove       string `json:"best_move"`
	EngineServerID uint32 `json:"engineserver_id"`
}

// WalkLogEnvelope wraps a batch of walk-log entries for a single
// gamestate's stream, tagged with the producing worker's id so peers can
// filter out their own echoes.
type WalkLogEnvelope struct {
	GamestateID    uint64      `json:"gamestate_id"`
	EngineServerID uint32      `json:"engineserver_id"`
	Entries        walklog.Log `json:"entries"`
}

// Subscription is an active subscription on some channel. Unsubscribe
// stops delivery; it is safe to call more than once. The inproc
// implementation also closes the channel; the natsbroker implementation
// leaves it open.
type Subscription interface {
	Unsubscribe()
}

// Broker is the pub/sub contract the worker loop and client farm depend
// on. Implementations must deliver commands/actions as broadcast
// (fan-out to every subscriber) and per-gamestate walk-log entries in
// the order one producer published them.
type Broker interface {
	PublishCommand(Command) error
	SubscribeCommands() (<-chan Command, Subscription, error)

	PublishAction(ActionMessage) error
	SubscribeActions() (<-chan ActionMessage, Subscription, error)

	PublishWalkLog(WalkLogEnvelope) error
	SubscribeWalkLog(gamestateID uint64) (<-chan WalkLogEnvelope, Subscription, error)

	Close() error
}
