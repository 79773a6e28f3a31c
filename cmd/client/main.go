// Command client plays a full game to completion, choosing each mover's
// action via one of a fixed agent registry, persisting the gamestate to
// a file or stdout between moves when asked to.
package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/distmcts/distmcts/internal/broker/natsbroker"
	"github.com/distmcts/distmcts/internal/clientfarm"
	"github.com/distmcts/distmcts/internal/games/nim"
	"github.com/distmcts/distmcts/internal/games/tictactoe"
	"github.com/distmcts/distmcts/pkg/engine"
	"github.com/distmcts/distmcts/pkg/game"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// localWalkBudget is how many walks an mcts-local agent runs before
// committing to a move. There is no search-time flag on the CLI surface,
// so this is a fixed per-move budget rather than a deadline.
const localWalkBudget = 400

func gameRegistries() map[string]game.Factory {
	return map[string]game.Factory{
		"tictactoe": func() game.Adapter { return tictactoe.New() },
		"nim":       func() game.Adapter { return nim.New() },
	}
}

// agent chooses one action for gs, given the adapter and the client's
// shared random source. Stub agent types always return an error.
type agent func(adapter game.Adapter, gs game.Gamestate, seed *rand.Rand) (game.Action, error)

func agentRegistry(gameType, natsURL string, timeout time.Duration) map[string]agent {
	return map[string]agent{
		"random": func(adapter game.Adapter, gs game.Gamestate, seed *rand.Rand) (game.Action, error) {
			act, ok := adapter.RandomAction(gs)
			if !ok {
				return nil, fmt.Errorf("client: no legal action available")
			}
			return act, nil
		},
		"mcts-local": func(adapter game.Adapter, gs game.Gamestate, seed *rand.Rand) (game.Action, error) {
			cfg := engine.DefaultConfig()
			cfg.Rand = seed
			eng := engine.New(adapter, gs, cfg)
			if _, err := eng.RunWalks(localWalkBudget); err != nil {
				return nil, err
			}
			act, ok := eng.BestAction()
			if !ok {
				return nil, fmt.Errorf("client: mcts-local: no root child visited")
			}
			return act, nil
		},
		"mcts-distributed": func(adapter game.Adapter, gs game.Gamestate, seed *rand.Rand) (game.Action, error) {
			if natsURL == "" {
				return nil, fmt.Errorf("client: mcts-distributed requires --nats-url")
			}
			br, err := natsbroker.Connect(natsURL)
			if err != nil {
				return nil, err
			}
			defer br.Close()

			encoded, err := adapter.EncodeGamestate(gs)
			if err != nil {
				return nil, err
			}
			best, err := clientfarm.Request(br, gameType, encoded, timeout)
			if err != nil {
				return nil, err
			}
			return clientfarm.DecodeAction(adapter, best)
		},
		"minimax": stubAgent("minimax"),
		"human":   stubAgent("human"),
	}
}

func stubAgent(name string) agent {
	return func(adapter game.Adapter, gs game.Gamestate, seed *rand.Rand) (game.Action, error) {
		return nil, fmt.Errorf("client: agent type %q is not implemented (out of scope)", name)
	}
}

func main() {
	klog.InitFlags(nil)

	var seed int64
	var filePath string
	var noFile bool
	var natsURL string
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "client <game_type> <agent_type>...",
		Short: "plays a game to completion using one agent per player seat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGame(args[0], args[1:], seed, filePath, noFile, natsURL, timeout)
		},
	}
	root.Flags().Int64Var(&seed, "seed", 0, "random seed for agents that need one (0 picks an unpredictable seed)")
	root.Flags().StringVar(&filePath, "file", "-", "where to persist the gamestate after every move: a path, \"-\" for stdout, or use --no-file")
	root.Flags().BoolVar(&noFile, "no-file", false, "disable gamestate persistence entirely")
	root.Flags().StringVar(&natsURL, "nats-url", os.Getenv("DISTMCTS_NATS_URL"), "broker URL, required by the mcts-distributed agent")
	root.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "soft deadline for the mcts-distributed agent's actions reply")

	if err := root.Execute(); err != nil {
		klog.Errorf("client: %v", err)
		os.Exit(1)
	}
}

func runGame(gameType string, agentTypes []string, seed int64, filePath string, noFile bool, natsURL string, timeout time.Duration) error {
	factory, ok := gameRegistries()[gameType]
	if !ok {
		return fmt.Errorf("client: unknown game type %q", gameType)
	}
	adapter := factory()
	players := adapter.Players()
	if len(agentTypes) != len(players) {
		return fmt.Errorf("client: %d agent types given but %q has %d player seats", len(agentTypes), gameType, len(players))
	}

	agentBySeat := make(map[game.Player]agent, len(players))
	agents := agentRegistry(gameType, natsURL, timeout)
	for i, p := range players {
		a, ok := agents[agentTypes[i]]
		if !ok {
			return fmt.Errorf("client: unknown agent type %q", agentTypes[i])
		}
		agentBySeat[p] = a
	}

	rng := rand.New(rand.NewSource(seed))
	if seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	gs := adapter.InitGame()

	for {
		if winner, over := adapter.IsOver(gs); over {
			klog.Infof("client: game over, winner=%s", winner)
			break
		}

		mover := adapter.CurrentMover(gs)
		var act game.Action
		if mover == game.Environment {
			randAct, haveMove := adapter.RandomAction(gs)
			if !haveMove {
				return fmt.Errorf("client: environment has no legal action")
			}
			act = randAct
		} else {
			seatAgent, known := agentBySeat[mover]
			if !known {
				return fmt.Errorf("client: no agent registered for player %q", mover)
			}
			chosen, err := seatAgent(adapter, gs, rng)
			if err != nil {
				return err
			}
			act = chosen
		}

		next, legal := adapter.TakeActionMut(gs, act)
		if !legal {
			panic(fmt.Sprintf("client: agent chose an illegal action %v", act))
		}
		gs = next

		if err := persistGamestate(adapter, gs, filePath, noFile); err != nil {
			klog.Errorf("client: persist gamestate: %v", err)
		}
	}

	return nil
}

func persistGamestate(adapter game.Adapter, gs game.Gamestate, filePath string, noFile bool) error {
	if noFile {
		return nil
	}
	encoded, err := adapter.EncodeGamestate(gs)
	if err != nil {
		return err
	}
	line := base64.StdEncoding.EncodeToString(encoded) + "\n"

	if filePath == "-" {
		_, err := io.WriteString(os.Stdout, line)
		return err
	}
	return os.WriteFile(filePath, []byte(line), 0o644)
}
