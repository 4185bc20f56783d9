package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/identity"
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/render"
)

// client is one terminal player acting directly on the shared store
type client struct {
	log *logrus.Entry
	b   *backend
	ids identity.Store
	out io.Writer
}

// identities opens the identity file, or a process-local store when no file
// is configured
func (cfg *Config) identities() (identity.Store, error) {
	if cfg.identityFile == "" {
		return identity.NewMemory(), nil
	}
	return identity.OpenFile(cfg.identityFile)
}

func withClient(cfg *Config, run func(ctx context.Context, c *client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log := cfg.logger()
		if cfg.store == "memory" {
			log.Warn("The memory store is private to this process; use --store postgres to play with others")
		}
		ids, err := cfg.identities()
		if err != nil {
			return err
		}
		b, err := openBackend(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer b.close()
		return run(cmd.Context(), &client{log: log, b: b, ids: ids, out: cmd.OutOrStdout()}, args)
	}
}

// seat returns the room for code and the player this client joined it as
func (c *client) seat(ctx context.Context, code string) (*models.Room, *models.Player, error) {
	room, err := c.b.game.RoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	id, ok := c.ids.PlayerID(code)
	if !ok {
		return nil, nil, fmt.Errorf("you have not joined room %s", room.Code)
	}
	players, err := c.b.game.Players(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range players {
		if p.ID == id {
			return room, p, nil
		}
	}
	return nil, nil, fmt.Errorf("you are no longer in room %s", room.Code)
}

func (c *client) join(ctx context.Context, code, name string) (*models.Player, error) {
	player, err := c.b.game.JoinRoom(ctx, code, name)
	if err != nil {
		return nil, err
	}
	if err := c.ids.SetPlayerID(code, player.ID); err != nil {
		return nil, err
	}
	return player, nil
}

func (c *client) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *client) show(view *live.View, playerID string) error {
	return c.print(render.ForPlayer(view, playerID, c.b.game.Settings().MinPlayers))
}

func newPlayCmds(cfg *Config) []*cobra.Command {
	var (
		name          string
		maxPlayers    int
		impostorCount int
		maxRounds     int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a room, joining it as host when --name is given",
		Args:  cobra.NoArgs,
		RunE: withClient(cfg, func(ctx context.Context, c *client, _ []string) error {
			room, err := c.b.game.CreateRoom(ctx, maxPlayers, impostorCount, maxRounds)
			if err != nil {
				return err
			}
			out := map[string]any{"room": room}
			if name != "" {
				player, err := c.join(ctx, room.Code, name)
				if err != nil {
					return err
				}
				out["player"] = player
			}
			return c.print(out)
		}),
	}
	create.Flags().StringVar(&name, "name", "", "your player name")
	create.Flags().IntVar(&maxPlayers, "max-players", game.DefaultMaxPlayers, "seats in the room")
	create.Flags().IntVar(&impostorCount, "impostors", game.DefaultImpostorCount, "number of impostors")
	create.Flags().IntVar(&maxRounds, "rounds", game.DefaultMaxRounds, "rounds before the game ends in a draw")

	join := &cobra.Command{
		Use:   "join CODE NAME",
		Short: "Join a waiting room",
		Args:  cobra.MinimumNArgs(2),
		RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
			player, err := c.join(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return c.print(player)
		}),
	}

	hostCmd := func(use, short string, op func(*game.Game, context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " CODE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
				room, me, err := c.seat(ctx, args[0])
				if err != nil {
					return err
				}
				if !me.IsHost {
					return errors.New("only the host can do that")
				}
				if err := op(c.b.game, ctx, room.ID); err != nil {
					return err
				}
				view, err := live.NewProjector(c.b.store, c.log).Load(ctx, room.ID)
				if err != nil {
					return err
				}
				return c.show(view, me.ID)
			}),
		}
	}

	clue := &cobra.Command{
		Use:   "clue CODE TEXT",
		Short: "Give your clue for the current round",
		Args:  cobra.MinimumNArgs(2),
		RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
			room, me, err := c.seat(ctx, args[0])
			if err != nil {
				return err
			}
			round, err := c.b.game.CurrentRound(ctx, room.ID)
			if err != nil {
				return err
			}
			return c.b.game.SubmitClue(ctx, round.ID, me.ID, strings.Join(args[1:], " "))
		}),
	}

	vote := &cobra.Command{
		Use:   "vote CODE PLAYER",
		Short: "Vote to eliminate a player, by name or id",
		Args:  cobra.MinimumNArgs(2),
		RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
			room, me, err := c.seat(ctx, args[0])
			if err != nil {
				return err
			}
			players, err := c.b.game.Players(ctx, room.ID)
			if err != nil {
				return err
			}
			who := strings.Join(args[1:], " ")
			var target *models.Player
			for _, p := range players {
				if p.ID == who || strings.EqualFold(p.Name, who) {
					target = p
					break
				}
			}
			if target == nil {
				return fmt.Errorf("no player %q in room %s", who, room.Code)
			}
			round, err := c.b.game.CurrentRound(ctx, room.ID)
			if err != nil {
				return err
			}
			return c.b.game.CastVote(ctx, round.ID, me.ID, target.ID)
		}),
	}

	show := &cobra.Command{
		Use:   "show CODE",
		Short: "Print the room as you see it",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
			room, err := c.b.game.RoomByCode(ctx, args[0])
			if err != nil {
				return err
			}
			playerID, _ := c.ids.PlayerID(room.Code)
			view, err := live.NewProjector(c.b.store, c.log).Load(ctx, room.ID)
			if err != nil {
				return err
			}
			return c.show(view, playerID)
		}),
	}

	watch := &cobra.Command{
		Use:   "watch CODE",
		Short: "Print the room every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(cfg, func(ctx context.Context, c *client, args []string) error {
			room, err := c.b.game.RoomByCode(ctx, args[0])
			if err != nil {
				return err
			}
			playerID, _ := c.ids.PlayerID(room.Code)
			views := make(chan *live.View, 1)
			w, err := live.NewProjector(c.b.store, c.log).Watch(ctx, room.ID, func(v *live.View) {
				select {
				case <-views:
				default:
				}
				views <- v
			})
			if err != nil {
				return err
			}
			defer w.Close()
			for {
				select {
				case <-ctx.Done():
					return nil
				case v := <-views:
					if err := c.show(v, playerID); err != nil {
						return err
					}
				}
			}
		}),
	}

	return []*cobra.Command{
		create,
		join,
		hostCmd("start", "Deal roles and open round 1", (*game.Game).StartGame),
		hostCmd("restart", "Start over with new roles and a new word", (*game.Game).RestartGame),
		hostCmd("lobby", "Return the room to the lobby", (*game.Game).ExitToLobby),
		clue,
		vote,
		show,
		watch,
	}
}
