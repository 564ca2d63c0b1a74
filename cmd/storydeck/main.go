// Command storydeck is a terminal client for one estimation room: it joins by
// code, casts votes, and follows the room live through the change feed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mcdev12/storydeck/internal/account"
	"github.com/mcdev12/storydeck/internal/config"
	"github.com/mcdev12/storydeck/internal/localstate"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
	"github.com/mcdev12/storydeck/internal/session"
	"github.com/mcdev12/storydeck/internal/storage/postgres"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// feedAdapter narrows *realtime.Subscriber to the session's ChangeFeed.
type feedAdapter struct {
	sub *realtime.Subscriber
}

func (f feedAdapter) Subscribe(ctx context.Context, roomID uuid.UUID, handler func(realtime.Event)) (session.FeedSubscription, error) {
	return f.sub.Subscribe(ctx, roomID, handler)
}

func main() {
	code := flag.String("code", "", "room join code")
	name := flag.String("name", "", "display name")
	avatar := flag.String("avatar", models.DefaultAvatar, "avatar")
	userID := flag.String("user", "", "account id (empty for anonymous)")
	statePath := flag.String("state", defaultStatePath(), "local state db path")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	if *code == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "usage: storydeck -code CODE -name NAME [-user ID]")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := config.FromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()

	nc, err := realtime.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	if dir := filepath.Dir(*statePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("failed to create state dir")
		}
	}
	cache, err := localstate.Open(*statePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local state")
	}
	defer cache.Close()

	var identity *account.Identity
	if *userID != "" {
		identity = &account.Identity{ID: *userID, Name: *name}
	}

	repo := postgres.NewRepository(pool, realtime.NewPublisher(nc))
	sess := session.New(session.Config{
		Rooms:    repo,
		Tasks:    repo,
		Players:  repo,
		Votes:    repo,
		Feed:     feedAdapter{sub: realtime.NewSubscriber(nc)},
		Cache:    cache,
		Identity: identity,
	})
	defer sess.Close()

	sess.Watch(func(snap session.Snapshot) {
		printSnapshot(snap)
	})

	room, err := sess.FindRoomByCode(ctx, *code)
	if err != nil {
		log.Fatal().Err(err).Str("code", *code).Msg("room lookup failed")
	}
	if err := sess.JoinRoom(ctx, room.ID, *name, *avatar); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}
	if err := sess.SubscribeToRoom(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to room")
	}

	fmt.Printf("joined %q (%s) - vote with a card value, or: reveal | reset | score X | task TITLE | lock | unlock | quit\n",
		room.Name, room.Code)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if err := runCommand(ctx, sess, strings.TrimSpace(scanner.Text())); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func runCommand(ctx context.Context, sess *session.Session, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return nil
	case "quit":
		sess.Close()
		os.Exit(0)
		return nil
	case "reveal":
		return sess.Reveal(ctx)
	case "reset":
		return sess.ResetRound(ctx)
	case "score":
		return sess.UpdateScore(ctx, rest)
	case "task":
		return sess.CreateTask(ctx, rest, "", "", "")
	case "lock":
		return sess.ToggleRoomLock(ctx, true)
	case "unlock":
		return sess.ToggleRoomLock(ctx, false)
	default:
		if !models.ValidCard(cmd) {
			return fmt.Errorf("unknown command or card %q", cmd)
		}
		return sess.CastVote(ctx, cmd)
	}
}

func printSnapshot(snap session.Snapshot) {
	if snap.Room == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s [%d players]", snap.Room.Name, len(snap.Players))
	if snap.IsAdmin {
		b.WriteString(" (admin)")
	}
	if snap.ActiveTask != nil {
		fmt.Fprintf(&b, "\n    task: %s", snap.ActiveTask.Title)
		if snap.ActiveTask.IsRevealed {
			for _, p := range snap.Players {
				if v, ok := snap.ActiveTask.Votes[p.ID.String()]; ok {
					fmt.Fprintf(&b, "\n      %s: %s", p.Name, v)
				}
			}
			if snap.ActiveTask.FinalScore != nil {
				fmt.Fprintf(&b, "\n    final score: %s", *snap.ActiveTask.FinalScore)
			}
		} else {
			fmt.Fprintf(&b, " - %d votes in", len(snap.ActiveTask.Votes))
			if snap.LocalVote != "" {
				fmt.Fprintf(&b, ", yours: %s", snap.LocalVote)
			}
		}
	}
	fmt.Println(b.String())
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "storydeck.db"
	}
	return filepath.Join(dir, "storydeck", "state.db")
}
