package services

import (
	"context"
	"log/slog"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"golang.org/x/sync/errgroup"
)

// RoomNotifier assembles and broadcasts the two recurring room-wide
// payloads: the roster view and the leaderboard. It works on snapshots so no
// room lock is held across store reads.
type RoomNotifier struct {
	hub            Broadcaster
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	logger         *slog.Logger
}

func NewRoomNotifier(
	hub Broadcaster,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	logger *slog.Logger,
) *RoomNotifier {
	return &RoomNotifier{
		hub:            hub,
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		logger:         logger,
	}
}

func (n *RoomNotifier) EmitRoomUpdate(ctx context.Context, snap RoomSnapshot) {
	var users []*models.User
	var tournament *models.Tournament

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = n.userRepo.GetManyByUsername(gCtx, snap.Players)
		return err
	})
	g.Go(func() error {
		var err error
		tournament, err = n.tournamentRepo.GetByID(gCtx, snap.TournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		n.logger.Error("failed to assemble room update", slog.String("room", snap.RoomCode), slog.Any("error", err))
		return
	}

	// Preserve join order in the payload.
	byName := make(map[string]*models.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	ordered := make([]*models.User, 0, len(snap.Players))
	for _, username := range snap.Players {
		if u, ok := byName[username]; ok {
			ordered = append(ordered, u)
		}
	}

	n.hub.BroadcastToRoom(snap.RoomCode, "room_update", RoomUpdatePayload{
		Players:      ordered,
		Admin:        snap.Admin,
		Status:       snap.Status,
		Bracket:      snap.Bracket,
		CurrentRound: tournament.CurrentRound,
		TournamentID: snap.TournamentID,
	})
}

func (n *RoomNotifier) EmitLeaderboard(ctx context.Context, snap RoomSnapshot) {
	var tournament *models.Tournament
	var matches []*models.Match

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = n.tournamentRepo.GetByID(gCtx, snap.TournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = n.matchRepo.ListByTournament(gCtx, snap.TournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		n.logger.Error("failed to assemble leaderboard", slog.String("room", snap.RoomCode), slog.Any("error", err))
		return
	}

	n.hub.BroadcastToRoom(snap.RoomCode, "leaderboard_update", LeaderboardPayload{
		CurrentRound: tournament.CurrentRound,
		Matches:      matches,
		Bracket:      snap.Bracket,
		Status:       tournament.Status,
		Winner:       tournament.WinnerUsername,
	})
}
