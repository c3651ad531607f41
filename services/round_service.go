package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/chess-arena/brackets"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
)

// RoundService owns bracket progression: launching a round's matches and
// deciding, after every tournament match ends, whether the round is over
// and what comes next.
type RoundService struct {
	db             *sql.DB
	rooms          *RoomRegistry
	matches        *MatchRegistry
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	notifier       *RoomNotifier
	hub            Broadcaster
	logger         *slog.Logger
}

func NewRoundService(
	db *sql.DB,
	rooms *RoomRegistry,
	matches *MatchRegistry,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	notifier *RoomNotifier,
	hub Broadcaster,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		db:             db,
		rooms:          rooms,
		matches:        matches,
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		notifier:       notifier,
		hub:            hub,
		logger:         logger,
	}
}

// BeginRound pairs the given players, persists the round and its matches in
// one transaction, then activates the matches and notifies the paired
// players. The caller must hold the room lock. The room's bracket is
// replaced with the new round's entries.
//
// prepare, when non-nil, runs first inside the same transaction so callers
// can update tournament status atomically with the round itself.
func (s *RoundService) BeginRound(
	ctx context.Context,
	room *RoomSession,
	roundName string,
	players []string,
	timeControl int,
	prepare func(exec repositories.SQLExecutor) error,
) ([]models.BracketEntry, error) {
	pairs := brackets.Generate(players)

	bracket := make([]models.BracketEntry, 0, len(pairs))
	created := make([]*models.Match, 0, len(pairs))

	err := withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if prepare != nil {
			if err := prepare(exec); err != nil {
				return err
			}
		}
		for _, pair := range pairs {
			if pair.Black == models.ByePlayer {
				winner := pair.White
				bracket = append(bracket, models.BracketEntry{
					White:  pair.White,
					Black:  models.ByePlayer,
					Winner: &winner,
					Status: models.MatchCompleted,
				})
				continue
			}
			match := &models.Match{
				TournamentID: room.TournamentID,
				RoundName:    roundName,
				WhitePlayer:  pair.White,
				BlackPlayer:  pair.Black,
				TimeControl:  timeControl,
				Status:       models.MatchPending,
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return err
			}
			created = append(created, match)
			matchID := match.ID
			bracket = append(bracket, models.BracketEntry{
				White:   pair.White,
				Black:   pair.Black,
				Status:  models.MatchPending,
				MatchID: &matchID,
			})
		}
		pairings := make([]models.Pairing, len(pairs))
		for i, pair := range pairs {
			pairings[i] = models.Pairing{White: pair.White, Black: pair.Black}
		}
		return s.tournamentRepo.AppendRound(ctx, exec, room.TournamentID, models.Round{
			Name:  roundName,
			Pairs: pairings,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, match := range created {
		if err := s.matchRepo.UpdateStatus(ctx, nil, match.ID, models.MatchActive); err != nil {
			s.logger.Error("failed to activate match",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			continue
		}
		match.Status = models.MatchActive
		s.matches.Put(newMatchSession(match, room.RoomCode))

		for player, color := range map[string]string{match.WhitePlayer: "white", match.BlackPlayer: "black"} {
			if conn, ok := room.playerConn(player); ok {
				conn.Emit("match_started", MatchStartedPayload{
					MatchID:     match.ID,
					White:       match.WhitePlayer,
					Black:       match.BlackPlayer,
					Color:       color,
					TimeControl: timeControl,
				})
			}
		}
	}

	room.Bracket = bracket
	return bracket, nil
}

// CheckRoundComplete advances the tournament when every match of the
// current round has finished. One survivor ends the tournament; more
// launch the next round from the winners, byes included.
func (s *RoundService) CheckRoundComplete(ctx context.Context, roomCode string) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return nil
	}

	// Serialize check-and-advance per room. Two matches of one round ending
	// together, or an admin forcing a recheck mid-termination, must not both
	// observe a finished round: the loser of this lock re-reads the
	// tournament and finds the next round already pending.
	room.advance.Lock()
	defer room.advance.Unlock()

	tournament, err := s.tournamentRepo.GetByID(ctx, room.TournamentID)
	if err != nil {
		return err
	}
	if tournament.Status != models.TournamentActive {
		return nil
	}

	roundMatches, err := s.matchRepo.ListByTournamentRound(ctx, tournament.ID, tournament.CurrentRound)
	if err != nil {
		return err
	}

	winners := make([]string, 0, len(roundMatches))
	for _, match := range roundMatches {
		if match.Status != models.MatchCompleted {
			return nil
		}
		if match.Winner != nil && *match.Winner != models.ByePlayer {
			winners = append(winners, *match.Winner)
		}
	}

	// Bye recipients have no match row; their wins live only in the bracket.
	room.Lock()
	for _, entry := range room.Bracket {
		if entry.MatchID == nil && entry.Winner != nil {
			winners = append(winners, *entry.Winner)
		}
	}
	room.Unlock()

	if len(winners) == 0 {
		return nil
	}
	if len(winners) == 1 {
		return s.completeTournament(ctx, room, tournament, winners[0])
	}

	roundName := brackets.RoundName(len(winners))

	room.Lock()
	prepare := func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.UpdateStatus(ctx, exec, tournament.ID, models.TournamentActive, roundName)
	}
	bracket, err := s.BeginRound(ctx, room, roundName, winners, room.DefaultTime, prepare)
	if err != nil {
		room.Unlock()
		return err
	}
	snap := room.snapshot()
	room.Unlock()

	s.hub.BroadcastToRoom(roomCode, "new_round", RoundPayload{
		RoundName: roundName,
		Bracket:   bracket,
		Message:   fmt.Sprintf("%s begins!", roundName),
	})
	s.notifier.EmitLeaderboard(ctx, snap)

	s.logger.Info("round advanced",
		slog.String("room", roomCode),
		slog.String("round", roundName),
		slog.Int("players", len(winners)))
	return nil
}

// completeTournament closes out the tournament: terminal status, winner,
// and participation counters for every durable participant.
func (s *RoundService) completeTournament(ctx context.Context, room *RoomSession, tournament *models.Tournament, winner string) error {
	participants, err := s.tournamentRepo.ListParticipants(ctx, tournament.ID)
	if err != nil {
		return err
	}

	err = withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.Complete(ctx, exec, tournament.ID, winner, time.Now().UTC()); err != nil {
			return err
		}
		for _, username := range participants {
			delta := models.StatsDelta{TournamentsPlayed: 1}
			if username == winner {
				delta.TournamentWins = 1
			}
			if err := s.userRepo.AdjustStats(ctx, exec, username, delta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	room.Lock()
	room.Status = models.TournamentCompleted
	snap := room.snapshot()
	room.Unlock()

	s.hub.BroadcastToRoom(room.RoomCode, "tournament_complete", TournamentCompletePayload{
		Winner:  winner,
		Message: fmt.Sprintf("%s wins the tournament!", winner),
	})
	s.notifier.EmitLeaderboard(ctx, snap)

	s.logger.Info("tournament complete",
		slog.String("room", room.RoomCode),
		slog.String("winner", winner))
	return nil
}
