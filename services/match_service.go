package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/chess-arena/elo"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/storage"
)

// matchGroup is the broadcast group for one live match's spectators and
// players.
func matchGroup(matchID int) string {
	return fmt.Sprintf("match_%d", matchID)
}

// MatchService handles live game events and owns match termination. Every
// way a match can end (checkmate, draw, stalemate, resignation, clock
// expiry) funnels into terminate, which runs at most once per match.
type MatchService struct {
	db           *sql.DB
	rooms        *RoomRegistry
	matches      *MatchRegistry
	userRepo     repositories.UserRepository
	matchRepo    repositories.MatchRepository
	roundService *RoundService
	notifier     *RoomNotifier
	hub          Broadcaster
	uploader     storage.FileUploader // optional, nil disables archiving
	logger       *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	rooms *RoomRegistry,
	matches *MatchRegistry,
	userRepo repositories.UserRepository,
	matchRepo repositories.MatchRepository,
	roundService *RoundService,
	notifier *RoomNotifier,
	hub Broadcaster,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		db:           db,
		rooms:        rooms,
		matches:      matches,
		userRepo:     userRepo,
		matchRepo:    matchRepo,
		roundService: roundService,
		notifier:     notifier,
		hub:          hub,
		uploader:     uploader,
		logger:       logger,
	}
}

// JoinMatch sends a player the authoritative state of their live match,
// used to sync after (re)connecting.
func (s *MatchService) JoinMatch(ctx context.Context, conn Conn, matchID int) error {
	session, ok := s.matches.Get(matchID)
	if !ok {
		return ErrMatchNotFound
	}
	if !session.isParticipant(conn.Username()) {
		return ErrNotAParticipant
	}

	session.Lock()
	payload := MatchStatePayload{
		FEN:       session.FEN,
		Turn:      session.Turn,
		WhiteTime: session.WhiteTime,
		BlackTime: session.BlackTime,
		White:     session.White,
		Black:     session.Black,
		Status:    session.Status,
	}
	session.Unlock()

	conn.Emit("match_state", payload)
	return nil
}

// MakeMove applies a move to the session and relays it to the match group.
// The server trusts the client's FEN; it enforces only turn order, match
// liveness and move shape.
func (s *MatchService) MakeMove(ctx context.Context, conn Conn, matchID int, move MovePayload, fen string) error {
	session, ok := s.matches.Get(matchID)
	if !ok {
		return ErrMatchInactive
	}
	username := conn.Username()

	session.Lock()
	if session.Status != models.MatchActive {
		session.Unlock()
		return ErrMatchInactive
	}
	if !session.isParticipant(username) {
		session.Unlock()
		return ErrNotAParticipant
	}
	mover := "w"
	if username == session.Black {
		mover = "b"
	}
	if session.Turn != mover {
		session.Unlock()
		return ErrNotYourTurn
	}
	if move.From == "" || move.To == "" {
		session.Unlock()
		return ErrMalformedMove
	}

	session.FEN = fen
	if session.Turn == "w" {
		session.Turn = "b"
	} else {
		session.Turn = "w"
	}
	session.moves = append(session.moves, move.From+move.To+move.Promotion)

	payload := MoveMadePayload{
		Move:      move,
		FEN:       session.FEN,
		Turn:      session.Turn,
		WhiteTime: session.WhiteTime,
		BlackTime: session.BlackTime,
		By:        username,
	}
	session.Unlock()

	s.hub.BroadcastToRoom(matchGroup(matchID), "move_made", payload)
	return nil
}

// UpdateTimer records the clocks reported by the white player and ends the
// match when either clock hits zero. Reports from anyone but white are
// dropped without error, as are reports for matches that just ended; both
// are routine races, not client faults.
func (s *MatchService) UpdateTimer(ctx context.Context, conn Conn, matchID, whiteTime, blackTime int) error {
	session, ok := s.matches.Get(matchID)
	if !ok {
		return nil
	}

	session.Lock()
	if session.Status != models.MatchActive || conn.Username() != session.White {
		session.Unlock()
		return nil
	}
	session.WhiteTime = whiteTime
	session.BlackTime = blackTime

	// White's clock is checked first: if both read zero, white loses.
	var winner *string
	if whiteTime <= 0 {
		w := session.Black
		winner = &w
	} else if blackTime <= 0 {
		w := session.White
		winner = &w
	}
	session.Unlock()

	if winner != nil {
		return s.terminate(ctx, matchID, winner, models.ResultTimeout)
	}

	s.hub.BroadcastToRoom(matchGroup(matchID), "timer_update", TimerUpdatePayload{
		WhiteTime: whiteTime,
		BlackTime: blackTime,
	})
	return nil
}

// GameOver is the client-reported board outcome: checkmate, draw or
// stalemate. Timeouts arrive via UpdateTimer and resignations via Resign.
func (s *MatchService) GameOver(ctx context.Context, conn Conn, matchID int, result models.MatchResult, winner *string) error {
	session, ok := s.matches.Get(matchID)
	if !ok {
		return ErrMatchInactive
	}
	if !session.isParticipant(conn.Username()) {
		return ErrNotAParticipant
	}

	switch result {
	case models.ResultCheckmate:
		if winner == nil || !session.isParticipant(*winner) {
			return ErrInvalidResult
		}
	case models.ResultDraw, models.ResultStalemate:
		winner = nil
	default:
		return ErrInvalidResult
	}

	return s.terminate(ctx, matchID, winner, result)
}

// Resign ends the match in the opponent's favor.
func (s *MatchService) Resign(ctx context.Context, conn Conn, matchID int) error {
	session, ok := s.matches.Get(matchID)
	if !ok {
		return ErrMatchInactive
	}
	username := conn.Username()
	if !session.isParticipant(username) {
		return ErrNotAParticipant
	}

	winner := session.Black
	if username == session.Black {
		winner = session.White
	}
	return s.terminate(ctx, matchID, &winner, models.ResultResignation)
}

// terminate is the single exit path for a match. The registry's Complete
// gate guarantees the body runs at most once per match id, no matter how
// many triggers race.
func (s *MatchService) terminate(ctx context.Context, matchID int, winner *string, result models.MatchResult) error {
	session, won := s.matches.Complete(matchID)
	if !won {
		return nil
	}
	defer s.matches.Remove(matchID)

	session.Lock()
	pgn := session.moveLog()
	white := session.White
	black := session.Black
	roomCode := session.RoomCode
	roundName := session.RoundName
	session.Unlock()

	err := withTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Complete(ctx, exec, matchID, winner, result, pgn, time.Now().UTC()); err != nil {
			return err
		}
		return s.applyStats(ctx, exec, white, black, winner)
	})
	if err != nil {
		s.logger.Error("failed to persist match result",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return err
	}

	s.hub.BroadcastToRoom(matchGroup(matchID), "game_ended", GameEndedPayload{
		Winner:      winner,
		Result:      result,
		WhitePlayer: white,
		BlackPlayer: black,
	})

	if room, ok := s.rooms.Get(roomCode); ok {
		room.Lock()
		if roundName != models.RoundFriendly {
			for i := range room.Bracket {
				entry := &room.Bracket[i]
				if entry.MatchID != nil && *entry.MatchID == matchID {
					entry.Winner = winner
					entry.Status = models.MatchCompleted
					break
				}
			}
		}
		snap := room.snapshot()
		room.Unlock()

		s.hub.BroadcastToRoom(roomCode, "match_result", MatchResultPayload{
			MatchID: matchID,
			Winner:  winner,
			Result:  result,
			White:   white,
			Black:   black,
		})
		s.notifier.EmitLeaderboard(ctx, snap)
	}

	if roundName != models.RoundFriendly {
		if err := s.roundService.CheckRoundComplete(ctx, roomCode); err != nil {
			s.logger.Error("round advancement check failed",
				slog.String("room", roomCode), slog.Any("error", err))
		}
	}

	if s.uploader != nil && pgn != "" {
		go s.archiveMoves(matchID, white, black, roundName, result, pgn)
	}

	s.logger.Info("match ended",
		slog.Int("match_id", matchID),
		slog.String("result", string(result)))
	return nil
}

// applyStats updates both players' counters and ratings. A nil winner is a
// draw: both get a draw, nobody's rating moves. Counters and rating are
// written as relative deltas so matches finishing concurrently for the same
// player never clobber each other's update.
func (s *MatchService) applyStats(ctx context.Context, exec repositories.SQLExecutor, white, black string, winner *string) error {
	whiteDelta := models.StatsDelta{Matches: 1}
	blackDelta := models.StatsDelta{Matches: 1}

	switch {
	case winner == nil:
		whiteDelta.Draws = 1
		blackDelta.Draws = 1
	case *winner == white, *winner == black:
		winnerName, loserName := white, black
		winnerDelta, loserDelta := &whiteDelta, &blackDelta
		if *winner == black {
			winnerName, loserName = black, white
			winnerDelta, loserDelta = &blackDelta, &whiteDelta
		}
		winnerUser, err := s.userRepo.GetByUsername(ctx, winnerName)
		if err != nil {
			return err
		}
		loserUser, err := s.userRepo.GetByUsername(ctx, loserName)
		if err != nil {
			return err
		}
		newWinner, newLoser := elo.Update(winnerUser.EloRating, loserUser.EloRating)
		winnerDelta.Wins = 1
		winnerDelta.Rating = newWinner - winnerUser.EloRating
		loserDelta.Losses = 1
		loserDelta.Rating = newLoser - loserUser.EloRating
	default:
		return ErrInvalidResult
	}

	if err := s.userRepo.AdjustStats(ctx, exec, white, whiteDelta); err != nil {
		return err
	}
	return s.userRepo.AdjustStats(ctx, exec, black, blackDelta)
}

// archiveMoves uploads the finished game's move log to object storage.
// Best effort; failures are logged and never affect the game result.
func (s *MatchService) archiveMoves(matchID int, white, black, roundName string, result models.MatchResult, pgn string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "[Event %q]\n", roundName)
	fmt.Fprintf(&b, "[White %q]\n", white)
	fmt.Fprintf(&b, "[Black %q]\n", black)
	fmt.Fprintf(&b, "[Termination %q]\n\n", string(result))
	b.WriteString(pgn)
	b.WriteString("\n")

	key := fmt.Sprintf("matches/%d.pgn", matchID)
	if _, err := s.uploader.Upload(ctx, key, "application/x-chess-pgn", strings.NewReader(b.String())); err != nil {
		s.logger.Error("failed to archive match",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}
	s.logger.Info("match archived", slog.Int("match_id", matchID), slog.String("key", key))
}
