package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/chess-arena/brackets"
	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
	"github.com/Dosada05/chess-arena/utils"
)

const maxRoomPlayers = 10

// RoomService is the room registry: it owns the in-memory room sessions and
// handles every lobby-scoped client event.
type RoomService struct {
	db             *sql.DB
	rooms          *RoomRegistry
	matches        *MatchRegistry
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	roundService   *RoundService
	notifier       *RoomNotifier
	hub            Broadcaster
	logger         *slog.Logger
}

func NewRoomService(
	db *sql.DB,
	rooms *RoomRegistry,
	matches *MatchRegistry,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	roundService *RoundService,
	notifier *RoomNotifier,
	hub Broadcaster,
	logger *slog.Logger,
) *RoomService {
	return &RoomService{
		db:             db,
		rooms:          rooms,
		matches:        matches,
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		roundService:   roundService,
		notifier:       notifier,
		hub:            hub,
		logger:         logger,
	}
}

// CreateRoom allocates a fresh room code, persists the backing tournament
// and initializes the room session. Code collisions are retried internally.
func (s *RoomService) CreateRoom(ctx context.Context, admin string) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := utils.GenerateRoomCode()
		if _, exists := s.rooms.Get(code); exists {
			continue
		}

		tournament := &models.Tournament{
			RoomCode:      code,
			AdminUsername: admin,
			Status:        models.TournamentWaiting,
		}
		if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
			if errors.Is(err, repositories.ErrRoomCodeConflict) {
				continue
			}
			return "", err
		}

		room := newRoomSession(code, tournament.ID, admin)
		if !s.rooms.PutIfAbsent(room) {
			// Registry collision after a successful insert means another
			// process-local create raced us on the same code; try again.
			continue
		}
		s.logger.Info("room created", slog.String("room", code), slog.String("admin", admin))
		return code, nil
	}
	return "", fmt.Errorf("failed to allocate a unique room code")
}

// Join registers the connection in the room and appends the player to the
// durable participant list. Rejoining an active tournament is allowed for
// existing participants; reconnects are last-writer-wins.
func (s *RoomService) Join(ctx context.Context, conn Conn, roomCode string) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	username := conn.Username()

	room.Lock()
	_, present := room.players[username]
	if room.Status != models.TournamentWaiting && !present {
		room.Unlock()
		return ErrTournamentInProgress
	}
	if len(room.players) >= maxRoomPlayers && !present {
		room.Unlock()
		return ErrRoomFull
	}
	room.addPlayer(conn)
	isAdmin := username == room.Admin
	snap := room.snapshot()
	room.Unlock()

	if err := s.tournamentRepo.AddParticipant(ctx, room.TournamentID, username); err != nil {
		s.logger.Error("failed to persist participant", slog.String("room", roomCode), slog.Any("error", err))
	}

	conn.Emit("joined_room", JoinedRoomPayload{RoomCode: roomCode, Username: username, IsAdmin: isAdmin})
	s.notifier.EmitRoomUpdate(ctx, snap)
	return nil
}

// HandleDisconnect locates the room holding exactly this connection and
// removes the player. A connection already replaced by a reconnect is
// ignored.
func (s *RoomService) HandleDisconnect(ctx context.Context, conn Conn) {
	room := s.rooms.FindByConn(conn)
	if room == nil {
		return
	}
	username := conn.Username()

	room.Lock()
	room.removePlayer(username)
	stillWaiting := room.Status == models.TournamentWaiting
	snap := room.snapshot()
	room.Unlock()

	if stillWaiting {
		if err := s.tournamentRepo.RemoveParticipant(ctx, room.TournamentID, username); err != nil {
			s.logger.Error("failed to remove participant", slog.String("room", room.RoomCode), slog.Any("error", err))
		}
	}

	s.notifier.EmitRoomUpdate(ctx, snap)
	s.hub.BroadcastToRoom(room.RoomCode, "player_left", PlayerLeftPayload{Username: username})
}

// OfferMatch stores a friendly-match offer keyed by (requester, opponent)
// and notifies the opponent only. A newer offer for the same pair replaces
// the older one.
func (s *RoomService) OfferMatch(ctx context.Context, conn Conn, roomCode, opponent string, timeControl int) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	requester := conn.Username()

	room.Lock()
	if _, ok := room.playerConn(requester); !ok {
		room.Unlock()
		return ErrNotInRoom
	}
	opponentConn, ok := room.playerConn(opponent)
	if !ok {
		room.Unlock()
		return ErrOpponentNotFound
	}
	normalized := normalizeTimeControl(timeControl)
	room.offers[offerKey{Requester: requester, Opponent: opponent}] = normalized
	room.Unlock()

	opponentConn.Emit("match_request_received", MatchRequestPayload{
		From:        requester,
		TimeControl: normalized,
		RoomCode:    roomCode,
	})
	return nil
}

// RespondMatch consumes a pending offer exactly once. Accepting creates an
// active Match and its live session; declining notifies the requester only.
func (s *RoomService) RespondMatch(ctx context.Context, conn Conn, roomCode, requester string, accepted bool) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	responder := conn.Username()

	room.Lock()
	key := offerKey{Requester: requester, Opponent: responder}
	timeControl, ok := room.offers[key]
	if !ok {
		room.Unlock()
		return ErrOfferNotFound
	}
	delete(room.offers, key)

	if !accepted {
		requesterConn, ok := room.playerConn(requester)
		room.Unlock()
		if ok {
			requesterConn.Emit("match_request_declined", MatchRequestDeclinedPayload{By: responder})
		}
		return nil
	}

	match := &models.Match{
		TournamentID: room.TournamentID,
		RoundName:    models.RoundFriendly,
		WhitePlayer:  requester,
		BlackPlayer:  responder,
		TimeControl:  timeControl,
		Status:       models.MatchActive,
	}
	if err := s.matchRepo.Create(ctx, nil, match); err != nil {
		room.Unlock()
		return err
	}
	s.matches.Put(newMatchSession(match, roomCode))

	for player, color := range map[string]string{requester: "white", responder: "black"} {
		if playerConn, ok := room.playerConn(player); ok {
			playerConn.Emit("match_started", MatchStartedPayload{
				MatchID:     match.ID,
				White:       requester,
				Black:       responder,
				Color:       color,
				TimeControl: timeControl,
			})
		}
	}
	room.Unlock()

	s.logger.Info("friendly match started",
		slog.String("room", roomCode),
		slog.Int("match_id", match.ID),
		slog.String("white", requester),
		slog.String("black", responder))
	return nil
}

// StartTournament snapshots the roster, generates the first round and
// launches its matches. Admin only; requires 2-10 present players.
func (s *RoomService) StartTournament(ctx context.Context, conn Conn, roomCode string, timeControl int) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}

	room.Lock()
	defer room.Unlock()

	if conn.Username() != room.Admin {
		return ErrNotAdmin
	}
	if room.Status != models.TournamentWaiting {
		return ErrTournamentNotWaiting
	}
	players := room.playerList()
	if len(players) < 2 {
		return ErrNotEnoughPlayers
	}
	if len(players) > maxRoomPlayers {
		return ErrRoomFull
	}

	timeControl = normalizeTimeControl(timeControl)
	roundName := brackets.RoundName(len(players))

	prepare := func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, room.TournamentID, models.TournamentActive, roundName); err != nil {
			return err
		}
		return s.tournamentRepo.ReplaceParticipants(ctx, exec, room.TournamentID, players)
	}
	bracket, err := s.roundService.BeginRound(ctx, room, roundName, players, timeControl, prepare)
	if err != nil {
		return err
	}

	room.Status = models.TournamentActive
	room.DefaultTime = timeControl
	snap := room.snapshot()

	s.hub.BroadcastToRoom(roomCode, "tournament_started", RoundPayload{
		RoundName: roundName,
		Bracket:   bracket,
		Message:   fmt.Sprintf("Tournament started! %s begins!", roundName),
	})
	s.notifier.EmitLeaderboard(ctx, snap)

	s.logger.Info("tournament started",
		slog.String("room", roomCode),
		slog.Int("players", len(players)),
		slog.String("round", roundName))
	return nil
}

// AdminRemove kicks a player: a distinct notice to the target, then the same
// cleanup as a voluntary leave.
func (s *RoomService) AdminRemove(ctx context.Context, conn Conn, roomCode, target string) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if conn.Username() != room.Admin {
		return ErrNotAdmin
	}

	room.Lock()
	targetConn, present := room.playerConn(target)
	if !present {
		room.Unlock()
		return nil
	}
	room.removePlayer(target)
	stillWaiting := room.Status == models.TournamentWaiting
	snap := room.snapshot()
	room.Unlock()

	targetConn.Emit("kicked", KickedPayload{Message: "You were removed by the admin"})

	if stillWaiting {
		if err := s.tournamentRepo.RemoveParticipant(ctx, room.TournamentID, target); err != nil {
			s.logger.Error("failed to remove participant", slog.String("room", roomCode), slog.Any("error", err))
		}
	}

	s.notifier.EmitRoomUpdate(ctx, snap)
	s.hub.BroadcastToRoom(roomCode, "player_left", PlayerLeftPayload{Username: target})
	return nil
}

// ForceNextRound is the admin's manual advancement recheck. It is a no-op
// when the current round genuinely is not finished.
func (s *RoomService) ForceNextRound(ctx context.Context, conn Conn, roomCode string) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	if conn.Username() != room.Admin {
		return ErrNotAdmin
	}
	return s.roundService.CheckRoundComplete(ctx, roomCode)
}

// Chat broadcasts a room-scoped message with a server timestamp. Messages
// are truncated to 200 characters and never persisted.
func (s *RoomService) Chat(ctx context.Context, conn Conn, roomCode, message string) error {
	room, ok := s.rooms.Get(roomCode)
	if !ok {
		return ErrRoomNotFound
	}
	username := conn.Username()

	room.Lock()
	_, member := room.playerConn(username)
	room.Unlock()
	if !member {
		return ErrNotInRoom
	}

	if message == "" {
		return nil
	}
	if runes := []rune(message); len(runes) > 200 {
		message = string(runes[:200])
	}

	s.hub.BroadcastToRoom(roomCode, "chat_message", ChatMessagePayload{
		Username:  username,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}
