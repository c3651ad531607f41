package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/repositories"
)

// In-memory doubles for the repository and transport surfaces. The services
// take a nil *sql.DB in tests, so withTx hands them a nil executor and the
// fakes ignore it.

type emittedEvent struct {
	Event   string
	Payload interface{}
}

type fakeConn struct {
	mu       sync.Mutex
	username string
	events   []emittedEvent
}

func newFakeConn(username string) *fakeConn {
	return &fakeConn{username: username}
}

func (c *fakeConn) Username() string { return c.username }

func (c *fakeConn) Emit(event string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emittedEvent{Event: event, Payload: payload})
}

func (c *fakeConn) eventsOf(event string) []emittedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emittedEvent
	for _, e := range c.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type broadcastRecord struct {
	Group   string
	Event   string
	Payload interface{}
}

type fakeHub struct {
	mu         sync.Mutex
	broadcasts []broadcastRecord
}

func (h *fakeHub) BroadcastToRoom(group, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, broadcastRecord{Group: group, Event: event, Payload: payload})
}

func (h *fakeHub) count(group, event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, b := range h.broadcasts {
		if b.Group == group && b.Event == event {
			n++
		}
	}
	return n
}

type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*models.User
	updates int
}

func newFakeUserRepo(usernames ...string) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.User)}
	for i, name := range usernames {
		r.users[name] = &models.User{
			ID:        i + 1,
			Username:  name,
			EloRating: models.DefaultEloRating,
		}
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Username]; exists {
		return repositories.ErrUsernameConflict
	}
	user.ID = len(r.users) + 1
	clone := *user
	r.users[user.Username] = &clone
	return nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetManyByUsername(ctx context.Context, usernames []string) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, name := range usernames {
		if user, ok := r.users[name]; ok {
			clone := *user
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) AdjustStats(ctx context.Context, exec repositories.SQLExecutor, username string, delta models.StatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[username]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.TotalMatches += delta.Matches
	user.TotalWins += delta.Wins
	user.TotalLosses += delta.Losses
	user.TotalDraws += delta.Draws
	user.TournamentsPlayed += delta.TournamentsPlayed
	user.TournamentWins += delta.TournamentWins
	user.EloRating += delta.Rating
	r.updates++
	return nil
}

func (r *fakeUserRepo) ListTopByRating(ctx context.Context, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, user := range r.users {
		clone := *user
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeUserRepo) get(username string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[username]
}

type fakeTournamentRepo struct {
	mu           sync.Mutex
	nextID       int
	tournaments  map[int]*models.Tournament
	participants map[int][]string
	rounds       map[int][]models.Round
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{
		tournaments:  make(map[int]*models.Tournament),
		participants: make(map[int][]string),
		rounds:       make(map[int][]models.Round),
	}
}

func (r *fakeTournamentRepo) Create(ctx context.Context, tournament *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tournaments {
		if existing.RoomCode == tournament.RoomCode {
			return repositories.ErrRoomCodeConflict
		}
	}
	r.nextID++
	tournament.ID = r.nextID
	clone := *tournament
	r.tournaments[tournament.ID] = &clone
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tournament, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *tournament
	return &clone, nil
}

func (r *fakeTournamentRepo) GetByRoomCode(ctx context.Context, roomCode string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tournament := range r.tournaments {
		if tournament.RoomCode == roomCode {
			clone := *tournament
			return &clone, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus, currentRound string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tournament, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if tournament.Status == models.TournamentCompleted {
		return repositories.ErrTournamentNotWritable
	}
	tournament.Status = status
	tournament.CurrentRound = currentRound
	return nil
}

func (r *fakeTournamentRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, id int, winner string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tournament, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if tournament.Status == models.TournamentCompleted {
		return repositories.ErrTournamentNotWritable
	}
	tournament.Status = models.TournamentCompleted
	tournament.WinnerUsername = &winner
	tournament.CompletedAt = &completedAt
	return nil
}

func (r *fakeTournamentRepo) AddParticipant(ctx context.Context, id int, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants[id] {
		if existing == username {
			return nil
		}
	}
	r.participants[id] = append(r.participants[id], username)
	return nil
}

func (r *fakeTournamentRepo) RemoveParticipant(ctx context.Context, id int, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.participants[id]
	for i, existing := range list {
		if existing == username {
			r.participants[id] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeTournamentRepo) ReplaceParticipants(ctx context.Context, exec repositories.SQLExecutor, id int, usernames []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[id] = append([]string(nil), usernames...)
	return nil
}

func (r *fakeTournamentRepo) ListParticipants(ctx context.Context, id int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.participants[id]...), nil
}

func (r *fakeTournamentRepo) AppendRound(ctx context.Context, exec repositories.SQLExecutor, id int, round models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds[id] = append(r.rounds[id], round)
	return nil
}

func (r *fakeTournamentRepo) ListRounds(ctx context.Context, id int) ([]models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Round(nil), r.rounds[id]...), nil
}

func (r *fakeTournamentRepo) ListCompleted(ctx context.Context, limit int) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, tournament := range r.tournaments {
		if tournament.Status == models.TournamentCompleted {
			clone := *tournament
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	match.ID = r.nextID
	clone := *match
	r.matches[match.ID] = &clone
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *match
	return &clone, nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status == models.MatchCompleted {
		return repositories.ErrMatchAlreadyCompleted
	}
	match.Status = status
	return nil
}

func (r *fakeMatchRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, id int, winner *string, result models.MatchResult, pgn string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status == models.MatchCompleted {
		return repositories.ErrMatchAlreadyCompleted
	}
	match.Status = models.MatchCompleted
	match.Winner = winner
	match.Result = &result
	match.PGN = pgn
	match.CompletedAt = &completedAt
	return nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for id := 1; id <= r.nextID; id++ {
		match, ok := r.matches[id]
		if ok && match.TournamentID == tournamentID {
			clone := *match
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListByTournamentRound(ctx context.Context, tournamentID int, roundName string) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for id := 1; id <= r.nextID; id++ {
		match, ok := r.matches[id]
		if ok && match.TournamentID == tournamentID && match.RoundName == roundName {
			clone := *match
			out = append(out, &clone)
		}
	}
	return out, nil
}

// testEnv wires the full service stack against the fakes.
type testEnv struct {
	hub      *fakeHub
	users    *fakeUserRepo
	tourns   *fakeTournamentRepo
	matchDB  *fakeMatchRepo
	rooms    *RoomRegistry
	sessions *MatchRegistry

	roomService  *RoomService
	matchService *MatchService
	roundService *RoundService
}

func newTestEnv(usernames ...string) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := &fakeHub{}
	users := newFakeUserRepo(usernames...)
	tourns := newFakeTournamentRepo()
	matchDB := newFakeMatchRepo()
	rooms := NewRoomRegistry()
	sessions := NewMatchRegistry()
	notifier := NewRoomNotifier(hub, users, tourns, matchDB, logger)

	roundService := NewRoundService(nil, rooms, sessions, users, tourns, matchDB, notifier, hub, logger)
	matchService := NewMatchService(nil, rooms, sessions, users, matchDB, roundService, notifier, hub, nil, logger)
	roomService := NewRoomService(nil, rooms, sessions, users, tourns, matchDB, roundService, notifier, hub, logger)

	return &testEnv{
		hub:      hub,
		users:    users,
		tourns:   tourns,
		matchDB:  matchDB,
		rooms:    rooms,
		sessions: sessions,

		roomService:  roomService,
		matchService: matchService,
		roundService: roundService,
	}
}

// makeRoom creates a room and joins the given connections, first one as
// admin.
func (e *testEnv) makeRoom(ctx context.Context, conns ...*fakeConn) (string, error) {
	roomCode, err := e.roomService.CreateRoom(ctx, conns[0].Username())
	if err != nil {
		return "", err
	}
	for _, conn := range conns {
		if err := e.roomService.Join(ctx, conn, roomCode); err != nil {
			return "", err
		}
	}
	return roomCode, nil
}

// makeFriendly creates an active friendly match between two users directly
// through the offer flow.
func (e *testEnv) makeFriendly(ctx context.Context, roomCode string, white, black *fakeConn, timeControl int) (int, error) {
	if err := e.roomService.OfferMatch(ctx, white, roomCode, black.Username(), timeControl); err != nil {
		return 0, err
	}
	if err := e.roomService.RespondMatch(ctx, black, roomCode, white.Username(), true); err != nil {
		return 0, err
	}
	started := white.eventsOf("match_started")
	if len(started) == 0 {
		return 0, ErrMatchNotFound
	}
	payload := started[len(started)-1].Payload.(MatchStartedPayload)
	return payload.MatchID, nil
}
