package services

import (
	"sync"

	"github.com/Dosada05/chess-arena/models"
)

// Conn is the per-client connection handle the engine pushes events through.
// *ws.Client satisfies it; tests use a recorder.
type Conn interface {
	Username() string
	Emit(event string, payload interface{})
}

// Broadcaster fans an event out to every connection in a room or match
// group. *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastToRoom(group string, event string, payload interface{})
}

// InitialFEN is the standard starting position stored on every new session.
const InitialFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type offerKey struct {
	Requester string
	Opponent  string
}

// RoomSession is the ephemeral in-memory state of one room. All mutation
// happens under mu; sessions live until process exit.
type RoomSession struct {
	mu sync.Mutex

	// advance serializes round advancement checks for this room. Always
	// acquired before mu, never while holding it.
	advance sync.Mutex

	RoomCode     string
	TournamentID int
	Admin        string
	Status       models.TournamentStatus
	DefaultTime  int
	Bracket      []models.BracketEntry

	players   map[string]Conn
	joinOrder []string
	offers    map[offerKey]int
}

func newRoomSession(roomCode string, tournamentID int, admin string) *RoomSession {
	return &RoomSession{
		RoomCode:     roomCode,
		TournamentID: tournamentID,
		Admin:        admin,
		Status:       models.TournamentWaiting,
		DefaultTime:  300,
		Bracket:      []models.BracketEntry{},
		players:      make(map[string]Conn),
		joinOrder:    make([]string, 0),
		offers:       make(map[offerKey]int),
	}
}

func (r *RoomSession) Lock()   { r.mu.Lock() }
func (r *RoomSession) Unlock() { r.mu.Unlock() }

// addPlayer registers a connection, last writer wins on reconnect. Join
// order is preserved across reconnects.
func (r *RoomSession) addPlayer(conn Conn) {
	username := conn.Username()
	if _, ok := r.players[username]; !ok {
		r.joinOrder = append(r.joinOrder, username)
	}
	r.players[username] = conn
}

func (r *RoomSession) removePlayer(username string) {
	delete(r.players, username)
	for i, name := range r.joinOrder {
		if name == username {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
}

func (r *RoomSession) playerConn(username string) (Conn, bool) {
	conn, ok := r.players[username]
	return conn, ok
}

// playerList returns usernames in join order.
func (r *RoomSession) playerList() []string {
	players := make([]string, len(r.joinOrder))
	copy(players, r.joinOrder)
	return players
}

// RoomSnapshot is a lock-free copy handed to the notifier so broadcast
// payload assembly never holds a room lock across store reads.
type RoomSnapshot struct {
	RoomCode     string
	TournamentID int
	Admin        string
	Status       models.TournamentStatus
	Players      []string
	Bracket      []models.BracketEntry
}

func (r *RoomSession) snapshot() RoomSnapshot {
	bracket := make([]models.BracketEntry, len(r.Bracket))
	copy(bracket, r.Bracket)
	return RoomSnapshot{
		RoomCode:     r.RoomCode,
		TournamentID: r.TournamentID,
		Admin:        r.Admin,
		Status:       r.Status,
		Players:      r.playerList(),
		Bracket:      bracket,
	}
}

// MatchSession is the live authoritative state of one in-progress game.
type MatchSession struct {
	mu sync.Mutex

	MatchID   int
	RoomCode  string
	RoundName string
	White     string
	Black     string
	WhiteTime int
	BlackTime int
	Turn      string // "w" or "b"
	FEN       string
	Status    models.MatchStatus

	moves []string
}

func newMatchSession(match *models.Match, roomCode string) *MatchSession {
	return &MatchSession{
		MatchID:   match.ID,
		RoomCode:  roomCode,
		RoundName: match.RoundName,
		White:     match.WhitePlayer,
		Black:     match.BlackPlayer,
		WhiteTime: match.TimeControl,
		BlackTime: match.TimeControl,
		Turn:      "w",
		FEN:       InitialFEN,
		Status:    models.MatchActive,
	}
}

func (m *MatchSession) Lock()   { m.mu.Lock() }
func (m *MatchSession) Unlock() { m.mu.Unlock() }

func (m *MatchSession) isParticipant(username string) bool {
	return username == m.White || username == m.Black
}

func (m *MatchSession) moveLog() string {
	out := ""
	for i, mv := range m.moves {
		if i > 0 {
			out += " "
		}
		out += mv
	}
	return out
}

// RoomRegistry maps room codes to sessions. The registry lock guards the map
// only; per-room state is guarded by the session's own mutex.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*RoomSession
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*RoomSession)}
}

func (r *RoomRegistry) Get(roomCode string) (*RoomSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomCode]
	return room, ok
}

// PutIfAbsent reserves a room code. Returns false on collision so the caller
// can retry with a fresh code.
func (r *RoomRegistry) PutIfAbsent(room *RoomSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[room.RoomCode]; exists {
		return false
	}
	r.rooms[room.RoomCode] = room
	return true
}

// FindByConn locates the one room (if any) holding exactly this connection
// for its username. A stale connection that was already replaced by a
// reconnect does not match.
func (r *RoomRegistry) FindByConn(conn Conn) *RoomSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		room.Lock()
		current, ok := room.players[conn.Username()]
		room.Unlock()
		if ok && current == conn {
			return room
		}
	}
	return nil
}

// MatchRegistry maps match ids to live sessions. Complete is the single
// termination gate: it atomically flips an active session to completed and
// returns it, so two racing termination triggers cannot both proceed.
type MatchRegistry struct {
	mu       sync.RWMutex
	sessions map[int]*MatchSession
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{sessions: make(map[int]*MatchSession)}
}

func (r *MatchRegistry) Get(matchID int) (*MatchSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[matchID]
	return session, ok
}

func (r *MatchRegistry) Put(session *MatchSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.MatchID] = session
}

// Complete returns the session exactly once per match lifetime. A second
// caller observes either a completed session or no session at all.
func (r *MatchRegistry) Complete(matchID int) (*MatchSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[matchID]
	if !ok {
		return nil, false
	}
	session.Lock()
	defer session.Unlock()
	if session.Status != models.MatchActive {
		return nil, false
	}
	session.Status = models.MatchCompleted
	return session, true
}

// Remove deletes unconditionally; termination calls it last.
func (r *MatchRegistry) Remove(matchID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}
