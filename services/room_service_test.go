package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Dosada05/chess-arena/models"
)

func TestCreateRoomAllocatesUniqueCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := env.roomService.CreateRoom(ctx, "alice")
		if err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		if seen[code] {
			t.Fatalf("code %q allocated twice", code)
		}
		seen[code] = true

		if _, err := env.tourns.GetByRoomCode(ctx, code); err != nil {
			t.Fatalf("no durable tournament for code %q: %v", code, err)
		}
	}
}

func TestJoinRejectsEleventhPlayer(t *testing.T) {
	ctx := context.Background()
	names := make([]string, 11)
	for i := range names {
		names[i] = fmt.Sprintf("player%d", i)
	}
	env := newTestEnv(names...)

	roomCode, err := env.roomService.CreateRoom(ctx, names[0])
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := env.roomService.Join(ctx, newFakeConn(names[i]), roomCode); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	err = env.roomService.Join(ctx, newFakeConn(names[10]), roomCode)
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("error = %v, want ErrRoomFull", err)
	}
}

func TestJoinFullRoomAllowsReconnect(t *testing.T) {
	ctx := context.Background()
	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("player%d", i)
	}
	env := newTestEnv(names...)

	roomCode, err := env.roomService.CreateRoom(ctx, names[0])
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, name := range names {
		if err := env.roomService.Join(ctx, newFakeConn(name), roomCode); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}

	// A present player reconnecting does not count against the cap.
	if err := env.roomService.Join(ctx, newFakeConn(names[3]), roomCode); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
}

func TestJoinActiveTournamentRejectsNewcomer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob", "carol")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}
	if err := env.roomService.StartTournament(ctx, alice, roomCode, 300); err != nil {
		t.Fatalf("StartTournament: %v", err)
	}

	if err := env.roomService.Join(ctx, newFakeConn("carol"), roomCode); !errors.Is(err, ErrTournamentInProgress) {
		t.Fatalf("newcomer error = %v, want ErrTournamentInProgress", err)
	}
	// Participants may rejoin mid-tournament.
	if err := env.roomService.Join(ctx, newFakeConn("bob"), roomCode); err != nil {
		t.Fatalf("participant rejoin: %v", err)
	}
}

func TestOfferLatestWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	if err := env.roomService.OfferMatch(ctx, alice, roomCode, "bob", 60); err != nil {
		t.Fatalf("first offer: %v", err)
	}
	if err := env.roomService.OfferMatch(ctx, alice, roomCode, "bob", 600); err != nil {
		t.Fatalf("second offer: %v", err)
	}
	if err := env.roomService.RespondMatch(ctx, bob, roomCode, "alice", true); err != nil {
		t.Fatalf("RespondMatch: %v", err)
	}

	matches, _ := env.matchDB.ListByTournament(ctx, 1)
	if len(matches) != 1 {
		t.Fatalf("matches created = %d, want 1", len(matches))
	}
	if matches[0].TimeControl != 600 {
		t.Errorf("time control = %d, want the later offer's 600", matches[0].TimeControl)
	}
}

func TestRespondWithoutOfferFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	if err := env.roomService.RespondMatch(ctx, bob, roomCode, "alice", true); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("error = %v, want ErrOfferNotFound", err)
	}
	if matches, _ := env.matchDB.ListByTournament(ctx, 1); len(matches) != 0 {
		t.Errorf("matches created = %d, want 0", len(matches))
	}
}

func TestDeclineConsumesOffer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	if err := env.roomService.OfferMatch(ctx, alice, roomCode, "bob", 300); err != nil {
		t.Fatalf("OfferMatch: %v", err)
	}
	if err := env.roomService.RespondMatch(ctx, bob, roomCode, "alice", false); err != nil {
		t.Fatalf("decline: %v", err)
	}

	if got := alice.eventsOf("match_request_declined"); len(got) != 1 {
		t.Fatalf("declined notices to requester = %d, want 1", len(got))
	}
	// The offer is single-use either way.
	if err := env.roomService.RespondMatch(ctx, bob, roomCode, "alice", true); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("error = %v, want ErrOfferNotFound after decline", err)
	}
}

func TestStartTournamentThreePlayers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob", "carol")
	alice, bob, carol := newFakeConn("alice"), newFakeConn("bob"), newFakeConn("carol")

	roomCode, err := env.makeRoom(ctx, alice, bob, carol)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}
	if err := env.roomService.StartTournament(ctx, alice, roomCode, 300); err != nil {
		t.Fatalf("StartTournament: %v", err)
	}

	tournament, err := env.tourns.GetByRoomCode(ctx, roomCode)
	if err != nil {
		t.Fatalf("GetByRoomCode: %v", err)
	}
	if tournament.Status != models.TournamentActive {
		t.Errorf("status = %s, want active", tournament.Status)
	}
	if tournament.CurrentRound != "Semi Final" {
		t.Errorf("round = %q, want Semi Final for 3 players", tournament.CurrentRound)
	}

	matches, _ := env.matchDB.ListByTournament(ctx, tournament.ID)
	if len(matches) != 1 {
		t.Fatalf("matches created = %d, want 1 (the bye has no match row)", len(matches))
	}

	room, _ := env.rooms.Get(roomCode)
	room.Lock()
	bracket := append([]models.BracketEntry(nil), room.Bracket...)
	room.Unlock()

	if len(bracket) != 2 {
		t.Fatalf("bracket entries = %d, want 2", len(bracket))
	}
	byes := 0
	for _, entry := range bracket {
		if entry.Black == models.ByePlayer {
			byes++
			if entry.MatchID != nil {
				t.Error("bye entry must not reference a match")
			}
			if entry.Status != models.MatchCompleted || entry.Winner == nil || *entry.Winner != entry.White {
				t.Errorf("bye entry = %+v, want completed with the lone player as winner", entry)
			}
		}
	}
	if byes != 1 {
		t.Errorf("bye entries = %d, want 1", byes)
	}

	// Both paired players got their assignment.
	started := 0
	for _, conn := range []*fakeConn{alice, bob, carol} {
		started += len(conn.eventsOf("match_started"))
	}
	if started != 2 {
		t.Errorf("match_started notices = %d, want 2", started)
	}
}

func TestStartTournamentGuards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	if err := env.roomService.StartTournament(ctx, bob, roomCode, 300); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin error = %v, want ErrNotAdmin", err)
	}
	if err := env.roomService.StartTournament(ctx, alice, roomCode, 300); err != nil {
		t.Fatalf("StartTournament: %v", err)
	}
	if err := env.roomService.StartTournament(ctx, alice, roomCode, 300); !errors.Is(err, ErrTournamentNotWaiting) {
		t.Fatalf("double start error = %v, want ErrTournamentNotWaiting", err)
	}
}

func TestStartTournamentNeedsTwoPlayers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice")
	alice := newFakeConn("alice")

	roomCode, err := env.makeRoom(ctx, alice)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}
	if err := env.roomService.StartTournament(ctx, alice, roomCode, 300); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("error = %v, want ErrNotEnoughPlayers", err)
	}
}

func TestAdminRemoveKicksPlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	if err := env.roomService.AdminRemove(ctx, bob, roomCode, "alice"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin kick error = %v, want ErrNotAdmin", err)
	}
	if err := env.roomService.AdminRemove(ctx, alice, roomCode, "bob"); err != nil {
		t.Fatalf("AdminRemove: %v", err)
	}

	if got := bob.eventsOf("kicked"); len(got) != 1 {
		t.Errorf("kicked notices = %d, want 1", len(got))
	}
	room, _ := env.rooms.Get(roomCode)
	room.Lock()
	_, present := room.players["bob"]
	room.Unlock()
	if present {
		t.Error("kicked player still in room")
	}
	participants, _ := env.tourns.ListParticipants(ctx, room.TournamentID)
	for _, p := range participants {
		if p == "bob" {
			t.Error("kicked player still a durable participant")
		}
	}
}

func TestChatTruncatesLongMessages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	// Multi-byte runes: truncation counts characters, not bytes, and must
	// never leave a split rune at the cut.
	if err := env.roomService.Chat(ctx, alice, roomCode, strings.Repeat("♞", 500)); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	env.hub.mu.Lock()
	defer env.hub.mu.Unlock()
	for _, b := range env.hub.broadcasts {
		if b.Event != "chat_message" {
			continue
		}
		payload := b.Payload.(ChatMessagePayload)
		if got := utf8.RuneCountInString(payload.Message); got != 200 {
			t.Errorf("message length = %d runes, want 200", got)
		}
		if !utf8.ValidString(payload.Message) {
			t.Error("truncation produced invalid UTF-8")
		}
		if payload.Timestamp == "" {
			t.Error("missing server timestamp")
		}
		return
	}
	t.Fatal("no chat_message broadcast")
}

func TestDisconnectRemovesWaitingPlayer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	env.roomService.HandleDisconnect(ctx, bob)

	room, _ := env.rooms.Get(roomCode)
	room.Lock()
	_, present := room.players["bob"]
	room.Unlock()
	if present {
		t.Error("disconnected player still in room")
	}
	participants, _ := env.tourns.ListParticipants(ctx, room.TournamentID)
	for _, p := range participants {
		if p == "bob" {
			t.Error("waiting-stage disconnect must drop durable participation")
		}
	}
	if got := env.hub.count(roomCode, "player_left"); got != 1 {
		t.Errorf("player_left broadcasts = %d, want 1", got)
	}
}

func TestStaleDisconnectIgnoredAfterReconnect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv("alice", "bob")
	alice, bob := newFakeConn("alice"), newFakeConn("bob")

	roomCode, err := env.makeRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("makeRoom: %v", err)
	}

	// bob reconnects on a fresh socket, then the old socket's close fires.
	bob2 := newFakeConn("bob")
	if err := env.roomService.Join(ctx, bob2, roomCode); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	env.roomService.HandleDisconnect(ctx, bob)

	room, _ := env.rooms.Get(roomCode)
	room.Lock()
	current, present := room.players["bob"]
	room.Unlock()
	if !present || current != bob2 {
		t.Error("stale disconnect evicted the live connection")
	}
}
