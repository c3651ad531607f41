package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/services"
	"github.com/Dosada05/chess-arena/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the deployed frontend origin.
		return true
	},
}

// WebSocketHandler authenticates socket connections and routes every inbound
// event to the owning service.
type WebSocketHandler struct {
	hub          *ws.Hub
	authService  services.AuthService
	roomService  *services.RoomService
	matchService *services.MatchService
	logger       *slog.Logger
}

func NewWebSocketHandler(
	hub *ws.Hub,
	authService services.AuthService,
	roomService *services.RoomService,
	matchService *services.MatchService,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		authService:  authService,
		roomService:  roomService,
		matchService: matchService,
		logger:       logger,
	}
}

// inboundMessage is the client->server envelope.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeWs upgrades an authenticated request to a WebSocket connection. The
// token travels in the query string because browsers cannot set headers on
// socket upgrades.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		unauthorizedResponse(w, "missing token")
		return
	}
	username, err := h.authService.ParseToken(token)
	if err != nil {
		unauthorizedResponse(w, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := ws.NewClient(h.hub, conn, username)
	client.OnMessage = func(raw []byte) {
		h.route(client, raw)
	}
	client.OnClose = func() {
		h.roomService.HandleDisconnect(context.Background(), client)
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("websocket connected", slog.String("username", username))
}

func (h *WebSocketHandler) route(client *ws.Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		client.Emit("error", services.ErrorPayload{Message: "malformed message"})
		return
	}

	ctx := context.Background()
	var err error

	switch msg.Type {
	case "join_room_socket":
		var p struct {
			RoomCode string `json:"room_code"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		p.RoomCode = strings.ToUpper(strings.TrimSpace(p.RoomCode))
		if err = h.roomService.Join(ctx, client, p.RoomCode); err == nil {
			h.hub.Join(client, p.RoomCode)
		}

	case "send_match_request":
		var p struct {
			RoomCode    string `json:"room_code"`
			Opponent    string `json:"opponent"`
			TimeControl int    `json:"time_control"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.OfferMatch(ctx, client, p.RoomCode, p.Opponent, p.TimeControl)

	case "respond_match_request":
		var p struct {
			RoomCode  string `json:"room_code"`
			Requester string `json:"requester"`
			Accepted  bool   `json:"accepted"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.RespondMatch(ctx, client, p.RoomCode, p.Requester, p.Accepted)

	case "start_tournament":
		var p struct {
			RoomCode    string `json:"room_code"`
			TimeControl int    `json:"time_control"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.StartTournament(ctx, client, p.RoomCode, p.TimeControl)

	case "join_match":
		var p struct {
			MatchID int `json:"match_id"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		if err = h.matchService.JoinMatch(ctx, client, p.MatchID); err == nil {
			h.hub.Join(client, fmt.Sprintf("match_%d", p.MatchID))
		}

	case "make_move":
		var p struct {
			MatchID int                  `json:"match_id"`
			Move    services.MovePayload `json:"move"`
			FEN     string               `json:"fen"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.matchService.MakeMove(ctx, client, p.MatchID, p.Move, p.FEN)

	case "update_timer":
		var p struct {
			MatchID   int `json:"match_id"`
			WhiteTime int `json:"white_time"`
			BlackTime int `json:"black_time"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.matchService.UpdateTimer(ctx, client, p.MatchID, p.WhiteTime, p.BlackTime)

	case "game_over":
		var p struct {
			MatchID int     `json:"match_id"`
			Result  string  `json:"result"`
			Winner  *string `json:"winner"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.matchService.GameOver(ctx, client, p.MatchID, models.MatchResult(p.Result), p.Winner)

	case "resign":
		var p struct {
			MatchID int `json:"match_id"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.matchService.Resign(ctx, client, p.MatchID)

	case "admin_remove_player":
		var p struct {
			RoomCode string `json:"room_code"`
			Username string `json:"username"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.AdminRemove(ctx, client, p.RoomCode, p.Username)

	case "admin_force_next_round":
		var p struct {
			RoomCode string `json:"room_code"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.ForceNextRound(ctx, client, p.RoomCode)

	case "chat_message":
		var p struct {
			RoomCode string `json:"room_code"`
			Message  string `json:"message"`
		}
		if err = json.Unmarshal(msg.Payload, &p); err != nil {
			break
		}
		err = h.roomService.Chat(ctx, client, p.RoomCode, p.Message)

	default:
		client.Emit("error", services.ErrorPayload{Message: "unknown event: " + msg.Type})
		return
	}

	if err != nil {
		h.logger.Debug("event rejected",
			slog.String("event", msg.Type),
			slog.String("username", client.Username()),
			slog.Any("error", err))
		client.Emit("error", services.ErrorPayload{Message: err.Error()})
	}
}
