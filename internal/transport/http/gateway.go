package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"trivia-bot/internal/bot"
	"trivia-bot/internal/domain"
	"trivia-bot/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	maxInFlight    = 64
	requestTimeout = 30 * time.Second
)

type inboundMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type userPayload struct {
	UserID string `json:"userId"`
}

type rankRequest struct {
	UserID string `json:"userId"`
	Period string `json:"period"`
}

type channelUserPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

type leaderboardRequest struct {
	ChannelID string `json:"channelId"`
	Period    string `json:"period"`
	Limit     int    `json:"limit"`
}

type preferenceRequest struct {
	UserID     string `json:"userId"`
	Difficulty string `json:"difficulty"`
}

type configRequest struct {
	UserID string `json:"userId"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

type resetRequest struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type addQuestionRequest struct {
	UserID   string                `json:"userId"`
	Question domain.QuestionRecord `json:"question"`
}

type route func(ctx context.Context, payload json.RawMessage) (any, error)

// Gateway is the WebSocket endpoint the chat platform adapter connects to.
// Inbound commands are dispatched to the bot handler; presenter events flow
// back over the same connection through the hub.
type Gateway struct {
	hub      *Hub
	handler  *bot.Handler
	upgrader websocket.Upgrader
	routes   map[string]route
	log      *logger.Logger
}

func NewGateway(hub *Hub, handler *bot.Handler, log *logger.Logger) *Gateway {
	g := &Gateway{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With("component", "gateway"),
	}
	g.routes = g.buildRoutes()
	return g
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, bot.ErrInvalidOption
	}
	return v, nil
}

func (g *Gateway) buildRoutes() map[string]route {
	h := g.handler
	return map[string]route{
		"start_game": func(ctx context.Context, p json.RawMessage) (any, error) {
			cmd, err := decode[bot.StartGameCommand](p)
			if err != nil {
				return nil, err
			}
			return h.OnStartGame(ctx, cmd)
		},
		"answer": func(ctx context.Context, p json.RawMessage) (any, error) {
			cmd, err := decode[bot.AnswerCommand](p)
			if err != nil {
				return nil, err
			}
			return h.OnAnswerAttempt(ctx, cmd)
		},
		"stats": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[userPayload](p)
			if err != nil {
				return nil, err
			}
			return h.OnStatsQuery(ctx, req.UserID)
		},
		"leaderboard": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[leaderboardRequest](p)
			if err != nil {
				return nil, err
			}
			return h.OnLeaderboardQuery(ctx, req.ChannelID, req.Period, req.Limit)
		},
		"achievements": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[userPayload](p)
			if err != nil {
				return nil, err
			}
			return h.OnAchievementsQuery(ctx, req.UserID)
		},
		"rank": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[rankRequest](p)
			if err != nil {
				return nil, err
			}
			return h.OnRankQuery(ctx, req.UserID, req.Period)
		},
		"daily": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[channelUserPayload](p)
			if err != nil {
				return nil, err
			}
			return h.OnDailyChallengeRequest(ctx, req.ChannelID, req.UserID)
		},
		"weekly": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[channelUserPayload](p)
			if err != nil {
				return nil, err
			}
			return h.OnWeeklyChallengeRequest(ctx, req.ChannelID, req.UserID)
		},
		"challenge_status": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[userPayload](p)
			if err != nil {
				return nil, err
			}
			return h.OnChallengeStatus(ctx, req.UserID)
		},
		"preference": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[preferenceRequest](p)
			if err != nil {
				return nil, err
			}
			return h.OnSetPreference(ctx, req.UserID, req.Difficulty)
		},
		"question_stats": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return h.OnQuestionStats(ctx)
		},
		"game_stats": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return h.OnGameStats(ctx), nil
		},
		"config_get": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[configRequest](p)
			if err != nil {
				return nil, err
			}
			return h.OnConfigGet(ctx, req.UserID, req.Key)
		},
		"config_set": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[configRequest](p)
			if err != nil {
				return nil, err
			}
			return nil, h.OnConfigSet(ctx, req.UserID, req.Key, req.Value)
		},
		"reset_stats": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[resetRequest](p)
			if err != nil {
				return nil, err
			}
			return h.OnResetStats(ctx, req.UserID, req.TargetUserID)
		},
		"cancel_game": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[channelUserPayload](p)
			if err != nil {
				return nil, err
			}
			return nil, h.OnCancelGame(ctx, req.UserID, req.ChannelID)
		},
		"add_question": func(ctx context.Context, p json.RawMessage) (any, error) {
			req, err := decode[addQuestionRequest](p)
			if err != nil {
				return nil, err
			}
			q, err := h.OnAddQuestion(ctx, req.UserID, req.Question)
			if err != nil {
				return nil, err
			}
			return domain.RecordFromQuestion(q), nil
		},
		"channel_inaccessible": func(_ context.Context, p json.RawMessage) (any, error) {
			req, err := decode[channelUserPayload](p)
			if err != nil {
				return nil, err
			}
			h.OnChannelInaccessible(req.ChannelID)
			return nil, nil
		},
		"channel_accessible": func(_ context.Context, p json.RawMessage) (any, error) {
			req, err := decode[channelUserPayload](p)
			if err != nil {
				return nil, err
			}
			h.OnChannelAccessible(req.ChannelID)
			return nil, nil
		},
	}
}

// ServeWS upgrades the adapter connection and runs its read and write loops.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := newClient()
	g.hub.register(c)
	g.log.Info("adapter connected", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writeLoop(conn, c)
	}()

	// Requests run concurrently so a slow store call does not stall answers in
	// other channels; replies are correlated by id.
	ctx, cancel := context.WithCancel(r.Context())
	var inflight sync.WaitGroup
	slots := make(chan struct{}, maxInFlight)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("ws read error", "error", err)
			}
			break
		}
		slots <- struct{}{}
		inflight.Add(1)
		go func(msg inboundMessage) {
			defer func() {
				<-slots
				inflight.Done()
			}()
			g.dispatch(ctx, c, msg)
		}(inbound)
	}

	g.hub.unregister(c)
	close(c.done)
	cancel()
	inflight.Wait()
	<-writerDone
	g.log.Info("adapter disconnected", "remote", r.RemoteAddr)
}

func (g *Gateway) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				g.log.Warn("ws write error", "error", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *client, msg inboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("command panicked", "type", msg.Type, "panic", rec)
			_ = c.enqueue(ctx, outboundMessage[any]{Type: EventError, ID: msg.ID, Payload: errorPayload{Message: bot.GenericMessage}})
		}
	}()

	handle, ok := g.routes[msg.Type]
	if !ok {
		_ = c.enqueue(ctx, outboundMessage[any]{Type: EventError, ID: msg.ID, Payload: errorPayload{Message: "unsupported message type"}})
		return
	}
	result, err := handle(ctx, msg.Payload)
	if err != nil {
		g.log.Debug("command failed", "type", msg.Type, "error", err)
		_ = c.enqueue(ctx, outboundMessage[any]{Type: EventError, ID: msg.ID, Payload: errorPayload{Message: bot.UserMessage(err)}})
		return
	}
	_ = c.enqueue(ctx, outboundMessage[any]{Type: EventReply, ID: msg.ID, Payload: result})
}

// Routes mounts the gateway and a liveness probe.
func Routes(g *Gateway) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/gateway", g.ServeWS)
	return mux
}
