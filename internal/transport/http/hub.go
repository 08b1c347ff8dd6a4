package http

import (
	"context"
	"errors"
	"sync"

	"trivia-bot/internal/app"
	"trivia-bot/internal/domain"
)

// ErrNoAdapter is returned by presenter calls while no platform adapter is connected.
var ErrNoAdapter = errors.New("no platform adapter connected")

// Outbound event types.
const (
	EventQuestion    = "question"
	EventResult      = "result"
	EventAchievement = "achievement"
	EventLeaderboard = "leaderboard"
	EventNotice      = "notice"
	EventReply       = "reply"
	EventError       = "error"
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload T      `json:"payload"`
}

type achievementPayload struct {
	ChannelID   string                     `json:"channelId"`
	Achievement domain.UnlockedAchievement `json:"achievement"`
}

type leaderboardPayload struct {
	ChannelID string             `json:"channelId"`
	Board     domain.Leaderboard `json:"board"`
}

type noticePayload struct {
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Text      string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// client is one connected adapter. send is never closed; done tells
// producers the connection is gone.
type client struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newClient() *client {
	return &client{
		send: make(chan outboundMessage[any], 64),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(ctx context.Context, msg outboundMessage[any]) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hub fans presenter events out to every connected adapter.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

var _ app.Presenter = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Connected returns the number of attached adapters.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ctx context.Context, typ string, payload any) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return ErrNoAdapter
	}
	msg := outboundMessage[any]{Type: typ, Payload: payload}
	for _, c := range clients {
		if err := c.enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hub) PostQuestion(ctx context.Context, prompt domain.QuestionPrompt) error {
	return h.broadcast(ctx, EventQuestion, prompt)
}

func (h *Hub) PostResult(ctx context.Context, outcome domain.Outcome) error {
	return h.broadcast(ctx, EventResult, outcome)
}

func (h *Hub) PostAchievementUnlock(ctx context.Context, channelID string, unlocked domain.UnlockedAchievement) error {
	return h.broadcast(ctx, EventAchievement, achievementPayload{ChannelID: channelID, Achievement: unlocked})
}

func (h *Hub) PostLeaderboard(ctx context.Context, channelID string, board domain.Leaderboard) error {
	return h.broadcast(ctx, EventLeaderboard, leaderboardPayload{ChannelID: channelID, Board: board})
}

func (h *Hub) PostNotice(ctx context.Context, channelID, userID, text string) error {
	return h.broadcast(ctx, EventNotice, noticePayload{ChannelID: channelID, UserID: userID, Text: text})
}
