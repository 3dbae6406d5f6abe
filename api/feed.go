package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

const (
	FeedMsgActivity = "activity"

	feedSendBuffer   = 64
	feedWriteTimeout = 10 * time.Second
)

// FeedMessage is the envelope of every frame sent on the activity feed.
type FeedMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newFeedClient(conn *websocket.Conn) *feedClient {
	c := &feedClient{
		conn: conn,
		send: make(chan []byte, feedSendBuffer),
	}
	go c.writePump()
	return c
}

func (c *feedClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Feed fans committed activity entries out to connected websocket clients.
// Publishing never blocks: a client whose buffer is full is dropped.
type Feed struct {
	mu      sync.RWMutex
	clients map[*feedClient]bool
	closed  bool
}

func NewFeed() *Feed {
	return &Feed{clients: make(map[*feedClient]bool)}
}

func (f *Feed) add(conn *websocket.Conn) *feedClient {
	c := newFeedClient(conn)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(c.send)
		return c
	}
	f.clients[c] = true
	return c
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
}

// Publish broadcasts each activity as its own frame.
func (f *Feed) Publish(activities ...models.Activity) {
	for _, a := range activities {
		f.broadcast(FeedMessage{Type: FeedMsgActivity, Payload: a})
	}
}

func (f *Feed) broadcast(msg FeedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode feed message")
		return
	}

	// Sends happen under the read lock so remove and Close, which close
	// send channels under the write lock, cannot race them.
	var slow []*feedClient
	f.mu.RLock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	f.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Msg("Feed client too slow, disconnecting")
		f.remove(c)
	}
}

func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client. Later connections are closed on arrival.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
}

// GET /v1/feed
func (app *Application) serveFeed(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(origin, app.Config.AllowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Feed upgrade failed")
		return
	}

	c := app.Feed.add(conn)
	logger.FromContext(r.Context()).Info().Str("remote", r.RemoteAddr).Msg("Feed client connected")

	go func() {
		defer func() {
			app.Feed.remove(c)
			log.Info().Str("remote", r.RemoteAddr).Msg("Feed client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
