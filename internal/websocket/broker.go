package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Yusufzhafir/illiquid-sim/internal/infra/metrics"
	"github.com/Yusufzhafir/illiquid-sim/pkg/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxMessageSize      = 512 * 1024 // 512 KB
	defaultSendBuf      = 256
	defaultPublishBuf   = 4096
	maxConsecutiveDrops = 50

	// SimulationTopic carries every run; each run is also published on a
	// topic named after its ID.
	SimulationTopic = "simulation"
)

const (
	MessageSample = "sample"
	MessageTrade  = "trade"
	MessageDone   = "done"
)

// Message is the payload pushed to chart clients.
type Message struct {
	Type     string               `json:"type"`
	RunID    string               `json:"runId"`
	Seq      uint64               `json:"seq"`
	Sample   *model.HistorySample `json:"sample,omitempty"`
	Trade    *model.Trade         `json:"trade,omitempty"`
	Top      *model.TopOfBook     `json:"top,omitempty"`
	Ladder   *model.MarketDepth   `json:"ladder,omitempty"`
	Position *model.HumanPosition `json:"position,omitempty"`
	PnL      *float64             `json:"pnl,omitempty"`
}

type publishMsg struct {
	Topic string
	Data  []byte
}

type subscription struct {
	client *Client
	topic  string
}

// Hub manages clients, subscriptions and publishes.
type Hub struct {
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan publishMsg

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}

	sendBuf int
	seq     sequencer

	clientCount  int64
	publishDrops uint64

	logger zerolog.Logger
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscribed map[string]struct{}

	// consecutive drops; the client is evicted past maxConsecutiveDrops
	drops int
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan publishMsg, defaultPublishBuf),
		clients:     make(map[*Client]struct{}),
		topics:      make(map[string]map[*Client]struct{}),
		sendBuf:     defaultSendBuf,
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run runs the hub event loop until ctx is cancelled. Call as: go hub.Run(ctx).
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("ws hub started")
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			atomic.AddInt64(&h.clientCount, 1)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
			}

		case sub := <-h.subscribe:
			// an evicted client's send channel is already closed
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			subs := h.topics[sub.topic]
			if subs == nil {
				subs = make(map[*Client]struct{})
				h.topics[sub.topic] = subs
			}
			subs[sub.client] = struct{}{}
			sub.client.subscribed[sub.topic] = struct{}{}

		case sub := <-h.unsubscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if subs := h.topics[sub.topic]; subs != nil {
				delete(subs, sub.client)
				if len(subs) == 0 {
					delete(h.topics, sub.topic)
				}
			}
			delete(sub.client.subscribed, sub.topic)

		case p := <-h.publish:
			targets := h.clients
			if p.Topic != "" {
				targets = h.topics[p.Topic]
			}
			for c := range targets {
				select {
				case c.send <- p.Data:
					c.drops = 0
				default:
					h.dropped()
					c.drops++
					if c.drops > maxConsecutiveDrops {
						h.logger.Warn().Int("drops", c.drops).Msg("evicting slow client")
						h.remove(c)
						_ = c.conn.Close()
					}
				}
			}

		case <-ctx.Done():
			h.logger.Info().Msg("ws hub shutting down")
			for c := range h.clients {
				h.remove(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

// remove must only be called from Run.
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	for t := range c.subscribed {
		if s := h.topics[t]; s != nil {
			delete(s, c)
			if len(s) == 0 {
				delete(h.topics, t)
			}
		}
	}
	close(c.send)
	atomic.AddInt64(&h.clientCount, -1)
}

func (h *Hub) dropped() {
	atomic.AddUint64(&h.publishDrops, 1)
	metrics.WSPublishDrops.Inc()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers a client.
// Initial topics can be passed via ?topics=simulation,<runId>
func ServeWS(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, h.sendBuf),
		subscribed: make(map[string]struct{}),
	}

	var initial []string
	if s := r.URL.Query().Get("topics"); s != "" {
		for _, topic := range strings.Split(s, ",") {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			initial = append(initial, topic)
		}
	}

	h.register <- client
	for _, topic := range initial {
		h.subscribe <- subscription{client: client, topic: topic}
	}

	go client.writePump()
	go client.readPump()
}

// readPump turns client commands into subscribe/unsubscribe requests.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			) {
				c.hub.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		var cmd struct {
			Type  string `json:"type"`  // "subscribe" | "unsubscribe"
			Topic string `json:"topic"` // "simulation" or a run ID
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Debug().Err(err).Msg("invalid client msg")
			continue
		}
		if cmd.Topic == "" {
			continue
		}

		switch cmd.Type {
		case "subscribe":
			c.hub.subscribe <- subscription{client: c, topic: cmd.Topic}
		case "unsubscribe":
			c.hub.unsubscribe <- subscription{client: c, topic: cmd.Topic}
		}
	}
}

// writePump serializes all writes to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				_ = w.Close()
				return
			}

			// batch queued messages into same frame, newline separated
			n := len(c.send)
			for i := 0; i < n; i++ {
				if msg := <-c.send; msg != nil {
					if _, err := w.Write([]byte("\n")); err != nil {
						break
					}
					if _, err := w.Write(msg); err != nil {
						break
					}
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PublishSample streams the end-of-step sample with the top of book and a
// short ladder of levels per side.
func (h *Hub) PublishSample(runID string, sample model.HistorySample, top *model.TopOfBook, ladder *model.MarketDepth) {
	h.Publish(Message{Type: MessageSample, RunID: runID, Sample: &sample, Top: top, Ladder: ladder})
}

func (h *Hub) PublishTrade(runID string, trade model.Trade) {
	h.Publish(Message{Type: MessageTrade, RunID: runID, Trade: &trade})
}

// PublishDone closes a run's stream with the human position and P&L.
func (h *Hub) PublishDone(runID string, pos model.HumanPosition, pnl *float64) {
	h.Publish(Message{Type: MessageDone, RunID: runID, Position: &pos, PnL: pnl})
}

// Publish sends msg on SimulationTopic and on the run's own topic, each
// with its own sequence number. It never blocks: if the hub buffer is full
// the message is dropped.
func (h *Hub) Publish(msg Message) {
	topics := []string{SimulationTopic}
	if msg.RunID != "" {
		topics = append(topics, msg.RunID)
	}
	for _, topic := range topics {
		msg.Seq = h.seq.next(topic)
		b, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal ws message")
			return
		}

		select {
		case h.publish <- publishMsg{Topic: topic, Data: b}:
		default:
			h.dropped()
			h.logger.Warn().Str("topic", topic).Msg("publish channel full, dropping message")
		}
	}
}

// Stats returns the connected client count and publish drops.
func (h *Hub) Stats() (clients int, drops uint64) {
	return int(atomic.LoadInt64(&h.clientCount)), atomic.LoadUint64(&h.publishDrops)
}
