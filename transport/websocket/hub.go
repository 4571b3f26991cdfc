package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wricardo/packed2048/game/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Listeners only send subscribe frames, which are tiny.
	maxFrameSize = 512

	// Frames queued per listener before it is dropped as too slow.
	outboxSize = 64

	// Channels whose latest position is kept for late joiners.
	maxRemembered = 256

	// DefaultChannel receives every codec event that names no other channel.
	DefaultChannel = "positions"

	// EventSubscribed is sent to a listener when it joins or switches channel.
	EventSubscribed = "subscribed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is one JSON frame sent to listeners
type Event struct {
	ID       string                `json:"id"`
	Channel  string                `json:"channel"`
	Name     string                `json:"event"`
	Position *service.PositionView `json:"position,omitempty"`
	Data     interface{}           `json:"data,omitempty"`
}

// subscribeRequest is the frame a listener sends to change channel:
// {"subscribe": "board"}
type subscribeRequest struct {
	Subscribe string `json:"subscribe"`
}

// listener is one WebSocket connection. channel and outbox are owned by the
// hub goroutine.
type listener struct {
	id      string
	conn    *websocket.Conn
	outbox  chan []byte
	channel string
}

// frame is an encoded event bound for a channel
type frame struct {
	channel  string
	payload  []byte
	position bool
}

type move struct {
	l       *listener
	channel string
}

// Hub fans encoded events out to the listeners of each channel. All state is
// owned by the goroutine running Run.
type Hub struct {
	listeners map[string]map[*listener]struct{}

	// Last position frame per channel, replayed to listeners that join later
	latest map[string][]byte

	frames chan frame
	joins  chan *listener
	leaves chan *listener
	moves  chan move

	// Closed when Run returns
	done chan struct{}
}

// NewHub creates a hub. Nothing is delivered until Run is started.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]map[*listener]struct{}),
		latest:    make(map[string][]byte),
		frames:    make(chan frame),
		joins:     make(chan *listener),
		leaves:    make(chan *listener),
		moves:     make(chan move),
		done:      make(chan struct{}),
	}
}

// Run delivers events until ctx is cancelled, then disconnects every listener.
// Publishing after Run has returned is a no-op.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return

		case l := <-h.joins:
			h.join(l)

		case l := <-h.leaves:
			h.leave(l)

		case m := <-h.moves:
			h.switchChannel(m.l, m.channel)

		case f := <-h.frames:
			h.fanOut(f)
		}
	}
}

// ServeWS upgrades the request and attaches the connection to channel
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	if channel == "" {
		channel = DefaultChannel
	}

	l := &listener{
		id:      uuid.NewString(),
		conn:    conn,
		outbox:  make(chan []byte, outboxSize),
		channel: channel,
	}

	select {
	case h.joins <- l:
	case <-h.done:
		conn.Close()
		return
	}

	go h.deliver(l)
	go h.listen(l)
}

// PublishPosition sends a position event to the listeners of channel and
// remembers it for listeners that join later
func (h *Hub) PublishPosition(channel, event string, view *service.PositionView) {
	h.publish(&Event{Channel: channel, Name: event, Position: view})
}

// PublishEvent sends an arbitrary event to the listeners of channel
func (h *Hub) PublishEvent(channel, event string, data interface{}) {
	h.publish(&Event{Channel: channel, Name: event, Data: data})
}

func (h *Hub) publish(e *Event) {
	if e.Channel == "" {
		e.Channel = DefaultChannel
	}
	e.ID = uuid.NewString()

	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to encode %s event for channel %s: %v", e.Name, e.Channel, err)
		return
	}

	select {
	case h.frames <- frame{channel: e.Channel, payload: payload, position: e.Position != nil}:
	case <-h.done:
	}
}

// join adds l to its channel, greets it and replays the channel's latest position
func (h *Hub) join(l *listener) {
	h.add(l)
	log.Printf("Listener %s joined channel %s (%d listening)", l.id, l.channel, len(h.listeners[l.channel]))

	if h.greet(l) {
		h.replay(l)
	}
}

// leave removes l and closes its outbox. Unknown listeners are ignored, so a
// listener already dropped for being slow can leave again safely.
func (h *Hub) leave(l *listener) {
	if !h.remove(l) {
		return
	}
	close(l.outbox)
	log.Printf("Listener %s left channel %s", l.id, l.channel)
}

func (h *Hub) switchChannel(l *listener, channel string) {
	if channel == l.channel || !h.remove(l) {
		return
	}
	previous := l.channel
	l.channel = channel
	h.add(l)
	log.Printf("Listener %s moved from channel %s to %s", l.id, previous, channel)

	if h.greet(l) {
		h.replay(l)
	}
}

func (h *Hub) fanOut(f frame) {
	if f.position {
		if _, known := h.latest[f.channel]; known || len(h.latest) < maxRemembered {
			h.latest[f.channel] = f.payload
		}
	}
	for l := range h.listeners[f.channel] {
		h.offer(l, f.payload)
	}
}

func (h *Hub) disconnectAll() {
	for _, set := range h.listeners {
		for l := range set {
			h.leave(l)
		}
	}
}

func (h *Hub) add(l *listener) {
	set := h.listeners[l.channel]
	if set == nil {
		set = make(map[*listener]struct{})
		h.listeners[l.channel] = set
	}
	set[l] = struct{}{}
}

func (h *Hub) remove(l *listener) bool {
	set := h.listeners[l.channel]
	if _, ok := set[l]; !ok {
		return false
	}
	delete(set, l)
	if len(set) == 0 {
		delete(h.listeners, l.channel)
	}
	return true
}

// offer queues payload for l without blocking. A full outbox drops l.
func (h *Hub) offer(l *listener, payload []byte) bool {
	select {
	case l.outbox <- payload:
		return true
	default:
		log.Printf("Listener %s on channel %s is not keeping up, dropping it", l.id, l.channel)
		h.leave(l)
		return false
	}
}

func (h *Hub) greet(l *listener) bool {
	payload, err := json.Marshal(&Event{
		ID:      uuid.NewString(),
		Channel: l.channel,
		Name:    EventSubscribed,
		Data:    map[string]string{"listener": l.id},
	})
	if err != nil {
		log.Printf("Failed to encode greeting for listener %s: %v", l.id, err)
		return true
	}
	return h.offer(l, payload)
}

func (h *Hub) replay(l *listener) {
	if payload, ok := h.latest[l.channel]; ok {
		h.offer(l, payload)
	}
}

// listen reads subscribe frames until the connection fails, then detaches l
func (h *Hub) listen(l *listener) {
	defer func() {
		select {
		case h.leaves <- l:
		case <-h.done:
		}
		l.conn.Close()
	}()

	l.conn.SetReadLimit(maxFrameSize)
	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read from listener %s failed: %v", l.id, err)
			}
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Subscribe == "" {
			continue
		}

		select {
		case h.moves <- move{l: l, channel: req.Subscribe}:
		case <-h.done:
			return
		}
	}
}

// deliver writes each queued frame as its own WebSocket message and keeps the
// connection alive with pings
func (h *Hub) deliver(l *listener) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-l.outbox:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				l.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
