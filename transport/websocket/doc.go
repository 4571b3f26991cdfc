// Package websocket pushes codec events to browsers and other listeners.
//
// The websocket package implements:
//   - Channel-aware WebSocket connections
//   - Broadcasting of pack, unpack and rotation results
//   - Connection lifecycle management
//
// Architecture:
//
// One goroutine running Hub.Run owns every channel and listener. Events are
// JSON-encoded once when published and the same bytes are queued to each
// listener. Each connection has a writer goroutine that sends one WebSocket
// message per event and a reader goroutine that handles subscribe frames.
// A listener whose queue fills up is dropped.
//
// Message Protocol:
//
// Outgoing messages are JSON-encoded Event values:
//
//	{"id": "<uuid>", "channel": "positions", "event": "rotated", "position": {...}}
//
// A listener receives a "subscribed" event when it joins, followed by the
// latest position published on the channel, if any. It may change channel
// at any time by sending:
//
//	{"subscribe": "board"}
//
// Other incoming frames are ignored.
//
// Channels:
//
// Clients pick a channel with the ?channel= query parameter when
// connecting; without one they join DefaultChannel. Events are delivered
// only to clients on the same channel.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("channel"))
//	})
//	hub.PublishPosition(websocket.DefaultChannel, "rotated", view)
//
// Cancelling ctx closes every connection.
package websocket
