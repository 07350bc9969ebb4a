package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-assessment-engine/internal/infra/memory"
)

// GradeFeed streams grade-posted events over a websocket so dashboards and
// the notification collaborator can follow results live.
type GradeFeed struct {
	bus      *memory.EventBus
	upgrader websocket.Upgrader
}

func NewGradeFeed(bus *memory.EventBus) *GradeFeed {
	return &GradeFeed{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and forwards grade events until the client
// disconnects.
func (f *GradeFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := f.bus.Subscribe()
	defer cancel()

	done := make(chan struct{})

	// Reader loop exists only to observe the close handshake.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
