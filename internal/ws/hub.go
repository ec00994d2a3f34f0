package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans assignment events out to subscribers keyed by experiment ID.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with experiment identifier.
type message struct {
	experimentID string
	payload      []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	experimentID string
	client       Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.experimentID]; !ok {
				h.clients[sub.experimentID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.experimentID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.experimentID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.experimentID)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.experimentID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.experimentID)
				}
			}
		}
	}
}

// Register adds a client to an experiment's assignment stream.
func (h *Hub) Register(experimentID string, client Subscriber) {
	h.register <- subscription{experimentID: experimentID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(experimentID string, client Subscriber) {
	h.unreg <- subscription{experimentID: experimentID, client: client}
}

// Broadcast sends payload to every subscriber of the experiment.
func (h *Hub) Broadcast(experimentID string, payload []byte) {
	h.broadcast <- message{experimentID: experimentID, payload: payload}
}
