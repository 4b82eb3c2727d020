package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/paybridge/paybridge/pkg/messaging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks WebSocket subscribers and fans settlement events out to the
// accounts they concern.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*wsClient
	log     *slog.Logger
}

type wsClient struct {
	id      uuid.UUID
	account string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*wsClient),
		log:     log,
	}
}

// handleWebSocket upgrades the connection and streams events for the
// authenticated account until the peer disconnects.
func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &wsClient{
		id:      uuid.New(),
		account: c.MustGet("account").(string),
		conn:    conn,
		send:    make(chan []byte, 16),
		done:    make(chan struct{}),
	}

	g.hub.register(client)
	go g.hub.readPump(client)
	go g.hub.writePump(client)
}

func (h *Hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
}

func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		close(client.done)
		client.conn.Close()
	}()

	// Inbound frames are drained and discarded; the stream is one-way.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	for {
		select {
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.done:
			return
		}
	}
}

// broadcast delivers payload to every connected client whose account is in
// accounts. Slow clients are skipped rather than blocking the fan-out.
func (h *Hub) broadcast(accounts []string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		for _, account := range accounts {
			if client.account != account {
				continue
			}
			select {
			case client.send <- payload:
			default:
				h.log.Warn("dropping event for slow websocket client", "account", client.account)
			}
			break
		}
	}
}

// Subscriber registers event handlers; implemented by the messaging client.
type Subscriber interface {
	Subscribe(subject string, handler func(event *messaging.Event)) error
}

// ConsumeEvents wires the hub to the event bus so connected clients see the
// settlement events that concern their account.
func (g *Gateway) ConsumeEvents(sub Subscriber) error {
	if err := sub.Subscribe(messaging.SubjectPaymentCreated, func(event *messaging.Event) {
		data, err := messaging.ParseEventData[messaging.PaymentCreatedEvent](event)
		if err != nil {
			return
		}
		g.hub.forward(event, data.Sender, data.Recipient)
	}); err != nil {
		return err
	}

	if err := sub.Subscribe(messaging.SubjectPaymentExecuted, func(event *messaging.Event) {
		data, err := messaging.ParseEventData[messaging.PaymentExecutedEvent](event)
		if err != nil {
			return
		}
		g.hub.forward(event, data.Sender, data.Recipient)
	}); err != nil {
		return err
	}

	return sub.Subscribe(messaging.SubjectBalanceDeposited, func(event *messaging.Event) {
		data, err := messaging.ParseEventData[messaging.BalanceDepositedEvent](event)
		if err != nil {
			return
		}
		g.hub.forward(event, data.Account)
	})
}

func (h *Hub) forward(event *messaging.Event, accounts ...string) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast(accounts, payload)
}
