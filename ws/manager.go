package ws

import (
	"context"
	"sync"

	"huddle_backend/internal/logger"
	"huddle_backend/internal/realtime"
)

const deliveryBuffer = 1024

type delivery struct {
	topic realtime.Topic
	frame []byte
}

type subscription struct {
	client *Client
	topic  realtime.Topic
	join   bool
}

// Manager owns the sessions of this process and the topic subscriptions.
// All map mutations happen in Run, so frames for a topic reach a session in Deliver order.
type Manager struct {
	clients map[string]*Client
	topics  map[realtime.Topic]map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	subs       chan subscription
	deliveries chan delivery
	done       chan struct{}

	registry realtime.SessionRegistry
}

func NewManager(registry realtime.SessionRegistry) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		topics:     make(map[realtime.Topic]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subs:       make(chan subscription),
		deliveries: make(chan delivery, deliveryBuffer),
		done:       make(chan struct{}),
		registry:   registry,
	}
}

var _ realtime.Deliverer = (*Manager)(nil)

// Run processes registrations and deliveries until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.subscribe(client, realtime.UserTopic(client.UserID))
			logger.RealtimeLog("registered", client.UserID, client.ID, nil)

		case client := <-m.unregister:
			m.remove(client)
			logger.RealtimeLog("unregistered", client.UserID, client.ID, nil)

		case sub := <-m.subs:
			if sub.join {
				m.subscribe(sub.client, sub.topic)
			} else {
				m.unsubscribe(sub.client, sub.topic)
			}

		case d := <-m.deliveries:
			m.fanOut(d)
		}
	}
}

// Deliver queues frame for every local session subscribed to topic.
func (m *Manager) Deliver(topic realtime.Topic, frame []byte) {
	select {
	case m.deliveries <- delivery{topic: topic, frame: frame}:
	case <-m.done:
	}
}

// Register adds client to the manager and the shared session registry.
func (m *Manager) Register(ctx context.Context, client *Client) error {
	select {
	case m.register <- client:
	case <-m.done:
		return ErrManagerStopped
	}
	if err := m.registry.Register(ctx, client.ID, client.UserID); err != nil {
		logger.RealtimeLog("registry register", client.UserID, client.ID, err)
	}
	return nil
}

// Unregister removes client and returns how many sessions its user still has across instances.
func (m *Manager) Unregister(ctx context.Context, client *Client) int64 {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
	remaining, err := m.registry.Unregister(ctx, client.ID, client.UserID)
	if err != nil {
		logger.RealtimeLog("registry unregister", client.UserID, client.ID, err)
		return -1
	}
	return remaining
}

func (m *Manager) Subscribe(client *Client, topic realtime.Topic) {
	m.send(subscription{client: client, topic: topic, join: true})
}

func (m *Manager) Unsubscribe(client *Client, topic realtime.Topic) {
	m.send(subscription{client: client, topic: topic, join: false})
}

// Touch refreshes the presence of client in the shared registry.
func (m *Manager) Touch(ctx context.Context, client *Client) {
	if err := m.registry.Touch(ctx, client.ID, client.UserID); err != nil {
		logger.RealtimeLog("registry touch", client.UserID, client.ID, err)
	}
}

func (m *Manager) send(sub subscription) {
	select {
	case m.subs <- sub:
	case <-m.done:
	}
}

func (m *Manager) subscribe(client *Client, topic realtime.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	subscribers, ok := m.topics[topic]
	if !ok {
		subscribers = make(map[string]*Client)
		m.topics[topic] = subscribers
	}
	subscribers[client.ID] = client
}

func (m *Manager) unsubscribe(client *Client, topic realtime.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropLocked(client.ID, topic)
}

func (m *Manager) dropLocked(clientID string, topic realtime.Topic) {
	subscribers := m.topics[topic]
	delete(subscribers, clientID)
	if len(subscribers) == 0 {
		delete(m.topics, topic)
	}
}

func (m *Manager) remove(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	for topic := range m.topics {
		m.dropLocked(client.ID, topic)
	}
}

// fanOut never blocks on a session: a session whose buffer is full is dropped.
func (m *Manager) fanOut(d delivery) {
	m.mu.RLock()
	var slow []*Client
	for _, client := range m.topics[d.topic] {
		if !client.enqueue(d.frame) {
			slow = append(slow, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range slow {
		logger.RealtimeLog("dropped slow session", client.UserID, client.ID, nil)
		m.remove(client)
		go client.Close()
	}

	m.revokeRemoved(d)
}

// revokeRemoved drops the chat subscriptions of a user whose participantRemoved
// event arrives on their user topic. The broker carries it to every instance.
func (m *Manager) revokeRemoved(d delivery) {
	userID, ok := d.topic.UserID()
	if !ok {
		return
	}
	_, ev, err := realtime.Decode(d.frame)
	if err != nil {
		return
	}
	removed, ok := ev.(realtime.ParticipantRemoved)
	if !ok || removed.UserID != userID {
		return
	}

	chat := realtime.ChatTopic(removed.ChatID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.topics[chat] {
		if client.UserID == userID {
			m.dropLocked(id, chat)
			logger.RealtimeLog("chat access revoked", userID, id, nil)
		}
	}
}

func (m *Manager) shutdown() {
	close(m.done)
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.topics = make(map[realtime.Topic]map[string]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

// ClientCount returns the number of sessions connected to this process.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsSubscribed reports whether the session is currently subscribed to topic.
func (m *Manager) IsSubscribed(sessionID string, topic realtime.Topic) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.topics[topic][sessionID]
	return ok
}
