package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// ProctorEvent is the wire shape delivered to teacher dashboards watching a
// quiz live.
type ProctorEvent struct {
	QuizID         uint      `json:"quizId"`
	StudentEmail   string    `json:"studentEmail"`
	EventType      string    `json:"eventType"`
	QuestionNumber int       `json:"questionNumber"`
	Timestamp      time.Time `json:"timestamp"`
}

// ProctorFeed fans recorded proctor events out to WebSocket subscribers.
// With Redis configured, events travel through a channel per quiz so every
// server instance sees them; without it the feed broadcasts in-process.
// Delivery is best-effort and fully decoupled from event persistence.
type ProctorFeed struct {
	redis   *redis.Client
	mutex   sync.RWMutex
	clients map[*FeedClient]bool
}

type FeedClient struct {
	feed   *ProctorFeed
	socket *websocket.Conn
	send   chan []byte
	quizID uint
}

const feedChannelPrefix = "proctor:quiz:"

func feedChannel(quizID uint) string {
	return feedChannelPrefix + strconv.FormatUint(uint64(quizID), 10)
}

func NewProctorFeed(redisClient *redis.Client) *ProctorFeed {
	return &ProctorFeed{
		redis:   redisClient,
		clients: make(map[*FeedClient]bool),
	}
}

// Run consumes the Redis channels and rebroadcasts to local subscribers.
// It blocks until ctx is canceled; without Redis there is nothing to do.
func (f *ProctorFeed) Run(ctx context.Context) {
	if f.redis == nil {
		return
	}
	sub := f.redis.PSubscribe(ctx, feedChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			raw := strings.TrimPrefix(msg.Channel, feedChannelPrefix)
			quizID, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				continue
			}
			f.broadcast(uint(quizID), []byte(msg.Payload))
		}
	}
}

// Publish pushes an event toward subscribers. Failures are logged, never
// returned: the proctor log row is already durable by the time this runs.
func (f *ProctorFeed) Publish(ctx context.Context, event ProctorEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("proctor feed: marshal event: %v", err)
		return
	}
	if f.redis != nil {
		if err := f.redis.Publish(ctx, feedChannel(event.QuizID), data).Err(); err != nil {
			log.Printf("proctor feed: publish quiz %d: %v", event.QuizID, err)
		}
		return
	}
	f.broadcast(event.QuizID, data)
}

func (f *ProctorFeed) broadcast(quizID uint, data []byte) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for client := range f.clients {
		if client.quizID != quizID {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(f.clients, client)
		}
	}
}

// Subscribe registers a WebSocket connection for one quiz's events and
// starts its pumps. The caller hands over ownership of the connection.
func (f *ProctorFeed) Subscribe(conn *websocket.Conn, quizID uint) {
	client := &FeedClient{
		feed:   f,
		socket: conn,
		send:   make(chan []byte, 16),
		quizID: quizID,
	}
	f.mutex.Lock()
	f.clients[client] = true
	f.mutex.Unlock()

	go client.writePump()
	go client.readPump()
}

// SubscriberCount reports how many dashboards are watching a quiz.
func (f *ProctorFeed) SubscriberCount(quizID uint) int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	n := 0
	for client := range f.clients {
		if client.quizID == quizID {
			n++
		}
	}
	return n
}

func (f *ProctorFeed) drop(client *FeedClient) {
	f.mutex.Lock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
	f.mutex.Unlock()
}

func (c *FeedClient) writePump() {
	defer c.socket.Close()
	for data := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
			c.feed.drop(c)
			return
		}
	}
}

// readPump discards inbound frames; it exists to notice the peer closing.
func (c *FeedClient) readPump() {
	defer func() {
		c.feed.drop(c)
		c.socket.Close()
	}()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}
