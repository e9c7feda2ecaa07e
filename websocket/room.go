package websocket

import (
	"sync"
	"time"

	"lifeline/models"

	"github.com/sirupsen/logrus"
)

// Room is a delivery group: the available-ambulance broadcast group or the
// per-emergency group of notified ambulances.
type Room struct {
	ID string

	clients map[*Client]bool
	mutex   sync.RWMutex

	createdAt    time.Time
	lastActivity time.Time

	messagesSent    int64
	messagesDropped int64
}

func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		clients:      make(map[*Client]bool),
		createdAt:    time.Now(),
		lastActivity: time.Now(),
	}
}

func (r *Room) AddClient(client *Client) {
	if client == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.clients[client] = true
	r.lastActivity = time.Now()
}

func (r *Room) RemoveClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.clients, client)
	r.lastActivity = time.Now()
}

// Broadcast queues the message for every member except excludeSubject.
// Slow consumers with a full send buffer are skipped, not waited on.
func (r *Room) Broadcast(message models.WSMessage, excludeSubject string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for client := range r.clients {
		if excludeSubject != "" && client.subjectID == excludeSubject {
			continue
		}

		select {
		case client.send <- message:
			r.messagesSent++
		default:
			r.messagesDropped++
			logrus.Warnf("Room %s: dropping message for slow client %s", r.ID, client.subjectID)
		}
	}
	r.lastActivity = time.Now()
}

func (r *Room) IsEmpty() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.clients) == 0
}

func (r *Room) ClientCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.clients)
}

func (r *Room) MessagesDropped() int64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.messagesDropped
}
