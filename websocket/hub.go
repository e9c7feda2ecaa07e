package websocket

import (
	"context"
	"sync"
	"time"

	"lifeline/interfaces"
	"lifeline/models"

	"github.com/sirupsen/logrus"
)

// Room naming. The broadcast group holds every available ambulance; each
// open emergency gets its own group of notified ambulances.
const availableAmbulancesRoom = "ambulances:available"

func emergencyRoomID(emergencyID string) string {
	return "emergency:" + emergencyID
}

// Hub is the fanout: it tracks connections, derives group membership from
// ambulance status, and delivers transition events. Delivery is best-effort
// per connection; ordering is guaranteed per subscriber per emergency
// because every event for an emergency is queued before the next transition
// for that record can happen.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]*Client
	rooms       map[string]*Room

	register   chan *Client
	unregister chan *Client

	// Coordinator callbacks for inbound frames and disconnects; set after
	// construction to break the wiring cycle.
	dispatch interfaces.DispatchService

	stats struct {
		totalConnections int64
		messagesSent     int64
		startTime        time.Time
	}

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]*Client),
		rooms:       make(map[string]*Room),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetDispatchService wires the coordinator in after both sides exist.
func (h *Hub) SetDispatchService(dispatch interfaces.DispatchService) {
	h.dispatch = dispatch
}

func (h *Hub) Run() {
	logrus.Info("WebSocket hub starting...")
	h.stats.startTime = time.Now()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			logrus.Info("WebSocket hub shutting down...")
			return
		}
	}
}

// Register hands a new connection to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// A reconnect replaces the previous connection for the subject.
	if existing, ok := h.userClients[client.subjectID]; ok && existing != client {
		delete(h.clients, existing)
		h.removeFromAllRooms(existing)
	}

	h.clients[client] = true
	h.userClients[client.subjectID] = client
	h.stats.totalConnections++

	logrus.Infof("Client registered: %s (%s), %d connected", client.subjectID, client.role, len(h.clients))

	if client.role == RoleAmbulance && h.dispatch != nil {
		go h.dispatch.SyncAmbulanceSubscription(context.Background(), client.subjectID)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	if h.userClients[client.subjectID] == client {
		delete(h.userClients, client.subjectID)
	}
	h.removeFromAllRooms(client)
	connected := len(h.clients)
	h.mutex.Unlock()

	logrus.Infof("Client unregistered: %s, %d connected", client.subjectID, connected)

	if client.role == RoleAmbulance && h.dispatch != nil {
		go h.dispatch.HandleAmbulanceDisconnect(context.Background(), client.subjectID)
	}
}

// removeFromAllRooms must be called with h.mutex held.
func (h *Hub) removeFromAllRooms(client *Client) {
	for roomID, room := range h.rooms {
		room.RemoveClient(client)
		if room.IsEmpty() && roomID != availableAmbulancesRoom {
			delete(h.rooms, roomID)
		}
	}
}

// getOrCreateRoom must be called with h.mutex held.
func (h *Hub) getOrCreateRoom(roomID string) *Room {
	if room, exists := h.rooms[roomID]; exists {
		return room
	}
	room := NewRoom(roomID)
	h.rooms[roomID] = room
	return room
}

// =================== NOTIFIER ===================

// NotifyNewEmergency subscribes each target to the emergency's group and
// sends it a ranked alert.
func (h *Hub) NotifyNewEmergency(emergency *models.Emergency, targets []interfaces.AmbulanceTarget) {
	emergencyID := emergency.ID.Hex()

	h.mutex.Lock()
	room := h.getOrCreateRoom(emergencyRoomID(emergencyID))
	clients := make(map[string]*Client, len(targets))
	for _, target := range targets {
		if client, ok := h.userClients[target.AmbulanceID]; ok {
			room.AddClient(client)
			clients[target.AmbulanceID] = client
		}
	}
	h.mutex.Unlock()

	for _, target := range targets {
		client, ok := clients[target.AmbulanceID]
		if !ok {
			continue
		}
		client.SendMessage(models.WSMessage{
			Type: models.WSTypeNewEmergency,
			Data: models.WSNewEmergency{
				EmergencyID:    emergencyID,
				Location:       emergency.Location,
				Address:        emergency.Address,
				Category:       emergency.Category,
				Notes:          emergency.Notes,
				DistanceMeters: target.DistanceMeters,
				CreatedAt:      emergency.CreatedAt,
			},
			Timestamp: time.Now(),
		})
		h.incrementMessagesSent()
	}
}

// NotifyAssigned confirms to the requester and tells the rest of the
// emergency's group it is taken.
func (h *Hub) NotifyAssigned(emergency *models.Emergency, ambulance *models.Ambulance) {
	emergencyID := emergency.ID.Hex()
	ambulanceID := ambulance.ID.Hex()

	h.SendToUser(emergency.RequesterID.Hex(), models.WSMessage{
		Type: models.WSTypeAssignmentConfirm,
		Data: models.WSAssignmentConfirmed{
			EmergencyID:   emergencyID,
			AmbulanceID:   ambulanceID,
			AmbulanceName: ambulance.Name,
			VehicleNumber: ambulance.VehicleNumber,
			DriverName:    ambulance.DriverName,
			DriverPhone:   ambulance.DriverPhone,
			AcceptedAt:    time.Now(),
		},
		Timestamp: time.Now(),
	})

	h.mutex.RLock()
	room := h.rooms[emergencyRoomID(emergencyID)]
	h.mutex.RUnlock()

	if room != nil {
		room.Broadcast(models.WSMessage{
			Type: models.WSTypeEmergencyTaken,
			Data: models.WSEmergencyTaken{
				EmergencyID:   emergencyID,
				AmbulanceID:   ambulanceID,
				AmbulanceName: ambulance.Name,
				Timestamp:     time.Now(),
			},
			Timestamp: time.Now(),
		}, ambulanceID)
		h.incrementMessagesSent()
	}
}

// NotifyResolved reports a terminal transition and tears the emergency's
// group down.
func (h *Hub) NotifyResolved(emergency *models.Emergency) {
	emergencyID := emergency.ID.Hex()

	messageType := models.WSTypeEmergencyCompleted
	switch emergency.Status {
	case models.EmergencyStatusCancelled:
		messageType = models.WSTypeEmergencyCancelled
	case models.EmergencyStatusExpired:
		messageType = models.WSTypeEmergencyExpired
	}

	message := models.WSMessage{
		Type: messageType,
		Data: models.WSEmergencyLifecycle{
			EmergencyID: emergencyID,
			Status:      emergency.Status,
			Timestamp:   time.Now(),
		},
		Timestamp: time.Now(),
	}

	h.SendToUser(emergency.RequesterID.Hex(), message)

	h.mutex.Lock()
	room := h.rooms[emergencyRoomID(emergencyID)]
	delete(h.rooms, emergencyRoomID(emergencyID))
	h.mutex.Unlock()

	if room != nil {
		room.Broadcast(message, "")
		h.incrementMessagesSent()
	}
}

// SetAmbulanceAvailability keeps the broadcast group a pure function of
// ambulance status. The coordinator calls this inside the same critical
// section as the status write.
func (h *Hub) SetAmbulanceAvailability(ambulanceID string, available bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room := h.getOrCreateRoom(availableAmbulancesRoom)
	client, connected := h.userClients[ambulanceID]
	if !connected {
		return
	}

	if available {
		room.AddClient(client)
	} else {
		room.RemoveClient(client)
	}
}

// SendToUser delivers directly to a subject's connection, if any.
func (h *Hub) SendToUser(subjectID string, message models.WSMessage) {
	h.mutex.RLock()
	client := h.userClients[subjectID]
	h.mutex.RUnlock()

	if client != nil {
		client.SendMessage(message)
		h.incrementMessagesSent()
	}
}

// =================== UTILITY ===================

func (h *Hub) IsConnected(subjectID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.userClients[subjectID]
	return exists
}

func (h *Hub) BroadcastGroupSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if room, ok := h.rooms[availableAmbulancesRoom]; ok {
		return room.ClientCount()
	}
	return 0
}

func (h *Hub) incrementMessagesSent() {
	h.mutex.Lock()
	h.stats.messagesSent++
	h.mutex.Unlock()
}

func (h *Hub) GetStats() models.WSHubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	activeRooms := 0
	var dropped int64
	for _, room := range h.rooms {
		if !room.IsEmpty() {
			activeRooms++
		}
		dropped += room.MessagesDropped()
	}

	return models.WSHubStats{
		TotalConnections:  int(h.stats.totalConnections),
		ActiveConnections: len(h.clients),
		ActiveRooms:       activeRooms,
		MessagesSent:      h.stats.messagesSent,
		MessagesDropped:   dropped,
		Uptime:            time.Since(h.stats.startTime),
		LastUpdate:        time.Now(),
	}
}

func (h *Hub) Shutdown() {
	logrus.Info("Shutting down WebSocket hub...")

	h.cancel()

	h.mutex.Lock()
	for client := range h.clients {
		client.conn.Close()
	}
	h.mutex.Unlock()
}
