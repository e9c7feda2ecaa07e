package websocket

import (
	"context"
	"testing"
	"time"

	"lifeline/interfaces"
	"lifeline/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// newTestClient builds a client without a network connection; delivery is
// observed on the send channel.
func newTestClient(subjectID, role string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		subjectID:    subjectID,
		role:         role,
		connectionID: uuid.NewString(),
		connectedAt:  time.Now(),
		send:         make(chan models.WSMessage, sendBufferSize),
		isActive:     true,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func receiveMessage(t *testing.T, c *Client) models.WSMessage {
	t.Helper()
	select {
	case message := <-c.send:
		return message
	case <-time.After(time.Second):
		t.Fatalf("client %s received no message", c.subjectID)
		return models.WSMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case message := <-c.send:
		t.Fatalf("client %s unexpectedly received %s", c.subjectID, message.Type)
	default:
	}
}

func testEmergency(requesterID string) *models.Emergency {
	requesterObjectID, _ := primitive.ObjectIDFromHex(requesterID)
	return &models.Emergency{
		ID:          primitive.NewObjectID(),
		RequesterID: requesterObjectID,
		Location:    models.NewGeoPoint(77.5946, 12.9716),
		Status:      models.EmergencyStatusPending,
		CreatedAt:   time.Now(),
	}
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	hub := NewHub()

	first := newTestClient("amb-1", RoleAmbulance)
	second := newTestClient("amb-1", RoleAmbulance)

	hub.registerClient(first)
	hub.registerClient(second)

	assert.True(t, hub.IsConnected("amb-1"))
	stats := hub.GetStats()
	assert.Equal(t, 1, stats.ActiveConnections, "reconnect replaces, not adds")
	assert.Equal(t, 2, stats.TotalConnections)
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	hub := NewHub()

	client := newTestClient("amb-1", RoleAmbulance)
	hub.registerClient(client)
	hub.SetAmbulanceAvailability("amb-1", true)
	require.Equal(t, 1, hub.BroadcastGroupSize())

	hub.unregisterClient(client)

	assert.False(t, hub.IsConnected("amb-1"))
	assert.Equal(t, 0, hub.BroadcastGroupSize())
}

func TestSetAmbulanceAvailability(t *testing.T) {
	hub := NewHub()

	client := newTestClient("amb-1", RoleAmbulance)
	hub.registerClient(client)

	hub.SetAmbulanceAvailability("amb-1", true)
	assert.Equal(t, 1, hub.BroadcastGroupSize())

	hub.SetAmbulanceAvailability("amb-1", false)
	assert.Equal(t, 0, hub.BroadcastGroupSize())

	// Disconnected units are a no-op.
	hub.SetAmbulanceAvailability("amb-ghost", true)
	assert.Equal(t, 0, hub.BroadcastGroupSize())
}

func TestNotifyNewEmergencyTargetsOnly(t *testing.T) {
	hub := NewHub()

	near := newTestClient("amb-near", RoleAmbulance)
	far := newTestClient("amb-far", RoleAmbulance)
	hub.registerClient(near)
	hub.registerClient(far)

	emergency := testEmergency(primitive.NewObjectID().Hex())
	hub.NotifyNewEmergency(emergency, []interfaces.AmbulanceTarget{
		{AmbulanceID: "amb-near", DistanceMeters: 420},
	})

	message := receiveMessage(t, near)
	assert.Equal(t, models.WSTypeNewEmergency, message.Type)
	payload, ok := message.Data.(models.WSNewEmergency)
	require.True(t, ok)
	assert.Equal(t, emergency.ID.Hex(), payload.EmergencyID)
	assert.InDelta(t, 420, payload.DistanceMeters, 1e-9)

	assertNoMessage(t, far)
}

func TestNotifyAssignedFanout(t *testing.T) {
	hub := NewHub()

	requesterID := primitive.NewObjectID().Hex()
	ambulance := &models.Ambulance{
		ID:            primitive.NewObjectID(),
		Name:          "AMB-7",
		VehicleNumber: "KA-01-1234",
		Status:        models.AmbulanceStatusOnDuty,
	}

	requester := newTestClient(requesterID, RoleUser)
	winner := newTestClient(ambulance.ID.Hex(), RoleAmbulance)
	loser := newTestClient("amb-loser", RoleAmbulance)
	hub.registerClient(requester)
	hub.registerClient(winner)
	hub.registerClient(loser)

	emergency := testEmergency(requesterID)
	hub.NotifyNewEmergency(emergency, []interfaces.AmbulanceTarget{
		{AmbulanceID: ambulance.ID.Hex(), DistanceMeters: 100},
		{AmbulanceID: "amb-loser", DistanceMeters: 200},
	})
	receiveMessage(t, winner)
	receiveMessage(t, loser)

	emergency.Status = models.EmergencyStatusAssigned
	hub.NotifyAssigned(emergency, ambulance)

	confirm := receiveMessage(t, requester)
	assert.Equal(t, models.WSTypeAssignmentConfirm, confirm.Type)
	confirmPayload := confirm.Data.(models.WSAssignmentConfirmed)
	assert.Equal(t, "AMB-7", confirmPayload.AmbulanceName)

	taken := receiveMessage(t, loser)
	assert.Equal(t, models.WSTypeEmergencyTaken, taken.Type)

	assertNoMessage(t, winner)
}

func TestNotifyResolvedTearsDownRoom(t *testing.T) {
	hub := NewHub()

	requesterID := primitive.NewObjectID().Hex()
	requester := newTestClient(requesterID, RoleUser)
	ambulance := newTestClient("amb-1", RoleAmbulance)
	hub.registerClient(requester)
	hub.registerClient(ambulance)

	emergency := testEmergency(requesterID)
	hub.NotifyNewEmergency(emergency, []interfaces.AmbulanceTarget{
		{AmbulanceID: "amb-1", DistanceMeters: 100},
	})
	receiveMessage(t, ambulance)

	emergency.Status = models.EmergencyStatusExpired
	hub.NotifyResolved(emergency)

	requesterMessage := receiveMessage(t, requester)
	assert.Equal(t, models.WSTypeEmergencyExpired, requesterMessage.Type)

	ambulanceMessage := receiveMessage(t, ambulance)
	assert.Equal(t, models.WSTypeEmergencyExpired, ambulanceMessage.Type)

	hub.mutex.RLock()
	_, exists := hub.rooms[emergencyRoomID(emergency.ID.Hex())]
	hub.mutex.RUnlock()
	assert.False(t, exists, "emergency room removed after resolution")
}

func TestNotifyResolvedStatusMapping(t *testing.T) {
	hub := NewHub()

	requesterID := primitive.NewObjectID().Hex()
	requester := newTestClient(requesterID, RoleUser)
	hub.registerClient(requester)

	for status, wantType := range map[string]string{
		models.EmergencyStatusCompleted: models.WSTypeEmergencyCompleted,
		models.EmergencyStatusCancelled: models.WSTypeEmergencyCancelled,
		models.EmergencyStatusExpired:   models.WSTypeEmergencyExpired,
	} {
		emergency := testEmergency(requesterID)
		emergency.Status = status
		hub.NotifyResolved(emergency)

		message := receiveMessage(t, requester)
		assert.Equal(t, wantType, message.Type, "status %s", status)
	}
}

func TestRoomBroadcastExcludesSubject(t *testing.T) {
	room := NewRoom("emergency:test")

	a := newTestClient("amb-a", RoleAmbulance)
	b := newTestClient("amb-b", RoleAmbulance)
	room.AddClient(a)
	room.AddClient(b)

	room.Broadcast(models.WSMessage{Type: models.WSTypeEmergencyTaken}, "amb-a")

	receiveMessage(t, b)
	assertNoMessage(t, a)
}

func TestRoomBroadcastDropsWhenBufferFull(t *testing.T) {
	room := NewRoom("emergency:test")

	slow := newTestClient("amb-slow", RoleAmbulance)
	room.AddClient(slow)

	for i := 0; i < sendBufferSize+5; i++ {
		room.Broadcast(models.WSMessage{Type: models.WSTypeNewEmergency}, "")
	}

	assert.Equal(t, int64(5), room.MessagesDropped(), "slow consumer is skipped, not waited on")
}
