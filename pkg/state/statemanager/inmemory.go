package statemanager

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager is the process-local room/presence registry. All maps are
// owned exclusively by this type; callers only ever see snapshots.
type InMemoryManager struct {
	conns map[uuid.UUID]*state.Connection
	users map[string]*state.User
	rooms map[string]*state.Room

	connMu sync.RWMutex
	userMu sync.RWMutex
	roomMu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[string]*state.User),
		rooms:  make(map[string]*state.Room),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func (m *InMemoryManager) RegisterConnection(t state.Transport, ipAddr string) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

// DeregisterConnection removes the connection and, when it was the user's
// last one, evicts the user from every room. Idempotent: deregistering an
// unknown connection returns an empty summary.
func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (*state.DisconnectSummary, error) {
	m.connMu.Lock()
	conn, ok := m.conns[connID]
	if !ok {
		// connection is already deregistered
		m.connMu.Unlock()
		return &state.DisconnectSummary{}, nil
	}
	delete(m.conns, connID)
	m.connMu.Unlock()

	summary := &state.DisconnectSummary{}
	if conn.User == nil {
		m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
		return summary, nil
	}

	m.userMu.Lock()
	defer m.userMu.Unlock()

	user := conn.User
	delete(user.Connections, connID)
	summary.UserID = user.ID
	summary.UserName = user.Name
	m.logger.Debug("Detached connection from user",
		slog.String("connID", connID.String()),
		slog.String("userID", user.ID),
	)

	if len(user.Connections) > 0 {
		// Another tab/device keeps the user online; room membership stays.
		return summary, nil
	}

	// Last connection gone: the user leaves every room they were in.
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	summary.UserOffline = true
	for projectID, room := range user.Rooms {
		delete(room.Members, user.ID)
		summary.RoomsLeft = append(summary.RoomsLeft, projectID)
		if len(room.Members) == 0 {
			delete(m.rooms, projectID)
			m.logger.Debug("Removed empty room", slog.String("projectID", projectID))
		}
	}
	delete(m.users, user.ID)
	m.logger.Debug("User went offline",
		slog.String("userID", user.ID),
		slog.Int("roomsLeft", len(summary.RoomsLeft)),
	)
	return summary, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}

	var oldestConn *state.Connection
	var oldestTime time.Time

	for _, conn := range user.Connections {
		if oldestConn == nil || conn.CreatedAt.Before(oldestTime) {
			oldestConn = conn
			oldestTime = conn.CreatedAt
		}
	}

	if oldestConn == nil {
		return nil, false // User has no connections.
	}
	return oldestConn, true
}

// --- User Management ---

func (m *InMemoryManager) AssociateUser(connID uuid.UUID, userID, userName string, globalPerms state.Permission) (*state.User, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.userMu.Lock()
	defer m.userMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, errors.New("cannot associate user with unknown connection")
	}

	// Find or create the user session.
	user, exists := m.users[userID]
	if !exists {
		user = &state.User{
			ID:          userID,
			Connections: make(map[uuid.UUID]*state.Connection),
			Rooms:       make(map[string]*state.Room),
		}
		m.users[userID] = user
		m.logger.Debug("Created new user session", slog.String("userID", userID))
	}

	if userName != "" {
		user.Name = userName
	}
	user.GlobalPermissions = globalPerms
	conn.User = user
	conn.UserID = user.ID
	conn.UserName = user.Name
	conn.Permissions = globalPerms
	user.Connections[connID] = conn

	m.logger.Debug("Associated connection with user",
		slog.String("connID", connID.String()),
		slog.String("userID", userID),
	)
	return user, nil
}

func (m *InMemoryManager) FindUser(userID string) (*state.User, bool) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	user, ok := m.users[userID]
	return user, ok
}

func (m *InMemoryManager) GetUserConnections(userID string) []state.Transport {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	conns := make([]state.Transport, 0, len(user.Connections))
	for _, c := range user.Connections {
		conns = append(conns, c.Transport)
	}
	return conns
}

func (m *InMemoryManager) GetUserConnectionCount(userID string) (int, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil // User doesn't exist yet, so they have 0 connections.
	}
	return len(user.Connections), nil
}

func (m *InMemoryManager) GetAllUsers() ([]*state.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	users := make([]*state.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *InMemoryManager) IsOnline(userID string) bool {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	return ok && len(user.Connections) > 0
}

// --- Room & Membership Management ---

func (m *InMemoryManager) Join(projectID, userID, userImage string) ([]state.Member, error) {
	// Lock users and rooms to ensure atomic joining.
	m.userMu.Lock()
	defer m.userMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, errors.New("cannot join room: user not found")
	}
	if userImage != "" {
		user.Image = userImage
	}

	// Find or create the room.
	room, exists := m.rooms[projectID]
	if !exists {
		room = &state.Room{
			ID:      projectID,
			Members: make(map[string]*state.User),
		}
		m.rooms[projectID] = room
	}

	// Idempotent: re-joining just returns the current member list.
	if _, already := user.Rooms[projectID]; !already {
		user.Rooms[projectID] = room
		room.Members[userID] = user
		m.logger.Debug("User joined room", "userID", userID, "projectID", projectID)
	}

	return membersSnapshot(room), nil
}

func (m *InMemoryManager) Leave(projectID, userID string) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		m.logger.Warn("failed to leave room: user doesn't exist",
			slog.String("userID", userID),
			slog.String("projectID", projectID),
		)
		return nil // User doesn't exist, so they can't be in the room.
	}

	room, ok := m.rooms[projectID]
	if !ok {
		m.logger.Warn("failed to leave room: room doesn't exist",
			slog.String("userID", userID),
			slog.String("projectID", projectID),
		)
		return nil // Room doesn't exist.
	}

	delete(user.Rooms, projectID)
	delete(room.Members, userID)

	// For memory hygiene, remove the room if it's now empty.
	if len(room.Members) == 0 {
		delete(m.rooms, projectID)
		m.logger.Debug("Removed empty room", slog.String("projectID", projectID))
	}

	m.logger.Debug("User left room", "userID", userID, "projectID", projectID)
	return nil
}

func (m *InMemoryManager) GetRoomMembers(projectID string) []state.Member {
	// The snapshot reads member names and images, which AssociateUser
	// rewrites under the user lock; hold it here too. Same lock order as
	// RoomTransports.
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[projectID]
	if !ok {
		return []state.Member{}
	}
	return membersSnapshot(room)
}

func (m *InMemoryManager) FindRoom(projectID string) (*state.Room, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()
	room, ok := m.rooms[projectID]
	return room, ok
}

func (m *InMemoryManager) RoomTransports(projectID, excludeUserID string) []state.Transport {
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[projectID]
	if !ok {
		return nil
	}
	var transports []state.Transport
	for userID, member := range room.Members {
		if userID == excludeUserID {
			continue
		}
		for _, conn := range member.Connections {
			transports = append(transports, conn.Transport)
		}
	}
	return transports
}

// --- Introspection ---

func (m *InMemoryManager) Stats() state.Stats {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	stats := state.Stats{
		Connections: len(m.conns),
		Users:       len(m.users),
		Rooms:       len(m.rooms),
		RoomMembers: make(map[string]int, len(m.rooms)),
	}
	for id, room := range m.rooms {
		stats.RoomMembers[id] = len(room.Members)
	}
	return stats
}

// callers hold the user and room read locks.
func membersSnapshot(room *state.Room) []state.Member {
	members := make([]state.Member, 0, len(room.Members))
	for _, u := range room.Members {
		members = append(members, state.Member{
			UserID:    u.ID,
			UserName:  u.Name,
			UserImage: u.Image,
		})
	}
	return members
}
