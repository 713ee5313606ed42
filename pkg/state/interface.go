package state

import (
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Transport, ipAddr string) (*Connection, error)
	// DeregisterConnection removes a connection and, when it was the user's
	// last one, evicts the user from every room they were in. The summary
	// tells the caller which rooms need a user-left broadcast.
	DeregisterConnection(connID uuid.UUID) (*DisconnectSummary, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- User Management ---
	// links a connection to a user, creating the user if they don't exist.
	AssociateUser(connID uuid.UUID, userID, userName string, globalPerms Permission) (*User, error)
	FindUser(userID string) (*User, bool)
	GetUserConnections(userID string) []Transport
	GetUserConnectionCount(userID string) (int, error)
	GetAllUsers() ([]*User, error)
	IsOnline(userID string) bool

	// --- Room & Membership Management ---
	// Join adds a user to a project room, creating the room if absent.
	// Idempotent: joining twice leaves the member set unchanged. Returns the
	// full member list including the joining user.
	Join(projectID, userID, userImage string) ([]Member, error)
	Leave(projectID, userID string) error
	// GetRoomMembers returns an empty list for unknown project ids.
	GetRoomMembers(projectID string) []Member
	FindRoom(projectID string) (*Room, bool)
	// RoomTransports collects the live transports of every room member except
	// excludeUserID. Empty slice when the room does not exist.
	RoomTransports(projectID, excludeUserID string) []Transport

	// --- Introspection ---
	Stats() Stats
}
