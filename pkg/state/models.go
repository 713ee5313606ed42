package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the send side of a live client connection. The concrete
// implementation lives in pkg/transport; the registry only ever needs to
// push bytes or tear the session down.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport
	User      *User // Pointer to the owning user (nil until associated)
	CreatedAt time.Time

	// Identity snapshot taken at association time. Written exactly once,
	// before the connection's pumps start, so the relay may read these
	// without holding registry locks. The shared User struct may be
	// rewritten later by another connection's association; these may not.
	UserID      string
	UserName    string
	Permissions Permission
}

// canonical representation of a user, aggregating all their connections.
type User struct {
	ID                string
	Name              string
	Image             string
	Connections       map[uuid.UUID]*Connection // All active connections for this user
	Rooms             map[string]*Room          // Project rooms this user is a member of, keyed by project id
	GlobalPermissions Permission
}

// canonical representation of one project's collaborative session.
type Room struct {
	ID      string           // project id
	Members map[string]*User // keyed by user id
}

// Member is a read-only snapshot of a room member, safe to hand out and
// serialize without holding registry locks.
type Member struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserImage string `json:"userImage,omitempty"`
}

// DisconnectSummary describes the registry changes caused by a connection
// going away. RoomsLeft is only populated when the dropped connection was
// the user's last one, in which case every listed room lost the user.
type DisconnectSummary struct {
	UserID      string
	UserName    string
	RoomsLeft   []string
	UserOffline bool
}

// Stats is a point-in-time view of registry occupancy.
type Stats struct {
	Connections int            `json:"connections"`
	Users       int            `json:"users"`
	Rooms       int            `json:"rooms"`
	RoomMembers map[string]int `json:"roomMembers"`
}
