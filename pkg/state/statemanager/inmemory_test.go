package statemanager_test

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
	"github.com/estudio-ia-videos/timeline-relay/pkg/state/statemanager"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

type fakeTransport struct {
	id uuid.UUID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (f *fakeTransport) ID() uuid.UUID { return f.id }

func (f *fakeTransport) Send(message []byte) {}

func (f *fakeTransport) Close(err error) {}

// --- Connection and User Management Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestManager()
	conn := newFakeTransport()

	// 1. Register
	stateConn, err := m.RegisterConnection(conn, "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if stateConn.ID != conn.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	// 2. Get
	retrievedConn, found := m.GetConnection(conn.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrievedConn.ID != conn.ID() {
		t.Errorf("Retrieved connection ID mismatch")
	}

	// 3. Deregister
	summary, err := m.DeregisterConnection(conn.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if summary.UserOffline || len(summary.RoomsLeft) != 0 {
		t.Errorf("Expected empty summary for unassociated connection, got %+v", summary)
	}
	_, found = m.GetConnection(conn.ID())
	if found {
		t.Error("Found connection after it should have been deregistered")
	}
}

func TestUserAssociationAndConnectionCount(t *testing.T) {
	m := newTestManager()
	userID := "user-1"
	conn1 := newFakeTransport()
	conn2 := newFakeTransport()

	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")

	// Associate first connection
	user, err := m.AssociateUser(conn1.ID(), userID, "Ana", 0)
	if err != nil {
		t.Fatalf("AssociateUser (1) failed: %v", err)
	}
	if user.ID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, user.ID)
	}
	if user.Name != "Ana" {
		t.Errorf("Expected user name 'Ana', got %s", user.Name)
	}

	count, _ := m.GetUserConnectionCount(userID)
	if count != 1 {
		t.Errorf("Expected connection count 1, got %d", count)
	}

	// Associate second connection to the same user
	_, err = m.AssociateUser(conn2.ID(), userID, "Ana", 0)
	if err != nil {
		t.Fatalf("AssociateUser (2) failed: %v", err)
	}

	count, _ = m.GetUserConnectionCount(userID)
	if count != 2 {
		t.Errorf("Expected connection count 2, got %d", count)
	}

	// Deregister one connection
	m.DeregisterConnection(conn1.ID())
	count, _ = m.GetUserConnectionCount(userID)
	if count != 1 {
		t.Errorf("Expected connection count 1 after deregister, got %d", count)
	}
	if !m.IsOnline(userID) {
		t.Error("Expected user to still be online with one connection left")
	}
}

func TestFindOldestUserConnection(t *testing.T) {
	m := newTestManager()
	userID := "user-cycle"
	conn1 := newFakeTransport()
	conn2 := newFakeTransport()

	m.RegisterConnection(conn1, "1.1.1.1")
	m.RegisterConnection(conn2, "2.2.2.2")
	m.AssociateUser(conn1.ID(), userID, "", 0)
	m.AssociateUser(conn2.ID(), userID, "", 0)

	oldest, found := m.FindOldestUserConnection(userID)
	if !found {
		t.Fatal("Expected to find oldest connection, but did not")
	}
	if oldest.ID != conn1.ID() {
		t.Errorf("Expected oldest connection ID to be %s, got %s", conn1.ID(), oldest.ID)
	}
}

// --- Room Management Tests ---

func registerUser(t *testing.T, m *statemanager.InMemoryManager, userID, userName string) *fakeTransport {
	t.Helper()
	conn := newFakeTransport()
	if _, err := m.RegisterConnection(conn, "1.1.1.1"); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if _, err := m.AssociateUser(conn.ID(), userID, userName, 0); err != nil {
		t.Fatalf("AssociateUser failed: %v", err)
	}
	return conn
}

func TestRoomMembership(t *testing.T) {
	m := newTestManager()
	projectID := "proj-1"
	registerUser(t, m, "user-room-1", "One")
	registerUser(t, m, "user-room-2", "Two")

	// Join
	members, err := m.Join(projectID, "user-room-1", "")
	if err != nil {
		t.Fatalf("User1 failed to join room: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("Expected member list of 1 after first join, got %d", len(members))
	}

	members, err = m.Join(projectID, "user-room-2", "")
	if err != nil {
		t.Fatalf("User2 failed to join room: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Expected member list of 2, got %d", len(members))
	}

	// Get Members
	got := m.GetRoomMembers(projectID)
	if len(got) != 2 {
		t.Fatalf("Expected 2 members in room, got %d", len(got))
	}

	// Leave
	if err := m.Leave(projectID, "user-room-1"); err != nil {
		t.Fatalf("User1 failed to leave room: %v", err)
	}

	got = m.GetRoomMembers(projectID)
	if len(got) != 1 {
		t.Fatalf("Expected 1 member after leave, got %d", len(got))
	}
	if got[0].UserID != "user-room-2" {
		t.Errorf("Expected remaining member to be user-room-2, got %s", got[0].UserID)
	}

	// Test empty room cleanup
	m.Leave(projectID, "user-room-2")
	_, found := m.FindRoom(projectID)
	if found {
		t.Error("Expected room to be deleted after last member left, but it was found")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	m := newTestManager()
	registerUser(t, m, "user-idem", "Idem")

	first, err := m.Join("proj-idem", "user-idem", "")
	if err != nil {
		t.Fatalf("First join failed: %v", err)
	}
	second, err := m.Join("proj-idem", "user-idem", "")
	if err != nil {
		t.Fatalf("Second join failed: %v", err)
	}
	if len(first) != len(second) {
		t.Errorf("Expected identical member list sizes, got %d and %d", len(first), len(second))
	}
	if len(m.GetRoomMembers("proj-idem")) != 1 {
		t.Errorf("Expected room to hold exactly one member after double join")
	}
}

func TestGetRoomMembersUnknownRoom(t *testing.T) {
	m := newTestManager()
	members := m.GetRoomMembers("never-joined")
	if members == nil {
		t.Fatal("Expected empty member list for unknown room, got nil")
	}
	if len(members) != 0 {
		t.Errorf("Expected 0 members for unknown room, got %d", len(members))
	}
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	m := newTestManager()
	conn := registerUser(t, m, "user-dc", "DC")
	registerUser(t, m, "user-stay", "Stay")

	m.Join("p1", "user-dc", "")
	m.Join("p2", "user-dc", "")
	m.Join("p1", "user-stay", "")

	summary, err := m.DeregisterConnection(conn.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if !summary.UserOffline {
		t.Error("Expected user to be offline after last connection dropped")
	}
	roomsLeft := append([]string(nil), summary.RoomsLeft...)
	sort.Strings(roomsLeft)
	if len(roomsLeft) != 2 || roomsLeft[0] != "p1" || roomsLeft[1] != "p2" {
		t.Errorf("Expected rooms left [p1 p2], got %v", roomsLeft)
	}
	if m.IsOnline("user-dc") {
		t.Error("Expected IsOnline to be false after disconnect")
	}

	// p1 keeps its other member; p2 must be gone entirely.
	if len(m.GetRoomMembers("p1")) != 1 {
		t.Errorf("Expected 1 remaining member in p1")
	}
	if _, found := m.FindRoom("p2"); found {
		t.Error("Expected p2 to be deleted once empty")
	}
}

func TestDisconnectKeepsMembershipWithSecondConnection(t *testing.T) {
	m := newTestManager()
	conn1 := registerUser(t, m, "user-multi", "Multi")
	conn2 := newFakeTransport()
	m.RegisterConnection(conn2, "2.2.2.2")
	m.AssociateUser(conn2.ID(), "user-multi", "Multi", 0)

	m.Join("p1", "user-multi", "")

	summary, err := m.DeregisterConnection(conn1.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if summary.UserOffline {
		t.Error("User with a second connection must not go offline")
	}
	if len(summary.RoomsLeft) != 0 {
		t.Errorf("Expected no rooms left, got %v", summary.RoomsLeft)
	}
	if len(m.GetRoomMembers("p1")) != 1 {
		t.Error("Expected membership to survive while a connection remains")
	}
}

func TestRoomTransportsExcludesUser(t *testing.T) {
	m := newTestManager()
	registerUser(t, m, "u1", "One")
	registerUser(t, m, "u2", "Two")
	m.Join("p1", "u1", "")
	m.Join("p1", "u2", "")

	all := m.RoomTransports("p1", "")
	if len(all) != 2 {
		t.Fatalf("Expected 2 transports, got %d", len(all))
	}
	others := m.RoomTransports("p1", "u1")
	if len(others) != 1 {
		t.Fatalf("Expected 1 transport excluding u1, got %d", len(others))
	}
	if none := m.RoomTransports("no-such-room", ""); len(none) != 0 {
		t.Errorf("Expected no transports for unknown room, got %d", len(none))
	}
}

func TestStats(t *testing.T) {
	m := newTestManager()
	registerUser(t, m, "u1", "One")
	registerUser(t, m, "u2", "Two")
	m.Join("p1", "u1", "")
	m.Join("p1", "u2", "")
	m.Join("p2", "u2", "")

	stats := m.Stats()
	if stats.Connections != 2 {
		t.Errorf("Expected 2 connections, got %d", stats.Connections)
	}
	if stats.Users != 2 {
		t.Errorf("Expected 2 users, got %d", stats.Users)
	}
	if stats.Rooms != 2 {
		t.Errorf("Expected 2 rooms, got %d", stats.Rooms)
	}
	if stats.RoomMembers["p1"] != 2 || stats.RoomMembers["p2"] != 1 {
		t.Errorf("Unexpected room member counts: %v", stats.RoomMembers)
	}
}

func TestConcurrentAssociateAndSnapshot(t *testing.T) {
	m := newTestManager()
	registerUser(t, m, "user-conc", "Conc")
	if _, err := m.Join("p1", "user-conc", ""); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// Snapshot reads race against re-associations that rewrite the user's
	// name. Run under -race to verify the lock discipline.
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			conn := newFakeTransport()
			if _, err := m.RegisterConnection(conn, "1.1.1.1"); err != nil {
				t.Errorf("RegisterConnection failed: %v", err)
				return
			}
			if _, err := m.AssociateUser(conn.ID(), "user-conc", "Renamed", 0); err != nil {
				t.Errorf("AssociateUser failed: %v", err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			members := m.GetRoomMembers("p1")
			if len(members) != 1 {
				t.Errorf("Expected 1 member, got %d", len(members))
				return
			}
		}
	}()

	wg.Wait()
}

var _ state.Transport = (*fakeTransport)(nil)
