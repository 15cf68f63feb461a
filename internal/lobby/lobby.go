// Package lobby tracks who is sitting in a quiz's waiting room.
package lobby

import (
	"context"
	"sync"
	"time"
)

// Participant is one waiting-room member.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Lobby keeps waiting-room members in join order, one entry per participant.
// Rejoining keeps the original position and refreshes the display name.
type Lobby interface {
	Join(ctx context.Context, quizID int64, p Participant) ([]Participant, error)
	Leave(ctx context.Context, quizID int64, participantID string) ([]Participant, error)
	Members(ctx context.Context, quizID int64) ([]Participant, error)
	Clear(ctx context.Context, quizID int64) error
}

// Names returns display names in join order.
func Names(members []Participant) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

// MemoryLobby is a process-local Lobby.
type MemoryLobby struct {
	mu    sync.Mutex
	rooms map[int64][]Participant
	now   func() time.Time
}

// NewMemoryLobby creates an empty in-process lobby.
func NewMemoryLobby() *MemoryLobby {
	return &MemoryLobby{rooms: make(map[int64][]Participant), now: time.Now}
}

func (l *MemoryLobby) Join(_ context.Context, quizID int64, p Participant) ([]Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	members := l.rooms[quizID]
	for i := range members {
		if members[i].ID == p.ID {
			members[i].Name = p.Name
			return cloneMembers(members), nil
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = l.now()
	}
	l.rooms[quizID] = append(members, p)
	return cloneMembers(l.rooms[quizID]), nil
}

func (l *MemoryLobby) Leave(_ context.Context, quizID int64, participantID string) ([]Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	members := l.rooms[quizID]
	kept := members[:0]
	for _, m := range members {
		if m.ID != participantID {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		delete(l.rooms, quizID)
		return []Participant{}, nil
	}
	l.rooms[quizID] = kept
	return cloneMembers(kept), nil
}

func (l *MemoryLobby) Members(_ context.Context, quizID int64) ([]Participant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneMembers(l.rooms[quizID]), nil
}

func (l *MemoryLobby) Clear(_ context.Context, quizID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, quizID)
	return nil
}

func cloneMembers(members []Participant) []Participant {
	out := make([]Participant, len(members))
	copy(out, members)
	return out
}
