// Package protocol implements the per-player status ledger: the latest value
// seen at each of five fixed lifecycle checkpoints, kept to diagnose players
// who lose track of a lobby or game.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

type Checkpoint string

const (
	JoinedLobby      Checkpoint = "joined_lobby"
	JoinedGame       Checkpoint = "joined_game"
	GotQuestion      Checkpoint = "got_question"
	AnsweredQuestion Checkpoint = "answered_question"
	GotScoreboard    Checkpoint = "got_scoreboard"
)

const checkpointCount = 5

var checkpoints = [checkpointCount]Checkpoint{
	JoinedLobby,
	JoinedGame,
	GotQuestion,
	AnsweredQuestion,
	GotScoreboard,
}

// Checkpoints returns the fixed checkpoint set in ledger order.
func Checkpoints() []Checkpoint {
	return checkpoints[:]
}

func (c Checkpoint) index() (int, bool) {
	for i, cp := range checkpoints {
		if cp == c {
			return i, true
		}
	}
	return 0, false
}

func (c Checkpoint) Valid() bool {
	_, ok := c.index()
	return ok
}

// Record holds one player's checkpoint values. It is a value type: copying a
// Record copies every slot, so no two players can ever share storage.
type Record struct {
	values [checkpointCount]any
}

// Get returns the value recorded for c, and false when c is unset or unknown.
func (r Record) Get(c Checkpoint) (any, bool) {
	i, ok := c.index()
	if !ok || r.values[i] == nil {
		return nil, false
	}
	return r.values[i], true
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[Checkpoint]any, checkpointCount)
	for i, c := range checkpoints {
		m[c] = r.values[i]
	}
	return json.Marshal(m)
}

// Snapshot is a detached copy of the ledger keyed by player ID.
type Snapshot map[string]Record

// Protocol is the ledger for one lobby/game lineage. Records live in an arena
// with one slot per registered player.
type Protocol struct {
	mu      sync.RWMutex
	quizID  int
	records []Record
	slots   map[string]int
}

func New(quizID int) *Protocol {
	return &Protocol{
		quizID: quizID,
		slots:  make(map[string]int),
	}
}

func (p *Protocol) QuizID() int {
	return p.quizID
}

// AddPlayer registers a player with an empty record. Registering an existing
// player keeps their record untouched.
func (p *Protocol) AddPlayer(playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.slots[playerID]; ok {
		return
	}

	p.slots[playerID] = len(p.records)
	p.records = append(p.records, Record{})
}

// Remove drops a player's record. The last record moves into the freed slot.
func (p *Protocol) Remove(playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[playerID]
	if !ok {
		return
	}

	last := len(p.records) - 1
	if slot != last {
		p.records[slot] = p.records[last]
		for id, s := range p.slots {
			if s == last {
				p.slots[id] = slot
				break
			}
		}
	}

	p.records = p.records[:last]
	delete(p.slots, playerID)
}

// Put overwrites the latest value of checkpoint c for a registered player.
// Unknown checkpoints and unregistered players are logged and ignored; Put
// reports whether the ledger changed.
func (p *Protocol) Put(ctx context.Context, playerID string, c Checkpoint, value any) bool {
	i, ok := c.index()
	if !ok {
		slog.WarnContext(ctx, "protocol: invalid checkpoint, ignoring",
			"checkpoint", string(c), "player_id", playerID, "quiz_id", p.quizID)
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.slots[playerID]
	if !ok {
		slog.WarnContext(ctx, "protocol: player not registered, ignoring",
			"checkpoint", string(c), "player_id", playerID, "quiz_id", p.quizID)
		return false
	}

	p.records[slot].values[i] = value
	return true
}

func (p *Protocol) Get(playerID string, c Checkpoint) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	slot, ok := p.slots[playerID]
	if !ok {
		return nil, false
	}
	return p.records[slot].Get(c)
}

func (p *Protocol) Has(playerID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.slots[playerID]
	return ok
}

func (p *Protocol) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := make(Snapshot, len(p.slots))
	for id, slot := range p.slots {
		s[id] = p.records[slot]
	}
	return s
}
