package item

import "maps"

// Table is a game's inventory: effect name -> player ID -> held quantity.
// It is not safe for concurrent use; the owning game serializes access.
type Table struct {
	items map[string]map[string]int
}

func NewTable() *Table {
	return &Table{items: make(map[string]map[string]int)}
}

func (t *Table) AddItem(effect, playerID string) {
	holders, ok := t.items[effect]
	if !ok {
		holders = make(map[string]int)
		t.items[effect] = holders
	}
	holders[playerID]++
}

// CheckAndActivateItem consumes one unit of effect held by the player. It
// returns false when the effect or player is unknown or nothing is left.
func (t *Table) CheckAndActivateItem(effect, playerID string) bool {
	holders, ok := t.items[effect]
	if !ok {
		return false
	}

	if holders[playerID] <= 0 {
		return false
	}

	holders[playerID]--
	return true
}

// Clean drops exhausted entries, and effects nobody holds anymore.
func (t *Table) Clean() {
	for effect, holders := range t.items {
		maps.DeleteFunc(holders, func(_ string, q int) bool { return q <= 0 })
		if len(holders) == 0 {
			delete(t.items, effect)
		}
	}
}

func (t *Table) Quantity(effect, playerID string) int {
	return t.items[effect][playerID]
}

// Inventory returns the effects a player holds, including exhausted entries
// that have not been cleaned yet.
func (t *Table) Inventory(playerID string) map[string]int {
	out := make(map[string]int)
	for effect, holders := range t.items {
		if q, ok := holders[playerID]; ok {
			out[effect] = q
		}
	}
	return out
}

// Len is the number of effects with at least one entry.
func (t *Table) Len() int {
	return len(t.items)
}
