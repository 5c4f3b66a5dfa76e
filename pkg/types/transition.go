package types

import "slices"

// Transitions lists, for each state, the states it may move to. A state
// missing from the map is terminal.
type Transitions[S ~string] map[S][]S

func (t Transitions[S]) Can(from, to S) bool {
	return slices.Contains(t[from], to)
}

// Check returns a StateError naming the entity when from -> to is not allowed.
func (t Transitions[S]) Check(entity string, from, to S) error {
	if t.Can(from, to) {
		return nil
	}
	return StateError("%s cannot move from %s to %s", entity, from, to)
}

func (t Transitions[S]) Terminal(s S) bool {
	return len(t[s]) == 0
}
