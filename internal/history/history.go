// Package history keeps a working set of records together with linear undo and
// optional redo over full snapshots.
package history

import "vipham/internal/domain"

// History owns a working set and its snapshot stacks. It is not safe for
// concurrent use; callers serialize access.
type History struct {
	working   []domain.Record
	undo      [][]domain.Record
	redo      [][]domain.Record
	trackRedo bool
}

// New returns an empty history. With trackRedo false, Undo discards the state
// it leaves and Redo is always a no-op.
func New(trackRedo bool) *History {
	return &History{
		working:   []domain.Record{},
		trackRedo: trackRedo,
	}
}

// Working returns a copy of the current working set.
func (h *History) Working() []domain.Record {
	return domain.CloneRecords(h.working)
}

func (h *History) Len() int {
	return len(h.working)
}

// Append adds rs to the end of the working set.
func (h *History) Append(rs []domain.Record) {
	h.checkpoint()
	next := make([]domain.Record, 0, len(h.working)+len(rs))
	next = append(next, h.working...)
	next = append(next, rs...)
	h.working = next
}

// Clear empties the working set. The previous state stays reachable by Undo.
func (h *History) Clear() {
	h.checkpoint()
	h.working = []domain.Record{}
}

// Replace swaps the working set for rs, as after saving an edit.
func (h *History) Replace(rs []domain.Record) {
	h.checkpoint()
	h.working = domain.CloneRecords(rs)
}

// Undo restores the previous working set. It reports false when there is
// nothing to undo.
func (h *History) Undo() bool {
	if len(h.undo) == 0 {
		return false
	}
	if h.trackRedo {
		h.redo = append(h.redo, h.working)
	}
	h.working = pop(&h.undo)
	return true
}

// Redo re-applies the most recently undone state.
func (h *History) Redo() bool {
	if !h.trackRedo || len(h.redo) == 0 {
		return false
	}
	h.undo = append(h.undo, h.working)
	h.working = pop(&h.redo)
	return true
}

func (h *History) CanUndo() bool    { return len(h.undo) > 0 }
func (h *History) CanRedo() bool    { return len(h.redo) > 0 }
func (h *History) UndoDepth() int   { return len(h.undo) }
func (h *History) RedoDepth() int   { return len(h.redo) }
func (h *History) TracksRedo() bool { return h.trackRedo }

// checkpoint snapshots the working set before a forward mutation. Any mutation
// after an undo invalidates the redo stack.
func (h *History) checkpoint() {
	h.undo = append(h.undo, domain.CloneRecords(h.working))
	h.redo = nil
}

func pop(stack *[][]domain.Record) []domain.Record {
	s := *stack
	top := s[len(s)-1]
	s[len(s)-1] = nil
	*stack = s[:len(s)-1]
	return top
}
