package conversation

// List is the ordered message list rendered by the UI. Identity is always
// by id; text equality is never used for deduplication. Order is append-only:
// reconciliation may add missing tail messages but never reorders messages
// already accepted.
//
// List is not safe for concurrent use; it is exclusively owned by the
// engine, which serializes access.
type List struct {
	msgs []Message
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Replace swaps in a freshly loaded history, discarding all local state.
// Used only at conversation load, never mid-turn.
func (l *List) Replace(history []Message) {
	l.msgs = append([]Message(nil), history...)
}

// Messages returns a copy of the current list.
func (l *List) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}

// Len returns the number of messages.
func (l *List) Len() int {
	return len(l.msgs)
}

// IDs returns the id sequence in list order.
func (l *List) IDs() []string {
	ids := make([]string, len(l.msgs))
	for i, m := range l.msgs {
		ids[i] = m.ID
	}
	return ids
}

// IDSet returns the set of ids currently in the list. Callers snapshot this
// before issuing a remote request so reconciliation can tell old messages
// from new ones.
func (l *List) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(l.msgs))
	for _, m := range l.msgs {
		set[m.ID] = struct{}{}
	}
	return set
}

// Get returns the message with the given id.
func (l *List) Get(id string) (Message, bool) {
	for _, m := range l.msgs {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// LastIndex returns the index of the most recent message with the given
// role, or -1.
func (l *List) LastIndex(role Role) int {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Role == role {
			return i
		}
	}
	return -1
}

// Suffix returns copies of all messages from index i to the end.
func (l *List) Suffix(i int) []Message {
	if i < 0 || i >= len(l.msgs) {
		return nil
	}
	return append([]Message(nil), l.msgs[i:]...)
}

// AppendOptimistic inserts a message at the tail before any network
// confirmation. A local id is minted when the message has none. The returned
// handle is the message id, used to later revert the insertion or drop it
// during reconciliation.
func (l *List) AppendOptimistic(m Message) string {
	if m.ID == "" {
		m.ID = NewLocalID()
	}
	l.msgs = append(l.msgs, m)
	return m.ID
}

// RevertOptimistic removes the placeholder inserted under handle, returning
// the list to its pre-turn state. Unknown handles are a no-op.
func (l *List) RevertOptimistic(handle string) {
	l.RemoveMany([]string{handle})
}

// ReconcileWithHistory merges the complete authoritative history into the
// list. known must be the id set snapshotted before the in-flight request
// was issued: newlyAdded is computed as history minus known, so a dice or
// assistant message that was already displayed before the request is never
// re-detected as new (which would replay its animation). Diffing against the
// current list instead of the pre-request snapshot would get that wrong.
//
// The optimistic placeholders in drop are removed and newlyAdded is appended
// in server order. Ids already present are skipped, so reconciling the same
// history twice never introduces duplicates.
func (l *List) ReconcileWithHistory(history []Message, known map[string]struct{}, drop []string) []Message {
	l.RemoveMany(drop)

	present := l.IDSet()
	var newlyAdded []Message
	for _, m := range history {
		if _, ok := known[m.ID]; ok {
			continue
		}
		if _, ok := present[m.ID]; ok {
			continue
		}
		newlyAdded = append(newlyAdded, m)
	}
	l.msgs = append(l.msgs, newlyAdded...)
	return newlyAdded
}

// MutateText replaces the text of the message with the given id in place.
// Returns the previous text for caller-defined rollback.
func (l *List) MutateText(id, newText string) (string, bool) {
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			old := l.msgs[i].Text
			l.msgs[i].Text = newText
			return old, true
		}
	}
	return "", false
}

// RemoveMany removes every message whose id is in ids and returns the ids
// actually removed.
func (l *List) RemoveMany(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	var removed []string
	kept := l.msgs[:0]
	for _, m := range l.msgs {
		if _, ok := doomed[m.ID]; ok {
			removed = append(removed, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	l.msgs = kept
	return removed
}
