package engine

import (
	"context"
	"fmt"

	"github.com/grimoire/grimoire-go/internal/conversation"
	"github.com/grimoire/grimoire-go/internal/faults"
)

// ErrConfirmationRequired is returned by destructive workflows invoked
// without explicit confirmation.
var ErrConfirmationRequired = faults.New(faults.ValidationFailure, "confirmation required")

// DeleteReport aggregates the outcome of a mass delete.
type DeleteReport struct {
	Deleted []string
	Failed  map[string]*faults.Fault
}

// Coordinator implements the compound workflows: mass delete, regenerate
// last turn, and branching. Each is an ordered sequence of reconciler
// mutations and remote calls with defined behavior on partial failure.
type Coordinator struct {
	ctrl *Controller
}

// NewCoordinator wraps a turn controller.
func NewCoordinator(ctrl *Controller) *Coordinator {
	return &Coordinator{ctrl: ctrl}
}

// MassDelete deletes the selected messages. Each remote deletion is
// attempted independently; failures are collected and reported in aggregate,
// and the ids the server accepted are removed locally regardless, so the
// list never shows a message the server considers deleted.
func (co *Coordinator) MassDelete(ctx context.Context, ids []string, confirmed bool) (*DeleteReport, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	report := &DeleteReport{Failed: make(map[string]*faults.Fault)}
	for _, id := range ids {
		if err := co.ctrl.transport.DeleteMessage(ctx, co.ctrl.conversationID, id); err != nil {
			f := faults.Classify(err)
			co.ctrl.log.Warn("mass delete: deletion failed", "id", id, "error", f)
			report.Failed[id] = f
			continue
		}
		report.Deleted = append(report.Deleted, id)
	}

	co.ctrl.mu.Lock()
	co.ctrl.list.RemoveMany(report.Deleted)
	co.ctrl.mu.Unlock()

	if len(report.Failed) > 0 {
		return report, faults.New(faults.Unclassified,
			fmt.Sprintf("%d of %d deletions failed", len(report.Failed), len(ids)))
	}
	return report, nil
}

// Regenerate re-runs the most recent user turn: the suffix of messages from
// the last user message onward is deleted remotely (best effort) and
// locally, then the original text is resubmitted through the normal turn
// path, including re-matching of a dice command if the text was one.
func (co *Coordinator) Regenerate(ctx context.Context) (*TurnResult, error) {
	co.ctrl.mu.Lock()
	i := co.ctrl.list.LastIndex(conversation.RoleUser)
	if i < 0 {
		co.ctrl.mu.Unlock()
		return nil, faults.New(faults.ValidationFailure, "no user turn to regenerate")
	}
	suffix := co.ctrl.list.Suffix(i)
	originalText := suffix[0].Text
	co.ctrl.mu.Unlock()

	ids := make([]string, 0, len(suffix))
	for _, m := range suffix {
		ids = append(ids, m.ID)
		if conversation.IsLocalID(m.ID) {
			continue // never confirmed by the server, nothing to delete remotely
		}
		if err := co.ctrl.transport.DeleteMessage(ctx, co.ctrl.conversationID, m.ID); err != nil {
			co.ctrl.log.Warn("regenerate: deletion failed", "id", m.ID, "error", err)
		}
	}

	co.ctrl.mu.Lock()
	co.ctrl.list.RemoveMany(ids)
	co.ctrl.mu.Unlock()

	return co.ctrl.SubmitTurn(ctx, originalText, nil)
}

// Branch creates a new conversation from the history up to fromMessageID
// and returns its id. The current list is untouched; the new conversation
// is loaded fresh by whoever navigates to it.
func (co *Coordinator) Branch(ctx context.Context, fromMessageID string, confirmed bool) (string, error) {
	if !confirmed {
		return "", ErrConfirmationRequired
	}
	newID, err := co.ctrl.transport.Branch(ctx, co.ctrl.conversationID, fromMessageID)
	if err != nil {
		return "", faults.Classify(err)
	}
	co.ctrl.log.Info("branched conversation", "from_message", fromMessageID, "new_conversation", newID)
	return newID, nil
}

// ConfirmMemoryDeletion deletes the confirmed memory ids remotely and from
// the memory store, then clears the controller's pending set.
func (co *Coordinator) ConfirmMemoryDeletion(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := co.ctrl.transport.DeleteMemories(ctx, co.ctrl.conversationID, ids); err != nil {
		return faults.Classify(err)
	}
	if err := co.ctrl.memory.Delete(ctx, co.ctrl.conversationID, ids); err != nil {
		co.ctrl.log.Warn("memory store delete failed", "error", err)
	}
	co.ctrl.mu.Lock()
	co.ctrl.pendingDeletions = nil
	co.ctrl.mu.Unlock()
	return nil
}
