// Package engine coordinates user turns against the remote backend: it owns
// the message list, applies optimistic mutations before the network round
// trip completes, reconciles authoritative histories, replays dice results,
// and runs the compound workflows (regenerate, branch, mass delete).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/grimoire/grimoire-go/internal/conversation"
	"github.com/grimoire/grimoire-go/internal/dice"
	"github.com/grimoire/grimoire-go/internal/faults"
	"github.com/grimoire/grimoire-go/internal/logger"
	"github.com/grimoire/grimoire-go/internal/memory"
	"github.com/grimoire/grimoire-go/internal/remote"
)

// FSM states of an outgoing turn.
type TurnState stateless.State

var (
	StateIdle        TurnState = "Idle"
	StateSending     TurnState = "Sending"
	StateReconciling TurnState = "Reconciling"
	StateFailed      TurnState = "Failed"
)

// FSM triggers.
type TurnTrigger stateless.Trigger

var (
	TriggerSubmit          TurnTrigger = "Submit"
	TriggerHistoryReceived TurnTrigger = "HistoryReceived"
	TriggerReconciled      TurnTrigger = "Reconciled"
	TriggerCallFailed      TurnTrigger = "CallFailed"
	TriggerReset           TurnTrigger = "Reset"
)

// ErrTurnInFlight is returned when SubmitTurn is called while a previous
// turn is still being sent or reconciled. Concurrent in-flight turns would
// corrupt the id snapshot reconciliation depends on.
var ErrTurnInFlight = faults.New(faults.ValidationFailure, "a turn is already in flight")

// AnimationSink receives the dice rolls that should be animated. Exactly one
// roll is delivered per detected result.
type AnimationSink interface {
	PlayRoll(roll dice.Roll)
}

// AnimationFunc adapts a function to an AnimationSink.
type AnimationFunc func(dice.Roll)

func (f AnimationFunc) PlayRoll(roll dice.Roll) { f(roll) }

// TurnResult describes the outcome of a successful SubmitTurn.
type TurnResult struct {
	// DiceOnly is true when the input was a bare /r command: the roll was
	// recorded locally and no network call was made.
	DiceOnly bool
	// Roll is set for dice-only turns.
	Roll *dice.Roll
	// NewlyAdded are the messages the server added beyond what was known
	// before the request, in server order.
	NewlyAdded []conversation.Message
	// PendingDeletions are candidate memory ids the server suggests
	// deleting. Deletion requires explicit confirmation.
	PendingDeletions []string
}

// Controller runs one conversation's turns. It is safe for concurrent use;
// a second SubmitTurn while one is in flight is rejected, never queued.
type Controller struct {
	conversationID string
	transport      remote.Transport
	memory         memory.Store
	roller         dice.Roller
	anim           AnimationSink
	log            *slog.Logger

	mu   sync.Mutex
	fsm  *stateless.StateMachine
	list *conversation.List

	// formatted roll strings awaiting absorption into the next outgoing
	// turn, and the local ids of their visible dice messages
	pendingRolls   []string
	pendingDiceIDs []string

	pendingDeletions []string
}

// NewController creates a controller for one conversation. anim may be nil.
func NewController(conversationID string, transport remote.Transport, mem memory.Store, roller dice.Roller, anim AnimationSink) *Controller {
	c := &Controller{
		conversationID: conversationID,
		transport:      transport,
		memory:         mem,
		roller:         roller,
		anim:           anim,
		log:            logger.With("conversation", conversationID),
		list:           conversation.NewList(),
	}
	c.fsm = newTurnFSM()
	return c
}

func newTurnFSM() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(TriggerSubmit, StateSending)
	fsm.Configure(StateSending).
		Permit(TriggerHistoryReceived, StateReconciling).
		Permit(TriggerCallFailed, StateFailed)
	fsm.Configure(StateReconciling).
		Permit(TriggerReconciled, StateIdle)
	fsm.Configure(StateFailed).
		Permit(TriggerReset, StateIdle)
	return fsm
}

func (c *Controller) fire(trigger TurnTrigger) {
	if err := c.fsm.Fire(trigger); err != nil {
		c.log.Warn("FSM fire error", "trigger", trigger, "error", err)
	}
}

// ConversationID returns the conversation this controller owns.
func (c *Controller) ConversationID() string { return c.conversationID }

// State returns the current turn state.
func (c *Controller) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.MustState()
}

// Messages returns a copy of the rendered message list.
func (c *Controller) Messages() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Messages()
}

// PendingDeletions returns the memory ids the server last suggested for
// deletion.
func (c *Controller) PendingDeletions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pendingDeletions...)
}

// Load fetches the authoritative history and replaces the list. Used only at
// conversation load, never mid-turn.
func (c *Controller) Load(ctx context.Context) error {
	history, err := c.transport.GetHistory(ctx, c.conversationID)
	if err != nil {
		return faults.Classify(err)
	}
	c.mu.Lock()
	c.list.Replace(history)
	c.mu.Unlock()
	return nil
}

// SubmitTurn runs one full user turn.
//
// A bare dice command is resolved locally: the roll is appended as a pending
// dice message, its animation fires, and no network call is made. Otherwise
// any pending rolls are folded into the outgoing text (so the model sees the
// roll context), an optimistic user message is appended, the generate call
// is made, and the returned history is reconciled against the ids known
// before the request. On failure the optimistic message is reverted and the
// classified fault returned; pending dice text already folded in is not
// restored.
func (c *Controller) SubmitTurn(ctx context.Context, rawInput string, files []remote.File) (*TurnResult, error) {
	if strings.TrimSpace(rawInput) == "" && len(files) == 0 {
		return nil, faults.New(faults.ValidationFailure, "empty message")
	}
	cmd, isRoll := dice.ParseCommand(rawInput)

	c.mu.Lock()
	if st := c.fsm.MustState(); st != StateIdle {
		c.mu.Unlock()
		return nil, ErrTurnInFlight
	}

	if isRoll {
		roll := dice.Evaluate(cmd, c.roller)
		text := dice.Format(roll)
		handle := c.list.AppendOptimistic(conversation.Message{
			Role:    conversation.RoleDice,
			Text:    text,
			Pending: true,
		})
		c.pendingRolls = append(c.pendingRolls, text)
		c.pendingDiceIDs = append(c.pendingDiceIDs, handle)
		c.mu.Unlock()
		c.playRoll(roll)
		return &TurnResult{DiceOnly: true, Roll: &roll}, nil
	}

	outgoing := rawInput
	if len(c.pendingRolls) > 0 {
		// the server re-delivers the rolls inside the authoritative history,
		// so the local pending dice messages are removed here
		outgoing = strings.Join(c.pendingRolls, "\n") + "\n" + rawInput
		c.list.RemoveMany(c.pendingDiceIDs)
		c.pendingRolls = nil
		c.pendingDiceIDs = nil
	}

	display := rawInput
	for _, f := range files {
		display += fmt.Sprintf("\n[Arquivo: %s]", f.Name)
	}

	known := c.list.IDSet()
	handle := c.list.AppendOptimistic(conversation.Message{
		Role: conversation.RoleUser,
		Text: display,
	})
	c.fire(TriggerSubmit)
	c.mu.Unlock()

	memCtx, err := c.memory.Context(ctx, c.conversationID)
	if err != nil {
		c.log.Warn("memory context unavailable", "error", err)
		memCtx = nil
	}

	res, err := c.transport.Generate(ctx, c.conversationID, outgoing, memCtx, files)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.fire(TriggerCallFailed)
		c.list.RevertOptimistic(handle)
		c.fire(TriggerReset)
		return nil, faults.Classify(err)
	}

	c.fire(TriggerHistoryReceived)
	newlyAdded := c.list.ReconcileWithHistory(res.History, known, []string{handle})

	// Scan newlyAdded from the tail backward and animate only the most
	// recent dice result. Stopping at the first match keeps an older roll
	// present in the same batch from being re-animated.
	for i := len(newlyAdded) - 1; i >= 0; i-- {
		m := newlyAdded[i]
		if m.Role != conversation.RoleAssistant {
			continue
		}
		if roll, ok := dice.Decode(m.Text); ok {
			c.playRoll(roll)
			break
		}
	}

	if err := c.memory.Absorb(ctx, c.conversationID, res.NewVectorMemory); err != nil {
		c.log.Warn("memory absorb failed", "error", err)
	}
	c.pendingDeletions = append([]string(nil), res.PendingDeletions...)
	c.fire(TriggerReconciled)

	return &TurnResult{
		NewlyAdded:       newlyAdded,
		PendingDeletions: res.PendingDeletions,
	}, nil
}

// EditMessage replaces a message's text locally, then confirms the edit with
// the backend, rolling the text back if the remote call fails.
func (c *Controller) EditMessage(ctx context.Context, id, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return faults.New(faults.ValidationFailure, "empty message text")
	}
	c.mu.Lock()
	old, ok := c.list.MutateText(id, newText)
	c.mu.Unlock()
	if !ok {
		return faults.New(faults.ValidationFailure, fmt.Sprintf("message not found: %s", id))
	}

	if err := c.transport.EditMessage(ctx, c.conversationID, id, newText); err != nil {
		c.mu.Lock()
		c.list.MutateText(id, old)
		c.mu.Unlock()
		return faults.Classify(err)
	}
	return nil
}

// DeleteMessage deletes a single message remotely, then locally.
func (c *Controller) DeleteMessage(ctx context.Context, id string) error {
	if err := c.transport.DeleteMessage(ctx, c.conversationID, id); err != nil {
		return faults.Classify(err)
	}
	c.mu.Lock()
	c.list.RemoveMany([]string{id})
	c.mu.Unlock()
	return nil
}

func (c *Controller) playRoll(roll dice.Roll) {
	if c.anim != nil {
		c.anim.PlayRoll(roll)
	}
}
