package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grimoire/grimoire-go/internal/conversation"
	"github.com/grimoire/grimoire-go/internal/dice"
	"github.com/grimoire/grimoire-go/internal/memory"
	"github.com/grimoire/grimoire-go/internal/remote"
)

func loadedController(t *testing.T, tr *fakeTransport, history []conversation.Message) *Controller {
	t.Helper()
	tr.getHistory = func(ctx context.Context, convID string) ([]conversation.Message, error) {
		return history, nil
	}
	c := NewController("conv-1", tr, memory.NewLocalStore(), dice.NewRoller(), nil)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func TestMassDelete_RequiresConfirmation(t *testing.T) {
	c := loadedController(t, &fakeTransport{}, []conversation.Message{
		msg("a", conversation.RoleUser, "u1"),
	})
	co := NewCoordinator(c)

	_, err := co.MassDelete(context.Background(), []string{"a"}, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	require.Len(t, c.Messages(), 1)
}

func TestMassDelete_PartialFailure(t *testing.T) {
	tr := &fakeTransport{
		deleteMessage: func(ctx context.Context, convID, id string) error {
			if id == "b" {
				return errors.New("boom")
			}
			return nil
		},
	}
	c := loadedController(t, tr, []conversation.Message{
		msg("a", conversation.RoleUser, "u1"),
		msg("b", conversation.RoleAssistant, "a1"),
		msg("c", conversation.RoleUser, "u2"),
		msg("d", conversation.RoleAssistant, "a2"),
	})
	co := NewCoordinator(c)

	report, err := co.MassDelete(context.Background(), []string{"a", "b", "c"}, true)
	require.Error(t, err)
	require.Equal(t, []string{"a", "c"}, report.Deleted)
	require.Contains(t, report.Failed, "b")

	// the successfully deleted ids are removed locally, the failed one stays
	require.Equal(t, []string{"b", "d"}, ids(c.Messages()))
}

func TestMassDelete_AllSucceed(t *testing.T) {
	c := loadedController(t, &fakeTransport{}, []conversation.Message{
		msg("a", conversation.RoleUser, "u1"),
		msg("b", conversation.RoleAssistant, "a1"),
	})
	co := NewCoordinator(c)

	report, err := co.MassDelete(context.Background(), []string{"a", "b"}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, report.Deleted)
	require.Empty(t, c.Messages())
}

func TestRegenerate_ReplaysLastUserTurn(t *testing.T) {
	var deletedIDs []string
	var resubmitted string
	tr := &fakeTransport{
		deleteMessage: func(ctx context.Context, convID, id string) error {
			deletedIDs = append(deletedIDs, id)
			return nil
		},
		generate: func(ctx context.Context, convID, text string, memCtx []map[string]any, files []remote.File) (*remote.GenerateResult, error) {
			resubmitted = text
			return &remote.GenerateResult{History: []conversation.Message{
				msg("u1", conversation.RoleUser, "one"),
				msg("a1", conversation.RoleAssistant, "two"),
				msg("u2b", conversation.RoleUser, "three"),
				msg("a2b", conversation.RoleAssistant, "four, retold"),
			}}, nil
		},
	}
	c := loadedController(t, tr, []conversation.Message{
		msg("u1", conversation.RoleUser, "one"),
		msg("a1", conversation.RoleAssistant, "two"),
		msg("u2", conversation.RoleUser, "three"),
		msg("a2", conversation.RoleAssistant, "four"),
	})
	co := NewCoordinator(c)

	res, err := co.Regenerate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"u2", "a2"}, deletedIDs)
	require.Equal(t, "three", resubmitted)
	require.Equal(t, []string{"u2b", "a2b"}, ids(res.NewlyAdded))
	require.Equal(t, []string{"u1", "a1", "u2b", "a2b"}, ids(c.Messages()))
}

func TestRegenerate_ContinuesPastDeleteFailure(t *testing.T) {
	tr := &fakeTransport{
		deleteMessage: func(ctx context.Context, convID, id string) error {
			if id == "u2" {
				return errors.New("boom")
			}
			return nil
		},
		generate: func(ctx context.Context, convID, text string, memCtx []map[string]any, files []remote.File) (*remote.GenerateResult, error) {
			return &remote.GenerateResult{History: []conversation.Message{
				msg("u1", conversation.RoleUser, "one"),
				msg("u2b", conversation.RoleUser, "three"),
				msg("a2b", conversation.RoleAssistant, "retold"),
			}}, nil
		},
	}
	c := loadedController(t, tr, []conversation.Message{
		msg("u1", conversation.RoleUser, "one"),
		msg("u2", conversation.RoleUser, "three"),
		msg("a2", conversation.RoleAssistant, "four"),
	})
	co := NewCoordinator(c)

	// the failed remote delete does not stop the pass; the suffix is still
	// removed locally and the turn resubmitted
	_, err := co.Regenerate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2b", "a2b"}, ids(c.Messages()))
}

func TestRegenerate_NoUserTurn(t *testing.T) {
	c := loadedController(t, &fakeTransport{}, []conversation.Message{
		msg("a1", conversation.RoleAssistant, "welcome, adventurer"),
	})
	co := NewCoordinator(c)

	_, err := co.Regenerate(context.Background())
	require.Error(t, err)
	require.Len(t, c.Messages(), 1)
}

func TestRegenerate_DiceCommandRematches(t *testing.T) {
	// a regenerated turn whose text is a dice command resolves locally
	tr := &fakeTransport{
		deleteMessage: func(ctx context.Context, convID, id string) error { return nil },
	}
	c := loadedController(t, tr, []conversation.Message{
		msg("u1", conversation.RoleUser, "/r 1d20"),
	})
	c.roller = fixedRoller{faces: []int{7}}
	co := NewCoordinator(c)

	res, err := co.Regenerate(context.Background())
	require.NoError(t, err)
	require.True(t, res.DiceOnly)
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, conversation.RoleDice, msgs[0].Role)
	require.Equal(t, "1d20 = 7 { 7 }", msgs[0].Text)
}

func TestBranch(t *testing.T) {
	tr := &fakeTransport{
		branch: func(ctx context.Context, convID, fromID string) (string, error) {
			require.Equal(t, "conv-1", convID)
			require.Equal(t, "a1", fromID)
			return "conv-2", nil
		},
	}
	c := loadedController(t, tr, []conversation.Message{
		msg("u1", conversation.RoleUser, "one"),
		msg("a1", conversation.RoleAssistant, "two"),
	})
	co := NewCoordinator(c)

	_, err := co.Branch(context.Background(), "a1", false)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	newID, err := co.Branch(context.Background(), "a1", true)
	require.NoError(t, err)
	require.Equal(t, "conv-2", newID)

	// branch never mutates the local list
	require.Equal(t, []string{"u1", "a1"}, ids(c.Messages()))
}

func TestConfirmMemoryDeletion(t *testing.T) {
	var deleted []string
	tr := &fakeTransport{
		generate: func(ctx context.Context, convID, text string, memCtx []map[string]any, files []remote.File) (*remote.GenerateResult, error) {
			return &remote.GenerateResult{
				History:          []conversation.Message{msg("a", conversation.RoleUser, text)},
				PendingDeletions: []string{"m1"},
			}, nil
		},
		deleteMemories: func(ctx context.Context, convID string, ids []string) error {
			deleted = ids
			return nil
		},
	}
	c, _ := newTestController(t, tr, dice.NewRoller())
	co := NewCoordinator(c)

	_, err := c.SubmitTurn(context.Background(), "the king is dead", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, c.PendingDeletions())

	require.NoError(t, co.ConfirmMemoryDeletion(context.Background(), []string{"m1"}))
	require.Equal(t, []string{"m1"}, deleted)
	require.Empty(t, c.PendingDeletions())
}
