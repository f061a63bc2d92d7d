package services

import (
	"context"
	"testing"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
)

// seedTree builds a rooted tree for one type: root -> answer -> branch child,
// plus a parent-linked child, and returns the ids involved.
func seedTree(t *testing.T, store *fakeFlowStore, code string) (typeID, rootID, branchID, childID int) {
	t.Helper()
	ctx := context.Background()

	typeID, _ = store.CreateType(ctx, code, code)
	rootID, _ = store.InsertQuestion(ctx, models.Question{QuestionText: code + " root"})
	store.InsertRoot(ctx, typeID, rootID)

	answerID, _ := store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: rootID, Answer: "yes"})
	branchID, _ = store.InsertQuestion(ctx, models.Question{QuestionText: code + " branch"})
	store.InsertBranchLink(ctx, answerID, branchID)

	childID, _ = store.InsertQuestion(ctx, models.Question{QuestionText: code + " child"})
	store.SetParentQuestion(ctx, childID, rootID)

	return typeID, rootID, branchID, childID
}

func TestReapAfterSave_RemovesOnlyUnreachable(t *testing.T) {
	store := newFakeFlowStore()
	reaper := NewReaper(store, logger.NewNop())
	ctx := context.Background()

	_, rootID, branchID, childID := seedTree(t, store, "KEEP")
	orphanID, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "orphan"})

	reaper.ReapAfterSave(ctx)

	for _, id := range []int{rootID, branchID, childID} {
		if _, ok := store.questions[id]; !ok {
			t.Errorf("reachable question %d was reaped", id)
		}
	}
	if _, ok := store.questions[orphanID]; ok {
		t.Error("orphan survived the reap")
	}
}

func TestReapAfterSave_Idempotent(t *testing.T) {
	store := newFakeFlowStore()
	reaper := NewReaper(store, logger.NewNop())
	ctx := context.Background()

	seedTree(t, store, "STABLE")
	store.InsertQuestion(ctx, models.Question{QuestionText: "orphan"})

	reaper.ReapAfterSave(ctx)
	after := len(store.questions)

	reaper.ReapAfterSave(ctx)
	if len(store.questions) != after {
		t.Errorf("second reap changed state: %d -> %d questions", after, len(store.questions))
	}
}

func TestPurgeType_ScopedToOneType(t *testing.T) {
	store := newFakeFlowStore()
	reaper := NewReaper(store, logger.NewNop())
	ctx := context.Background()

	doomedType, doomedRoot, _, _ := seedTree(t, store, "DOOMED")
	_, keptRoot, keptBranch, keptChild := seedTree(t, store, "KEPT")

	if err := reaper.PurgeType(ctx, doomedType); err != nil {
		t.Fatalf("purge: %v", err)
	}

	if _, ok := store.questions[doomedRoot]; ok {
		t.Error("purged type's questions survived")
	}
	for _, id := range []int{keptRoot, keptBranch, keptChild} {
		if _, ok := store.questions[id]; !ok {
			t.Errorf("question %d of another type was purged", id)
		}
	}
	if got, _ := store.RootQuestionIDs(ctx, doomedType); len(got) != 0 {
		t.Errorf("purged type still has roots: %v", got)
	}
}
