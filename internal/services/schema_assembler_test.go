package services

import (
	"context"
	"testing"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
	"github.com/paulexconde/questflow/pkg/fault"
)

func newTestQuestionnaireService(store *fakeFlowStore) *questionnaireServiceImpl {
	return &questionnaireServiceImpl{store: store, log: logger.NewNop()}
}

func intp(v int) *int { return &v }

func TestSchema_UnknownCode(t *testing.T) {
	svc := newTestQuestionnaireService(newFakeFlowStore())

	_, err := svc.Schema(context.Background(), "MISSING")
	if !fault.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestSchema_EmptyTypeYieldsMetadataOnly(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	store.CreateType(context.Background(), "Blank", "BLANK")

	schema, err := svc.Schema(context.Background(), "BLANK")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Questionnaire.TypeName != "Blank" {
		t.Errorf("metadata lost, got %+v", schema.Questionnaire)
	}
	if schema.Questions == nil || len(schema.Questions) != 0 {
		t.Errorf("expected empty question list, got %v", schema.Questions)
	}
	if schema.Rules == nil || len(schema.Rules) != 0 {
		t.Errorf("expected empty rule list, got %v", schema.Rules)
	}
}

func TestSchema_NestedAndOrdered(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	ctx := context.Background()

	typeID, _ := store.CreateType(ctx, "Intake", "INTAKE")
	rootID, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Root", QuestionOrder: intp(1)})
	store.InsertRoot(ctx, typeID, rootID)

	second, _ := store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: rootID, Answer: "B", DisplayOrder: 2})
	store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: rootID, Answer: "A", DisplayOrder: 1})

	branchID, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Branched"})
	store.InsertBranchLink(ctx, second, branchID)

	lateChild, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Late", QuestionOrder: intp(2)})
	store.SetParentQuestion(ctx, lateChild, rootID)
	earlyChild, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Early", QuestionOrder: intp(1)})
	store.SetParentQuestion(ctx, earlyChild, rootID)

	schema, err := svc.Schema(ctx, "INTAKE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(schema.Questions) != 1 {
		t.Fatalf("expected single top-level question, got %d", len(schema.Questions))
	}
	root := schema.Questions[0]

	if len(root.Answers) != 2 || root.Answers[0].Answer != "A" || root.Answers[1].Answer != "B" {
		t.Errorf("answers not in display order: %+v", root.Answers)
	}
	if len(root.Answers[1].SubQuestions) != 1 || root.Answers[1].SubQuestions[0].QuestionText != "Branched" {
		t.Errorf("branch target missing under its answer: %+v", root.Answers[1].SubQuestions)
	}
	if len(root.Children) != 2 || root.Children[0].QuestionText != "Early" || root.Children[1].QuestionText != "Late" {
		t.Errorf("children not in question order: %+v", root.Children)
	}
}

func TestSchema_FiltersBranchTargetRoots(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	ctx := context.Background()

	typeID, _ := store.CreateType(ctx, "Dedup", "DEDUP")
	rootID, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Entry"})
	store.InsertRoot(ctx, typeID, rootID)

	answerID, _ := store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: rootID, Answer: "go"})
	branchID, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Branched"})
	store.InsertBranchLink(ctx, answerID, branchID)

	// The branch target is also registered as a root; it must render only
	// under its answer, never at top level.
	store.InsertRoot(ctx, typeID, branchID)

	schema, err := svc.Schema(ctx, "DEDUP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Questions) != 1 || schema.Questions[0].QuestionText != "Entry" {
		t.Fatalf("expected only the entry question at top level, got %+v", schema.Questions)
	}
	subs := schema.Questions[0].Answers[0].SubQuestions
	if len(subs) != 1 || subs[0].QuestionText != "Branched" {
		t.Errorf("branch target missing from its answer: %+v", subs)
	}
}

func TestSchema_CyclicBranchesTerminate(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	ctx := context.Background()

	typeID, _ := store.CreateType(ctx, "Loop", "LOOP")
	q1, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "One"})
	q2, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Two"})
	store.InsertRoot(ctx, typeID, q1)

	a1, _ := store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: q1, Answer: "fwd"})
	store.InsertBranchLink(ctx, a1, q2)
	a2, _ := store.InsertAnswer(ctx, models.PredefinedAnswer{QuestionID: q2, Answer: "back"})
	store.InsertBranchLink(ctx, a2, q1)

	schema, err := svc.Schema(ctx, "LOOP")
	if err != nil {
		t.Fatalf("cyclic data must still assemble: %v", err)
	}

	var count func(qs []models.QuestionDTO, text string) int
	count = func(qs []models.QuestionDTO, text string) int {
		n := 0
		for _, q := range qs {
			if q.QuestionText == text {
				n++
			}
			for _, a := range q.Answers {
				n += count(a.SubQuestions, text)
			}
			n += count(q.Children, text)
		}
		return n
	}
	if got := count(schema.Questions, "One"); got != 1 {
		t.Errorf("question One rendered %d times, want 1", got)
	}
}

func TestSchema_BMIRuleInputsFromOrderedChildren(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	ctx := context.Background()

	typeID, _ := store.CreateType(ctx, "Vitals", "VITALS")
	bmiQ, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "BMI", QuestionOrder: intp(3)})
	store.InsertRoot(ctx, typeID, bmiQ)

	weight, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Weight", QuestionOrder: intp(2)})
	store.SetParentQuestion(ctx, weight, bmiQ)
	height, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Height", QuestionOrder: intp(1)})
	store.SetParentQuestion(ctx, height, bmiQ)

	store.InsertComputedConfig(ctx, models.QuestionComputedConfig{
		QuestionID:      bmiQ,
		ComputeMethodID: models.ComputeMethodBMICalc,
		RuleName:        "BMI",
		Priority:        1,
		IsActive:        true,
	})

	schema, err := svc.Schema(ctx, "VITALS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(schema.Rules))
	}

	rule := schema.Rules[0]
	if rule.Kind != models.RuleKindBMICalc {
		t.Errorf("rule kind %q, want %q", rule.Kind, models.RuleKindBMICalc)
	}
	if rule.ResultCodeColumn != "Value" {
		t.Errorf("result column default %q, want Value", rule.ResultCodeColumn)
	}
	if len(rule.InputQuestionIDs) != 2 || rule.InputQuestionIDs[0] != height || rule.InputQuestionIDs[1] != weight {
		t.Errorf("inputs %v, want [%d %d] (height first by question order)", rule.InputQuestionIDs, height, weight)
	}
}

func TestSchema_InactiveRulesExcluded(t *testing.T) {
	store := newFakeFlowStore()
	svc := newTestQuestionnaireService(store)
	ctx := context.Background()

	typeID, _ := store.CreateType(ctx, "Quiet", "QUIET")
	qid, _ := store.InsertQuestion(ctx, models.Question{QuestionText: "Q"})
	store.InsertRoot(ctx, typeID, qid)

	store.InsertComputedConfig(ctx, models.QuestionComputedConfig{
		QuestionID:      qid,
		ComputeMethodID: models.ComputeMethodFormula,
		RuleName:        "disabled",
		IsActive:        false,
	})

	schema, err := svc.Schema(ctx, "QUIET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schema.Rules) != 0 {
		t.Errorf("inactive configs must not surface, got %+v", schema.Rules)
	}
}
