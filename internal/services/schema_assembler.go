package services

import (
	"context"
	"sort"
	"strings"

	"github.com/paulexconde/questflow/internal/models"
)

// maxSchemaDepth is the hard ceiling for the depth-first schema mapping.
// Branches deeper than this are truncated, which also bounds damage from
// cyclic data that slipped past the visited-set guard.
const maxSchemaDepth = 20

// flowSnapshot is the reachable slice of one type's tree, loaded frontier by
// frontier before mapping starts. Branch links and parent-child links share
// the question id space.
type flowSnapshot struct {
	questions         map[int]models.Question
	answersByQuestion map[int][]models.PredefinedAnswer
	branchTargets     map[int][]int
	childrenByParent  map[int][]models.Question
}

func (s *questionnaireServiceImpl) assembleSchema(ctx context.Context, t *models.QuestionnaireType) (*models.SchemaDTO, error) {
	schema := &models.SchemaDTO{
		Questionnaire: models.QuestionnaireMeta{TypeID: t.ID, TypeName: t.Name},
		Questions:     []models.QuestionDTO{},
		Rules:         []models.RuleDTO{},
	}

	rootIDs, err := s.store.RootQuestionIDs(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if len(rootIDs) == 0 {
		// Empty but valid: type metadata only.
		return schema, nil
	}

	snap, loaded, err := s.loadReachable(ctx, rootIDs)
	if err != nil {
		return nil, err
	}

	trueRoots, err := s.trueRoots(ctx, rootIDs, snap)
	if err != nil {
		return nil, err
	}

	visited := make(map[int]struct{})
	for _, qid := range trueRoots {
		if dto := s.mapQuestion(snap, qid, visited, 0); dto != nil {
			schema.Questions = append(schema.Questions, *dto)
		}
	}

	rules, err := s.assembleRules(ctx, snap, loaded)
	if err != nil {
		return nil, err
	}
	schema.Rules = rules

	return schema, nil
}

// loadReachable expands the root frontier over both hierarchies at once,
// recording every row touched along the way.
func (s *questionnaireServiceImpl) loadReachable(ctx context.Context, rootIDs []int) (*flowSnapshot, []int, error) {
	snap := &flowSnapshot{
		questions:         make(map[int]models.Question),
		answersByQuestion: make(map[int][]models.PredefinedAnswer),
		branchTargets:     make(map[int][]int),
		childrenByParent:  make(map[int][]models.Question),
	}

	seen, err := expandClosure(ctx, rootIDs, func(ctx context.Context, frontier []int) ([]int, error) {
		questions, err := s.store.QuestionsByIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		for _, q := range questions {
			snap.questions[q.ID] = q
		}

		answers, err := s.store.AnswersForQuestions(ctx, frontier)
		if err != nil {
			return nil, err
		}
		answerIDs := make([]int, 0, len(answers))
		for _, a := range answers {
			snap.answersByQuestion[a.QuestionID] = append(snap.answersByQuestion[a.QuestionID], a)
			answerIDs = append(answerIDs, a.ID)
		}

		var next []int

		if len(answerIDs) > 0 {
			links, err := s.store.BranchLinksForAnswers(ctx, answerIDs)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				snap.branchTargets[link.PredefinedAnswerID] = append(snap.branchTargets[link.PredefinedAnswerID], link.SubQuestionID)
				next = append(next, link.SubQuestionID)
			}
		}

		children, err := s.store.QuestionsByParentIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if c.ParentQuestionID == nil {
				continue
			}
			snap.childrenByParent[*c.ParentQuestionID] = append(snap.childrenByParent[*c.ParentQuestionID], c)
			next = append(next, c.ID)
		}

		return next, nil
	})
	if err != nil {
		return nil, nil, err
	}

	loaded := make([]int, 0, len(seen))
	for id := range seen {
		loaded = append(loaded, id)
	}
	sort.Ints(loaded)

	return snap, loaded, nil
}

// trueRoots filters the registered roots down to real entry points: not the
// target of any branch link and without a parent. Roots failing the filter
// are reachable only through branching and would otherwise render twice.
func (s *questionnaireServiceImpl) trueRoots(ctx context.Context, rootIDs []int, snap *flowSnapshot) ([]int, error) {
	branchTargets, err := s.store.AllBranchTargetIDs(ctx)
	if err != nil {
		return nil, err
	}
	targetSet := make(map[int]struct{}, len(branchTargets))
	for _, id := range branchTargets {
		targetSet[id] = struct{}{}
	}

	seen := make(map[int]struct{}, len(rootIDs))
	roots := make([]int, 0, len(rootIDs))
	for _, qid := range rootIDs {
		if _, dup := seen[qid]; dup {
			continue
		}
		seen[qid] = struct{}{}

		q, ok := snap.questions[qid]
		if !ok {
			continue
		}
		if _, branched := targetSet[qid]; branched {
			continue
		}
		if q.ParentQuestionID != nil {
			continue
		}
		roots = append(roots, qid)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return orderOf(snap.questions[roots[i]]) < orderOf(snap.questions[roots[j]])
	})

	return roots, nil
}

// mapQuestion maps one question depth-first. The visited set is shared
// across the whole mapping, children and branch expansions included, since
// both hierarchies draw from one id space. A revisit or a depth overflow
// truncates that branch.
func (s *questionnaireServiceImpl) mapQuestion(snap *flowSnapshot, qid int, visited map[int]struct{}, depth int) *models.QuestionDTO {
	if depth > maxSchemaDepth {
		s.log.Error("max schema depth reached", "question_id", qid)
		return nil
	}
	if _, ok := visited[qid]; ok {
		return nil
	}
	visited[qid] = struct{}{}

	q, ok := snap.questions[qid]
	if !ok {
		return nil
	}

	dto := &models.QuestionDTO{
		QuestionID:        q.ID,
		QuestionText:      q.QuestionText,
		QuestionLabel:     q.QuestionLabel,
		QuestionOrder:     orderOf(q),
		UIControl:         mapFormat(q.FormatCode),
		SpecificTypeID:    q.SpecificTypeID,
		ParentQuestionID:  q.ParentQuestionID,
		ReadOnly:          q.ReadOnly,
		IsRequired:        q.IsRequired,
		ValidationPattern: q.ValidationPattern,
	}

	answers := append([]models.PredefinedAnswer(nil), snap.answersByQuestion[qid]...)
	sort.SliceStable(answers, func(i, j int) bool {
		return answers[i].DisplayOrder < answers[j].DisplayOrder
	})
	for _, a := range answers {
		dto.Answers = append(dto.Answers, s.mapAnswer(snap, a, visited, depth+1))
	}

	children := append([]models.Question(nil), snap.childrenByParent[qid]...)
	sort.SliceStable(children, func(i, j int) bool {
		return orderOf(children[i]) < orderOf(children[j])
	})
	for _, c := range children {
		if child := s.mapQuestion(snap, c.ID, visited, depth+1); child != nil {
			dto.Children = append(dto.Children, *child)
		}
	}

	return dto
}

func (s *questionnaireServiceImpl) mapAnswer(snap *flowSnapshot, a models.PredefinedAnswer, visited map[int]struct{}, depth int) models.AnswerDTO {
	dto := models.AnswerDTO{
		PredefinedAnswerID: a.ID,
		Answer:             a.Answer,
		Code:               strOr(a.Code, ""),
		PreSelected:        a.PreSelected,
	}

	for _, sub := range snap.branchTargets[a.ID] {
		if q := s.mapQuestion(snap, sub, visited, depth); q != nil {
			dto.SubQuestions = append(dto.SubQuestions, *q)
		}
	}

	return dto
}

// assembleRules attaches the active computed configs of the loaded set,
// ordered by priority. Two-input numeric rules resolve their inputs as the
// owning question's children ordered by question_order; position 0 is the
// primary input and position 1 the secondary, and the evaluator trusts that
// convention.
func (s *questionnaireServiceImpl) assembleRules(ctx context.Context, snap *flowSnapshot, loaded []int) ([]models.RuleDTO, error) {
	configs, err := s.store.ActiveConfigsForQuestions(ctx, loaded)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].Priority < configs[j].Priority
	})

	rules := make([]models.RuleDTO, 0, len(configs))
	for _, cfg := range configs {
		rule := models.RuleDTO{
			RuleID:            cfg.ID,
			QuestionID:        cfg.QuestionID,
			Kind:              models.RuleKind(cfg.ComputeMethodID),
			RuleName:          cfg.RuleName,
			MatrixName:        strOr(cfg.MatrixObjectName, ""),
			ResultCodeColumn:  strOr(cfg.MatrixOutputColumnName, "Value"),
			FormulaExpression: strOr(cfg.FormulaExpression, ""),
			InputQuestionIDs:  []int{},
		}

		if cfg.ComputeMethodID == models.ComputeMethodBMICalc {
			inputs := append([]models.Question(nil), snap.childrenByParent[cfg.QuestionID]...)
			sort.SliceStable(inputs, func(i, j int) bool {
				return orderOf(inputs[i]) < orderOf(inputs[j])
			})
			for _, in := range inputs {
				rule.InputQuestionIDs = append(rule.InputQuestionIDs, in.ID)
			}
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// mapFormat lower-cases a question's format code into the control-type token
// the rendering client switches on.
func mapFormat(code *string) string {
	if code == nil || *code == "" {
		return "text"
	}
	return strings.ToLower(*code)
}

func orderOf(q models.Question) int {
	if q.QuestionOrder == nil {
		return 0
	}
	return *q.QuestionOrder
}
