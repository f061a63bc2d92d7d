package services

import (
	"context"
	"errors"

	"github.com/paulexconde/questflow/internal/models"
)

// fakeFlowStore is the in-memory FlowStore used across the service tests.
// Cascades mirror the schema: deleting a question takes its answers, branch
// links, configs and reference columns with it.
type fakeFlowStore struct {
	nextID int

	types      map[int]models.QuestionnaireType
	identTypes map[int]string
	questions  map[int]models.Question
	answers    map[int]models.PredefinedAnswer
	links      []models.AnswerSubQuestion
	configs    map[int]models.QuestionComputedConfig
	refTables  map[int]models.ReferenceTable
	refColumns []models.ReferenceColumn
	roots      []models.QuestionnaireRoot
	layouts    []models.FlowLayout

	reapCalls int
	failReap  bool
}

func newFakeFlowStore() *fakeFlowStore {
	return &fakeFlowStore{
		types:      make(map[int]models.QuestionnaireType),
		identTypes: make(map[int]string),
		questions:  make(map[int]models.Question),
		answers:    make(map[int]models.PredefinedAnswer),
		configs:    make(map[int]models.QuestionComputedConfig),
		refTables:  make(map[int]models.ReferenceTable),
	}
}

func (f *fakeFlowStore) mintID() int {
	f.nextID++
	return f.nextID
}

func (f *fakeFlowStore) TypeByID(_ context.Context, id int) (*models.QuestionnaireType, error) {
	if t, ok := f.types[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeFlowStore) TypeByCode(_ context.Context, code string) (*models.QuestionnaireType, error) {
	for _, t := range f.types {
		if t.Code == code {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeFlowStore) CreateType(_ context.Context, name, code string) (int, error) {
	id := f.mintID()
	f.types[id] = models.QuestionnaireType{ID: id, Name: name, Code: code}
	return id, nil
}

func (f *fakeFlowStore) DeleteType(_ context.Context, id int) error {
	delete(f.types, id)
	return nil
}

func (f *fakeFlowStore) CreateIdentificatorType(_ context.Context, name string) (int, error) {
	id := f.mintID()
	f.identTypes[id] = name
	return id, nil
}

func (f *fakeFlowStore) InsertQuestion(_ context.Context, q models.Question) (int, error) {
	q.ID = f.mintID()
	f.questions[q.ID] = q
	return q.ID, nil
}

func (f *fakeFlowStore) InsertAnswer(_ context.Context, a models.PredefinedAnswer) (int, error) {
	a.ID = f.mintID()
	f.answers[a.ID] = a
	return a.ID, nil
}

func (f *fakeFlowStore) InsertBranchLink(_ context.Context, answerID, subQuestionID int) error {
	f.links = append(f.links, models.AnswerSubQuestion{PredefinedAnswerID: answerID, SubQuestionID: subQuestionID})
	return nil
}

func (f *fakeFlowStore) InsertComputedConfig(_ context.Context, cfg models.QuestionComputedConfig) (int, error) {
	cfg.ID = f.mintID()
	f.configs[cfg.ID] = cfg
	return cfg.ID, nil
}

func (f *fakeFlowStore) GetOrCreateReferenceTable(_ context.Context, typeID int, tableName string) (int, error) {
	for _, rt := range f.refTables {
		if rt.QuestionnaireTypeID == typeID && rt.TableName == tableName {
			return rt.ID, nil
		}
	}
	id := f.mintID()
	f.refTables[id] = models.ReferenceTable{ID: id, QuestionnaireTypeID: typeID, TableName: tableName}
	return id, nil
}

func (f *fakeFlowStore) InsertReferenceColumn(_ context.Context, col models.ReferenceColumn) error {
	col.ID = f.mintID()
	f.refColumns = append(f.refColumns, col)
	return nil
}

func (f *fakeFlowStore) InsertRoot(_ context.Context, typeID, questionID int) error {
	f.roots = append(f.roots, models.QuestionnaireRoot{QuestionnaireTypeID: typeID, QuestionID: questionID})
	return nil
}

func (f *fakeFlowStore) InsertLayout(_ context.Context, layout models.FlowLayout) error {
	layout.ID = f.mintID()
	f.layouts = append(f.layouts, layout)
	return nil
}

func (f *fakeFlowStore) ClearParentQuestions(_ context.Context, questionIDs []int) error {
	for _, id := range questionIDs {
		if q, ok := f.questions[id]; ok {
			q.ParentQuestionID = nil
			f.questions[id] = q
		}
	}
	return nil
}

func (f *fakeFlowStore) SetParentQuestion(_ context.Context, childID, parentID int) error {
	q, ok := f.questions[childID]
	if !ok {
		return errors.New("question not found")
	}
	q.ParentQuestionID = &parentID
	f.questions[childID] = q
	return nil
}

func (f *fakeFlowStore) DeleteBranchLinksForAnswers(_ context.Context, answerIDs []int) error {
	drop := make(map[int]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		drop[id] = struct{}{}
	}
	kept := f.links[:0]
	for _, l := range f.links {
		if _, ok := drop[l.PredefinedAnswerID]; !ok {
			kept = append(kept, l)
		}
	}
	f.links = kept
	return nil
}

func (f *fakeFlowStore) DeleteRoots(_ context.Context, typeID int) error {
	kept := f.roots[:0]
	for _, r := range f.roots {
		if r.QuestionnaireTypeID != typeID {
			kept = append(kept, r)
		}
	}
	f.roots = kept
	return nil
}

func (f *fakeFlowStore) DeleteLayouts(_ context.Context, typeID int) error {
	kept := f.layouts[:0]
	for _, l := range f.layouts {
		if l.QuestionnaireTypeID != typeID {
			kept = append(kept, l)
		}
	}
	f.layouts = kept
	return nil
}

func (f *fakeFlowStore) ReapOrphans(_ context.Context) error {
	f.reapCalls++
	if f.failReap {
		return errors.New("reap failed")
	}

	rootIDs := make([]int, 0, len(f.roots))
	for _, r := range f.roots {
		rootIDs = append(rootIDs, r.QuestionID)
	}
	reachable := f.reachableFrom(rootIDs)

	doomed := make(map[int]struct{})
	for id := range f.questions {
		if _, ok := reachable[id]; !ok {
			doomed[id] = struct{}{}
		}
	}
	f.deleteQuestions(doomed)
	return nil
}

func (f *fakeFlowStore) PurgeTypeData(_ context.Context, typeID int) error {
	rootIDs := make([]int, 0)
	for _, r := range f.roots {
		if r.QuestionnaireTypeID == typeID {
			rootIDs = append(rootIDs, r.QuestionID)
		}
	}
	f.deleteQuestions(f.reachableFrom(rootIDs))

	f.DeleteRoots(context.Background(), typeID)
	f.DeleteLayouts(context.Background(), typeID)

	for id, rt := range f.refTables {
		if rt.QuestionnaireTypeID != typeID {
			continue
		}
		kept := f.refColumns[:0]
		for _, c := range f.refColumns {
			if c.ReferenceTableID != id {
				kept = append(kept, c)
			}
		}
		f.refColumns = kept
		delete(f.refTables, id)
	}
	return nil
}

// reachableFrom walks parent links and answer branch links from the roots.
func (f *fakeFlowStore) reachableFrom(rootIDs []int) map[int]struct{} {
	seen := make(map[int]struct{})
	frontier := append([]int(nil), rootIDs...)
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		for _, q := range f.questions {
			if q.ParentQuestionID != nil && *q.ParentQuestionID == id {
				frontier = append(frontier, q.ID)
			}
		}
		for _, a := range f.answers {
			if a.QuestionID != id {
				continue
			}
			for _, l := range f.links {
				if l.PredefinedAnswerID == a.ID {
					frontier = append(frontier, l.SubQuestionID)
				}
			}
		}
	}
	return seen
}

func (f *fakeFlowStore) deleteQuestions(doomed map[int]struct{}) {
	if len(doomed) == 0 {
		return
	}

	doomedAnswers := make(map[int]struct{})
	for id, a := range f.answers {
		if _, ok := doomed[a.QuestionID]; ok {
			doomedAnswers[id] = struct{}{}
			delete(f.answers, id)
		}
	}

	keptLinks := f.links[:0]
	for _, l := range f.links {
		_, byAnswer := doomedAnswers[l.PredefinedAnswerID]
		_, byTarget := doomed[l.SubQuestionID]
		if !byAnswer && !byTarget {
			keptLinks = append(keptLinks, l)
		}
	}
	f.links = keptLinks

	for id, cfg := range f.configs {
		if _, ok := doomed[cfg.QuestionID]; ok {
			delete(f.configs, id)
		}
	}

	keptCols := f.refColumns[:0]
	for _, c := range f.refColumns {
		if _, ok := doomed[c.QuestionID]; !ok {
			keptCols = append(keptCols, c)
		}
	}
	f.refColumns = keptCols

	keptRoots := f.roots[:0]
	for _, r := range f.roots {
		if _, ok := doomed[r.QuestionID]; !ok {
			keptRoots = append(keptRoots, r)
		}
	}
	f.roots = keptRoots

	for id := range doomed {
		delete(f.questions, id)
	}
}

func (f *fakeFlowStore) LayoutsForType(_ context.Context, typeID int) ([]models.FlowLayout, error) {
	var out []models.FlowLayout
	for _, l := range f.layouts {
		if l.QuestionnaireTypeID == typeID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) QuestionsByIDs(_ context.Context, ids []int) ([]models.Question, error) {
	var out []models.Question
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) QuestionsByParentIDs(_ context.Context, parentIDs []int) ([]models.Question, error) {
	parents := make(map[int]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		parents[id] = struct{}{}
	}
	var out []models.Question
	for _, q := range f.questions {
		if q.ParentQuestionID == nil {
			continue
		}
		if _, ok := parents[*q.ParentQuestionID]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) AnswersByIDs(_ context.Context, ids []int) ([]models.PredefinedAnswer, error) {
	var out []models.PredefinedAnswer
	for _, id := range ids {
		if a, ok := f.answers[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) AnswersForQuestions(_ context.Context, questionIDs []int) ([]models.PredefinedAnswer, error) {
	owners := make(map[int]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		owners[id] = struct{}{}
	}
	var out []models.PredefinedAnswer
	for _, a := range f.answers {
		if _, ok := owners[a.QuestionID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) BranchLinksForAnswers(_ context.Context, answerIDs []int) ([]models.AnswerSubQuestion, error) {
	wanted := make(map[int]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		wanted[id] = struct{}{}
	}
	var out []models.AnswerSubQuestion
	for _, l := range f.links {
		if _, ok := wanted[l.PredefinedAnswerID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) AllBranchTargetIDs(_ context.Context) ([]int, error) {
	var out []int
	for _, l := range f.links {
		out = append(out, l.SubQuestionID)
	}
	return out, nil
}

func (f *fakeFlowStore) RootQuestionIDs(_ context.Context, typeID int) ([]int, error) {
	var out []int
	for _, r := range f.roots {
		if r.QuestionnaireTypeID == typeID {
			out = append(out, r.QuestionID)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) ActiveConfigsForQuestions(_ context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error) {
	all, _ := f.ConfigsForQuestions(context.Background(), questionIDs)
	var out []models.QuestionComputedConfig
	for _, cfg := range all {
		if cfg.IsActive {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) ConfigsForQuestions(_ context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error) {
	owners := make(map[int]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		owners[id] = struct{}{}
	}
	var out []models.QuestionComputedConfig
	for _, cfg := range f.configs {
		if _, ok := owners[cfg.QuestionID]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) ReferenceTablesForType(_ context.Context, typeID int) ([]models.ReferenceTable, error) {
	var out []models.ReferenceTable
	for _, rt := range f.refTables {
		if rt.QuestionnaireTypeID == typeID {
			out = append(out, rt)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) ReferenceColumnsForQuestions(_ context.Context, questionIDs []int) ([]models.ReferenceColumn, error) {
	owners := make(map[int]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		owners[id] = struct{}{}
	}
	var out []models.ReferenceColumn
	for _, c := range f.refColumns {
		if _, ok := owners[c.QuestionID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeFlowStore) ReferenceTableMetadata(_ context.Context, typeID int) ([]models.ReferenceTableMetadata, error) {
	var out []models.ReferenceTableMetadata
	for id, rt := range f.refTables {
		if rt.QuestionnaireTypeID != typeID {
			continue
		}
		meta := models.ReferenceTableMetadata{TableName: rt.TableName}
		for _, c := range f.refColumns {
			if c.ReferenceTableID == id {
				name := c.ReferenceColumnName
				meta.PreferredColumnName = &name
				break
			}
		}
		out = append(out, meta)
	}
	return out, nil
}
