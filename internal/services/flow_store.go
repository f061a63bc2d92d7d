package services

import (
	"context"

	"github.com/paulexconde/questflow/internal/models"
)

// FlowStore is the persistence contract the flow services compile against.
// The production implementation lives in internal/pkg/store and talks to
// Postgres through sqlx; tests substitute an in-memory fake.
//
// Every call commits independently. The save path is a sequence of these
// calls, not one transaction; see FlowService.SaveFlow.
type FlowStore interface {
	// Questionnaire types.
	TypeByID(ctx context.Context, id int) (*models.QuestionnaireType, error)
	TypeByCode(ctx context.Context, code string) (*models.QuestionnaireType, error)
	CreateType(ctx context.Context, name, code string) (int, error)
	DeleteType(ctx context.Context, id int) error
	CreateIdentificatorType(ctx context.Context, name string) (int, error)

	// Compile writes. Inserts always mint fresh ids.
	InsertQuestion(ctx context.Context, q models.Question) (int, error)
	InsertAnswer(ctx context.Context, a models.PredefinedAnswer) (int, error)
	InsertBranchLink(ctx context.Context, answerID, subQuestionID int) error
	InsertComputedConfig(ctx context.Context, cfg models.QuestionComputedConfig) (int, error)
	GetOrCreateReferenceTable(ctx context.Context, typeID int, tableName string) (int, error)
	InsertReferenceColumn(ctx context.Context, col models.ReferenceColumn) error
	InsertRoot(ctx context.Context, typeID, questionID int) error
	InsertLayout(ctx context.Context, layout models.FlowLayout) error

	// Relationship resets, run between the node and edge passes so stale
	// links never survive a partial rebuild.
	ClearParentQuestions(ctx context.Context, questionIDs []int) error
	SetParentQuestion(ctx context.Context, childID, parentID int) error
	DeleteBranchLinksForAnswers(ctx context.Context, answerIDs []int) error
	DeleteRoots(ctx context.Context, typeID int) error
	DeleteLayouts(ctx context.Context, typeID int) error

	// Destructive cleanup. ReapOrphans is the global reachability sweep and
	// must be a single query-level operation. PurgeTypeData removes every
	// row tied to one type, submissions included, but keeps the type row.
	ReapOrphans(ctx context.Context) error
	PurgeTypeData(ctx context.Context, typeID int) error

	// Reads for the loader and the schema assembler.
	LayoutsForType(ctx context.Context, typeID int) ([]models.FlowLayout, error)
	QuestionsByIDs(ctx context.Context, ids []int) ([]models.Question, error)
	QuestionsByParentIDs(ctx context.Context, parentIDs []int) ([]models.Question, error)
	AnswersByIDs(ctx context.Context, ids []int) ([]models.PredefinedAnswer, error)
	AnswersForQuestions(ctx context.Context, questionIDs []int) ([]models.PredefinedAnswer, error)
	BranchLinksForAnswers(ctx context.Context, answerIDs []int) ([]models.AnswerSubQuestion, error)
	AllBranchTargetIDs(ctx context.Context) ([]int, error)
	RootQuestionIDs(ctx context.Context, typeID int) ([]int, error)
	ActiveConfigsForQuestions(ctx context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error)
	ConfigsForQuestions(ctx context.Context, questionIDs []int) ([]models.QuestionComputedConfig, error)

	// Reference-table metadata for the editor's binding UI.
	ReferenceTablesForType(ctx context.Context, typeID int) ([]models.ReferenceTable, error)
	ReferenceColumnsForQuestions(ctx context.Context, questionIDs []int) ([]models.ReferenceColumn, error)
	ReferenceTableMetadata(ctx context.Context, typeID int) ([]models.ReferenceTableMetadata, error)
}
