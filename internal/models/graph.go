package models

// Node types used by the flow editor.
const (
	NodeTypeQuestion = "questionNode"
	NodeTypeAnswer   = "answerNode"
)

// Position of a node on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the per-node payload submitted by the editor. Question
// fields and answer fields share one struct because the client sends a single
// node shape; which half applies depends on the node type.
type NodeData struct {
	// Question fields.
	QuestionText      string  `json:"questionText"`
	QuestionLabel     *string `json:"questionLabel"`
	QuestionOrder     *int    `json:"questionOrder"`
	QuestionFormatID  *int    `json:"questionFormatId"`
	FormatCode        *string `json:"formatCode"`
	SpecificTypeID    *int    `json:"specificQuestionTypeId"`
	ReadOnly          bool    `json:"readOnly"`
	IsRequired        bool    `json:"isRequired"`
	ValidationPattern *string `json:"validationPattern"`

	// Computed-rule fields, honored when IsComputed is set.
	IsComputed             bool    `json:"isComputed"`
	ComputeMethodID        *int    `json:"computeMethodId"`
	RuleName               *string `json:"ruleName"`
	RuleDescription        *string `json:"ruleDescription"`
	MatrixObjectName       *string `json:"matrixObjectName"`
	OutputMode             *int    `json:"outputMode"`
	OutputTarget           *string `json:"outputTarget"`
	MatrixOutputColumnName *string `json:"matrixOutputColumnName"`
	FormulaExpression      *string `json:"formulaExpression"`
	Priority               *int    `json:"priority"`
	IsActive               *bool   `json:"isActive"`

	// Reference-table binding.
	ReferenceTable  string `json:"referenceTable"`
	ReferenceColumn string `json:"referenceColumn"`

	// Answer fields.
	Label             string   `json:"label"`
	AnswerText        string   `json:"answerText"`
	Code              *string  `json:"code"`
	IsPreSelected     bool     `json:"isPreSelected"`
	StatisticalWeight *float64 `json:"statisticalWeight"`
	DisplayOrder      *int     `json:"displayOrder"`
}

// FlowNode is one editor node. The ID is ephemeral and client-assigned; the
// compiler remaps it to a fresh persistent id on every save.
type FlowNode struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Data     NodeData  `json:"data"`
	Position *Position `json:"position"`
}

// FlowEdge connects two editor nodes. Handles are opaque editor metadata and
// are round-tripped through layout rows untouched.
type FlowEdge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourceHandle *string `json:"sourceHandle"`
	TargetHandle *string `json:"targetHandle"`
}

// FlowGraph is the editor-side representation of one questionnaire type.
type FlowGraph struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// SaveFlowRequest is the save payload. When ExistingQuestionnaireTypeID is
// set and IsUpdate is true, all prior domain data for the type is rebuilt.
type SaveFlowRequest struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`

	ExistingQuestionnaireTypeID *int   `json:"existingQuestionnaireTypeId"`
	IsUpdate                    bool   `json:"isUpdate"`
	QuestionnaireTypeName       string `json:"questionnaireTypeName"`
	QuestionnaireTypeCode       string `json:"questionnaireTypeCode"`

	ExistingIdentificatorTypeID *int   `json:"existingQuestionnaireIdentificatorTypeId"`
	IdentificatorTypeName       string `json:"questionnaireIdentificatorTypeName"`
}

// SaveFlowResponse reports the save outcome. Errors holds non-fatal per-node
// failures collected while the rest of the graph still committed.
type SaveFlowResponse struct {
	Success             bool     `json:"success"`
	Message             string   `json:"message"`
	QuestionnaireTypeID int      `json:"questionnaireTypeId"`
	Errors              []string `json:"errors"`
}
