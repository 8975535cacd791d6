package fixtures

import (
	"slices"

	"github.com/echostash/echostash-automation/internal/api"
)

// PromptBuilder builds prompt create payloads.
type PromptBuilder struct {
	req api.CreatePromptRequest
}

// NewPromptBuilder starts a prompt named "Prompt <unique id>".
func NewPromptBuilder(projectID api.ID) *PromptBuilder {
	return &PromptBuilder{req: api.CreatePromptRequest{Name: "Prompt " + UniqueID(), ProjectID: projectID}}
}

func (b *PromptBuilder) WithName(name string) *PromptBuilder {
	b.req.Name = name
	return b
}

// WithContent is accepted for call-site symmetry. Prompt content is set through
// versions, so create payloads never carry it.
func (b *PromptBuilder) WithContent(string) *PromptBuilder {
	return b
}

func (b *PromptBuilder) WithDescription(description string) *PromptBuilder {
	b.req.Description = description
	return b
}

func (b *PromptBuilder) WithVisibility(visibility string) *PromptBuilder {
	b.req.Visibility = visibility
	return b
}

func (b *PromptBuilder) Build() api.CreatePromptRequest {
	return b.req
}

// ProjectBuilder builds project create payloads.
type ProjectBuilder struct {
	req api.CreateProjectRequest
}

// NewProjectBuilder starts a project named "Project <unique id>".
func NewProjectBuilder() *ProjectBuilder {
	return &ProjectBuilder{req: api.CreateProjectRequest{Name: "Project " + UniqueID()}}
}

func (b *ProjectBuilder) WithName(name string) *ProjectBuilder {
	b.req.Name = name
	return b
}

func (b *ProjectBuilder) WithDescription(description string) *ProjectBuilder {
	b.req.Description = description
	return b
}

func (b *ProjectBuilder) Build() api.CreateProjectRequest {
	return b.req
}

// CompositeBuilder builds composite create payloads.
type CompositeBuilder struct {
	req api.CreateCompositeRequest
}

// NewCompositeBuilder starts a composite named "Composite <unique id>".
func NewCompositeBuilder(projectID api.ID) *CompositeBuilder {
	return &CompositeBuilder{req: api.CreateCompositeRequest{
		Name:      "Composite " + UniqueID(),
		ProjectID: projectID,
		Items:     []api.CompositeItem{},
	}}
}

func (b *CompositeBuilder) WithName(name string) *CompositeBuilder {
	b.req.Name = name
	return b
}

func (b *CompositeBuilder) WithDescription(description string) *CompositeBuilder {
	b.req.Description = description
	return b
}

// AddStep appends a PROMPT item at position order.
func (b *CompositeBuilder) AddStep(promptID api.ID, order int) *CompositeBuilder {
	b.req.Items = append(b.req.Items, api.CompositeItem{
		ItemType: api.CompositeItemPrompt,
		Position: order,
		PromptID: promptID,
	})
	return b
}

func (b *CompositeBuilder) Build() api.CreateCompositeRequest {
	out := b.req
	out.Items = slices.Clone(b.req.Items)
	return out
}

// EvalDatasetBuilder builds dataset create payloads.
type EvalDatasetBuilder struct {
	req api.CreateEvalDatasetRequest
}

// NewEvalDatasetBuilder starts an empty dataset named "Dataset <unique id>".
func NewEvalDatasetBuilder() *EvalDatasetBuilder {
	return &EvalDatasetBuilder{req: api.CreateEvalDatasetRequest{
		Name:  "Dataset " + UniqueID(),
		Items: []api.EvalDatasetItem{},
	}}
}

func (b *EvalDatasetBuilder) WithName(name string) *EvalDatasetBuilder {
	b.req.Name = name
	return b
}

func (b *EvalDatasetBuilder) WithDescription(description string) *EvalDatasetBuilder {
	b.req.Description = description
	return b
}

func (b *EvalDatasetBuilder) AddItem(item api.EvalDatasetItem) *EvalDatasetBuilder {
	b.req.Items = append(b.req.Items, item)
	return b
}

// WithItems replaces every item.
func (b *EvalDatasetBuilder) WithItems(items []api.EvalDatasetItem) *EvalDatasetBuilder {
	b.req.Items = slices.Clone(items)
	return b
}

func (b *EvalDatasetBuilder) Build() api.CreateEvalDatasetRequest {
	out := b.req
	out.Items = slices.Clone(b.req.Items)
	return out
}

// EvalSuiteBuilder builds suite create payloads.
type EvalSuiteBuilder struct {
	req api.CreateEvalSuiteRequest
}

// NewEvalSuiteBuilder starts a suite named "Suite <unique id>" over datasetID.
func NewEvalSuiteBuilder(datasetID api.ID) *EvalSuiteBuilder {
	return &EvalSuiteBuilder{req: api.CreateEvalSuiteRequest{Name: "Suite " + UniqueID(), DatasetID: datasetID}}
}

func (b *EvalSuiteBuilder) WithName(name string) *EvalSuiteBuilder {
	b.req.Name = name
	return b
}

func (b *EvalSuiteBuilder) WithDescription(description string) *EvalSuiteBuilder {
	b.req.Description = description
	return b
}

func (b *EvalSuiteBuilder) Build() api.CreateEvalSuiteRequest {
	return b.req
}
