package fixtures

import (
	"os"
	"strings"

	"github.com/echostash/echostash-automation/internal/api"
)

// Default values shared by generators and suites.
const (
	DefaultTestUserEmail = "test@echostash-test.com"
	DefaultGateThreshold = 0.8
	DefaultVersionText   = "You are a helpful assistant. Greet {{name}} from {{place}}."
)

// User is a login identity for suites that authenticate with credentials.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// TestUser reads TEST_USER_EMAIL and TEST_USER_PASSWORD.
func TestUser() User {
	email := strings.TrimSpace(os.Getenv("TEST_USER_EMAIL"))
	if email == "" {
		email = DefaultTestUserEmail
	}
	return User{Email: email, Password: os.Getenv("TEST_USER_PASSWORD")}
}

// ProjectData returns a unique project payload.
func ProjectData(overrides ...func(*api.CreateProjectRequest)) api.CreateProjectRequest {
	req := api.CreateProjectRequest{
		Name:        UniqueName("project"),
		Description: "Created by automation tests",
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// PromptData returns a unique prompt payload in projectID.
func PromptData(projectID api.ID, overrides ...func(*api.CreatePromptRequest)) api.CreatePromptRequest {
	req := api.CreatePromptRequest{
		Name:        UniqueName("prompt"),
		Description: "Automation prompt",
		ProjectID:   projectID,
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// VersionData returns a version payload whose content uses {{name}} and {{place}}.
func VersionData(overrides ...func(*api.CreateVersionRequest)) api.CreateVersionRequest {
	req := api.CreateVersionRequest{
		Content:       DefaultVersionText,
		ChangeMessage: "Automated test version " + RandomString(6),
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// EvalDatasetItemData returns one dataset row.
func EvalDatasetItemData(input map[string]string, expected string) api.EvalDatasetItem {
	if input == nil {
		input = map[string]string{"name": "Alice", "place": "Wonderland"}
	}
	return api.EvalDatasetItem{Input: input, ExpectedOutput: expected}
}

// EvalDatasetData returns a dataset with two rows.
func EvalDatasetData(overrides ...func(*api.CreateEvalDatasetRequest)) api.CreateEvalDatasetRequest {
	req := api.CreateEvalDatasetRequest{
		Name:        UniqueName("dataset"),
		Description: "Automation dataset",
		Items: []api.EvalDatasetItem{
			EvalDatasetItemData(map[string]string{"name": "Alice", "place": "Wonderland"}, "Alice"),
			EvalDatasetItemData(map[string]string{"name": "Bob", "place": "Builderland"}, "Bob"),
		},
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// EvalSuiteData returns a suite bound to datasetID.
func EvalSuiteData(datasetID api.ID, overrides ...func(*api.CreateEvalSuiteRequest)) api.CreateEvalSuiteRequest {
	req := api.CreateEvalSuiteRequest{
		Name:        UniqueName("suite"),
		Description: "Automation suite",
		DatasetID:   datasetID,
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// EvalTestData returns a "contains" test.
func EvalTestData(overrides ...func(*api.CreateEvalTestRequest)) api.CreateEvalTestRequest {
	req := api.CreateEvalTestRequest{
		Name:   UniqueName("test"),
		Type:   "contains",
		Config: map[string]any{"value": "Hello"},
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// EvalGateData returns an enabled gate at DefaultGateThreshold.
func EvalGateData(suiteID api.ID, overrides ...func(*api.CreateEvalGateRequest)) api.CreateEvalGateRequest {
	enabled := true
	req := api.CreateEvalGateRequest{
		SuiteID:   suiteID,
		Threshold: DefaultGateThreshold,
		Enabled:   &enabled,
	}
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// CompositeData chains promptIDs in order.
func CompositeData(projectID api.ID, promptIDs []api.ID, overrides ...func(*api.CreateCompositeRequest)) api.CreateCompositeRequest {
	builder := NewCompositeBuilder(projectID)
	for i, id := range promptIDs {
		builder.AddStep(id, i+1)
	}
	req := builder.Build()
	for _, fn := range overrides {
		fn(&req)
	}
	return req
}

// APIKeyData returns a unique key name.
func APIKeyData() string {
	return UniqueName("key")
}

// ShortLinkData returns a unique short link.
func ShortLinkData() api.CreateShortLinkRequest {
	code := "qa" + RandomString(8)
	return api.CreateShortLinkRequest{Code: code, TargetURL: "https://echostash.com/p/" + code}
}

// TagData returns a unique tag.
func TagData() api.CreateTagRequest {
	return api.CreateTagRequest{Name: UniqueName("tag"), Color: "#3366ff"}
}

// ShareData returns a share request with a unique slug.
func ShareData(promptID api.ID) api.ShareRequest {
	return api.ShareRequest{PromptID: promptID, Slug: "qa-" + UniqueID()}
}
