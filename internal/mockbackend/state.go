package mockbackend

import (
	"sort"
	"sync"
	"time"

	"github.com/echostash/echostash-automation/internal/api"
)

// User types reported by /auth/me.
const (
	UserTypeGuest      = "guest"
	UserTypeRegistered = "registered"
)

type user struct {
	id            int64
	email         string
	name          string
	userType      string
	plan          string
	admin         bool
	spendingLimit float64
	createdAt     time.Time
}

func (u *user) profile() api.UserProfile {
	return api.UserProfile{
		ID:        api.IDFromInt(u.id),
		Email:     u.email,
		Name:      u.name,
		UserType:  u.userType,
		CreatedAt: timestamp(u.createdAt),
	}
}

type apiKeyRecord struct {
	id        int64
	owner     int64
	name      string
	key       string
	createdAt time.Time
	lastUsed  time.Time
}

func (k *apiKeyRecord) view() api.APIKey {
	out := api.APIKey{
		ID:        api.IDFromInt(k.id),
		Name:      k.name,
		Prefix:    k.key[:8],
		CreatedAt: timestamp(k.createdAt),
	}
	if !k.lastUsed.IsZero() {
		out.LastUsedAt = timestamp(k.lastUsed)
	}
	return out
}

type projectRecord struct {
	owner int64
	api.Project
}

type versionRecord struct {
	id            int64
	no            int
	content       string
	changeMessage string
	createdAt     time.Time
}

type promptRecord struct {
	id          int64
	owner       int64
	projectID   int64
	name        string
	description string
	visibility  string
	tags        []int64
	versions    []*versionRecord
	published   int
	createdAt   time.Time
	updatedAt   time.Time

	shareSlug string
	views     int
	upvotes   int
	forks     int
	renders   int
	variables map[string]int
}

func (p *promptRecord) latest() *versionRecord {
	if len(p.versions) == 0 {
		return nil
	}
	return p.versions[len(p.versions)-1]
}

func (p *promptRecord) version(no int) *versionRecord {
	if no < 1 || no > len(p.versions) {
		return nil
	}
	return p.versions[no-1]
}

func (p *promptRecord) publishedVersion() *versionRecord {
	return p.version(p.published)
}

func (p *promptRecord) slug() string {
	if p.shareSlug != "" {
		return p.shareSlug
	}
	return api.IDFromInt(p.id).String()
}

type datasetRecord struct {
	promptID int64
	api.EvalDataset
}

type suiteRecord struct {
	promptID int64
	api.EvalSuite
}

type testRecord struct {
	suiteID int64
	api.EvalTest
}

type runRecord struct {
	suiteID int64
	api.EvalRun
}

type gateRecord struct {
	promptID int64
	api.EvalGate
}

type compositeRecord struct {
	id          int64
	owner       int64
	projectID   int64
	name        string
	description string
	versions    [][]api.CompositeItem
	createdAt   time.Time
	updatedAt   time.Time
}

func (c *compositeRecord) view(versionNo int) api.Composite {
	id := api.IDFromInt(c.id)
	out := api.Composite{
		ID:          id,
		CompositeID: id,
		Name:        c.name,
		Description: c.description,
		VersionNo:   versionNo,
		Items:       append([]api.CompositeItem{}, c.versions[versionNo-1]...),
		CreatedAt:   timestamp(c.createdAt),
		UpdatedAt:   timestamp(c.updatedAt),
	}
	if c.projectID > 0 {
		out.ProjectID = api.IDFromInt(c.projectID)
	}
	return out
}

type assetRecord struct {
	id          string
	owner       int64
	filename    string
	contentType string
	content     []byte
	createdAt   time.Time
}

type shortLinkRecord struct {
	api.ShortLink
}

// state is the in-memory backend. Every field is guarded by mu.
type state struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	users         map[int64]*user
	usersByEmail  map[string]*user
	accessTokens  map[string]int64
	refreshTokens map[string]int64
	apiKeys       map[int64]*apiKeyRecord

	projects   map[int64]*projectRecord
	prompts    map[int64]*promptRecord
	datasets   map[int64]*datasetRecord
	suites     map[int64]*suiteRecord
	tests      map[int64]*testRecord
	runs       map[int64]*runRecord
	gates      map[int64]*gateRecord
	composites map[int64]*compositeRecord
	assets     map[string]*assetRecord
	tags       map[int64]*api.Tag
	shortLinks map[string]*shortLinkRecord
	packs      []api.PromptPack
	plans      []api.Plan
}

func newState() *state {
	s := &state{
		now:           time.Now,
		users:         map[int64]*user{},
		usersByEmail:  map[string]*user{},
		accessTokens:  map[string]int64{},
		refreshTokens: map[string]int64{},
		apiKeys:       map[int64]*apiKeyRecord{},
		projects:      map[int64]*projectRecord{},
		prompts:       map[int64]*promptRecord{},
		datasets:      map[int64]*datasetRecord{},
		suites:        map[int64]*suiteRecord{},
		tests:         map[int64]*testRecord{},
		runs:          map[int64]*runRecord{},
		gates:         map[int64]*gateRecord{},
		composites:    map[int64]*compositeRecord{},
		assets:        map[string]*assetRecord{},
		tags:          map[int64]*api.Tag{},
		shortLinks:    map[string]*shortLinkRecord{},
	}
	s.plans = []api.Plan{
		{ID: "1", Name: "free", Price: 0, Features: []string{"3 projects", "100 renders/month"}},
		{ID: "2", Name: "pro", Price: 19, Features: []string{"unlimited projects", "eval suites", "10k renders/month"}},
		{ID: "3", Name: "team", Price: 49, Features: []string{"shared workspaces", "SSO", "100k renders/month"}},
	}
	s.packs = []api.PromptPack{
		{ID: "1", Name: "Starter pack", Description: "Prompts for getting started"},
		{ID: "2", Name: "Support pack", Description: "Customer support replies"},
	}
	return s
}

// id must be called with mu held.
func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// sortedKeys returns map keys in ascending order so listings are stable.
func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
