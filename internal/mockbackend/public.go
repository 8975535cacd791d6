package mockbackend

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/echostash/echostash-automation/internal/api"
)

// PLPVersion is the Prompt Library Protocol version advertised by discovery.
const PLPVersion = "1.0"

func (p *promptRecord) servedContent() (string, int) {
	if v := p.publishedVersion(); v != nil {
		return v.content, v.no
	}
	if v := p.latest(); v != nil {
		return v.content, v.no
	}
	return "", 0
}

// publicView renders a gallery entry. mu must be held.
func (s *Server) publicView(p *promptRecord) api.PublicPrompt {
	content, _ := p.servedContent()
	out := api.PublicPrompt{
		ID:      api.IDFromInt(p.id),
		Name:    p.name,
		Content: content,
		Slug:    p.slug(),
		Views:   p.views,
		Upvotes: p.upvotes,
		Forks:   p.forks,
	}
	if owner := s.state.users[p.owner]; owner != nil {
		out.Author = owner.name
	}
	return out
}

// findShared returns the PUBLIC or UNLISTED prompt with slug. mu must be held.
func (s *Server) findShared(slug string) *promptRecord {
	for _, prompt := range s.state.prompts {
		if prompt.visibility != api.VisibilityPrivate && prompt.slug() == slug {
			return prompt
		}
	}
	return nil
}

// publicPrompts lists PUBLIC prompts matching query and tags. mu must be held.
func (s *Server) publicPrompts(query string, tags []string) []*promptRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []*promptRecord
	for _, id := range sortedKeys(s.state.prompts) {
		prompt := s.state.prompts[id]
		if prompt.visibility != api.VisibilityPublic {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(prompt.name), query) &&
			!strings.Contains(strings.ToLower(prompt.description), query) {
			continue
		}
		if !s.matchesTags(prompt, tags) {
			continue
		}
		out = append(out, prompt)
	}
	return out
}

func (s *Server) handlePublicSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.state.mu.Lock()
	matches := s.publicPrompts(q.Get("query"), splitCSV(q.Get("tags")))
	switch q.Get("sort") {
	case "popular":
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].upvotes > matches[j].upvotes })
	case "recent":
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].id > matches[j].id })
	}
	views := make([]api.PublicPrompt, 0, len(matches))
	for _, prompt := range matches {
		views = append(views, s.publicView(prompt))
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, paginate(r, views))
}

func (s *Server) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.state.mu.Lock()
	prompt := s.findShared(slug)
	var view api.PublicPrompt
	if prompt != nil {
		view = s.publicView(prompt)
	}
	s.state.mu.Unlock()

	if prompt == nil {
		notFound(w, r, "Public prompt")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePublicTrack(event string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		s.state.mu.Lock()
		prompt := s.findShared(slug)
		var view api.PublicPrompt
		if prompt != nil {
			switch event {
			case "view":
				prompt.views++
			case "upvote":
				prompt.upvotes++
			case "fork":
				prompt.forks++
			}
			view = s.publicView(prompt)
		}
		s.state.mu.Unlock()

		if prompt == nil {
			notFound(w, r, "Public prompt")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var body api.ShareRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	id, ok := body.PromptID.Int64()
	if !ok {
		badRequest(w, r, "promptId is required")
		return
	}
	caller := principalFrom(r.Context())
	slug := slugify(body.Slug)

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	prompt := s.state.prompts[id]
	if prompt == nil || prompt.owner != caller.id {
		notFound(w, r, "Prompt")
		return
	}
	if slug != "" {
		for _, other := range s.state.prompts {
			if other.id != prompt.id && other.shareSlug == slug {
				conflict(w, r, "slug %q is already taken", slug)
				return
			}
		}
		prompt.shareSlug = slug
	}
	if prompt.visibility == api.VisibilityPrivate {
		prompt.visibility = api.VisibilityPublic
	}
	writeJSON(w, http.StatusOK, s.publicView(prompt))
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.packs)
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packID")
	for _, pack := range s.state.packs {
		if pack.ID.String() == id {
			writeJSON(w, http.StatusOK, pack)
			return
		}
	}
	notFound(w, r, "Pack")
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.plans)
}

func (s *Server) handlePLPDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.PLPDiscovery{
		Name:    "echostash",
		Version: PLPVersion,
		Endpoints: map[string]string{
			"prompts": "/v1/prompts",
			"prompt":  "/v1/prompts/{id}",
		},
	})
}

// plpView renders a PLP prompt. mu must be held.
func (s *Server) plpView(p *promptRecord) api.PLPPrompt {
	content, version := p.servedContent()
	metadata := map[string]any{"slug": p.slug(), "variables": templateVariables(content)}
	if p.description != "" {
		metadata["description"] = p.description
	}
	if owner := s.state.users[p.owner]; owner != nil {
		metadata["author"] = owner.name
	}
	return api.PLPPrompt{
		ID:       api.IDFromInt(p.id),
		Name:     p.name,
		Content:  content,
		Version:  strconv.Itoa(version),
		Metadata: metadata,
	}
}

func (s *Server) handlePLPList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(r, "limit", defaultPageSize)
	if limit == 0 {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)

	s.state.mu.Lock()
	matches := s.publicPrompts(q.Get("query"), splitCSV(q.Get("tags")))
	total := len(matches)
	content := []api.PLPPrompt{}
	for i := offset; i < total && len(content) < limit; i++ {
		content = append(content, s.plpView(matches[i]))
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.PLPList{
		Content:       content,
		Page:          offset / limit,
		TotalElements: total,
		TotalPages:    (total + limit - 1) / limit,
	})
}

func (s *Server) handlePLPGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "promptID")
	s.state.mu.Lock()
	prompt := s.state.prompts[id]
	visible := err == nil && prompt != nil && prompt.visibility == api.VisibilityPublic
	var view api.PLPPrompt
	if visible {
		view = s.plpView(prompt)
	}
	s.state.mu.Unlock()

	if !visible {
		notFound(w, r, "Prompt")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateShortLink(w http.ResponseWriter, r *http.Request) {
	var body api.CreateShortLinkRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Code) {
		badRequest(w, r, "code must not be blank")
		return
	}
	target, err := url.Parse(body.TargetURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		badRequest(w, r, "targetUrl must be an absolute http(s) URL")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if s.state.shortLinks[body.Code] != nil {
		conflict(w, r, "short link %q already exists", body.Code)
		return
	}
	link := &shortLinkRecord{ShortLink: api.ShortLink{
		ID:        api.IDFromInt(s.state.id()),
		Code:      body.Code,
		TargetURL: body.TargetURL,
		CreatedAt: timestamp(s.state.now()),
	}}
	s.state.shortLinks[body.Code] = link
	writeJSON(w, http.StatusCreated, link.ShortLink)
}

func (s *Server) handleListShortLinks(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	out := make([]api.ShortLink, 0, len(s.state.shortLinks))
	for _, link := range s.state.shortLinks {
		out = append(out, link.ShortLink)
	}
	s.state.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteShortLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	s.state.mu.Lock()
	_, ok := s.state.shortLinks[code]
	delete(s.state.shortLinks, code)
	s.state.mu.Unlock()
	if !ok {
		notFound(w, r, "Short link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	out := []api.Tag{}
	for _, id := range sortedKeys(s.state.tags) {
		out = append(out, *s.state.tags[id])
	}
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// tagNameTaken must be called with mu held.
func (s *Server) tagNameTaken(name string, except int64) bool {
	for id, tag := range s.state.tags {
		if id != except && strings.EqualFold(tag.Name, name) {
			return true
		}
	}
	return false
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var body api.CreateTagRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if s.tagNameTaken(body.Name, 0) {
		conflict(w, r, "tag %q already exists", body.Name)
		return
	}
	id := s.state.id()
	tag := &api.Tag{ID: api.IDFromInt(id), Name: strings.TrimSpace(body.Name), Color: body.Color}
	s.state.tags[id] = tag
	writeJSON(w, http.StatusCreated, *tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tagID")
	var body api.UpdateTagRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if body.Name != nil && blank(*body.Name) {
		badRequest(w, r, "name must not be blank")
		return
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	tag := s.state.tags[id]
	if err != nil || tag == nil {
		notFound(w, r, "Tag")
		return
	}
	if body.Name != nil {
		if s.tagNameTaken(*body.Name, id) {
			conflict(w, r, "tag %q already exists", *body.Name)
			return
		}
		tag.Name = strings.TrimSpace(*body.Name)
	}
	if body.Color != nil {
		tag.Color = *body.Color
	}
	writeJSON(w, http.StatusOK, *tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tagID")
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if err != nil || s.state.tags[id] == nil {
		notFound(w, r, "Tag")
		return
	}
	delete(s.state.tags, id)
	for _, prompt := range s.state.prompts {
		kept := prompt.tags[:0]
		for _, tagID := range prompt.tags {
			if tagID != id {
				kept = append(kept, tagID)
			}
		}
		prompt.tags = kept
	}
	w.WriteHeader(http.StatusNoContent)
}
