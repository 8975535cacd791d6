package mockbackend

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/echostash/echostash-automation/internal/api"
)

// GoogleTokenPrefix marks tokens /auth/exchange accepts; the rest of the
// token is the email to sign in as.
const GoogleTokenPrefix = "mock-google:"

const accessTokenTTL = 3600

type principalKey struct{}

func principalFrom(ctx context.Context) *user {
	u, _ := ctx.Value(principalKey{}).(*user)
	return u
}

// identify resolves a bearer token or X-API-KEY into the calling user.
// Unknown credentials leave the request anonymous.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caller *user

		token := bearerToken(r.Header.Get("Authorization"))
		key := strings.TrimSpace(r.Header.Get("X-API-KEY"))

		s.state.mu.Lock()
		if token != "" {
			if id, ok := s.state.accessTokens[token]; ok {
				caller = s.state.users[id]
			}
		} else if key != "" {
			for _, record := range s.state.apiKeys {
				if record.key == key {
					record.lastUsed = s.state.now()
					caller = s.state.users[record.owner]
					break
				}
			}
		}
		s.state.mu.Unlock()

		if caller != nil {
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, caller))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principalFrom(r.Context()) == nil {
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := principalFrom(r.Context())
		if caller == nil {
			unauthorized(w, r)
			return
		}
		if !caller.admin {
			forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// createUser must be called with mu held.
func (s *Server) createUser(email, name, userType string) *user {
	id := s.state.id()
	if email == "" {
		email = fmt.Sprintf("guest-%d@guest.echostash.local", id)
	}
	if name == "" {
		name = fmt.Sprintf("User %d", id)
	}
	u := &user{
		id:            id,
		email:         email,
		name:          name,
		userType:      userType,
		plan:          "free",
		admin:         slices.Contains(s.opts.AdminEmails, email),
		spendingLimit: 100,
		createdAt:     s.state.now(),
	}
	s.state.users[id] = u
	if userType != UserTypeGuest {
		s.state.usersByEmail[strings.ToLower(email)] = u
	}
	return u
}

// issueTokens must be called with mu held.
func (s *Server) issueTokens(u *user) api.AuthTokens {
	tokens := api.AuthTokens{
		AccessToken:  "mock-access-" + uuid.NewString(),
		RefreshToken: "mock-refresh-" + uuid.NewString(),
	}
	s.state.accessTokens[tokens.AccessToken] = u.id
	s.state.refreshTokens[tokens.RefreshToken] = u.id
	return tokens
}

// signIn finds or creates a registered user; created reports a first login.
func (s *Server) signIn(email, name string) (u *user, tokens api.AuthTokens, created bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	u = s.state.usersByEmail[strings.ToLower(email)]
	if u == nil {
		u = s.createUser(email, name, UserTypeRegistered)
		created = true
	}
	return u, s.issueTokens(u), created
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	s.state.mu.Lock()
	u := s.createUser("", "", UserTypeGuest)
	u.name = fmt.Sprintf("Guest %d", u.id)
	tokens := s.issueTokens(u)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.GuestAuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserType:     UserTypeGuest,
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Token) {
		badRequest(w, r, "token is required")
		return
	}
	email, ok := strings.CutPrefix(body.Token, GoogleTokenPrefix)
	if !ok || blank(email) {
		rejectCredentials(w, r, "Invalid identity token")
		return
	}

	_, tokens, _ := s.signIn(email, "")
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.RefreshToken) {
		badRequest(w, r, "refreshToken is required")
		return
	}

	s.state.mu.Lock()
	id, ok := s.state.refreshTokens[body.RefreshToken]
	u := s.state.users[id]
	var tokens api.AuthTokens
	if ok && u != nil {
		delete(s.state.refreshTokens, body.RefreshToken)
		tokens = s.issueTokens(u)
	}
	s.state.mu.Unlock()

	if !ok || u == nil {
		rejectCredentials(w, r, "Invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	profile := caller.profile()
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Email) || body.Password == "" {
		badRequest(w, r, "email and password are required")
		return
	}
	password, ok := s.opts.Users[body.Email]
	if !ok || password != body.Password {
		rejectCredentials(w, r, "Bad credentials")
		return
	}

	_, tokens, _ := s.signIn(body.Email, "")
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleAutomationLogin(w http.ResponseWriter, r *http.Request) {
	var body api.AutomationLoginRequest
	if !decodeOrReject(w, r, &body) {
		return
	}
	if blank(body.Email) {
		badRequest(w, r, "email is required")
		return
	}

	_, tokens, created := s.signIn(body.Email, body.Name)
	writeJSON(w, http.StatusOK, api.AutomationLoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    accessTokenTTL,
		IsFirstLogin: created,
	})
}

type cheatBody struct {
	UserID   api.ID `json:"userId"`
	PlanName string `json:"planName"`
}

// cheatUser decodes the body and resolves its user, writing 400/404 on failure.
func (s *Server) cheatUser(w http.ResponseWriter, r *http.Request) (*user, cheatBody, bool) {
	var body cheatBody
	if !decodeOrReject(w, r, &body) {
		return nil, body, false
	}
	id, ok := body.UserID.Int64()
	if !ok {
		badRequest(w, r, "userId is required")
		return nil, body, false
	}
	s.state.mu.Lock()
	u := s.state.users[id]
	s.state.mu.Unlock()
	if u == nil {
		notFound(w, r, "User")
		return nil, body, false
	}
	return u, body, true
}

func (s *Server) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	u, body, ok := s.cheatUser(w, r)
	if !ok {
		return
	}
	valid := slices.ContainsFunc(s.state.plans, func(p api.Plan) bool { return p.Name == body.PlanName })
	if !valid {
		badRequest(w, r, "unknown plan %q", body.PlanName)
		return
	}

	s.state.mu.Lock()
	u.plan = body.PlanName
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.SetPlanResponse{UserID: api.IDFromInt(u.id), PlanName: body.PlanName, Status: "active"})
}

func (s *Server) handleResetQuotas(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.cheatUser(w, r)
	if !ok {
		return
	}

	s.state.mu.Lock()
	deleted := 0
	for id, key := range s.state.apiKeys {
		if key.owner == u.id {
			delete(s.state.apiKeys, id)
			deleted++
		}
	}
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.ResetQuotasResponse{UserID: api.IDFromInt(u.id), KeysDeleted: deleted})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.cheatUser(w, r)
	if !ok {
		return
	}

	s.state.mu.Lock()
	s.removeUser(u)
	s.state.mu.Unlock()

	writeJSON(w, http.StatusOK, api.DeleteUserResponse{UserID: api.IDFromInt(u.id), Deleted: true})
}

// removeUser drops a user with their credentials and owned resources. mu must be held.
func (s *Server) removeUser(u *user) {
	delete(s.state.users, u.id)
	delete(s.state.usersByEmail, strings.ToLower(u.email))
	for token, id := range s.state.accessTokens {
		if id == u.id {
			delete(s.state.accessTokens, token)
		}
	}
	for token, id := range s.state.refreshTokens {
		if id == u.id {
			delete(s.state.refreshTokens, token)
		}
	}
	for id, key := range s.state.apiKeys {
		if key.owner == u.id {
			delete(s.state.apiKeys, id)
		}
	}
	for id, project := range s.state.projects {
		if project.owner == u.id {
			s.removeProject(id)
		}
	}
	for id, asset := range s.state.assets {
		if asset.owner == u.id {
			delete(s.state.assets, id)
		}
	}
	for id, composite := range s.state.composites {
		if composite.owner == u.id {
			delete(s.state.composites, id)
		}
	}
}
