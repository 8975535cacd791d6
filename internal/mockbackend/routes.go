package mockbackend

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/echostash/echostash-automation/internal/observability"
)

func (s *Server) registerRoutes() {
	r := s.router

	r.Get("/actuator/health", s.handleHealth)
	r.Get("/actuator/info", s.handleInfo)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/guest", s.handleGuest)
		r.Post("/exchange", s.handleExchange)
		r.Post("/refresh", s.handleRefresh)
		r.With(s.requireUser).Get("/me", s.handleMe)
	})
	r.Post("/api/auth/login", s.handleLogin)

	if !s.opts.DisableAutomation {
		r.Route("/automation", func(r chi.Router) {
			r.Post("/auth/login", s.handleAutomationLogin)
			r.Post("/cheats/set-plan", s.handleSetPlan)
			r.Post("/cheats/reset-quotas", s.handleResetQuotas)
			r.Post("/cheats/delete-user", s.handleDeleteUser)
		})
	}

	r.Route("/api/projects", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/", s.handleCreateProject)
		r.Get("/", s.handleListProjects)
		r.Get("/{projectID}", s.handleGetProject)
		r.Put("/{projectID}", s.handleUpdateProject)
		r.Delete("/{projectID}", s.handleDeleteProject)
	})

	r.Route("/api/prompts", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/create", s.handleCreatePrompt)
		r.Get("/", s.handleListPrompts)
		r.Get("/search", s.handleSearchPrompts)
		r.Get("/search/semantic/my", s.handleSemanticSearch)
		r.Get("/count", s.handleCountPrompts)

		r.Route("/{promptID}", func(r chi.Router) {
			r.Get("/", s.handleGetPrompt)
			r.Patch("/", s.handleUpdatePrompt)
			r.Delete("/", s.handleDeletePrompt)
			r.Post("/versions", s.handleCreateVersion)
			r.Get("/versions", s.handleListVersions)
			r.Get("/versions/{versionNo}", s.handleGetVersion)
			r.Post("/publish", s.handlePublish)
			r.Post("/publish-new-version", s.handlePublishNewVersion)
			r.Put("/visibility", s.handleUpdateVisibility)
			r.Post("/tags", s.handleSetTags)

			r.Route("/eval", s.registerEvalRoutes)
		})
	})

	r.Route("/api/composites", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/", s.handleCreateComposite)
		r.Get("/", s.handleListComposites)
		r.Get("/{compositeID}", s.handleGetComposite)
		r.Get("/{compositeID}/versions/{versionNo}", s.handleGetCompositeVersion)
		r.Put("/{compositeID}", s.handleUpdateComposite)
		r.Delete("/{compositeID}", s.handleDeleteComposite)
	})

	r.Route("/api/v1/context-store", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/", s.handleUploadAsset)
		r.Get("/", s.handleListAssets)
		r.Get("/usage", s.handleAssetUsage)
		r.Get("/{assetID}/content", s.handleAssetContent)
		r.Delete("/{assetID}", s.handleDeleteAsset)
	})

	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/overview", s.handleAnalyticsOverview)
		r.Get("/top-prompts", s.handleTopPrompts)
		r.Get("/prompts/{promptID}", s.handlePromptMetrics)
		r.Get("/prompts/{promptID}/variables", s.handleVariableUsage)
	})

	r.Route("/api/billing", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/me", s.handleBillingMe)
		r.Get("/portal", s.handleBillingPortal)
		r.Get("/quotas", s.handleBillingQuotas)
		r.Get("/spending", s.handleGetSpending)
		r.Put("/spending", s.handleUpdateSpending)
		r.Get("/spending/history", s.handleSpendingHistory)
	})

	r.Route("/api/keys", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/", s.handleCreateKey)
		r.Get("/", s.handleListKeys)
		r.Delete("/{keyID}", s.handleRevokeKey)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.requireUser, s.requireAdmin)
		r.Post("/short-links", s.handleCreateShortLink)
		r.Get("/short-links", s.handleListShortLinks)
		r.Delete("/short-links/{code}", s.handleDeleteShortLink)
		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleCreateTag)
		r.Put("/tags/{tagID}", s.handleUpdateTag)
		r.Delete("/tags/{tagID}", s.handleDeleteTag)
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/prompts", s.handlePublicSearch)
		r.Get("/prompts/{slug}", s.handlePublicGet)
		r.Post("/prompts/{slug}/view", s.handlePublicTrack("view"))
		r.Post("/prompts/{slug}/upvote", s.handlePublicTrack("upvote"))
		r.Post("/prompts/{slug}/fork", s.handlePublicTrack("fork"))
		r.With(s.requireUser).Post("/share", s.handleShare)
		r.Get("/packs", s.handleListPacks)
		r.Get("/packs/{packID}", s.handleGetPack)
		r.Get("/plans", s.handleListPlans)
	})

	r.Get("/.well-known/plp", s.handlePLPDiscovery)
	r.Get("/v1/prompts", s.handlePLPList)
	r.Get("/v1/prompts/{promptID}", s.handlePLPGet)

	r.Route("/api/sdk/prompts", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/render", s.handleRender)
		r.Post("/batch-render", s.handleBatchRender)
		r.Get("/{promptID}", s.handleSDKGetPrompt)
		r.Get("/{promptID}/versions/{versionNo}", s.handleSDKGetVersion)
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal handler when an admin token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "UP",
		"components": map[string]any{
			"db":   map[string]string{"status": "UP"},
			"ping": map[string]string{"status": "UP"},
		},
	})
}
