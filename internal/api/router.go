package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tskoli/kaiwa/internal/api/middleware"
)

// Handlers bundles the handler set wired into the router.
type Handlers struct {
	Turns    *TurnHandler
	Reviews  *ReviewHandler
	Plans    *PlanHandler
	Prompts  *PromptHandler
	Settings *SettingsHandler
}

// NewRouter assembles the chi router: trace context and panic recovery on
// everything, learner authorization on the whole /api subtree.
func NewRouter(h Handlers, auth *middleware.LearnerAuth) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Trace)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authorize)

		r.Post("/turns", h.Turns.HandleVoiceTurn)
		r.Post("/turns/text", h.Turns.HandleTextTurn)
		r.Post("/sessions/end", h.Turns.HandleEndSession)

		r.Get("/stats", h.Plans.HandleStats)
		r.Get("/plan", h.Plans.HandlePlan)

		r.Get("/review/due", h.Reviews.HandleListDue)
		r.Post("/review/{id}", h.Reviews.HandleReview)

		r.Post("/prompts/free-topic", h.Prompts.HandleFreeTopic)
		r.Post("/drill/replay", h.Prompts.HandleDrillReplay)

		r.Put("/settings/daily-time", h.Settings.HandleDailyTime)
		r.Put("/settings/mode", h.Settings.HandleMode)
		r.Put("/settings/intensity", h.Settings.HandleIntensity)

		r.Delete("/learner", h.Settings.HandleWipe)
	})

	return r
}
