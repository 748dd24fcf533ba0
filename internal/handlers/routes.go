package handlers

import (
	"net/http"
)

// Routes registers every endpoint and wraps the mux in the shared middleware.
// auth may be nil when accounts are disabled.
func Routes(api *APIHandler, auth *AuthHandler, mw *Middleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/state", api.State)
	mux.HandleFunc("POST /api/onboarding/complete", api.CompleteOnboarding)
	mux.HandleFunc("POST /api/theme/toggle", api.ToggleTheme)

	mux.HandleFunc("GET /api/kids", api.ListKids)
	mux.HandleFunc("POST /api/kids", api.AddChild)
	mux.HandleFunc("GET /api/kids/{id}", api.GetChild)
	mux.HandleFunc("DELETE /api/kids/{id}", api.RemoveChild)
	mux.HandleFunc("GET /api/kids/{id}/history", api.ChildHistory)
	mux.HandleFunc("GET /api/kids/{id}/logs", api.ChildLogs)
	mux.HandleFunc("POST /api/kids/{id}/logs", api.LogAction)
	mux.HandleFunc("GET /api/kids/{id}/recap", api.Recap)
	mux.HandleFunc("POST /api/kids/{id}/validate", api.ValidateWeek)
	mux.HandleFunc("DELETE /api/logs/{id}", api.DeleteLog)
	mux.HandleFunc("GET /api/stats", api.Stats)
	mux.HandleFunc("POST /api/scores/reset", api.ResetScores)
	mux.HandleFunc("GET /api/report", api.Report)

	mux.HandleFunc("GET /api/actions", api.ListActions)
	mux.HandleFunc("POST /api/actions", api.AddAction)
	mux.HandleFunc("DELETE /api/actions/{id}", api.DeleteAction)

	mux.HandleFunc("PUT /api/pin", api.SetPin)
	mux.HandleFunc("POST /api/pin/confirm", api.ConfirmPin)
	mux.HandleFunc("DELETE /api/pin/pending", api.CancelPin)

	mux.HandleFunc("POST /api/family", api.CreateFamilyCode)
	mux.HandleFunc("POST /api/family/join", api.JoinFamilyCode)
	mux.HandleFunc("POST /api/sync", api.Resync)

	if auth != nil {
		mux.HandleFunc("POST /api/auth/register", auth.Register)
		mux.HandleFunc("POST /api/auth/login", auth.Login)
		mux.HandleFunc("POST /api/auth/logout", auth.Logout)
		mux.HandleFunc("GET /api/auth/providers", auth.Providers)
		mux.HandleFunc("GET /auth/{provider}/start", auth.StartOAuth)
		mux.HandleFunc("GET /auth/{provider}/callback", auth.OAuthCallback)
	}

	return mw.Logging(mw.RateLimit(mw.Pin(mux)))
}
