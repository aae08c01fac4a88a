package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/simple-idm-multiemail/pkg/audit"
)

// Handler mounts the endpoints on a new router. Requests under /me and
// /emails need a session token verified by tokenAuth and are audited.
// middlewares wrap every route, typically a rate limiter.
func Handler(h Handle, tokenAuth *jwtauth.JWTAuth, middlewares ...func(http.Handler) http.Handler) http.Handler {
	auditor := audit.NewMiddleware(audit.Config{})

	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Post("/registration", h.Register)
	r.Post("/login", h.Login)
	r.Post("/confirmation", h.SendConfirmation)
	r.Get("/confirmation", h.Confirm)
	r.Post("/password", h.SendResetPassword)
	r.Put("/password", h.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(auditor.AuditAuthMiddleware)

		r.Get("/me", h.GetMe)
		r.Post("/emails", h.AddEmail)
		r.Put("/emails/primary", h.SetPrimaryEmail)
		r.Patch("/emails/{address}", h.ChangeEmail)
		r.Delete("/emails/{address}", h.RemoveEmail)
	})
	return r
}
