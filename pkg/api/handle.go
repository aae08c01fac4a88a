package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/confirmation"
	pkgerrors "github.com/tendant/simple-idm-multiemail/pkg/errors"
	"github.com/tendant/simple-idm-multiemail/pkg/login"
	"github.com/tendant/simple-idm-multiemail/pkg/recovery"
	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

// Handle serves the account, confirmation and password endpoints.
type Handle struct {
	store        *account.Store
	confirmation *confirmation.Service
	recovery     *recovery.Service
	login        *login.LoginService
	hasher       account.PasswordHasher
}

func NewHandle(store *account.Store, confirmationService *confirmation.Service, recoveryService *recovery.Service, loginService *login.LoginService, hasher account.PasswordHasher) Handle {
	return Handle{
		store:        store,
		confirmation: confirmationService,
		recovery:     recoveryService,
		login:        loginService,
		hasher:       hasher,
	}
}

// Register handles POST /registration
func (h Handle) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	acct := account.New(req.Email)
	ok, err := acct.ResetPassword(req.Password, req.PasswordConfirmation, h.hasher, h.confirmation.Options())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeFieldErrors(w, r, acct.Errors)
		return
	}

	if address := acct.Email(); address != "" {
		_, err := h.store.FindEmail(ctx, account.Conditions{{Attribute: account.AttrAddress, Value: address}})
		switch {
		case err == nil:
			acct.Errors.Add("email", account.ErrorTaken)
			writeFieldErrors(w, r, acct.Errors)
			return
		case !errors.Is(err, account.ErrEmailNotFound):
			writeError(w, r, err)
			return
		}
	}

	if err := h.store.Save(ctx, acct, true); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Account registered", "account_id", acct.ID, "email", utils.MaskEmail(acct.Email()))

	if rec := acct.PrimaryEmail(); rec != nil {
		if err := h.confirmation.SendInstructions(ctx, acct, rec); err != nil {
			slog.Error("Failed to send confirmation instructions", "account_id", acct.ID, "err", err)
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAccountResponse(acct))
}

// Login handles POST /login
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.login.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt,
		LoginEmail: result.LoginEmail,
		Account:    toAccountResponse(result.Account),
	})
}

// SendConfirmation handles POST /confirmation
func (h Handle) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	match, err := h.confirmation.SendConfirmationInstructions(r.Context(), map[string]string{"email": req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !match.Account.Errors.Empty() {
		writeFieldErrors(w, r, match.Account.Errors)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Confirmation instructions sent"})
}

// Confirm handles GET /confirmation?confirmation_token=
func (h Handle) Confirm(w http.ResponseWriter, r *http.Request) {
	match, err := h.confirmation.ConfirmByToken(r.Context(), r.URL.Query().Get("confirmation_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	acct := match.Account
	if !acct.Persisted() && acct.Errors.Empty() {
		acct.Errors.Add(account.AttrConfirmationToken, account.ErrorInvalid)
	}
	if !acct.Errors.Empty() {
		writeFieldErrors(w, r, acct.Errors)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toEmailResponse(match.Email))
}

// SendResetPassword handles POST /password
func (h Handle) SendResetPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	match, err := h.recovery.SendResetPasswordInstructions(r.Context(), map[string]string{"email": req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !match.Account.Errors.Empty() {
		writeFieldErrors(w, r, match.Account.Errors)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Reset password instructions sent"})
}

// ResetPassword handles PUT /password
func (h Handle) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req recovery.ResetParams
	if !decode(w, r, &req) {
		return
	}

	match, err := h.recovery.ResetPasswordByToken(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !match.Account.Errors.Empty() {
		writeFieldErrors(w, r, match.Account.Errors)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Password updated"})
}

// GetMe handles GET /me
func (h Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(acct))
}

// AddEmail handles POST /emails
func (h Handle) AddEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	rec, err := h.confirmation.AddEmail(r.Context(), acct, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !acct.Errors.Empty() {
		writeFieldErrors(w, r, acct.Errors)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toEmailResponse(rec))
}

// ChangeEmail handles PATCH /emails/{address}
func (h Handle) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	rec := acct.FindEmail(addressParam(r))
	if rec == nil {
		writeError(w, r, account.ErrEmailNotFound)
		return
	}

	if err := h.confirmation.ChangeAddress(r.Context(), acct, rec, req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	if !acct.Errors.Empty() {
		writeFieldErrors(w, r, acct.Errors)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toEmailResponse(rec))
}

// SetPrimaryEmail handles PUT /emails/primary
func (h Handle) SetPrimaryEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	if acct.FindEmail(req.Email) == nil {
		writeError(w, r, account.ErrEmailNotFound)
		return
	}
	if _, err := acct.ChangePrimaryEmailTo(req.Email, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.Save(r.Context(), acct, false); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("Primary email changed", "account_id", acct.ID, "email", utils.MaskEmail(acct.Email()))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(acct))
}

// RemoveEmail handles DELETE /emails/{address}
func (h Handle) RemoveEmail(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.store.RemoveEmail(r.Context(), acct, addressParam(r)); err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(acct))
}

// currentAccount loads the account named by the account_id claim of the
// verified session token.
func (h Handle) currentAccount(w http.ResponseWriter, r *http.Request) (*account.Account, bool) {
	id, err := accountIDFromContext(r)
	if err != nil {
		slog.Error("Failed to get account ID from context", "error", err)
		writeError(w, r, pkgerrors.New(pkgerrors.ErrCodeUnauthorized, "Unauthorized"))
		return nil, false
	}
	acct, err := h.store.Load(r.Context(), id)
	if errors.Is(err, account.ErrAccountNotFound) {
		writeError(w, r, pkgerrors.Wrap(err, pkgerrors.ErrCodeUnauthorized, "Unauthorized"))
		return nil, false
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return acct, true
}

func accountIDFromContext(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, err
	}
	idStr, ok := claims["account_id"].(string)
	if !ok || idStr == "" {
		return uuid.Nil, errors.New("account_id not found in JWT claims")
	}
	return uuid.Parse(idStr)
}

func addressParam(r *http.Request) string {
	raw := chi.URLParam(r, "address")
	if address, err := url.PathUnescape(raw); err == nil {
		return address
	}
	return raw
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		writeError(w, r, pkgerrors.Wrap(err, pkgerrors.ErrCodeInvalidInput, "Invalid request body"))
		return false
	}
	return true
}

func writeFieldErrors(w http.ResponseWriter, r *http.Request, fieldErrs account.Errors) {
	writeCoded(w, r, pkgerrors.FromFieldErrors(fieldErrs))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := pkgerrors.FromError(err)
	if e.Code == pkgerrors.ErrCodeInternal || e.Code == pkgerrors.ErrCodePrimarySyncFailed {
		slog.Error("Request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	}
	writeCoded(w, r, e)
}

func writeCoded(w http.ResponseWriter, r *http.Request, e *pkgerrors.Error) {
	render.Status(r, e.HTTPStatusCode())
	render.JSON(w, r, ErrorResponse{Code: string(e.Code), Message: e.Message, Errors: e.Fields})
}

func toEmailResponse(rec *account.EmailRecord) EmailResponse {
	var resp EmailResponse
	if err := copier.Copy(&resp, rec); err != nil {
		slog.Error("Failed to copy email record", "err", err)
	}
	resp.Confirmed = rec.Confirmed()
	return resp
}

func toAccountResponse(acct *account.Account) AccountResponse {
	resp := AccountResponse{
		ID:       acct.ID,
		Username: acct.Username,
		Email:    acct.Email(),
		Emails:   make([]EmailResponse, 0, len(acct.Emails)),
	}
	for _, rec := range acct.Emails {
		resp.Emails = append(resp.Emails, toEmailResponse(rec))
	}
	return resp
}
