package api

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token      string          `json:"token"`
	ExpiresAt  time.Time       `json:"expires_at"`
	LoginEmail string          `json:"login_email"`
	Account    AccountResponse `json:"account"`
}

// EmailRequest carries a single address, used for instructions and for
// adding or promoting an email.
type EmailRequest struct {
	Email string `json:"email"`
}

type EmailResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Address            string     `json:"address"`
	UnconfirmedAddress string     `json:"unconfirmed_address,omitempty"`
	Primary            bool       `json:"primary"`
	Confirmed          bool       `json:"confirmed"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
}

type AccountResponse struct {
	ID       uuid.UUID       `json:"id"`
	Username string          `json:"username,omitempty"`
	Email    string          `json:"email"`
	Emails   []EmailResponse `json:"emails"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request. Errors lists field
// failures by attribute when there are any.
type ErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}
