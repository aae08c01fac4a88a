package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditAuthMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(Config{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})
	tokenAuth := jwtauth.New("HS256", []byte("audit-test-secret"), nil)

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(tokenAuth))
	r.Use(m.AuditAuthMiddleware)
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	_, token, err := tokenAuth.Encode(map[string]interface{}{"account_id": "acct-1", "login_email": "jane@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Audit", record["msg"])
	assert.Equal(t, "acct-1", record["account_id"])
	assert.Equal(t, "multiemail", record["source"])
	assert.Equal(t, float64(http.StatusTeapot), record["status"])
	assert.Equal(t, "", record["message"])
}

func TestAuditAuthMiddleware_NoToken(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(Config{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})

	h := m.AuditAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/me", nil))

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "No jwt token", record["message"])
	assert.Equal(t, float64(http.StatusOK), record["status"])
}
