package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	goFleet "github.com/MrEthical07/goFleet"
)

// AuthService is the engine surface the routes use. *goFleet.Engine
// implements it.
type AuthService interface {
	Register(ctx context.Context, req goFleet.RegisterRequest) (goFleet.UserRecord, goFleet.TokenPair, error)
	Login(ctx context.Context, handle, password string) (goFleet.UserRecord, goFleet.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (goFleet.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, bearer string) (goFleet.Principal, error)
	RecordRateLimit(ctx context.Context, scope string)
}

type authResponse struct {
	User   goFleet.UserRecord `json:"user"`
	Tokens goFleet.TokenPair  `json:"tokens"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", goFleet.ErrValidationFailed)
	}
	return nil
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req goFleet.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, tokens, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, goFleet.ErrInvalidCredentials)
		return
	}
	user, tokens, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil || req.RefreshToken == "" {
		a.fail(w, r, goFleet.ErrReAuthRequired)
		return
	}
	tokens, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil || req.RefreshToken == "" {
		a.fail(w, r, goFleet.ErrReAuthRequired)
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
