package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"vigia.dev/patroltrack/internal/auth"
	"vigia.dev/patroltrack/internal/store"
	"vigia.dev/patroltrack/internal/util"
)

type LoginRequest struct {
	EmployeeNumber string `json:"employee_number" validate:"required"`
	Password       string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Success   bool             `json:"success"`
	Token     string           `json:"token"`
	Principal *store.Principal `json:"principal"`
}

type BasicResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type VerifyResponse struct {
	Success   bool             `json:"success"`
	Principal *store.Principal `json:"principal"`
}

func (api *Api) Login(w http.ResponseWriter, r *http.Request) {
	req_body := LoginRequest{}
	err := json.NewDecoder(r.Body).Decode(&req_body)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	err = api.vld.Struct(req_body)
	if err != nil {
		util.JsonError(w, http.StatusBadRequest, "employee number and password are required", "")
		return
	}

	p, err := api.ids.PrincipalByEmployeeNumber(r.Context(), req_body.EmployeeNumber)
	if errors.Is(err, store.ErrNotFound) {
		// unknown number, inactive principal and bad password are deliberately
		// the same answer
		util.JsonError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	util.Pan1c(err)
	if !p.Active {
		util.JsonError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	err = bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(req_body.Password))
	if err != nil {
		util.JsonError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	util.Pan1c(api.ids.OpenSession(r.Context(), p.Id))

	token, err := auth.NewToken(api.config.JwtSecret, api.config.TokenTTL, auth.Claims{
		PrincipalId:    p.Id,
		EmployeeNumber: p.EmployeeNumber,
		Role:           p.Role,
		Name:           p.Name,
	})
	util.Pan1c(err)
	api.log.Info().Str("employee_number", p.EmployeeNumber).Str("role", p.Role).Msg("login")
	util.JsonWrite(w, LoginResponse{Success: true, Token: token, Principal: p})
}

func (api *Api) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	util.Pan1c(api.ids.CloseSessions(r.Context(), claims.PrincipalId))
	api.log.Info().Str("employee_number", claims.EmployeeNumber).Msg("logout")
	util.JsonWrite(w, BasicResponse{Success: true, Message: "session closed"})
}

// Verify re-reads the principal so a caller holding a still-valid token for a
// deactivated or deleted principal gets a 401 indistinguishable from bad
// credentials.
func (api *Api) Verify(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	p, err := api.ids.PrincipalById(r.Context(), claims.PrincipalId)
	if errors.Is(err, store.ErrNotFound) {
		util.JsonError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	util.Pan1c(err)
	if !p.Active {
		util.JsonError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}
	util.JsonWrite(w, VerifyResponse{Success: true, Principal: p})
}
