// Package handler exposes the auth service over HTTP/JSON.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	accountdomain "mynotes-auth-service/internal/account/domain"
	"mynotes-auth-service/internal/auth/service"
	"mynotes-auth-service/internal/challenge"
	"mynotes-auth-service/internal/httputil"
)

// AuthHandlers handles the /api/auth endpoints.
type AuthHandlers struct {
	auth   *service.AuthService
	logger *logrus.Logger
}

// NewAuthHandlers returns handlers backed by the given auth service.
func NewAuthHandlers(auth *service.AuthService, logger *logrus.Logger) *AuthHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandlers{auth: auth, logger: logger}
}

// RegisterRoutes registers the auth API routes.
func (h *AuthHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/auth/signup", h.signup).Methods("POST")
	r.HandleFunc("/api/auth/signin", h.signin).Methods("POST")
	r.HandleFunc("/api/auth/sendotp", h.sendOTP).Methods("POST")
	r.HandleFunc("/api/auth/verifyotp", h.verifyOTP).Methods("POST")
	r.HandleFunc("/api/auth/sendotpagain", h.sendOTPAgain).Methods("POST")
	r.HandleFunc("/api/auth/resetpassword", h.resetPassword).Methods("POST")
}

// SignupRequest is the body for POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AccountResponse is the created-account payload. The password hash is opaque
// storage and never leaves the service.
type AccountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func accountToResponse(a *accountdomain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	res, err := h.auth.Signup(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			httputil.WriteError(w, http.StatusBadRequest, "A user with the same email already exists. Please use a different one.")
		case errors.Is(err, service.ErrNotVerified):
			httputil.WriteError(w, http.StatusUnauthorized, "OTP not verified earlier. Please enter your email and verify the OTP")
		default:
			h.writeError(w, err)
		}
		return
	}
	if res.OTPSent {
		// Terminal but not an error: the client must verify the passcode and
		// call signup again.
		httputil.WriteError(w, http.StatusOK, "OTP sent. Please check your email and verify the OTP.")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		User    AccountResponse `json:"user"`
	}{Success: true, Message: "User created!", User: accountToResponse(res.Account)})
}

// SigninRequest is the body for POST /api/auth/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	token, err := h.auth.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownEmail):
			httputil.WriteError(w, http.StatusBadRequest, "Please enter the correct email as no person with entered email was found")
		case errors.Is(err, service.ErrWrongPassword):
			httputil.WriteError(w, http.StatusBadRequest, "Please enter the correct password")
		default:
			h.writeError(w, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Success   bool   `json:"success"`
		AuthToken string `json:"authtoken"`
	}{Success: true, AuthToken: token})
}

// EmailRequest is the body for the OTP issuance endpoints.
type EmailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandlers) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.auth.SendOTP(r.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrAccountExists) {
			httputil.WriteError(w, http.StatusUnauthorized, "User exists!")
			return
		}
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: true, Message: "OTP sent successfully!"})
}

// VerifyOTPRequest is the body for POST /api/auth/verifyotp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"OTP"`
}

func (h *AuthHandlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.auth.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, challenge.ErrNoChallenge):
			httputil.WriteError(w, http.StatusNotFound, "Can't verify OTP if not sent in the first place!")
		case errors.Is(err, challenge.ErrIncorrectPasscode):
			httputil.WriteError(w, http.StatusUnauthorized, "Incorrect OTP")
		default:
			h.writeError(w, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (h *AuthHandlers) sendOTPAgain(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.auth.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "User does not exist. Please sign up!")
			return
		}
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// ResetPasswordRequest is the body for POST /api/auth/resetpassword.
type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.auth.ConfirmReset(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			httputil.WriteError(w, http.StatusNotFound, "User not found, can't change password.")
		case errors.Is(err, challenge.ErrNoChallenge):
			httputil.WriteError(w, http.StatusUnauthorized, "Can't change pass as OTP not sent!")
		case errors.Is(err, service.ErrNotVerified):
			httputil.WriteError(w, http.StatusUnauthorized, "OTP not verified so can't change password")
		default:
			h.writeError(w, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}

// writeError maps validation failures to 400 and everything unclassified to a
// 500 whose detail stays in the log, never in the response.
func (h *AuthHandlers) writeError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		httputil.WriteError(w, http.StatusBadRequest, ve.Error())
		return
	}
	h.logger.WithError(err).Error("auth request failed")
	httputil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
}
