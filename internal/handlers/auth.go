package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nlagree/cryptochat/internal/auth"
	"github.com/nlagree/cryptochat/internal/crypto"
	"github.com/nlagree/cryptochat/internal/metrics"
	"github.com/nlagree/cryptochat/internal/middleware"
	"github.com/nlagree/cryptochat/internal/models"
	"github.com/nlagree/cryptochat/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	Store  store.Store
	Logger *zap.Logger
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup registers a user: the password is hashed, a keypair is generated
// server-side and the private key is handed back exactly once in the
// response. It is never returned by any other endpoint.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	type SignupRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	publicKey, privateKey, err := crypto.GenerateKeyPair()
	if err != nil {
		// Fatal to the registration flow; no retry here.
		h.Logger.Error("key generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &models.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hashedPassword),
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}
	if err := h.Store.CreateUser(user); err != nil {
		writeError(w, http.StatusConflict, "username or email already exists")
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		h.Logger.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":       user,
		"token":      token,
		"privateKey": privateKey,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUserByUsername(creds.Username)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("login").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		metrics.AuthFailures.WithLabelValues("login").Inc()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// With 2FA enabled the password alone does not yield a token.
	if user.TwoFactorEnabled {
		writeJSON(w, http.StatusOK, map[string]interface{}{"twoFactorRequired": true})
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		h.Logger.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

// VerifyTwoFactor completes a 2FA login: password and TOTP code together
// yield the session token.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	type VerifyRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUserByUsername(req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.TwoFactorEnabled || !auth.VerifyTwoFactorCode(req.Code, user.TwoFactorSecret) {
		metrics.AuthFailures.WithLabelValues("two_factor").Inc()
		writeError(w, http.StatusUnauthorized, "invalid two-factor code")
		return
	}

	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		h.Logger.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

// SetupTwoFactor generates and stores a TOTP secret for the caller. The
// secret stays dormant until EnableTwoFactor confirms the client has it.
func (h *AuthHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	user, err := h.Store.GetUserByID(userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	secret, err := auth.GenerateTwoFactorSecret(user.Username)
	if err != nil {
		h.Logger.Error("two-factor secret generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "two-factor setup failed")
		return
	}
	if err := h.Store.SetTwoFactor(userID, secret.Secret, false); err != nil {
		writeError(w, http.StatusInternalServerError, "two-factor setup failed")
		return
	}

	writeJSON(w, http.StatusOK, secret)
}

// EnableTwoFactor turns 2FA on once the caller proves possession of the
// secret with a valid code.
func (h *AuthHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	type EnableRequest struct {
		Code string `json:"code"`
	}

	userID := middleware.UserID(r)
	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUserByID(userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if user.TwoFactorSecret == "" || !auth.VerifyTwoFactorCode(req.Code, user.TwoFactorSecret) {
		metrics.AuthFailures.WithLabelValues("two_factor").Inc()
		writeError(w, http.StatusUnauthorized, "invalid two-factor code")
		return
	}
	if err := h.Store.SetTwoFactor(userID, user.TwoFactorSecret, true); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enable two-factor")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"twoFactorEnabled": true})
}

// ListUsers returns the public identity of every other user, for starting a
// new conversation.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(middleware.UserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
