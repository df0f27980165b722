package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/xelth-com/eckdesk/internal/middleware"
	"github.com/xelth-com/eckdesk/internal/models"
	"github.com/xelth-com/eckdesk/internal/utils"
)

const minPasswordLength = 6

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// RefreshRequest exchanges a refresh token for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find User
	var user models.UserAuth
	email := strings.ToLower(strings.TrimSpace(loginReq.Email))
	if err := r.db.WithContext(req.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !user.IsActive || !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now()
	user.LastLogin = &now
	r.db.WithContext(req.Context()).Model(&user).Update("last_login", now)

	r.respondTokens(w, http.StatusOK, &user)
}

// register handles user registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	email := strings.ToLower(strings.TrimSpace(regReq.Email))
	if email == "" || !strings.Contains(email, "@") {
		respondError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(regReq.Password) < minPasswordLength {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	username := strings.TrimSpace(regReq.Username)
	if username == "" {
		username = email
	}

	// 1. Hash Password
	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	// 2. Create User
	user := models.UserAuth{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Name:     strings.TrimSpace(regReq.Name),
		Role:     models.RoleUser,
		IsActive: true,
	}
	if r.cfg.IsAdminEmail(email) {
		user.Role = models.RoleAdmin
	}

	if err := r.db.WithContext(req.Context()).Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Failed to create user (email or username might exist)")
		return
	}

	// 3. Generate Tokens for immediate login
	r.respondTokens(w, http.StatusCreated, &user)
}

// refresh issues a new token pair for a valid refresh token
func (r *Router) refresh(w http.ResponseWriter, req *http.Request) {
	var body RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	claims, err := utils.ValidateToken(body.RefreshToken, r.cfg.JWTSecret)
	if err != nil || claims["type"] != "refresh" {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	id, _ := claims["id"].(string)

	var user models.UserAuth
	if err := r.db.WithContext(req.Context()).Where("id = ?", id).First(&user).Error; err != nil || !user.IsActive {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	r.respondTokens(w, http.StatusOK, &user)
}

// logout handles user logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	// Tokens are stateless; the client discards them
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me returns the caller as seen by the request service
func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())
	role := models.RoleUser
	if actor.Admin {
		role = models.RoleAdmin
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":    actor.UID,
		"email": actor.Email,
		"name":  actor.Name,
		"role":  role,
	})
}

func (r *Router) respondTokens(w http.ResponseWriter, status int, user *models.UserAuth) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, status, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}
