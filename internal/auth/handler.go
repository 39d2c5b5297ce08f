package auth

import (
	"errors"
	"net/http"

	"loan-predictor/internal/httpx"
	"loan-predictor/internal/storage"

	"go.uber.org/zap"
)

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	Token string `json:"token"`
}

type GitHubCallbackRequest struct {
	Code string `json:"code"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	Email       string `json:"email,omitempty"`
}

func SignupHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		err := svc.Signup(r.Context(), req.Email, req.Password)
		switch {
		case err == nil:
			httpx.Message(w, http.StatusCreated, "Signup successful")
		case errors.Is(err, ErrMissingFields):
			httpx.Error(w, http.StatusBadRequest, "Email and password are required")
		case errors.Is(err, ErrInvalidEmail):
			httpx.Error(w, http.StatusBadRequest, "Invalid email address")
		case errors.Is(err, storage.ErrUserExists):
			httpx.Error(w, http.StatusBadRequest, "User already exists")
		default:
			svc.log.Error("signup failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func LoginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		token, err := svc.Login(r.Context(), req.Email, req.Password)
		switch {
		case err == nil:
			httpx.JSON(w, http.StatusOK, LoginResponse{Message: "Login successful", AccessToken: token})
		case errors.Is(err, ErrInvalidCredentials):
			httpx.Error(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			svc.log.Error("login failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func AdminLoginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		token, err := svc.AdminLogin(r.Context(), req.Email, req.Password)
		switch {
		case err == nil:
			httpx.JSON(w, http.StatusOK, LoginResponse{Message: "Admin login successful", AccessToken: token})
		case errors.Is(err, ErrInvalidAdmin):
			httpx.Error(w, http.StatusUnauthorized, "Invalid admin credentials")
		default:
			svc.log.Error("admin login failed", zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func GoogleLoginHandler(svc *Service, verifier GoogleVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			httpx.Error(w, http.StatusServiceUnavailable, "Google login is not configured")
			return
		}
		var req GoogleLoginRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		if req.Token == "" {
			httpx.Error(w, http.StatusBadRequest, "Token is missing")
			return
		}

		email, err := verifier.VerifyEmail(r.Context(), req.Token)
		if err != nil {
			svc.log.Info("google token rejected", zap.Error(err))
			httpx.Error(w, http.StatusUnauthorized, "Invalid Google token")
			return
		}
		externalLogin(w, r, svc, email, MethodGoogle)
	}
}

func GitHubCallbackHandler(svc *Service, gh GitHubExchanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gh == nil {
			httpx.Error(w, http.StatusServiceUnavailable, "GitHub login is not configured")
			return
		}
		var req GitHubCallbackRequest
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		if req.Code == "" {
			httpx.Error(w, http.StatusBadRequest, "Authorization code is missing")
			return
		}

		email, err := gh.PrimaryEmail(r.Context(), req.Code)
		if err != nil {
			var ghErr *GitHubError
			switch {
			case errors.As(err, &ghErr):
				httpx.Error(w, http.StatusBadRequest, ghErr.Description)
			case errors.Is(err, ErrNoPrimaryEmail):
				httpx.Error(w, http.StatusBadRequest, ErrNoPrimaryEmail.Error())
			default:
				svc.log.Error("github login failed", zap.Error(err))
				httpx.Error(w, http.StatusBadGateway, "GitHub is unavailable")
			}
			return
		}
		externalLogin(w, r, svc, email, MethodGitHub)
	}
}

func externalLogin(w http.ResponseWriter, r *http.Request, svc *Service, email, method string) {
	token, err := svc.LoginExternal(r.Context(), email, method)
	if err != nil {
		svc.log.Error("external login failed", zap.String("method", method), zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "An unexpected error occurred during login.")
		return
	}
	httpx.JSON(w, http.StatusOK, LoginResponse{
		Message:     "Login successful",
		AccessToken: token,
		Email:       NormalizeEmail(email),
	})
}
