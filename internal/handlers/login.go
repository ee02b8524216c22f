package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/leadrelay/leadrelay/internal/auth"
	"github.com/leadrelay/leadrelay/internal/config"
)

// LoginHandler issues operator JWTs for the admin surface.
type LoginHandler struct {
	logger    *slog.Logger
	admin     config.AdminConfig
	jwtSecret string
	expiresIn time.Duration
}

// NewLoginHandler creates the admin login handler.
func NewLoginHandler(log *slog.Logger, admin config.AdminConfig, jwtSecret string, expiresIn time.Duration) *LoginHandler {
	if log == nil {
		log = slog.Default()
	}
	return &LoginHandler{
		logger:    log.With(slog.String("handler", "login")),
		admin:     admin,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
	}
}

func (h *LoginHandler) Register(e *echo.Echo) {
	e.POST("/admin/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies credentials against the configured bcrypt hash and
// returns a signed token.
func (h *LoginHandler) Login(c echo.Context) error {
	if h.admin.PasswordHash == "" || h.jwtSecret == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "admin login not configured")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	if req.Username != h.admin.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.admin.PasswordHash), []byte(req.Password)) != nil {
		h.logger.Warn("login rejected", slog.String("username", req.Username))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(req.Username, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
