package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"finsd/internal/auth"
	"finsd/internal/service"
	"finsd/internal/session"
	"finsd/internal/verification"
)

const (
	sessionCookie = "finsd_session"
	tokenCookie   = "finsd_token"

	ctxSessionID = "session_id"
)

// Handler wires HTTP routes to the registration/login workflow.
type Handler struct {
	auth      service.AuthService
	sessions  *session.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

func NewHandler(authSvc service.AuthService, sessions *session.Store, jwtSecret string, tokenTTL time.Duration, logger *logrus.Logger) *Handler {
	return &Handler{
		auth:      authSvc,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), h.sessionMiddleware())

	router.GET("/", h.index)
	router.GET("/register", h.registerPage)
	router.POST("/register", h.register)
	router.GET("/verify", h.verifyPage)
	router.POST("/verify", h.verify)
	router.GET("/login", h.loginPage)
	router.POST("/login", h.login)
	router.GET("/welcome", h.welcome)
	router.POST("/logout", h.logout)
}

type registerForm struct {
	Username        string `form:"username" binding:"required"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

type verifyForm struct {
	Code string `form:"code" binding:"required"`
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// sessionMiddleware ensures every client carries an opaque session id.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			id = h.sessions.NewID()
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(ctxSessionID, id)
		c.Next()
	}
}

func (h *Handler) sessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// identity returns the authenticated email carried by the token cookie.
func (h *Handler) identity(c *gin.Context) (string, error) {
	token, err := c.Cookie(tokenCookie)
	if err != nil || token == "" {
		return "", auth.ErrInvalidToken
	}
	return auth.EmailFromToken(token, h.jwtSecret)
}

func (h *Handler) render(c *gin.Context, status int, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["flashes"] = h.sessions.Flashes(h.sessionID(c))
	c.HTML(status, page, data)
}

func (h *Handler) index(c *gin.Context) {
	if _, err := h.identity(c); err == nil {
		c.Redirect(http.StatusFound, "/welcome")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) registerPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", gin.H{"username": "", "email": ""})
}

func (h *Handler) register(c *gin.Context) {
	id := h.sessionID(c)

	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		h.sessions.AddFlash(id, "error", validationMessage(err))
		h.render(c, http.StatusOK, "register.html", gin.H{
			"username": c.PostForm("username"),
			"email":    c.PostForm("email"),
		})
		return
	}

	pending, err := h.auth.Register(c.Request.Context(), form.Username, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			h.sessions.AddFlash(id, "error", "Email or username already exists.")
			c.Redirect(http.StatusFound, "/register")
			return
		}
		h.logger.WithError(err).Error("registration failed")
		c.String(http.StatusInternalServerError, "registration failed")
		return
	}

	h.sessions.SetPending(id, *pending)
	c.Redirect(http.StatusFound, "/verify")
}

func (h *Handler) verifyPage(c *gin.Context) {
	id := h.sessionID(c)
	pending, ok := h.sessions.Pending(id)
	if !ok {
		c.Redirect(http.StatusFound, "/register")
		return
	}
	h.render(c, http.StatusOK, "verify.html", gin.H{"email": pending.Email})
}

func (h *Handler) verify(c *gin.Context) {
	id := h.sessionID(c)
	pending, ok := h.sessions.Pending(id)
	if !ok {
		c.Redirect(http.StatusFound, "/register")
		return
	}

	var form verifyForm
	if err := c.ShouldBind(&form); err != nil {
		h.sessions.AddFlash(id, "error", "Verification code is required.")
		h.render(c, http.StatusOK, "verify.html", gin.H{"email": pending.Email})
		return
	}

	_, err := h.auth.Verify(c.Request.Context(), pending, form.Code)
	switch {
	case err == nil:
		h.sessions.ClearPending(id)
		h.sessions.AddFlash(id, "success", "Verification successful, you can now login.")
		c.Redirect(http.StatusFound, "/login")
	case errors.Is(err, verification.ErrCodeMismatch):
		h.sessions.AddFlash(id, "error", "Invalid verification code.")
		h.render(c, http.StatusOK, "verify.html", gin.H{"email": pending.Email})
	case errors.Is(err, verification.ErrCodeExpired):
		h.sessions.ClearPending(id)
		h.sessions.AddFlash(id, "error", "Verification code expired. Please register again.")
		c.Redirect(http.StatusFound, "/register")
	case errors.Is(err, verification.ErrTooManyAttempts):
		h.sessions.ClearPending(id)
		h.sessions.AddFlash(id, "error", "Too many attempts. Please register again.")
		c.Redirect(http.StatusFound, "/register")
	case errors.Is(err, service.ErrUserAlreadyExists):
		h.sessions.ClearPending(id)
		h.sessions.AddFlash(id, "error", "Email or username already exists.")
		c.Redirect(http.StatusFound, "/register")
	default:
		h.logger.WithError(err).Error("verification failed")
		c.String(http.StatusInternalServerError, "verification failed")
	}
}

func (h *Handler) loginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{"email": ""})
}

func (h *Handler) login(c *gin.Context) {
	id := h.sessionID(c)

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		h.sessions.AddFlash(id, "error", validationMessage(err))
		h.render(c, http.StatusOK, "login.html", gin.H{"email": c.PostForm("email")})
		return
	}

	user, err := h.auth.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.sessions.AddFlash(id, "error", "Invalid email or password.")
			h.render(c, http.StatusOK, "login.html", gin.H{"email": c.PostForm("email")})
			return
		}
		h.logger.WithError(err).Error("login failed")
		c.String(http.StatusInternalServerError, "login failed")
		return
	}

	token, err := auth.GenerateToken(user.Email, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.WithError(err).Error("issue token")
		c.String(http.StatusInternalServerError, "login failed")
		return
	}

	c.SetCookie(tokenCookie, token, int(h.tokenTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/welcome")
}

func (h *Handler) welcome(c *gin.Context) {
	email, err := h.identity(c)
	if err != nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	h.render(c, http.StatusOK, "welcome.html", gin.H{"email": email})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("%s is required.", fe.Field())
			case "email":
				return "Invalid email address."
			case "eqfield":
				return "Passwords do not match."
			}
		}
	}
	return "Invalid form submission."
}
