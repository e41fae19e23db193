package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bnka/portal/internal/consent"
	"bnka/portal/internal/middleware"
	"bnka/portal/internal/models"
	"bnka/portal/internal/service"
)

type Authenticator interface {
	middleware.SessionResolver
	Register(ctx context.Context, input service.RegisterInput) (models.User, error)
	Login(ctx context.Context, input service.LoginInput) (service.LoginOutcome, error)
	Logout(ctx context.Context, token string) error
}

type UserAdmin interface {
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Delete(ctx context.Context, id int64) error
}

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

// TrackerFactory builds the analytics client for one visitor.
type TrackerFactory func(ctx context.Context, visitorID string) consent.Tracker

type ConsentSettings struct {
	Cookie            consent.CookieOptions
	PromptDelay       time.Duration
	RespectDoNotTrack bool
	OptOutByDefault   bool
}

type Deps struct {
	Log           zerolog.Logger
	Auth          Authenticator
	Users         UserAdmin
	HealthChecks  map[string]HealthCheck
	NewTracker    TrackerFactory
	SessionCookie middleware.SessionCookie
	Consent       ConsentSettings
	LoginRate     float64
	LoginBurst    int
}

type HandlerSet struct {
	log           zerolog.Logger
	auth          Authenticator
	users         UserAdmin
	healthChecks  map[string]HealthCheck
	newTracker    TrackerFactory
	sessionCookie middleware.SessionCookie
	consent       ConsentSettings
	loginRate     float64
	loginBurst    int
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:           deps.Log,
		auth:          deps.Auth,
		users:         deps.Users,
		healthChecks:  deps.HealthChecks,
		newTracker:    deps.NewTracker,
		sessionCookie: deps.SessionCookie,
		consent:       deps.Consent,
		loginRate:     deps.LoginRate,
		loginBurst:    deps.LoginBurst,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	secure, sameSite := h.consent.Cookie.Secure, h.consent.Cookie.SameSite
	v1 := router.Group("/v1")
	v1.Use(
		middleware.Session(h.auth, h.sessionCookie, h.log),
		middleware.Visitor(h.consent.Cookie.MaxAge, secure, sameSite),
	)
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", middleware.LoginRateLimit(h.loginRate, h.loginBurst), h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.RequireUser(), h.Me)
	}
	{
		choice := v1.Group("/consent")
		choice.GET("", h.ConsentState)
		choice.POST("/accept", h.AcceptConsent)
		choice.POST("/reject", h.RejectConsent)
	}
	v1.POST("/events", h.TrackEvent)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/users", h.AdminListUsers)
	admin.DELETE("/users/:id", h.AdminDeleteUser)
}
