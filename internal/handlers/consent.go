package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bnka/portal/internal/consent"
	"bnka/portal/internal/middleware"
)

type consentResponse struct {
	Status        consent.Status `json:"status"`
	PromptAfterMs int64          `json:"promptAfterMs"`
}

// gate builds a consent gate over this request's cookie and visitor.
func (h HandlerSet) gate(c *gin.Context) *consent.Gate {
	var tracker consent.Tracker
	if h.newTracker != nil {
		tracker = h.newTracker(c.Request.Context(), middleware.VisitorID(c))
	}

	store := consent.NewCookieStore(c.Writer, c.Request, h.consent.Cookie)
	g := consent.NewGate(store, tracker, consent.Options{
		Tracker: consent.TrackerConfig{
			RespectDoNotTrack: h.consent.RespectDoNotTrack,
			DoNotTrack:        c.GetHeader("DNT") == "1" || c.GetHeader("Sec-GPC") == "1",
			OptOutByDefault:   h.consent.OptOutByDefault,
		},
		PromptDelay: h.consent.PromptDelay,
		Log:         h.log.With().Str("request_id", middleware.RequestIDFrom(c)).Logger(),
	})
	g.Load()
	return g
}

func writeConsent(c *gin.Context, g *consent.Gate) {
	c.JSON(http.StatusOK, consentResponse{
		Status:        g.CurrentState(),
		PromptAfterMs: g.PromptAfter().Milliseconds(),
	})
}

func (h HandlerSet) ConsentState(c *gin.Context) {
	g := h.gate(c)
	defer g.Close()
	writeConsent(c, g)
}

func (h HandlerSet) AcceptConsent(c *gin.Context) {
	h.transition(c, consent.EventAccept)
}

func (h HandlerSet) RejectConsent(c *gin.Context) {
	h.transition(c, consent.EventReject)
}

func (h HandlerSet) transition(c *gin.Context, event consent.Event) {
	g := h.gate(c)
	defer g.Close()

	if _, err := g.Transition(event); err != nil {
		h.log.Warn().Err(err).Str("event", event.String()).Str("request_id", middleware.RequestIDFrom(c)).Msg("consent not persisted")
	}
	writeConsent(c, g)
}
