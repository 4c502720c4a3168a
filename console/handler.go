// Package console exposes the session orchestrator over HTTP for an
// operator UI: lifecycle control, form editing, the saved list, and a
// server-sent event stream of orchestrator updates.
package console

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/medscribe/errors"
	"github.com/kbukum/medscribe/livekit"
	"github.com/kbukum/medscribe/logger"
	"github.com/kbukum/medscribe/prescription"
	"github.com/kbukum/medscribe/server"
	"github.com/kbukum/medscribe/session"
	"github.com/kbukum/medscribe/sse"
)

// BasePath is the route group of the console API.
const BasePath = "/api/session"

// EventSnapshot carries a full session.State to a newly connected stream.
const EventSnapshot = "snapshot"

// ClientPrefix prefixes the SSE client IDs of console streams.
const ClientPrefix = "console:"

// Session is the orchestrator as seen by the console.
type Session interface {
	Start(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ClearAll(ctx context.Context) error
	State() session.State
	SetField(name, value string) (prescription.Record, error)
	ClearForm()
	Save(ctx context.Context) (prescription.Saved, error)
	RefreshSaved(ctx context.Context) ([]prescription.Saved, error)
	Delete(ctx context.Context, id prescription.ID) error
}

var _ Session = (*session.Orchestrator)(nil)

// TokenVerifier checks conferencing access tokens.
type TokenVerifier interface {
	Verify(token string) (*livekit.AccessClaims, error)
}

var _ TokenVerifier = (*livekit.Verifier)(nil)

type Handler struct {
	sess     Session
	hub      *sse.Hub
	verifier TokenVerifier
	log      *logger.Logger
}

func NewHandler(sess Session, hub *sse.Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Get("console")
	}
	return &Handler{sess: sess, hub: hub, log: log}
}

// WithVerifier enables POST /token/verify.
func (h *Handler) WithVerifier(v TokenVerifier) *Handler {
	h.verifier = v
	return h
}

// Register mounts the console routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group(BasePath)
	g.POST("/start", h.start)
	g.POST("/disconnect", h.disconnect)
	g.POST("/clear", h.clearAll)
	g.GET("/state", h.state)
	g.PUT("/form/:field", h.setField)
	g.POST("/form/clear", h.clearForm)
	g.POST("/form/save", h.save)
	g.GET("/saved", h.saved)
	g.DELETE("/saved/:id", h.deleteSaved)
	if h.hub != nil {
		g.GET("/events", h.events)
	}
	if h.verifier != nil {
		g.POST("/token/verify", h.verifyToken)
	}
}

func (h *Handler) start(c *gin.Context) {
	if err := h.sess.Start(c.Request.Context()); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, h.sess.State())
}

func (h *Handler) disconnect(c *gin.Context) {
	if err := h.sess.Disconnect(c.Request.Context()); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, h.sess.State())
}

func (h *Handler) clearAll(c *gin.Context) {
	if err := h.sess.ClearAll(c.Request.Context()); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, h.sess.State())
}

func (h *Handler) state(c *gin.Context) {
	server.RespondOK(c, h.sess.State())
}

type fieldRequest struct {
	Value *string `json:"value" binding:"required"`
}

func (h *Handler) setField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.MissingField("value").WithCause(err))
		return
	}
	form, err := h.sess.SetField(c.Param("field"), *req.Value)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, form)
}

func (h *Handler) clearForm(c *gin.Context) {
	h.sess.ClearForm()
	server.RespondNoContent(c)
}

func (h *Handler) save(c *gin.Context) {
	saved, err := h.sess.Save(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, saved)
}

func (h *Handler) saved(c *gin.Context) {
	list, err := h.sess.RefreshSaved(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, list)
}

func (h *Handler) deleteSaved(c *gin.Context) {
	if err := h.sess.Delete(c.Request.Context(), prescription.ID(c.Param("id"))); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

func (h *Handler) events(c *gin.Context) {
	id := ClientPrefix + uuid.NewString()
	h.log.WithContext(c.Request.Context()).Debug("console stream opened", logger.Fields("client_id", id))
	sse.ServeSSE(h.hub, c.Writer, c.Request, id, sse.StreamOptions{
		Initial: []sse.Event{{Type: EventSnapshot, Data: h.sess.State()}},
	})
}

// Broadcaster adapts the hub so orchestrator events reach console streams
// only.
type Broadcaster struct {
	Hub sse.Broadcaster
}

func (b Broadcaster) Publish(eventType string, data any) {
	b.Hub.PublishTo(ClientPrefix+"*", eventType, data)
}

var _ session.Publisher = Broadcaster{}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenInfo describes a verified access token.
type TokenInfo struct {
	Identity  string    `json:"identity"`
	Room      string    `json:"room"`
	Agents    []string  `json:"agents,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) verifyToken(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.MissingField("token").WithCause(err))
		return
	}
	claims, err := h.verifier.Verify(req.Token)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	info := TokenInfo{Identity: claims.Identity(), Room: claims.Video.Room}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if claims.RoomConfig != nil {
		for _, a := range claims.RoomConfig.Agents {
			info.Agents = append(info.Agents, a.AgentName)
		}
	}
	server.RespondOK(c, info)
}
