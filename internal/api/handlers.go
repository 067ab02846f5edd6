// Package api exposes the combat engine over HTTP. Handlers translate the
// engine's error taxonomy into status codes: validation errors map to 400,
// missing resources to 404, ended sessions and turn conflicts to 409, and
// everything else to an opaque 500.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/engine"
)

// Narrator renders a slice of the combat log into prose. Implemented by
// the narration package; nil disables the narration endpoint.
type Narrator interface {
	NarrateSince(ctx context.Context, sessionID string, afterSeq int64) (string, int64, error)
}

// Handler groups the combat HTTP handlers.
type Handler struct {
	engine   *engine.Engine
	store    engine.CombatStore
	idem     *IdempotencyCache
	narrator Narrator
	logger   *zap.Logger
}

// NewHandler creates a Handler. narrator may be nil, which turns the
// narration endpoint into a 404.
//
// Precondition: eng, store, idem, and logger must be non-nil.
func NewHandler(eng *engine.Engine, store engine.CombatStore, idem *IdempotencyCache, narrator Narrator, logger *zap.Logger) *Handler {
	return &Handler{engine: eng, store: store, idem: idem, narrator: narrator, logger: logger}
}

// AdvanceRequest is the body of POST .../advance.
type AdvanceRequest struct {
	MaxSteps int `json:"max_steps"`
}

// AdvanceCombat resolves up to max_steps turns of the session. A repeated
// request with the same Idempotency-Key header replays the first outcome
// without touching combat state.
func (h *Handler) AdvanceCombat(c *gin.Context) {
	campaignID := c.Param("campaignId")
	sessionID := c.Param("sessionId")

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run := func() (any, error) {
		return h.engine.Advance(c.Request.Context(), campaignID, sessionID, req.MaxSteps)
	}

	var (
		result   any
		replayed bool
		err      error
	)
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		result, replayed, err = h.idem.Do(sessionID+":"+key, run)
	} else {
		result, err = run()
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	if replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	c.JSON(http.StatusOK, result)
}

// UseSkillRequest is the body of POST .../actions.
type UseSkillRequest struct {
	ActorID  string `json:"actor_id"`
	SkillID  string `json:"skill_id"`
	TargetID string `json:"target_id"`
}

// UseSkill resolves one player-initiated turn.
func (h *Handler) UseSkill(c *gin.Context) {
	campaignID := c.Param("campaignId")
	sessionID := c.Param("sessionId")

	var req UseSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ActorID == "" || req.SkillID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id and skill_id are required"})
		return
	}

	run := func() (any, error) {
		return h.engine.UseSkill(c.Request.Context(), campaignID, sessionID,
			req.ActorID, req.SkillID, req.TargetID)
	}

	var (
		result   any
		replayed bool
		err      error
	)
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		result, replayed, err = h.idem.Do(sessionID+":"+key, run)
	} else {
		result, err = run()
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	if replayed {
		c.Header("Idempotency-Replayed", "true")
	}
	c.JSON(http.StatusOK, result)
}

// ListEvents returns the session's combat log after the given sequence
// number, for narration and replay consumers.
func (h *Handler) ListEvents(c *gin.Context) {
	sessionID := c.Param("sessionId")

	afterSeq := int64(0)
	if raw := c.Query("after_seq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after_seq must be a non-negative integer"})
			return
		}
		afterSeq = parsed
	}

	// Existence check so an unknown session is a 404, not an empty list.
	if _, err := h.store.GetSession(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}

	events, err := h.store.ListEvents(c.Request.Context(), sessionID, afterSeq)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if events == nil {
		events = []*engine.ActionEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Narrate returns dungeon-master prose for the session's events after the
// given sequence number. Read-only: narration never mutates combat state.
func (h *Handler) Narrate(c *gin.Context) {
	if h.narrator == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "narration is not enabled"})
		return
	}
	sessionID := c.Param("sessionId")

	afterSeq := int64(0)
	if raw := c.Query("after_seq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after_seq must be a non-negative integer"})
			return
		}
		afterSeq = parsed
	}

	if _, err := h.store.GetSession(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}

	prose, lastSeq, err := h.narrator.NarrateSince(c.Request.Context(), sessionID, afterSeq)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"narration": prose, "last_seq": lastSeq})
}

// writeError maps an engine error onto an HTTP status. Structural and
// persistence failures surface as an opaque 500; details go to the log
// only.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, engine.ErrCombatantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrSessionEnded),
		errors.Is(err, engine.ErrNotYourTurn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case engine.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("combat request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
