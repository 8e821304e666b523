package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/starfederation/datastar-go/datastar"
)

type goalRequest struct {
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

type moveRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

func priorityParam(c *gin.Context) (int, error) {
	raw := c.Param("priority")
	p, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goals.ValidationError{Field: "priority", Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	return p, nil
}

func (s *Server) handleList(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, err := s.cfg.Repo.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (s *Server) handleGet(c *gin.Context) {
	p, err := priorityParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.cfg.Repo.Get(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": g})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, goals.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	ctx := c.Request.Context()
	g := model.Goal{Priority: req.Priority, Text: req.Text}
	if err := s.cfg.Repo.Add(ctx, g); err != nil {
		s.fail(c, err)
		return
	}
	s.appendEvent(ctx, model.EventGoalAdd, g.Priority, g)
	s.respondList(c, http.StatusCreated)
}

// handleUpdate edits the goal at :priority. A zero priority or empty text in the body keeps the
// current value.
func (s *Server) handleUpdate(c *gin.Context) {
	old, err := priorityParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, goals.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	ctx := c.Request.Context()
	cur, err := s.cfg.Repo.Get(ctx, old)
	if err != nil {
		s.fail(c, err)
		return
	}
	g := cur
	if req.Priority != 0 {
		g.Priority = req.Priority
	}
	if req.Text != "" {
		g.Text = req.Text
	}
	if err := s.cfg.Repo.Edit(ctx, old, g); err != nil {
		s.fail(c, err)
		return
	}
	s.appendEvent(ctx, model.EventGoalEdit, g.Priority, map[string]any{"oldPriority": old, "goal": g})
	s.respondList(c, http.StatusOK)
}

func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, goals.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if req.From == nil || req.To == nil {
		s.fail(c, goals.ValidationError{Field: "body", Reason: "from and to are required"})
		return
	}
	ctx := c.Request.Context()
	moved, changed, err := s.cfg.Repo.Move(ctx, *req.From, *req.To)
	if err != nil {
		s.fail(c, err)
		return
	}
	if changed {
		s.appendEvent(ctx, model.EventGoalMove, moved.Priority, map[string]any{"from": *req.From, "to": *req.To, "goal": moved})
	}
	list, err := s.cfg.Repo.List(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"goal": moved, "changed": changed, "goals": list}})
}

func (s *Server) handleNormalize(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := s.cfg.Repo.Normalize(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.appendEvent(ctx, model.EventGoalNormalize, 0, map[string]any{"count": len(list)})
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (s *Server) handleDelete(c *gin.Context) {
	p, err := priorityParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	deleted, err := s.cfg.Repo.Delete(ctx, p)
	if err != nil {
		s.fail(c, err)
		return
	}
	if deleted {
		s.appendEvent(ctx, model.EventGoalDelete, p, nil)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": deleted}})
}

func (s *Server) handleDeleteAll(c *gin.Context) {
	ctx := c.Request.Context()
	deleted := s.cfg.Repo.DeleteAll(ctx)
	if deleted {
		s.appendEvent(ctx, model.EventGoalClear, 0, nil)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": deleted}})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, goals.ValidationError{Field: "limit", Reason: fmt.Sprintf("want a non-negative number, got %q", raw)})
			return
		}
		limit = n
	}
	if s.cfg.Events == nil {
		c.JSON(http.StatusOK, gin.H{"data": []model.Event{}})
		return
	}
	evs, err := s.cfg.Events.ReadEvents(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": evs})
}

// respondList writes the full list after a write so clients see shifted neighbors.
func (s *Server) respondList(c *gin.Context, status int) {
	list, err := s.cfg.Repo.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, gin.H{"data": list})
}

// handleStream pushes the goal list as a Datastar signals patch now and after every write.
func (s *Server) handleStream(c *gin.Context) {
	sse := datastar.NewSSE(c.Writer, c.Request)

	ch, cancel := s.hub.subscribe()
	defer cancel()

	push := func() {
		s.mu.RLock()
		list, err := s.cfg.Repo.List(sse.Context())
		s.mu.RUnlock()
		if err != nil {
			s.log.Warn("stream: list goals", "error", err)
			_ = sse.MarshalAndPatchSignals(map[string]any{"error": err.Error()})
			return
		}
		_ = sse.MarshalAndPatchSignals(map[string]any{"goals": list})
	}
	push()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case _, ok := <-ch:
			if !ok {
				return
			}
			push()
		}
	}
}
