package endpoints

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/http/api"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/http/api/player/packets"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/player"
)

const resyncTimeout = 30 * time.Second

type Player interface {
	Current() player.Snapshot
	ReportCompletion(ctx context.Context, sequence uint64) error
	DebugUpdates() (<-chan bool, func())
	Resync(ctx context.Context) error
}

type PlayerController struct {
	player Player
}

func newPlayerController(p Player) *PlayerController {
	return &PlayerController{player: p}
}

// PlayerModule mounts the endpoints the rendering layer polls and calls.
func PlayerModule(p Player) api.Module {
	ctl := newPlayerController(p)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/current", ctl.current)
		c.POST("/complete", ctl.complete)
		c.Stream("/debug", ctl.debugStream)
	})
}

// OperatorModule mounts the authenticated maintenance endpoints.
func OperatorModule(p Player) api.Module {
	ctl := newPlayerController(p)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/resync", ctl.resync)
	})
}

// GET /api/player/current
func (p *PlayerController) current(ctx *gin.Context) (any, *api.Error) {
	snap := p.player.Current()
	if snap.State == player.StateUninitialized {
		ctx.Status(http.StatusNoContent)
		return nil, nil
	}
	return snap, nil
}

// POST /api/player/complete
func (p *PlayerController) complete(ctx *gin.Context) (any, *api.Error) {
	var req packets.CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if err := p.player.ReportCompletion(ctx.Request.Context(), *req.Sequence); err != nil {
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "player is not accepting completions"}
	}
	return packets.CompleteResponse{Sequence: *req.Sequence, Queued: true}, nil
}

// GET /api/player/debug
func (p *PlayerController) debugStream(ctx *gin.Context) {
	updates, cancel := p.player.DebugUpdates()
	defer cancel()

	ctx.Header("Cache-Control", "no-cache")
	ctx.SSEvent("debug", packets.DebugEvent{Enabled: p.player.Current().Debug})
	ctx.Writer.Flush()

	done := ctx.Request.Context().Done()
	ctx.Stream(func(io.Writer) bool {
		select {
		case enabled, ok := <-updates:
			if !ok {
				return false
			}
			ctx.SSEvent("debug", packets.DebugEvent{Enabled: enabled})
			return true
		case <-done:
			return false
		}
	})
}

// POST /api/player/resync
func (p *PlayerController) resync(ctx *gin.Context) (any, *api.Error) {
	operator, _ := middleware.GetOperator(ctx)
	log.Info().Str("operator", operator).Msg("operator requested resync")

	rctx, cancel := context.WithTimeout(ctx.Request.Context(), resyncTimeout)
	defer cancel()
	if err := p.player.Resync(rctx); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		return nil, &api.Error{Code: code, Message: err.Error()}
	}
	return p.player.Current(), nil
}
