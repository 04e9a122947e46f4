package controllers

import (
	"net/http"
	"time"

	"hardline-backend/realtime"
	"hardline-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHeartbeat = 25 * time.Second

// StreamController serves the realtime feeds as server-sent events.
type StreamController struct {
	hub       *realtime.Hub
	chat      services.ChatService
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewStreamController(hub *realtime.Hub, chat services.ChatService, logger *zap.Logger) *StreamController {
	return &StreamController{hub: hub, chat: chat, heartbeat: defaultHeartbeat, logger: logger}
}

// OrdersStream pushes order changes to the console. Clients refetch on
// each event, so a repeated or dropped event only costs a reload.
func (sc *StreamController) OrdersStream(ctx *gin.Context) {
	sc.serve(ctx, realtime.TopicOrders, nil)
}

// ChatStream pushes new messages for one order to its participants.
func (sc *StreamController) ChatStream(ctx *gin.Context) {
	identity, ok := requireIdentity(ctx)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(ctx, "id", "order")
	if !ok {
		return
	}
	if _, appErr := sc.chat.Authorize(ctx.Request.Context(), identity, orderID); appErr != nil {
		respondError(ctx, appErr)
		return
	}
	sc.serve(ctx, realtime.TopicChat, realtime.KeyFilter(orderID.String()))
}

func (sc *StreamController) serve(ctx *gin.Context, topic string, filter realtime.Filter) {
	events, dispose := sc.hub.Subscribe(topic, filter)
	defer dispose()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)
	ctx.SSEvent("ready", gin.H{"topic": topic})
	ctx.Writer.Flush()

	heartbeat := time.NewTicker(sc.heartbeat)
	defer heartbeat.Stop()

	done := ctx.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ctx.SSEvent(ev.Type, ev)
			ctx.Writer.Flush()
		case <-heartbeat.C:
			ctx.SSEvent("ping", time.Now().UTC().Unix())
			ctx.Writer.Flush()
		}
	}
}
