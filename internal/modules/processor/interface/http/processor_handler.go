package handler

import (
	"MarketFlow/internal/modules/processor/application/dto/respond"
	"MarketFlow/pkg/back"
	"MarketFlow/pkg/xerr"
	"MarketFlow/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StatusSource interface {
	Snapshot() []respond.PartitionStatus
}

type Refresher interface {
	Trigger() bool
}

type RunState interface {
	Running() bool
}

type ProcessorHandler struct {
	status    StatusSource
	refresher Refresher
	state     RunState
}

func NewProcessorHandler(status StatusSource, refresher Refresher, state RunState) *ProcessorHandler {
	return &ProcessorHandler{status: status, refresher: refresher, state: state}
}

func (h *ProcessorHandler) Health(c *gin.Context) {
	if !h.state.Running() {
		back.Result(c, nil, xerr.ErrNotRunning)
		return
	}
	back.Success(c, gin.H{"running": true})
}

func (h *ProcessorHandler) Partitions(c *gin.Context) {
	partitions := h.status.Snapshot()
	back.Success(c, respond.PartitionListRespond{
		Running:    h.state.Running(),
		Total:      len(partitions),
		Partitions: partitions,
	})
}

// Refresh 请求立即执行一次分区发现
func (h *ProcessorHandler) Refresh(c *gin.Context) {
	if !h.state.Running() {
		back.Result(c, nil, xerr.ErrNotRunning)
		return
	}
	triggered := h.refresher.Trigger()
	zlog.Info("partition refresh requested",
		zap.String("subject", c.GetString("subject")),
		zap.Bool("triggered", triggered))
	back.Success(c, respond.RefreshRespond{Triggered: triggered})
}
