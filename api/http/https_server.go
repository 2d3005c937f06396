package http

import (
	"net/http"

	jwtMiddleware "MarketFlow/internal/middleware/jwt"
	handler "MarketFlow/internal/modules/processor/interface/http"
	"MarketFlow/pkg/ssl"
	"MarketFlow/pkg/util/myjwt"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type EngineOptions struct {
	Host        string
	Port        int
	SSLRedirect bool
	// MetricsPath 为空时不暴露 Prometheus 指标
	MetricsPath    string
	MetricsHandler http.Handler
	// Stream 为空时不提供 websocket 状态推送
	Stream *handler.StreamHandler
}

// NewEngine 组装管理接口的路由
func NewEngine(h *handler.ProcessorHandler, signer *myjwt.Signer, opts EngineOptions) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Logger(), gin.Recovery())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	ge.Use(cors.New(corsConfig))
	ge.Use(ssl.SecureHandler(opts.Host, opts.Port, opts.SSLRedirect))

	ge.GET("/healthz", h.Health)
	ge.GET("/processor/partitions", h.Partitions)
	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		ge.GET(opts.MetricsPath, gin.WrapH(opts.MetricsHandler))
	}
	// websocket 握手自行校验 ?token=，不走 Header 鉴权
	if opts.Stream != nil {
		ge.GET("/processor/stream", opts.Stream.Connect)
	}

	authed := ge.Group("/processor")
	authed.Use(jwtMiddleware.Auth(signer, myjwt.RoleAdmin))
	authed.POST("/refresh", h.Refresh)
	return ge
}
