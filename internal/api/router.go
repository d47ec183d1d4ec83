package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/config"
	"github.com/jengzang/tracking-ops-backend/internal/handler"
	"github.com/jengzang/tracking-ops-backend/internal/middleware"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Ingest     *handler.IngestHandler
	Tracking   *handler.TrackingHandler
	Incident   *handler.IncidentHandler
	OnCall     *handler.OnCallHandler
	Escalation *handler.EscalationHandler
	Learning   *handler.LearningHandler
	KillSwitch *handler.KillSwitchHandler
	SLO        *handler.SLOHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h *Handlers, opsLimiter *ratelimit.Limiter, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(log), gin.Recovery())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "ETag, Retry-After, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Tracking Ops API is running",
		})
	})

	// 指标
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTSecret))
	{
		// 骑手位置上报 / 顾客查看
		trackingGroup := api.Group("/tracking")
		{
			trackingGroup.POST("/location", middleware.RequireRole(middleware.RoleRider), h.Ingest.SubmitLocation)
			trackingGroup.GET("/orders/:orderId", middleware.RequireRole(middleware.RoleCustomer), h.Tracking.GetCustomerView)
		}

		// 运维接口：OPS_VIEWER 只读，OPS_ADMIN 读写
		ops := api.Group("/ops")
		ops.Use(middleware.RequireOps(middleware.OpsViewer), middleware.RateLimit(opsLimiter, log))
		admin := middleware.RequireOps(middleware.OpsAdmin)
		{
			ops.GET("/overview", h.Tracking.GetOverview)
			ops.GET("/active", h.Tracking.GetActive)
			ops.GET("/risk", h.Tracking.GetRisk)

			ops.GET("/incidents", h.Incident.GetIncidents)
			ops.POST("/incidents/run", admin, h.Incident.RunDetection)
			ops.GET("/incidents/:id", h.Incident.GetIncident)
			ops.POST("/incidents/:id/ack", admin, h.Incident.AckIncident)
			ops.POST("/incidents/:id/close", admin, h.Incident.CloseIncident)

			ops.GET("/oncall/policies", h.OnCall.GetPolicies)
			ops.POST("/oncall/policies", admin, h.OnCall.PutPolicy)
			ops.GET("/oncall/schedules", h.OnCall.GetSchedules)
			ops.POST("/oncall/schedules", admin, h.OnCall.PutSchedule)
			ops.GET("/oncall/incidents/:id/timeline", h.Incident.GetTimeline)
			ops.POST("/oncall/incidents/:id/notes", admin, h.Incident.AddNote)

			ops.POST("/escalations/run", admin, h.Escalation.RunEscalations)
			ops.GET("/escalations/status", h.Escalation.GetStatus)

			// 只读，没有写入路由
			ops.GET("/learning/:domain", h.Learning.GetInsights)

			ops.GET("/killswitch", h.KillSwitch.GetState)
			ops.POST("/killswitch", admin, h.KillSwitch.SetMode)

			ops.GET("/slo", h.SLO.GetSnapshots)
			ops.GET("/slo/latest", h.SLO.GetLatest)
		}
	}

	return r
}
