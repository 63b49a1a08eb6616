package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, log *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))

	api := r.Group("/api/v1")
	{
		user := api.Group("/user")
		{
			user.POST("/register", h.Register)
			user.GET("/detail", h.GetUser)
			user.GET("/downline", h.ListDownline)
			user.GET("/rank-history", h.ListRankChanges)
			user.POST("/status", h.SetUserStatus)
		}

		earning := api.Group("/earning")
		{
			earning.GET("/list", h.ListEarnings)
		}

		rank := api.Group("/rank")
		{
			rank.GET("/list", h.ListRanks)
			rank.POST("/recompute", h.RecomputeRank)
		}

		pkg := api.Group("/package")
		{
			pkg.GET("/list", h.ListPackages)
		}

		request := api.Group("/package-request")
		{
			request.POST("/create", h.CreatePackageRequest)
			request.GET("/detail", h.GetPackageRequest)
			request.GET("/list", h.ListPackageRequests)
			request.POST("/approve", h.ApprovePackageRequest)
			request.POST("/reject", h.RejectPackageRequest)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
