package handler

import (
	"strconv"
	"time"

	"mlmsystem/internal/monitoring"
	"mlmsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware 请求日志 + 请求计数
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()

		// 按路由模板统计，避免 query 参数造成标签膨胀
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitoring.HttpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		if query != "" {
			path = path + "?" + query
		}
		log.WithFields(logrus.Fields{
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
			"method":  c.Request.Method,
			"path":    path,
		}).Info("[HTTP]")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"panic":  err,
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
				}).Error("[PANIC]")
				c.AbortWithStatusJSON(500, response.Response{
					Code:    response.CodeServerError,
					Message: "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}
