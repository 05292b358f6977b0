package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"liyu1981.xyz/home-state-monitor/pkg/iot"
)

type RestfulServer struct {
	Server           *gin.Engine
	Iot              *iot.IOT
	RateLimiterStore *iot.RateLimiterStore

	// PushPath is where the vendor delivers device events. Empty disables
	// the push listener.
	PushPath string
	Now      func() time.Time
}

func (rs *RestfulServer) now() time.Time {
	if rs.Now != nil {
		return rs.Now()
	}
	return time.Now()
}

func (rs *RestfulServer) GetLimiter(key string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(key)
	}
}

func (rs *RestfulServer) SetLimiter(key string, keyRate float64, keyBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(key, rate.Limit(keyRate), keyBurst)
}

// limitByClient rejects read API calls over the per-client budget. The push
// listener is not limited; dropping a delivery would lose a transition.
func (rs *RestfulServer) limitByClient(c *gin.Context) {
	if !rs.RateLimiterStore.Allow(c.ClientIP()) {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	c.Next()
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)
	rs.Server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if rs.PushPath != "" {
		rs.Server.POST(rs.PushPath, rs.PostPush)
	}

	read := rs.Server.Group("/", rs.limitByClient)
	{
		read.GET("/devices", rs.ListDevices)
		read.GET("/devices/:device_id", rs.GetDevice)
		read.GET("/devices/:device_id/history", rs.GetDeviceHistory)
		read.GET("/events", rs.GetSecurityEvents)
	}

	rs.Server.POST("/limiters/:key", rs.PostLimiter)
}
