package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the planning UI origins to call the API and open the snapshot stream.
// A "*" entry allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", CorrelationIDHeader, "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{CorrelationIDHeader, "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cors.New(cfg)
		}
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:8081"}
	}
	cfg.AllowOrigins = allowedOrigins

	return cors.New(cfg)
}
