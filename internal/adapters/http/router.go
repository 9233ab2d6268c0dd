package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/config"
	transport "github.com/dkeye/Consult/internal/transport/http"
)

// ClientTokenMiddleware tags every request with a fresh signaling session id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_token", uuid.NewString())
		c.Next()
	}
}

// RequireToken accepts a token from the Authorization header or the token
// query parameter and aborts unless it carries perm.
func RequireToken(issuer *rendezvous.Issuer, perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			raw = c.GetHeader("Authorization")
		}
		claims, err := issuer.Validate(raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, rendezvous.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, transport.MessageResponse{Message: msg})
			return
		}
		if !claims.Allows(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, transport.MessageResponse{Message: "token lacks " + perm})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, api *transport.API, ctrl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(ClientTokenMiddleware())

	api.Register(r)

	r.GET("/api/ws/signal", RequireToken(api.Issuer, credential.PermAllowJoin), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
