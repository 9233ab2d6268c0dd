// Package http holds the REST handlers of the rendezvous server.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// TokenSource acquires credentials on behalf of browser callers.
type TokenSource interface {
	Acquire(ctx context.Context, scope domain.Scope) (*domain.Credential, error)
}

type API struct {
	APIKey    string
	SecretKey string
	Issuer    *rendezvous.Issuer
	Rooms     core.RoomManager
	Catalog   *rendezvous.Catalog
	Tokens    TokenSource
}

type TokenRequest struct {
	Expire      int64    `json:"expire"`
	Permissions []string `json:"permissions"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RoomResponse struct {
	RoomID domain.RoomID `json:"roomId"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (a *API) Register(r gin.IRouter) {
	r.POST("/v2/token", a.handleToken)
	r.POST("/v2/rooms", a.handleCreateRoom)

	api := r.Group("/api")
	api.GET("/rooms", a.handleListRooms)
	api.GET("/video-token", a.handleVideoToken)
	api.POST("/video-token", a.handleVideoToken)
	api.GET("/sessions/:id", a.handleSession)
}

func (a *API) handleToken(c *gin.Context) {
	if a.APIKey == "" || c.GetHeader("Authorization") != a.APIKey+":"+a.SecretKey {
		c.JSON(http.StatusUnauthorized, MessageResponse{Message: "invalid api key"})
		return
	}
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{Message: "missing or invalid body"})
		return
	}

	token, claims, err := a.Issuer.Issue(time.Unix(req.Expire, 0), req.Permissions)
	if err != nil {
		log.Warn().Err(err).Str("module", "transport.http").Msg("token refused")
		c.JSON(http.StatusBadRequest, MessageResponse{Message: err.Error()})
		return
	}
	log.Info().Str("module", "transport.http").Str("jti", claims.ID).Strs("permissions", claims.Permissions).Msg("token issued")
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (a *API) handleCreateRoom(c *gin.Context) {
	claims, err := a.Issuer.Validate(c.GetHeader("Authorization"))
	switch {
	case errors.Is(err, rendezvous.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, MessageResponse{Message: "token expired"})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, MessageResponse{Message: err.Error()})
		return
	case !claims.Allows(credential.PermAllowMod):
		c.JSON(http.StatusForbidden, MessageResponse{Message: "token lacks " + credential.PermAllowMod})
		return
	}

	room := a.Rooms.Create()
	log.Info().Str("module", "transport.http").Str("room_id", string(room.Room().ID)).Msg("room provisioned")
	c.JSON(http.StatusOK, RoomResponse{RoomID: room.Room().ID})
}

func (a *API) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, a.Rooms.List())
}

// handleVideoToken hands a join+create credential to callers that must not
// see the api key.
func (a *API) handleVideoToken(c *gin.Context) {
	cred, err := a.Tokens.Acquire(c.Request.Context(), domain.Scope{domain.PermJoin, domain.PermCreate})
	if err != nil {
		log.Error().Err(err).Str("module", "transport.http").Msg("video token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: cred.Value})
}

func (a *API) handleSession(c *gin.Context) {
	d, ok := a.Catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}
