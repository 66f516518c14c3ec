package auth

import (
	"github.com/campops/procurement-service/internal/model"
	"github.com/gin-gonic/gin"
)

// Header names the upstream gateway uses to relay the authenticated caller.
// Verifying the session is the gateway's job; we only interpret the result.
const (
	HeaderActorID       = "X-Actor-ID"
	HeaderActorRole     = "X-Actor-Role"
	HeaderActorProperty = "X-Actor-Property"
)

// ActorFromRequest reads the caller identity from the relay headers.
func ActorFromRequest(c *gin.Context) model.Actor {
	actor := model.Actor{
		UserID: c.GetHeader(HeaderActorID),
		Role:   model.Role(c.GetHeader(HeaderActorRole)),
	}
	if prop := c.GetHeader(HeaderActorProperty); prop != "" {
		actor.PropertyID = &prop
	}
	return actor
}
