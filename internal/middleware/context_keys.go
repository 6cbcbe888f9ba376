package middleware

import "github.com/gin-gonic/gin"

// actorIDKey stores the acting member's ID in the Gin context. The request
// layer in front of this service authenticates and sets the header; the core
// only threads the identity through for audit fields.
const actorIDKey = contextKey("actorID")

// ActorHeader is the header the external request layer uses to convey the
// authenticated member identity.
const ActorHeader = "X-Actor-ID"

// ActorMiddleware copies the actor header into the gin context.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := c.GetHeader(ActorHeader); actor != "" {
			c.Set(string(actorIDKey), actor)
		}
		c.Next()
	}
}

// GetActorIDFromContext retrieves the acting member ID from the Gin context.
func GetActorIDFromContext(c *gin.Context) (string, bool) {
	actorVal, exists := c.Get(string(actorIDKey))
	if !exists {
		return "", false
	}
	actorID, ok := actorVal.(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}
