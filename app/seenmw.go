package app

import (
	"time"

	"projector_reservation/db"
	"projector_reservation/log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TouchLastSeen records activity at most once per throttle window per user.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := CurrentSubject(c)
		if !ok {
			c.Next()
			return
		}

		key := "user:lastseen:" + s.UserID
		if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); ok {
			if err := repo.TouchUserSeen(c, s.UserID); err != nil {
				log.Logger.Warn("touch last seen", zap.String("userID", s.UserID), zap.Error(err))
			}
		}
		c.Next()
	}
}
