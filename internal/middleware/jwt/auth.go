package jwt

import (
	"strings"

	"MarketFlow/pkg/back"
	"MarketFlow/pkg/util/myjwt"
	"MarketFlow/pkg/xerr"
	"MarketFlow/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Auth 校验 Bearer 令牌，并要求令牌角色为 role
func Auth(signer *myjwt.Signer, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := signer.ParseToken(tokenString)
		if err != nil {
			zlog.Warn("admin token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			back.Error(c, xerr.ErrUnauthorized.Code, xerr.ErrUnauthorized.Message)
			c.Abort()
			return
		}
		if role != "" && claims.Role != role {
			back.Error(c, xerr.ErrForbidden.Code, xerr.ErrForbidden.Message)
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
