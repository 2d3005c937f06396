package ssl

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureHandler 为管理接口添加安全响应头；sslRedirect 为 true 时把 http 请求重定向到 host:port
func SecureHandler(host string, port int, sslRedirect bool) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:        sslRedirect,
		SSLHost:            host + ":" + strconv.Itoa(port),
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
	})
	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)

		// Process 已经写入了响应（重定向），只需中止当前处理链
		if err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}
