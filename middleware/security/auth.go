package security

import (
	"net/http"
	"strings"

	"CMProject/tools/errs"
	sec "CMProject/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用这俩 key 读取
const (
	CMCtxUserIDKey = "user_id"       // string
	CMCtxAuthKey   = "authorization" // string
)

type Options struct {
	JWT sec.Options

	// 读取哪个请求头
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions(jwt sec.Options) *Options {
	return &Options{
		JWT:                       jwt,
		HeaderToken:               CMCtxAuthKey,
		EnableAuthorizationBearer: true,
	}
}

func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token = strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		// 兼容 Authorization: Bearer xxx
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		claims, err := sec.Verify(opts.JWT, token, "")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail(err.Error()))
			return
		}
		uid, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid.WithDetail(err.Error()))
			return
		}

		c.Set(CMCtxUserIDKey, uid)
		c.Set(CMCtxAuthKey, token)
		c.Next()
	}
}
