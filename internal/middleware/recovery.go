package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	apperrors "qwen2api-go/internal/errors"
	common "qwen2api-go/internal/handlers/common"
)

// Recovery 返回一个 panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return RecoveryWithWriter(nil)
}

// RecoveryWithWriter 返回一个带自定义回调的 panic 恢复中间件
func RecoveryWithWriter(writer gin.RecoveryFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rid, _ := c.Get("request_id")
				log.WithFields(log.Fields{
					"error":      err,
					"stack":      string(debug.Stack()),
					"request_id": rid,
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"client_ip":  c.ClientIP(),
				}).Error("Panic recovered")

				if writer != nil {
					writer(c, err)
				}

				// SSE 已经开始写出时无法再改状态码，只能中断
				if c.Writer.Written() {
					c.Abort()
					return
				}
				common.AbortWithAPIError(c, apperrors.New(http.StatusInternalServerError, "panic_recovered", "server_error", "Internal server error"))
			}
		}()

		c.Next()
	}
}

// SafeGo 安全地启动 goroutine，带 panic 恢复
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"goroutine": name,
					"error":     err,
					"stack":     string(debug.Stack()),
				}).Error("Goroutine panic recovered")
			}
		}()
		fn()
	}()
}

// SafeCall 安全地调用函数，捕获 panic 并返回 error
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"error": r,
				"stack": string(debug.Stack()),
			}).Error("Panic in SafeCall")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
