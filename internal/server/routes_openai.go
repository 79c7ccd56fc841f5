package server

import (
	"github.com/gin-gonic/gin"

	oh "qwen2api-go/internal/handlers/openai"
	mw "qwen2api-go/internal/middleware"
)

// RegisterOpenAIRoutes mounts the OpenAI-compatible endpoints under root.
// Listing models works without a bearer; chat completions require one.
func RegisterOpenAIRoutes(root *gin.RouterGroup, deps Dependencies) *oh.Handler {
	opts := []oh.Option{oh.WithUploader(deps.Uploader)}
	if deps.Usage != nil {
		opts = append(opts, oh.WithUsageStats(deps.Usage))
	}
	if deps.Events != nil {
		opts = append(opts, oh.WithPublisher(deps.Events))
	}

	optional := mw.AuthOptions{
		SharedKey: func() string { return deps.Config.Current().Auth.APIKey },
	}
	if deps.Pool != nil {
		opts = append(opts, oh.WithPool(deps.Pool))
		optional.Pool = deps.Pool
	}
	required := optional
	required.Required = true

	oa := oh.New(deps.Config, deps.Client, opts...)

	v1 := root.Group("/v1")
	v1.GET("/models", mw.Auth(optional), oa.ListModels)
	v1.POST("/chat/completions", mw.Auth(required), oa.ChatCompletions)
	return oa
}
