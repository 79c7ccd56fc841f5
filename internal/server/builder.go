package server

import (
	"github.com/gin-gonic/gin"

	"qwen2api-go/internal/config"
	"qwen2api-go/internal/credential"
	"qwen2api-go/internal/events"
	oh "qwen2api-go/internal/handlers/openai"
	"qwen2api-go/internal/runtime"
	usagestats "qwen2api-go/internal/stats"
	store "qwen2api-go/internal/storage"
)

// Dependencies encapsulates runtime services required to build the HTTP engine.
// Only Config and Client are mandatory.
type Dependencies struct {
	Config   *config.Manager
	Client   oh.UpstreamClient
	Uploader oh.ImageUploader
	Pool     *credential.Pool
	Usage    *usagestats.UsageStats
	Storage  store.Backend
	Events   *events.Hub
	Tasks    *runtime.TaskManager
}

// BuildEngine constructs the gin engine serving the OpenAI-compatible API and the
// status endpoints, all mounted under the configured base path.
func BuildEngine(deps Dependencies) *gin.Engine {
	if deps.Config == nil {
		deps.Config = config.NewStatic(config.Defaults())
	}
	cfg := deps.Config.Current()

	engine := gin.New()
	applyStandardEngineSettings(engine, deps.Config)
	if cfg.Logging.Debug {
		registerPprof(engine)
	}

	root := engine.Group(cfg.Server.BasePath)
	RegisterOpenAIRoutes(root, deps)
	registerStatusRoutes(root, deps)
	return engine
}
