package credential

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TokenSource 定义账号 token 的读取接口，便于替换不同来源（环境变量、配置文件等）。
type TokenSource interface {
	Name() string
	Load(ctx context.Context) ([]string, error)
}

// FileSource reads one token per line; blank lines and lines starting with # are skipped.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Load(context.Context) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// StaticSource serves tokens already present in the loaded configuration.
type StaticSource struct {
	name   string
	tokens []string
}

func NewStaticSource(name string, tokens []string) *StaticSource {
	return &StaticSource{name: name, tokens: append([]string(nil), tokens...)}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Load(context.Context) ([]string, error) {
	return append([]string(nil), s.tokens...), nil
}

// LoadTokens merges every source in order, dropping duplicates. A failing source
// is logged and skipped.
func LoadTokens(ctx context.Context, sources ...TokenSource) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, src := range sources {
		if src == nil {
			continue
		}
		tokens, err := src.Load(ctx)
		if err != nil {
			log.WithError(err).WithField("source", src.Name()).Warn("failed to load account tokens")
			continue
		}
		added := 0
		for _, tok := range tokens {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
			added++
		}
		log.WithFields(log.Fields{"source": src.Name(), "tokens": added}).Debug("account tokens loaded")
	}
	return out
}
