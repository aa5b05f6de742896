// Package fsresolver resolves component URLs against a directory of YAML
// manifests. A URL of the form "file://name" maps to <root>/name.yaml.
package fsresolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/componentry/componentd/internal/shared/decl"
	"github.com/componentry/componentd/internal/shared/errs"
)

// Scheme is the URL scheme this resolver serves.
const Scheme = "file"

// Resolver loads manifests from a root directory.
type Resolver struct {
	root   string
	logger *zap.Logger
}

// New creates a resolver rooted at dir.
func New(dir string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{root: dir, logger: logger}
}

// Resolve implements resolver.Resolver.
func (r *Resolver) Resolve(ctx context.Context, url string) (*decl.Component, error) {
	name, err := manifestName(url)
	if err != nil {
		return nil, errs.Resolver(url, err)
	}

	path := filepath.Join(r.root, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Resolver(url, err)
	}

	var c decl.Component
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errs.Resolver(url, fmt.Errorf("parsing manifest %s: %w", path, err))
	}
	if err := c.Validate(); err != nil {
		return nil, errs.InvalidDeclaration(url, err.Error())
	}

	r.logger.Debug("resolved manifest", zap.String("url", url), zap.String("path", path))
	return &c, nil
}

func manifestName(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, Scheme+"://")
	if !ok || rest == "" {
		return "", fmt.Errorf("want %s://<name>", Scheme)
	}
	name := strings.TrimSuffix(rest, "/")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `\`) {
		return "", fmt.Errorf("bad manifest name %q", rest)
	}
	return name, nil
}
