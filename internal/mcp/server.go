package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/logging"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/pathutil"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/ratelimit"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

// Server wraps the MCP SDK server and exposes the simulator as tools.
type Server struct {
	server      *sdk.Server
	runner      *simulation.Runner
	registry    *registry.Registry
	roots       *pathutil.Roots
	logger      *slog.Logger
	auditLogger *AuditLogger
	limits      ratelimit.Tools

	// sem admits one simulation at a time.
	sem chan struct{}
}

// Config holds server configuration.
type Config struct {
	Name      string // Server name (e.g., "bnsim")
	Version   string // Server version
	OutputDir string // Default directory for output streams

	// AllowedDirs are further directories tools may write to or read
	// from. OutputDir is always allowed.
	AllowedDirs []string

	// Settings is the loaded bnsim configuration; nil uses defaults.
	Settings *config.BnsimConfig
	// Logger receives operational logs; nil discards them.
	Logger *slog.Logger
	// AuditDir receives audit.jsonl; empty disables the audit log.
	AuditDir string
}

// NewServer creates a new MCP server with bnsim tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	roots, err := pathutil.NewRoots(append([]string{cfg.OutputDir}, cfg.AllowedDirs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allowed directories: %w", err)
	}

	var reg *registry.Registry
	if settings.Registry.Enabled {
		path, err := settings.RegistryPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve registry path: %w", err)
		}
		reg, err = registry.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run registry: %w", err)
		}
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{})

	s := &Server{
		server:   mcpServer,
		runner:   simulation.NewRunner(settings, logger, reg),
		registry: reg,
		roots:    roots,
		logger:   logger,
		limits:   ratelimit.DefaultTools(),
		sem:      make(chan struct{}, 1),
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled. The caller owns signal handling.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "allowed_dirs", s.roots.Dirs())
	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()
	return err
}

// Close releases the registry and audit log.
func (s *Server) Close() error {
	s.auditLogger.Close()
	if s.registry == nil {
		return nil
	}
	err := s.registry.Close()
	s.registry = nil
	return err
}
