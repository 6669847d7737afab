// Package mcp exposes screening tools to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/guard"
	"github.com/nutricheck-server/internal/records"
	"github.com/nutricheck-server/internal/scoring"
	"github.com/nutricheck-server/internal/service"
	"github.com/nutricheck-server/internal/session"
	"github.com/nutricheck-server/internal/wizard"
)

// Options configures the MCP server.
type Options struct {
	Name      string
	Version   string
	Store     records.Store
	Practice  *domain.Practice // practice that saved screenings are filed under
	Language  domain.Language
	ExportDir string
	Wizard    domain.WizardConfig
	Logger    *logrus.Logger
}

// Server is the NutriCheck MCP server. Every tool acts as the single configured practice.
type Server struct {
	mcpServer *mcp.Server
	svc       *service.ScreeningService
	store     records.Store
	identity  domain.SessionProvider
	practice  string
	language  domain.Language
	exportDir string
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("screening store is required")
	}
	if opts.Practice == nil || opts.Practice.ID == "" {
		return nil, fmt.Errorf("practice is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Name == "" {
		opts.Name = "nutricheck-mcp-server"
	}
	if opts.Version == "" {
		opts.Version = "v0.1.0"
	}

	scorer := scoring.NewScorer(nil)
	svc := service.NewScreeningService(service.Dependencies{
		Store:  opts.Store,
		Guard:  guard.NewMemoryGuard(0),
		Drafts: wizard.NewManager(opts.Wizard, scorer, opts.Logger),
		Scorer: scorer,
		Logger: opts.Logger,
	})

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		svc:       svc,
		store:     opts.Store,
		identity:  session.NewStaticProvider(opts.Practice),
		practice:  opts.Practice.ID,
		language:  opts.Language.OrDefault(),
		exportDir: opts.ExportDir,
		logger:    opts.Logger,
	}
	s.registerTools()

	s.logger.WithFields(logrus.Fields{
		"server":      opts.Name,
		"practice_id": opts.Practice.ID,
	}).Info("MCP server initialized")
	return s, nil
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting NutriCheck MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the screening store.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_screening",
		Description: "Score a completed malnutrition screening questionnaire (NRS-2002 based) without storing it. Returns the score breakdown, level, therapy recommendation and a text report.",
	}, s.handleScoreScreening)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "format_report",
		Description: "Render the report of a stored screening as plain text or HTML in German, English or Russian.",
	}, s.handleFormatReport)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_patient_code",
		Description: "Build the pseudonymous patient code <first initial><last initial>-DD-MM-YYYY. Only the first letter of each name is used.",
	}, s.handleGeneratePatientCode)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_screening",
		Description: "Score and store a screening. Reusing a submission_id returns the screening stored the first time.",
	}, s.handleSaveScreening)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_screenings",
		Description: "List stored screenings, newest first.",
	}, s.handleListScreenings)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_screenings",
		Description: "Export stored screenings to the export directory as JSON (re-importable) or XLSX.",
	}, s.handleExportScreenings)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "import_screenings",
		Description: "Import screenings from a JSON export. Screenings whose submission is already stored are skipped.",
	}, s.handleImportScreenings)

	s.logger.WithField("tool_count", 7).Debug("Registered MCP tools")
}
