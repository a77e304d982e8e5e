// Package mcp exposes read-only portal tools (symbol search, report sections,
// version) over the Model Context Protocol.
package mcp

import (
	"net/http"

	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	server     *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
}

// NewHandler registers the portal tools against index. The tools need no
// session, so the endpoint runs stateless.
func NewHandler(index *symbols.Index, maxMatches int, logger *common.Logger) *Handler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	srv := mcpserver.NewMCPServer(
		"optiwealth-portal",
		config.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)
	n := registerTools(srv, index, maxMatches)

	streamable := mcpserver.NewStreamableHTTPServer(srv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", n).
		Int("symbols", index.Len()).
		Msg("MCP handler initialized")

	return &Handler{
		server:     srv,
		streamable: streamable,
		logger:     logger,
	}
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}

// ServeStdio runs the same tools over stdin/stdout until the input closes.
func (h *Handler) ServeStdio() error {
	return mcpserver.ServeStdio(h.server)
}
