package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
	"github.com/bobmcallan/optiwealth-portal/internal/typeahead"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxSearchLimit caps the limit argument of search_symbols.
const maxSearchLimit = 500

// registerTools adds every portal tool to s and returns how many were added.
func registerTools(s *server.MCPServer, index *symbols.Index, maxMatches int) int {
	if maxMatches <= 0 {
		maxMatches = typeahead.DefaultMaxMatches
	}
	s.AddTool(SearchSymbolsTool(), SearchSymbolsHandler(index, maxMatches))
	s.AddTool(ValidateSymbolTool(), ValidateSymbolHandler(index))
	s.AddTool(ListSectionsTool(), ListSectionsHandler())
	s.AddTool(VersionTool(), VersionToolHandler(index))
	return 4
}

// SearchSymbolsTool returns the search_symbols tool definition.
func SearchSymbolsTool() mcp.Tool {
	return mcp.NewTool("search_symbols",
		mcp.WithDescription("Search the tradable symbol list. Matches are case-insensitive substrings, returned in list order."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for, e.g. 'TATA' or 'infy'")),
		mcp.WithNumber("limit", mcp.Description("Maximum matches to return (default: the portal's typeahead limit, max: 500)")),
	)
}

type searchResult struct {
	Query     string   `json:"query"`
	Matches   []string `json:"matches"`
	Truncated bool     `json:"truncated"`
}

// SearchSymbolsHandler filters index with the same rule the typeahead uses.
func SearchSymbolsHandler(index *symbols.Index, maxMatches int) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := r.RequireString("query")
		if err != nil {
			return errorResult("query is required"), nil
		}
		limit := r.GetInt("limit", maxMatches)
		if limit < 1 || limit > maxSearchLimit {
			return errorResult("limit must be between 1 and 500"), nil
		}

		matches, truncated := index.Search(query, limit)
		if matches == nil {
			matches = []string{}
		}
		return jsonResult(searchResult{Query: query, Matches: matches, Truncated: truncated})
	}
}

// ValidateSymbolTool returns the validate_symbol tool definition.
func ValidateSymbolTool() mcp.Tool {
	return mcp.NewTool("validate_symbol",
		mcp.WithDescription("Check whether a ticker is in the tradable symbol list and return its canonical spelling."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker to check, e.g. 'reliance'")),
	)
}

type validateResult struct {
	Symbol    string `json:"symbol"`
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical,omitempty"`
}

// ValidateSymbolHandler looks a ticker up case-insensitively.
func ValidateSymbolHandler(index *symbols.Index) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sym, err := r.RequireString("symbol")
		if err != nil || strings.TrimSpace(sym) == "" {
			return errorResult("symbol is required"), nil
		}
		canonical, ok := index.Lookup(strings.TrimSpace(sym))
		return jsonResult(validateResult{Symbol: sym, Valid: ok, Canonical: canonical})
	}
}

// ListSectionsTool returns the list_report_sections tool definition.
func ListSectionsTool() mcp.Tool {
	return mcp.NewTool("list_report_sections",
		mcp.WithDescription("List the collapsible sections of the portfolio analytics report, in display order."),
	)
}

// ListSectionsHandler returns the fixed section names.
func ListSectionsHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(map[string][]string{"sections": disclosure.Sections})
	}
}

type versionResult struct {
	config.VersionInfo
	Symbols int `json:"symbols"`
}

// VersionTool returns the get_version tool definition.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get OptiWealth portal version and status. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports build metadata and the loaded symbol count.
func VersionToolHandler(index *symbols.Index) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(versionResult{VersionInfo: config.GetVersionInfo(), Symbols: index.Len()})
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal result"), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
	}, nil
}

// errorResult creates an MCP error result.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
