// Package tools models the Task Manager's shopping auto-injection
// actions as MCP-style tool-call descriptors, reusing mark3labs/mcp-go's
// tool/request shapes so the engine-facing action surface looks like any
// other MCP tool call (spec §4.3 "Shopping task auto-injection").
package tools

import (
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// NewDetectLocationCall builds the CallToolRequest the Task Manager
// forwards as the first auto-injected action.
func NewDetectLocationCall() mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "detect_location"
	return req
}

// NewFindBestWebsiteCall builds the CallToolRequest the Task Manager
// forwards as the second auto-injected action.
func NewFindBestWebsiteCall(task string) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "find_best_website"
	req.Params.Arguments = map[string]any{
		"purpose":  task,
		"category": "shopping",
	}
	return req
}

// ShoppingPlan returns the two auto-injected tool calls as engine
// actions: detect_location followed by find_best_website.
func ShoppingPlan(task string) []ToolAction {
	return []ToolAction{
		fromCall(NewDetectLocationCall()),
		fromCall(NewFindBestWebsiteCall(task)),
	}
}

// ToolAction is the plain name/params shape the Task Manager converts
// into an agentclient.Action, keeping this package free of a dependency
// on its parent package.
type ToolAction struct {
	Name   string
	Params map[string]any
}

func fromCall(req mcp.CallToolRequest) ToolAction {
	return ToolAction{Name: req.Params.Name, Params: req.Params.Arguments}
}

// Shopping keyword set (spec §6 glossary). Kept as compiled word-boundary
// patterns so short keywords like "shop" don't match inside longer words
// such as "shopkeeper".
var (
	transactionVerbs = compileWords("buy", "purchase", "shop", "order", "get me", "find me")
	priceTerms       = compileWords("price", "cost", "best deal", "cheapest")
	productNouns     = compileWords("laptop", "phone", "headphones", "camera", "watch", "shoes", "clothes")
	marketplaceTerms = compileWords("ecommerce", "online store", "marketplace")
)

func compileWords(words ...string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// IsShoppingTask reports whether task matches the shopping keyword set
// (case-insensitive, whole-word match for every class; a keyword that only
// appears inside a longer word does not count).
func IsShoppingTask(task string) bool {
	return transactionVerbs.MatchString(task) ||
		priceTerms.MatchString(task) ||
		productNouns.MatchString(task) ||
		marketplaceTerms.MatchString(task)
}
