// Package mcpcontract documents the tool surface an out-of-scope MCP
// transport (stdio + tool registry, §1) would expose over this module's
// Context/Recall/Reflect/Remember/Indexer/Embeddings operations. It is
// contract-only: typed tool descriptors and request/response shapes with no
// dependency on a transport library, so a future server package can wrap
// these operations without this package pulling in mark3labs/mcp-go or
// modelcontextprotocol/go-sdk for a component §1 explicitly scopes out.
package mcpcontract

// ToolName is one of the fixed set of tool identifiers the MCP surface
// registers.
type ToolName string

const (
	ToolGetRelevantContext   ToolName = "get_relevant_context"
	ToolRecall               ToolName = "recall"
	ToolRemember             ToolName = "remember"
	ToolReflect              ToolName = "reflect"
	ToolIndexWorkspace       ToolName = "index_workspace"
	ToolStats                ToolName = "stats"
	ToolResolveContradiction ToolName = "resolve_contradiction"
	ToolRestoreArchived      ToolName = "restore_archived"
)

// ToolDescriptor is the static shape an MCP tool-registry entry needs: a
// name, a human description (the §4.2 "owner" config value is typically
// interpolated into this by the server), and whether the tool can mutate
// the store (used by a transport layer to decide confirmation prompts).
type ToolDescriptor struct {
	Name        ToolName
	Description string
	Mutates     bool
}

// Registry lists every tool this module's operations support, in the
// order the teacher's MCP tool-family files grouped them (one family per
// file): context retrieval, search, maintenance, write operations.
var Registry = []ToolDescriptor{
	{
		Name:        ToolGetRelevantContext,
		Description: "Return a token-budgeted, ranked context block relevant to a message, with provenance annotations.",
		Mutates:     false,
	},
	{
		Name:        ToolRecall,
		Description: "Run a precision full-text search over the memory index with optional date/type/confidence filters.",
		Mutates:     false,
	},
	{
		Name:        ToolRemember,
		Description: "Append a tagged fact/decision/preference line to today's (or a given date's) session log and index it immediately.",
		Mutates:     true,
	},
	{
		Name:        ToolReflect,
		Description: "Run the maintenance cycle: confidence decay, reinforcement, staleness marking, contradiction detection, pruning, and entity index rebuild.",
		Mutates:     true,
	},
	{
		Name:        ToolIndexWorkspace,
		Description: "(Re)index the workspace's markdown files into chunks.",
		Mutates:     true,
	},
	{
		Name:        ToolStats,
		Description: "Report chunk/file/entity counts and embedding coverage for the workspace's memory index.",
		Mutates:     false,
	},
	{
		Name:        ToolResolveContradiction,
		Description: "Mark a detected contradiction resolved, optionally demoting the losing chunk to outdated.",
		Mutates:     true,
	},
	{
		Name:        ToolRestoreArchived,
		Description: "Restore a pruned, archived chunk as a new live chunk.",
		Mutates:     true,
	},
}

// GetRelevantContextRequest mirrors cil.Options plus the message argument,
// the shape an MCP handler would decode from a JSON tool call.
type GetRelevantContextRequest struct {
	Message             string   `json:"message"`
	ConversationContext []string `json:"conversationContext,omitempty"`
	FlagContradictions  bool     `json:"flagContradictions,omitempty"`
	MaxTokens           int      `json:"maxTokens,omitempty"`
}

// RecallRequest mirrors recall.Options plus the query argument.
type RecallRequest struct {
	Query         string  `json:"query"`
	Since         string  `json:"since,omitempty"`
	ChunkType     string  `json:"chunkType,omitempty"`
	MinConfidence float64 `json:"minConfidence,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	Context       int     `json:"context,omitempty"`
	IncludeStale  bool    `json:"includeStale,omitempty"`
}

// RememberRequest mirrors remember.Remember's arguments.
type RememberRequest struct {
	Content string `json:"content"`
	Tag     string `json:"tag,omitempty"`
	Date    string `json:"date,omitempty"`
}

// ReflectRequest mirrors reflect.Run's dryRun argument.
type ReflectRequest struct {
	DryRun bool `json:"dryRun,omitempty"`
}

// ErrorPayload is what any handler failure becomes before being returned
// to the MCP client, per §7: "the MCP tool wraps each handler so that any
// unexpected error becomes a text error payload with isError: true rather
// than terminating the server."
type ErrorPayload struct {
	IsError bool   `json:"isError"`
	Text    string `json:"text"`
}

// WrapError builds the §7-mandated error payload for any handler failure.
func WrapError(err error) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	return ErrorPayload{IsError: true, Text: err.Error()}
}
