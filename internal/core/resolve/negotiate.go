package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/repset/repset/internal/catalog"
	"github.com/repset/repset/internal/llm"
)

// Negotiation outcome paths.
const (
	PathSemantic  = "semantic"
	PathLexical   = "lexical"
	PathLLMSelect = "llm_select"
	PathLLMCreate = "llm_create"
)

const defaultSearchBound = 2

var negotiationTools = []llm.Tool{
	{
		Name:        "search_catalog",
		Description: "Search the exercise catalog by name. Returns up to 10 candidate exercises with their ids.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Exercise name or partial name to search for."}
			},
			"required": ["query"]
		}`),
	},
	{
		Name:        "select_exercise",
		Description: "Select an existing catalog exercise as the match for the mentioned name. Terminal.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"exercise_id": {"type": "string", "description": "The id of the chosen catalog exercise."}
			},
			"required": ["exercise_id"]
		}`),
	},
	{
		Name:        "create_exercise",
		Description: "Create a new catalog exercise because no existing one matches. Terminal.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Canonical display name for the new exercise."},
				"tags": {"type": "array", "items": {"type": "string"}, "description": "Optional equipment or movement tags."}
			},
			"required": ["name"]
		}`),
	},
}

const negotiationSystem = `You match free-text exercise names from workout logs to a catalog of exercises.
You are given the mentioned name and an initial list of candidate exercises from the catalog.
Decide which candidate the name refers to, accounting for abbreviations (bb = barbell, db = dumbbell,
ohp = overhead press, rdl = romanian deadlift) and spelling variants.
Use search_catalog if the initial candidates look wrong. Call select_exercise only on a true match:
abbreviation or modifier differences are fine, but different equipment or a fundamentally different
movement is not. When in doubt, call create_exercise with a clean canonical name. A near-duplicate
entry is cheap to review later; a wrong match silently corrupts the user's history.
Always finish with exactly one select_exercise or create_exercise call. Never invent exercise ids.`

type searchArgs struct {
	Query string `json:"query"`
}

type selectArgs struct {
	ExerciseID string `json:"exercise_id"`
}

type createArgs struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// negotiator runs the bounded tool conversation that resolves one name when
// neither semantic nor lexical matching was conclusive. It owns the loop and
// the search budget; the model only ever sees one turn at a time.
type negotiator struct {
	llm         llm.ToolClient
	catalog     catalog.Accessor
	creator     *Creator
	searchBound int
	maxTurns    int
	logger      *slog.Logger
}

func newNegotiator(client llm.ToolClient, accessor catalog.Accessor, creator *Creator, searchBound int, logger *slog.Logger) *negotiator {
	if searchBound <= 0 {
		searchBound = defaultSearchBound
	}
	return &negotiator{
		llm:         client,
		catalog:     accessor,
		creator:     creator,
		searchBound: searchBound,
		maxTurns:    searchBound + 3,
		logger:      logger,
	}
}

func (n *negotiator) resolve(ctx context.Context, name string, candidates []catalog.Entry) (catalog.Entry, string, error) {
	req := llm.Request{
		System:      negotiationSystem,
		Prompt:      negotiationPrompt(name, candidates),
		Tier:        llm.TierDeep,
		Temperature: 0,
	}

	var msgs []llm.Message
	searches := 0

	for turn := 0; turn < n.maxTurns; turn++ {
		reply, err := n.llm.ChatWithTools(ctx, req, msgs, negotiationTools)
		if err != nil {
			// Transport failure, not a negotiation outcome.
			return catalog.Entry{}, "", &UpstreamError{Name: name, Err: err}
		}
		msgs = append(msgs, reply)

		if len(reply.ToolCalls) == 0 {
			return catalog.Entry{}, "", fmt.Errorf("negotiation for %q ended without a tool call", name)
		}

		// One call per turn; extras are ignored rather than executed.
		call := reply.ToolCalls[0]
		switch call.Name {
		case "select_exercise":
			var args selectArgs
			if err := json.Unmarshal(call.Args, &args); err != nil {
				return catalog.Entry{}, "", fmt.Errorf("negotiation for %q: bad select_exercise args: %w", name, err)
			}
			entry, err := n.catalog.FindByID(ctx, args.ExerciseID)
			if err != nil {
				return catalog.Entry{}, "", fmt.Errorf("negotiation for %q selected unknown exercise %q: %w", name, args.ExerciseID, err)
			}
			return entry, PathLLMSelect, nil

		case "create_exercise":
			var args createArgs
			if err := json.Unmarshal(call.Args, &args); err != nil {
				return catalog.Entry{}, "", fmt.Errorf("negotiation for %q: bad create_exercise args: %w", name, err)
			}
			if strings.TrimSpace(args.Name) == "" {
				args.Name = name
			}
			entry, err := n.creator.CreateEntry(ctx, args.Name, args.Tags)
			if err != nil {
				return catalog.Entry{}, "", fmt.Errorf("negotiation for %q: create failed: %w", name, err)
			}
			return entry, PathLLMCreate, nil

		case "search_catalog":
			msgs = append(msgs, n.runSearch(ctx, call, name, &searches))

		default:
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("unknown tool %q", call.Name),
				IsError:    true,
			})
		}
	}

	return catalog.Entry{}, "", fmt.Errorf("negotiation for %q exhausted %d turns without a decision", name, n.maxTurns)
}

func (n *negotiator) runSearch(ctx context.Context, call llm.ToolCall, name string, searches *int) llm.Message {
	if *searches >= n.searchBound {
		return llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    "search limit reached; choose select_exercise or create_exercise",
			IsError:    true,
		}
	}
	*searches++

	var args searchArgs
	if err := json.Unmarshal(call.Args, &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    "search_catalog requires a non-empty query string",
			IsError:    true,
		}
	}

	results, err := n.catalog.SearchLexical(ctx, args.Query, 10)
	if err != nil {
		n.logger.Warn("catalog search during negotiation failed", "name", name, "query", args.Query, "error", err)
		return llm.Message{
			Role:       llm.RoleTool,
			ToolCallID: call.ID,
			Content:    "catalog search failed",
			IsError:    true,
		}
	}
	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		Content:    formatCandidates(results),
	}
}

func negotiationPrompt(name string, candidates []catalog.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mentioned exercise name: %q\n\n", name)
	if len(candidates) == 0 {
		b.WriteString("Initial catalog candidates: none found.\n")
	} else {
		b.WriteString("Initial catalog candidates:\n")
		b.WriteString(formatCandidates(candidates))
	}
	return b.String()
}

func formatCandidates(entries []catalog.Entry) string {
	if len(entries) == 0 {
		return "no results"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- id=%s name=%q", e.ID, e.Name)
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, " tags=%s", strings.Join(e.Tags, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}
