package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/novalabs/nova/pkg/live"
	"github.com/novalabs/nova/pkg/memory"
)

// SaveKnowledgeDef is the declaration for the built-in save_knowledge tool.
// The model calls it to persist a fact the user asked it to remember.
var SaveKnowledgeDef = live.ToolDefinition{
	Name:        "save_knowledge",
	Description: "Saves a piece of information to the user's long-term knowledge base. Use when the user asks you to remember something.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fact": map[string]any{
				"type":        "string",
				"description": "The fact to remember, phrased as a standalone statement.",
			},
		},
		"required": []string{"fact"},
	},
}

// RegisterSaveKnowledge registers the save_knowledge tool backed by store.
func RegisterSaveKnowledge(r *Registry, store memory.KnowledgeStore) error {
	return r.Register(SaveKnowledgeDef, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		fact, _ := args["fact"].(string)
		if fact == "" {
			return nil, fmt.Errorf("save_knowledge: missing fact argument")
		}
		err := store.SaveFact(ctx, memory.Fact{
			ID:        uuid.NewString(),
			Text:      fact,
			Timestamp: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("save_knowledge: %w", err)
		}
		return map[string]any{"result": "Saved."}, nil
	})
}
