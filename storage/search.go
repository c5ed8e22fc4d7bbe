package storage

import (
	"context"
	"strings"
	"time"

	"agentcore/model"
)

// Reader is the read side of an agent store.
type Reader interface {
	Get(ctx context.Context, id string) (model.AgentState, bool, error)
	List(ctx context.Context) ([]string, error)
}

// MessageMatch is a stored message matching a search query.
type MessageMatch struct {
	AgentID      string
	ContextID    string
	MessageIndex int
	Role         string
	Content      string
	Preview      string
	Timestamp    time.Time
}

// SearchMessages scans the history of every stored agent for query, case
// insensitively. System and tool messages are skipped.
func SearchMessages(ctx context.Context, store Reader, query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	ids, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for _, id := range ids {
		st, ok, err := store.Get(ctx, id)
		if err != nil || !ok {
			continue
		}

		for contextID, msgs := range st.Messages {
			for i, msg := range msgs {
				if msg.Role == model.RoleSystem || msg.Role == model.RoleTool {
					continue
				}
				if !strings.Contains(strings.ToLower(msg.Content), queryLower) {
					continue
				}

				preview := msg.Content
				if len(preview) > 100 {
					preview = preview[:100] + "..."
				}
				matches = append(matches, MessageMatch{
					AgentID:      id,
					ContextID:    contextID,
					MessageIndex: i,
					Role:         msg.Role,
					Content:      msg.Content,
					Preview:      preview,
					Timestamp:    msg.Timestamp,
				})
			}
		}
	}

	return matches, nil
}
