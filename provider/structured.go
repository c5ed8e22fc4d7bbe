package provider

import (
	"encoding/json"
	"strings"

	"agentcore/model"
)

// parseStructured decodes a structured-output reply.
func parseStructured(op, content string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &v); err != nil {
		return nil, &model.Error{Kind: model.KindMalformedStructuredOutput, Op: op, Msg: truncate(content, 200), Err: err}
	}
	return v, nil
}

// wrapResultsSchema nests a schema under a required "results" property, since
// json_schema response formats must describe an object.
func wrapResultsSchema(schema json.RawMessage) map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name": "default",
			"schema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"results": schema,
				},
				"required": []string{"results"},
			},
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
