package gateway

// chatResponseSchema constrains chat replies to the structured action format:
// a message, a list of complete-file operations, and optional commands.
func chatResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"message": map[string]interface{}{
				"type":        "string",
				"description": "A friendly, creative response to the user describing what you did.",
			},
			"files": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"operation": map[string]interface{}{
							"type": "string",
							"enum": []string{"create", "update", "delete"},
						},
						"path": map[string]interface{}{
							"type":        "string",
							"description": "File path, e.g., 'src/App.js'",
						},
						"code": map[string]interface{}{
							"type":        "string",
							"description": "The COMPLETE file content. Do not use placeholders.",
						},
					},
					"required": []string{"operation", "path", "code"},
				},
			},
			"commands": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Optional terminal commands to run.",
			},
		},
		"required": []string{"message", "files"},
	}
}
