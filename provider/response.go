package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoContent = errors.New("response carries no text")

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if msg := apiErrorMessage(raw); msg != "" {
		return "", fmt.Errorf("API error: %s", msg)
	}

	// OpenAI chat format: choices[0].message.content
	if text, ok := choiceContent(raw["choices"]); ok {
		return text, nil
	}

	// DashScope: output.text or output.choices[0].message.content
	if output, ok := raw["output"].(map[string]any); ok {
		if text, ok := output["text"].(string); ok {
			return text, nil
		}
		if text, ok := choiceContent(output["choices"]); ok {
			return text, nil
		}
	}

	// Zhipu: data.choices[0].content, a JSON-quoted string
	if data, ok := raw["data"].(map[string]any); ok {
		if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]any); ok {
				if content, ok := choice["content"].(string); ok {
					return unquoteZhipu(content), nil
				}
			}
		}
	}

	return "", fmt.Errorf("%w: %s", errNoContent, truncate(string(body), 300))
}

func choiceContent(v any) (string, bool) {
	choices, ok := v.([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}

// apiErrorMessage returns the error reported inside a response body, if any.
func apiErrorMessage(raw map[string]any) string {
	if errObj, ok := raw["error"]; ok && errObj != nil {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return msg
			}
		}
		return fmt.Sprint(errObj)
	}
	// Zhipu reports failures with success=false and a msg field.
	if success, ok := raw["success"].(bool); ok && !success {
		if msg, ok := raw["msg"].(string); ok {
			return msg
		}
		return "request was not successful"
	}
	// DashScope reports failures with code and message fields.
	if code, ok := raw["code"].(string); ok && code != "" {
		if msg, ok := raw["message"].(string); ok {
			return code + ": " + msg
		}
		return code
	}
	return ""
}

// statusMessage builds the description of a non-2xx response.
func statusMessage(status string, body []byte) string {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		if msg := apiErrorMessage(raw); msg != "" {
			return status + ": " + msg
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return status + ": " + truncate(text, 300)
	}
	return status
}

func unquoteZhipu(s string) string {
	var out string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
