package session

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// extractTag pulls the content of the first <tag>...</tag> pair out of a
// model response. A missing or empty tag is a validation failure and the
// call gets retried.
func extractTag(text, tag string) (string, error) {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("response is missing <%s> tag", tag)
	}

	content := strings.TrimSpace(m[1])
	if content == "" {
		return "", fmt.Errorf("response has empty <%s> tag", tag)
	}

	return content, nil
}

type plannerResponse struct {
	Options []string `json:"options"`
}

// parsePlannerOptions decodes the plot planner JSON body, tolerating a
// markdown code fence around it.
func parsePlannerOptions(content string) ([]string, error) {
	body := strings.TrimSpace(content)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	var resp plannerResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("planner output is not valid JSON: %w", err)
	}

	options := make([]string, 0, len(resp.Options))
	for _, opt := range resp.Options {
		if trimmed := strings.TrimSpace(opt); trimmed != "" {
			options = append(options, trimmed)
		}
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("planner output has no options")
	}

	return options, nil
}
