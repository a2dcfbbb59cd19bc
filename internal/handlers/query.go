package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/wintent/plugin-config/pkg/errors"
	"github.com/wintent/plugin-config/pkg/response"
)

// parseIntQuery reads a positive integer query value, returning fallback when absent.
func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return parsed, nil
}

// parseFilter decodes the filter query parameter. Both filter={"title":"x"} and
// filter[title]=x are accepted.
func parseFilter(c *gin.Context) (map[string]any, error) {
	filter := map[string]any{}
	if raw := strings.TrimSpace(c.Query("filter")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			return nil, err
		}
		if filter == nil {
			filter = map[string]any{}
		}
	}
	for key, value := range c.QueryMap("filter") {
		filter[key] = value
	}
	return filter, nil
}

// stringCondition reads value as an equality condition: a plain string or {"$eq": string}.
func stringCondition(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case map[string]any:
		if len(v) != 1 {
			return "", false
		}
		eq, ok := v["$eq"].(string)
		return eq, ok
	default:
		return "", false
	}
}

// requireAction guards a "resource:action" route. Gin binds the text after the
// resource name to a wildcard named after the action, so any other suffix is a 404.
func requireAction(c *gin.Context, action string) bool {
	if c.Param(action) == ":"+action {
		return true
	}
	response.Error(c, appErrors.New(
		appErrors.ErrNotFound.Code,
		fmt.Sprintf("route %s not found", c.Request.URL.Path),
		http.StatusNotFound,
	))
	return false
}
