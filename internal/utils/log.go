package utils

import (
	"fmt"
	"strings"
)

// TruncateForLog flattens s onto one line and cuts it to limit runes, noting how
// much was dropped. Prompts and model replies are multi-line; log previews are not.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return fmt.Sprintf("%s... (+%d chars)", string(runes[:limit]), len(runes)-limit)
}
