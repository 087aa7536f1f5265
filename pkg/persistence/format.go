package persistence

import (
	"fmt"
	"strings"

	"scicontent/pkg/utils"
)

const minUserWidth = 10

// FormatSummaries renders sessions as the fixed-width table printed by
// `sessions list`.
func FormatSummaries(summaries []*Summary) string {
	if len(summaries) == 0 {
		return "No sessions found."
	}

	userWidth := minUserWidth
	for _, s := range summaries {
		if n := len([]rune(s.UserID)); n > userWidth {
			userWidth = n
		}
	}

	rule := strings.Repeat("=", 100)
	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "%-40s %-*s %-10s %-20s\n", "Session ID", userWidth, "User", "Messages", "Last Updated")
	b.WriteString(rule + "\n")
	for _, s := range summaries {
		user := s.UserID
		if user == "" {
			user = "Unknown"
		}
		fmt.Fprintf(&b, "%-40s %-*s %-10d %-20s\n",
			utils.Truncate(s.ID, 40), userWidth, user, s.MessageCount,
			s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	b.WriteString(rule + "\n")
	return b.String()
}
