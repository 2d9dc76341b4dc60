// Package notify delivers the per-run summary to a push channel.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Entry is one account's outcome as shown in a notification.
type Entry struct {
	Account string
	Success bool
	Message string
}

// Summary returns the one-line run summary.
func Summary(total, succeeded int) string {
	return fmt.Sprintf("accounts: %d, succeeded: %d, failed: %d", total, succeeded, total-succeeded)
}

// Title returns the notification title for now.
func Title(now time.Time) string {
	return fmt.Sprintf("🏃 %s steps", now.Format("01-02 15:04"))
}

// Compose renders the markdown body. With limit or more entries the per-account
// list is replaced by a placeholder.
func Compose(entries []Entry, summary string, limit int) string {
	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\n")
	if len(entries) >= limit {
		b.WriteString("⚠️ too many accounts to list; see the run log for details")
		return b.String()
	}
	b.WriteString("### Results\n")
	for _, e := range entries {
		if e.Success {
			fmt.Fprintf(&b, "- ✅ %s: succeeded\n  response: %s\n", e.Account, e.Message)
		} else {
			fmt.Fprintf(&b, "- ❌ %s: failed\n  reason: %s\n", e.Account, e.Message)
		}
	}
	return b.String()
}
