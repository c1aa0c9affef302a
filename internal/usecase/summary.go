package usecase

import (
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// FormatSummary renders the human-readable check summary printed to stdout.
func FormatSummary(diff domain.DiffResult) string {
	var sb strings.Builder
	sb.WriteString("\n🚨 Integrity Check Summary 🚨\n")

	writeSection(&sb, "🟠 Modified Files", "🔸", diff.Modified)
	writeSection(&sb, "🟢 New Files", "🟩", diff.Added)
	writeSection(&sb, "🔴 Deleted Files", "❌", diff.Deleted)

	if !diff.HasChanges() {
		sb.WriteString("\n✅ No unauthorized changes detected.\n")
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, title, bullet string, paths []string) {
	if len(paths) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("%s (%d):\n", title, len(paths)))
	for _, p := range paths {
		sb.WriteString(fmt.Sprintf("    %s %s\n", bullet, p))
	}
}

// AlertMessages returns the ALERT event messages for a diff, in emission order.
// It is empty when nothing changed.
func AlertMessages(diff domain.DiffResult) []string {
	if !diff.HasChanges() {
		return nil
	}

	msgs := []string{"Unauthorized changes detected!"}
	if len(diff.Modified) > 0 {
		msgs = append(msgs, "Modified Files: "+strings.Join(diff.Modified, ", "))
	}
	if len(diff.Added) > 0 {
		msgs = append(msgs, "New Files: "+strings.Join(diff.Added, ", "))
	}
	if len(diff.Deleted) > 0 {
		msgs = append(msgs, "Deleted Files: "+strings.Join(diff.Deleted, ", "))
	}
	return msgs
}
