package mysql

import "strings"

// stringOrDash returns "-" when the input is empty/whitespace. Requester
// ids come from the URL and may be blank in internal submissions; the
// audits table column is NOT NULL.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
