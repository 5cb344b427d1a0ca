package authz

import "strings"

// splitCSV and joinCSV store Scopes/Environments as a simple comma list —
// there are never more than a handful per token, so a real column table
// would be pure overhead.
func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(vs []string) string {
	return strings.Join(vs, ",")
}
