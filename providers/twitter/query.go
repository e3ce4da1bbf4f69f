package twitter

import "strings"

// maxQueryLen is the recent search query length limit.
const maxQueryLen = 512

// BuildQueries packs account terms into as few "from:a OR from:b" queries
// as fit under the length limit. Order of accounts is preserved.
func BuildQueries(accounts []string, maxLen int) []string {
	var (
		queries []string
		current strings.Builder
	)
	for _, account := range accounts {
		if account == "" {
			continue
		}
		term := "from:" + account
		if current.Len() == 0 {
			current.WriteString(term)
			continue
		}
		if current.Len()+len(" OR ")+len(term) > maxLen {
			queries = append(queries, current.String())
			current.Reset()
			current.WriteString(term)
			continue
		}
		current.WriteString(" OR ")
		current.WriteString(term)
	}
	if current.Len() > 0 {
		queries = append(queries, current.String())
	}
	return queries
}
