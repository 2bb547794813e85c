package readmodel

import (
	"fmt"

	"github.com/capstonehub/notify/pkg/client/rest"
)

const (
	listKeyPrefix = "notifications:list:"
	counterKey    = "notifications:unread-count"
)

// listKey builds the cache key for one list query. Queries are normalized
// first so equivalent filters share an entry.
func listKey(q rest.ListQuery) string {
	q = q.Normalize()
	return fmt.Sprintf("%sp%d:s%d:k%s", listKeyPrefix, q.PageNumber, q.PageSize, q.Keyword)
}
