// Package readmodel exposes the two cached notification read models (list
// and unread counter) plus their write operations, and the reconciler that
// keeps them in step with the push channel.
package readmodel

import (
	"context"
	"sort"
	"time"

	"github.com/capstonehub/notify/pkg/client/cache"
	"github.com/capstonehub/notify/pkg/client/rest"
	"github.com/capstonehub/notify/pkg/events"
)

// Freshness windows. The counter relies primarily on push updates, so its
// pull result goes stale much faster than the list's.
const (
	listTTL    = 30 * time.Second
	counterTTL = 5 * time.Second
)

// defaultQuery is the entry the reconciler lazy-creates when an arrival
// lands before any list was ever fetched.
var defaultQuery = rest.ListQuery{}.Normalize()

// Notifications serves the cached read models, falling back to the REST
// client when an entry is missing or stale. Neither read auto-polls.
type Notifications struct {
	api   *rest.Client
	store *cache.Store
}

// New creates the read-model service over the given transport and store.
func New(api *rest.Client, store *cache.Store) *Notifications {
	return &Notifications{api: api, store: store}
}

// List returns one page of notifications, from cache when fresh.
func (s *Notifications) List(ctx context.Context, q rest.ListQuery) (*rest.NotificationPage, error) {
	key := listKey(q)
	if v, ok := s.store.Get(key); ok {
		if page, ok := asPage(v); ok {
			return page, nil
		}
		s.store.Delete(key)
	}

	page, err := s.api.ListNotifications(ctx, q)
	if err != nil {
		return nil, err
	}
	s.store.Set(key, page, listTTL)
	return page, nil
}

// UnreadCount returns the unread total, from cache when fresh.
func (s *Notifications) UnreadCount(ctx context.Context) (int, error) {
	if v, ok := s.store.Get(counterKey); ok {
		if count, ok := v.(int); ok {
			return count, nil
		}
		s.store.Delete(counterKey)
	}

	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		return 0, err
	}
	if count < 0 {
		count = 0
	}
	s.store.Set(counterKey, count, counterTTL)
	return count, nil
}

// MarkRead marks one notification as read on the server, then invalidates
// both read models so the next read converges to server truth. On failure
// the cache is left untouched; there is no optimistic flip to roll back.
func (s *Notifications) MarkRead(ctx context.Context, id int64) error {
	if err := s.api.MarkRead(ctx, id); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// MarkAllRead marks everything read on the server, then invalidates both
// read models.
func (s *Notifications) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops both cached read models.
func (s *Notifications) Invalidate() {
	s.store.DeleteWithPrefix(listKeyPrefix)
	s.store.Delete(counterKey)
}

// SortForDisplay orders notifications the way the bell panel shows them:
// unread first, then newest created first. The cache itself only maintains
// insertion order with head-insert for arrivals.
func SortForDisplay(items []events.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsRead != items[j].IsRead {
			return !items[i].IsRead
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// newSingletonPage builds the lazy-initialized first page holding just n.
func newSingletonPage(n events.Notification) *rest.NotificationPage {
	return &rest.NotificationPage{
		Items:        []events.Notification{n},
		TotalRecords: 1,
		PageNumber:   defaultQuery.PageNumber,
		PageSize:     defaultQuery.PageSize,
	}
}

func asPage(v any) (*rest.NotificationPage, bool) {
	page, ok := v.(*rest.NotificationPage)
	return page, ok
}

// clonePage copies a page before mutation. Cached pages are shared between
// the hub goroutine and readers, so mutations go copy-on-write.
func clonePage(p *rest.NotificationPage) *rest.NotificationPage {
	next := *p
	next.Items = make([]events.Notification, len(p.Items))
	copy(next.Items, p.Items)
	return &next
}
