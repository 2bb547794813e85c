package readmodel

import (
	"log"
	"time"

	"github.com/capstonehub/notify/pkg/client/cache"
	"github.com/capstonehub/notify/pkg/client/hub"
	"github.com/capstonehub/notify/pkg/events"
)

// Reconciler translates push events into deterministic mutations of the two
// cached read models: the notification list and the unread counter. It never
// makes a network round-trip; any drift it accumulates is corrected by the
// authoritative unread-count event or the next pull.
//
// The reconciler and the mutation methods on Notifications are the only
// writers of notification cache keys.
type Reconciler struct {
	store  *cache.Store
	logger *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store *cache.Store) *Reconciler {
	return &Reconciler{store: store, logger: log.Default(), now: time.Now}
}

// Bind subscribes the reconciler to every event the hub delivers and returns
// a func that removes all subscriptions.
func (r *Reconciler) Bind(ev *hub.Events) func() {
	unsubs := []func(){
		ev.OnNotification(r.HandleArrival),
		ev.OnUnreadCount(r.HandleUnreadCount),
		ev.OnMarkedAsRead(r.HandleMarkedAsRead),
		ev.OnAllMarkedAsRead(r.HandleAllMarkedAsRead),
		ev.OnBulkCreated(r.HandleBulkCreated),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// HandleArrival prepends the notification to every cached first page,
// lazy-creating the default entry when nothing is cached, bumps total record
// counts, and increments the unread counter iff the arrival is unread.
func (r *Reconciler) HandleArrival(n events.Notification) {
	defer r.contain("arrival")

	keys := r.store.KeysWithPrefix(listKeyPrefix)
	if len(keys) == 0 {
		r.store.Set(listKey(defaultQuery), newSingletonPage(n), listTTL)
	} else {
		for _, key := range keys {
			v, ttl, ok := r.store.GetWithTTL(key)
			if !ok {
				continue
			}
			page, ok := asPage(v)
			if !ok {
				r.logger.Printf("[Reconciler] unexpected cache shape at %s, dropping entry", key)
				r.store.Delete(key)
				continue
			}
			next := clonePage(page)
			next.TotalRecords++
			if next.PageNumber == 1 {
				next.Items = append([]events.Notification{n}, next.Items...)
			}
			r.store.Set(key, next, ttl)
		}
	}

	if n.IsRead {
		return
	}
	if v, ttl, ok := r.store.GetWithTTL(counterKey); ok {
		if count, ok := v.(int); ok {
			r.store.Set(counterKey, count+1, ttl)
		}
	}
}

// HandleUnreadCount overwrites the counter with the server truth, coerced to
// a non-negative value. This is the reconciliation mechanism for any drift
// between incremental updates and the server.
func (r *Reconciler) HandleUnreadCount(count int) {
	defer r.contain("unread-count")

	if count < 0 {
		count = 0
	}
	r.store.Set(counterKey, count, counterTTL)
}

// HandleMarkedAsRead flips the matching cached entry, if any, and decrements
// the counter floored at zero. A miss in the cached pages is not an error;
// the item may simply live on a page that was never fetched.
func (r *Reconciler) HandleMarkedAsRead(id int64) {
	defer r.contain("marked-as-read")

	now := r.now()
	for _, key := range r.store.KeysWithPrefix(listKeyPrefix) {
		v, ttl, ok := r.store.GetWithTTL(key)
		if !ok {
			continue
		}
		page, ok := asPage(v)
		if !ok {
			continue
		}
		for i := range page.Items {
			if page.Items[i].ID != id {
				continue
			}
			next := clonePage(page)
			if !next.Items[i].IsRead {
				next.Items[i].IsRead = true
				next.Items[i].ReadAt = &now
			}
			r.store.Set(key, next, ttl)
			break
		}
	}

	if v, ttl, ok := r.store.GetWithTTL(counterKey); ok {
		if count, ok := v.(int); ok {
			if count--; count < 0 {
				count = 0
			}
			r.store.Set(counterKey, count, ttl)
		}
	}
}

// HandleAllMarkedAsRead flips every cached entry and pins the counter at
// exactly zero. Applying it twice yields the same state as once.
func (r *Reconciler) HandleAllMarkedAsRead() {
	defer r.contain("all-marked-as-read")

	now := r.now()
	for _, key := range r.store.KeysWithPrefix(listKeyPrefix) {
		v, ttl, ok := r.store.GetWithTTL(key)
		if !ok {
			continue
		}
		page, ok := asPage(v)
		if !ok {
			continue
		}
		next := clonePage(page)
		for i := range next.Items {
			if !next.Items[i].IsRead {
				next.Items[i].IsRead = true
				next.Items[i].ReadAt = &now
			}
		}
		r.store.Set(key, next, ttl)
	}

	r.store.Set(counterKey, 0, counterTTL)
}

// HandleBulkCreated does not attempt an incremental merge; bulk payloads can
// be large and mostly out of view. Both read models are invalidated so the
// next read pulls from the server.
func (r *Reconciler) HandleBulkCreated(count int) {
	defer r.contain("bulk-created")

	r.store.DeleteWithPrefix(listKeyPrefix)
	r.store.Delete(counterKey)
}

// contain keeps a handler failure from propagating into the hub read loop or
// sibling handlers.
func (r *Reconciler) contain(handler string) {
	if rec := recover(); rec != nil {
		r.logger.Printf("[Reconciler] %s handler failed: %v", handler, rec)
	}
}
