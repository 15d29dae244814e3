package query

import (
	"context"
	"sync"
	"time"
)

type Page[T any] struct {
	Items []T
	Total int
	Skip  int
	Limit int
}

type PageFetcher[T any] func(ctx context.Context, skip, limit int) (Page[T], error)

type Status int

const (
	StatusPending Status = iota
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "pending"
	}
}

type fetchKind int

const (
	fetchNone fetchKind = iota
	fetchFirst
	fetchNext
	fetchRefetch
)

// Infinite is a paged query whose pages are fetched one at a time and
// concatenated in fetch order. At most one fetch is in flight per query.
type Infinite[T any] struct {
	ctx   context.Context
	fetch PageFetcher[T]
	limit int
	opts  Options
	now   func() time.Time

	mu         sync.Mutex
	pages      []Page[T]
	err        error
	status     Status
	inFlight   fetchKind
	done       chan struct{}
	updatedAt  time.Time
	lastUsedAt time.Time
	subs       map[int]func()
	nextSubID  int
}

type InfiniteSnapshot[T any] struct {
	Pages              []Page[T]
	Status             Status
	Err                error
	IsFetching         bool
	IsFetchingNextPage bool
	IsRefetching       bool
	HasNextPage        bool
	UpdatedAt          time.Time
}

func (s InfiniteSnapshot[T]) Items() []T {
	n := 0
	for _, p := range s.Pages {
		n += len(p.Items)
	}
	items := make([]T, 0, n)
	for _, p := range s.Pages {
		items = append(items, p.Items...)
	}
	return items
}

func (s InfiniteSnapshot[T]) HasData() bool {
	return len(s.Pages) > 0
}

// IsLoading is true while the first page is being fetched and nothing is cached yet.
func (s InfiniteSnapshot[T]) IsLoading() bool {
	return !s.HasData() && s.IsFetching
}

func NewInfinite[T any](ctx context.Context, limit int, fetch PageFetcher[T], opts Options) *Infinite[T] {
	return newInfinite(ctx, limit, fetch, opts, time.Now)
}

func newInfinite[T any](ctx context.Context, limit int, fetch PageFetcher[T], opts Options, now func() time.Time) *Infinite[T] {
	return &Infinite[T]{
		ctx:        ctx,
		fetch:      fetch,
		limit:      limit,
		opts:       opts,
		now:        now,
		lastUsedAt: now(),
		subs:       make(map[int]func()),
	}
}

// Start fetches the first page when nothing is cached, or refetches when
// the cached pages are stale. It reports whether a fetch was started.
func (q *Infinite[T]) Start() bool {
	q.mu.Lock()
	q.lastUsedAt = q.now()
	if q.inFlight != fetchNone {
		q.mu.Unlock()
		return false
	}

	var kind fetchKind
	switch {
	case len(q.pages) == 0:
		kind = fetchFirst
	case q.staleLocked():
		kind = fetchRefetch
	default:
		q.mu.Unlock()
		return false
	}
	q.beginLocked(kind)
	q.mu.Unlock()

	q.notify()
	return true
}

// FetchNextPage is a no-op when there is no next page or a fetch is pending.
func (q *Infinite[T]) FetchNextPage() bool {
	q.mu.Lock()
	q.lastUsedAt = q.now()
	if q.inFlight != fetchNone || !q.hasNextPageLocked() {
		q.mu.Unlock()
		return false
	}
	q.beginLocked(fetchNext)
	q.mu.Unlock()

	q.notify()
	return true
}

// Refetch re-fetches every loaded page starting from the first one and
// swaps them in on success. It is a no-op while a fetch is pending.
func (q *Infinite[T]) Refetch() bool {
	q.mu.Lock()
	q.lastUsedAt = q.now()
	if q.inFlight != fetchNone {
		q.mu.Unlock()
		return false
	}
	kind := fetchRefetch
	if len(q.pages) == 0 {
		kind = fetchFirst
	}
	q.beginLocked(kind)
	q.mu.Unlock()

	q.notify()
	return true
}

func (q *Infinite[T]) Snapshot() InfiniteSnapshot[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	pages := make([]Page[T], len(q.pages))
	copy(pages, q.pages)
	return InfiniteSnapshot[T]{
		Pages:              pages,
		Status:             q.status,
		Err:                q.err,
		IsFetching:         q.inFlight != fetchNone,
		IsFetchingNextPage: q.inFlight == fetchNext,
		IsRefetching:       q.inFlight == fetchRefetch,
		HasNextPage:        q.hasNextPageLocked(),
		UpdatedAt:          q.updatedAt,
	}
}

// Wait blocks until no fetch is in flight or ctx is done.
func (q *Infinite[T]) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		done := q.done
		q.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe registers fn to run after every state change. fn runs without
// any query lock held.
func (q *Infinite[T]) Subscribe(fn func()) (unsubscribe func()) {
	q.mu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subs[id] = fn
	q.lastUsedAt = q.now()
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.lastUsedAt = q.now()
			q.mu.Unlock()
		})
	}
}

func (q *Infinite[T]) notify() {
	q.mu.Lock()
	subs := make([]func(), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (q *Infinite[T]) idle(now time.Time, gcTime time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs) == 0 && q.inFlight == fetchNone && now.Sub(q.lastUsedAt) >= gcTime
}

func (q *Infinite[T]) staleLocked() bool {
	if q.status != StatusSuccess {
		return true
	}
	return q.now().Sub(q.updatedAt) >= q.opts.StaleTime
}

func (q *Infinite[T]) fetchedLocked() int {
	n := 0
	for _, p := range q.pages {
		n += len(p.Items)
	}
	return n
}

func (q *Infinite[T]) hasNextPageLocked() bool {
	if len(q.pages) == 0 {
		return false
	}
	last := q.pages[len(q.pages)-1]
	if len(last.Items) == 0 {
		return false
	}
	return q.fetchedLocked() < last.Total
}

func (q *Infinite[T]) beginLocked(kind fetchKind) {
	q.inFlight = kind
	done := make(chan struct{})
	q.done = done

	skip := 0
	if kind == fetchNext {
		skip = q.fetchedLocked()
	}
	pageCount := max(len(q.pages), 1)

	go q.run(kind, skip, pageCount, done)
}

func (q *Infinite[T]) run(kind fetchKind, skip, pageCount int, done chan struct{}) {
	var (
		pages []Page[T]
		err   error
	)
	switch kind {
	case fetchRefetch:
		pages, err = q.fetchPages(pageCount)
	default:
		var p Page[T]
		p, err = q.fetchPage(skip)
		pages = []Page[T]{p}
	}

	q.mu.Lock()
	if err != nil {
		q.err = err
		q.status = StatusError
	} else {
		if kind == fetchNext {
			q.pages = append(q.pages, pages...)
		} else {
			q.pages = pages
		}
		q.err = nil
		q.status = StatusSuccess
		q.updatedAt = q.now()
	}
	q.inFlight = fetchNone
	q.mu.Unlock()

	q.notify()

	// Waiters are released only after subscribers have seen the result.
	q.mu.Lock()
	if q.done == done {
		q.done = nil
	}
	close(done)
	q.mu.Unlock()
}

func (q *Infinite[T]) fetchPage(skip int) (Page[T], error) {
	var page Page[T]
	err := retry(q.ctx, q.opts, func(ctx context.Context) error {
		p, err := q.fetch(ctx, skip, q.limit)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	return page, err
}

func (q *Infinite[T]) fetchPages(pageCount int) ([]Page[T], error) {
	pages := make([]Page[T], 0, pageCount)
	skip := 0
	for i := 0; i < pageCount; i++ {
		p, err := q.fetchPage(skip)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
		skip += len(p.Items)
		if len(p.Items) == 0 || skip >= p.Total {
			break
		}
	}
	return pages, nil
}
