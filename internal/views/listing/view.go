// Package listing keeps the state of the contact listing: filter, sort,
// page, and the rows of the last applied query.
package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"contactdesk/internal/domain/contact"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	MinDebounce     = 300 * time.Millisecond
	MaxDebounce     = 800 * time.Millisecond
)

var (
	ErrInvalidPage = errors.New("page must be >= 0")
	ErrClosed      = errors.New("listing view is closed")
	ErrBadDebounce = fmt.Errorf("debounce must be between %s and %s", MinDebounce, MaxDebounce)
	ErrBadPageSize = fmt.Errorf("page size must be between 1 and %d", contact.MaxPageSize)
)

// Store is the read side of the record store.
type Store interface {
	List(ctx context.Context, q contact.ListQuery) (*contact.ListResult, error)
}

// Snapshot is what a renderer needs to draw the listing.
type Snapshot struct {
	Query      contact.ListQuery
	Items      []contact.Contact
	Total      int64
	TotalPages int
	Loading    bool
	Err        error
}

type Option func(*View) error

func WithDebounce(d time.Duration) Option {
	return func(v *View) error {
		if d < MinDebounce || d > MaxDebounce {
			return ErrBadDebounce
		}
		v.debounce = d
		return nil
	}
}

func WithPageSize(n int) Option {
	return func(v *View) error {
		if n < 1 || n > contact.MaxPageSize {
			return ErrBadPageSize
		}
		v.query.PageSize = n
		return nil
	}
}

// OnUpdate is called after every applied response.
func OnUpdate(fn func(Snapshot)) Option {
	return func(v *View) error { v.onUpdate = fn; return nil }
}

// OnError is called when a query fails. Previous rows stay visible.
func OnError(fn func(error)) Option {
	return func(v *View) error { v.onError = fn; return nil }
}

// View issues one list query per state change. Filter edits are debounced;
// sort and page changes query at once. Every query carries a sequence
// number and a response older than the last applied one is dropped, so
// rows always reflect the newest query that has answered.
type View struct {
	store    Store
	debounce time.Duration
	onUpdate func(Snapshot)
	onError  func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	query   contact.ListQuery
	seq     uint64
	applied uint64
	timer   *time.Timer
	closed  bool
	snap    Snapshot
}

func New(store Store, opts ...Option) (*View, error) {
	v := &View{
		store:    store,
		debounce: DefaultDebounce,
		query:    defaultQuery(contact.DefaultPageSize),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.snap.Query = v.query
	return v, nil
}

func defaultQuery(pageSize int) contact.ListQuery {
	return contact.ListQuery{
		SortKey:  contact.DefaultSortKey,
		SortDir:  contact.DefaultSortDir,
		Page:     0,
		PageSize: pageSize,
	}
}

// Open issues the initial query.
func (v *View) Open() error {
	return v.Refresh()
}

// Refresh re-runs the current query immediately.
func (v *View) Refresh() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetchLocked()
}

// SetFilter updates the name filter, resets to the first page and queries
// once the input has been quiet for the debounce delay.
func (v *View) SetFilter(text string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.query.Filter = text
	v.query.Page = 0
	v.snap.Query = v.query

	if v.timer != nil {
		v.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(v.debounce, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.timer != t {
			return // superseded by a newer edit or an immediate query
		}
		_ = v.fetchLocked()
	})
	v.timer = t
	return nil
}

func (v *View) SetSort(key string, dir contact.SortDir) error {
	if !contact.IsSortable(key) {
		return fmt.Errorf("%w: %s", contact.ErrInvalidSortField, key)
	}
	if dir != contact.SortAsc && dir != contact.SortDesc {
		return fmt.Errorf("sort direction must be asc or desc, got %q", dir)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.SortKey = key
	v.query.SortDir = dir
	return v.fetchLocked()
}

func (v *View) SetPage(page int) error {
	if page < 0 {
		return ErrInvalidPage
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Page = page
	return v.fetchLocked()
}

// NextPage and PrevPage stay within [0, TotalPages-1].
func (v *View) NextPage() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.query.Page+1 >= v.snap.TotalPages {
		return nil
	}
	v.query.Page++
	return v.fetchLocked()
}

func (v *View) PrevPage() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.query.Page == 0 {
		return nil
	}
	v.query.Page--
	return v.fetchLocked()
}

// ClearFilters restores the default query and fetches it.
func (v *View) ClearFilters() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query = defaultQuery(v.query.PageSize)
	return v.fetchLocked()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Close stops a pending debounce, cancels in-flight queries and waits for
// them to return.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
	}
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
}

func (v *View) fetchLocked() error {
	if v.closed {
		return ErrClosed
	}
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.seq++
	seq := v.seq
	q := v.query
	v.snap.Query = q
	v.snap.Loading = true

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		res, err := v.store.List(v.ctx, q)
		v.apply(seq, res, err)
	}()
	return nil
}

func (v *View) apply(seq uint64, res *contact.ListResult, err error) {
	v.mu.Lock()
	if seq <= v.applied || v.closed {
		v.mu.Unlock()
		return
	}
	v.applied = seq
	v.snap.Loading = v.applied < v.seq
	if err != nil {
		v.snap.Err = err
	} else {
		v.snap.Err = nil
		v.snap.Items = res.Items
		v.snap.Total = res.Total
		v.snap.TotalPages = contact.TotalPages(res.Total, v.snap.Query.PageSize)
	}
	snap := v.snapshotLocked()
	onUpdate, onError := v.onUpdate, v.onError
	v.mu.Unlock()

	if err != nil && onError != nil {
		onError(err)
	}
	if onUpdate != nil {
		onUpdate(snap)
	}
}

func (v *View) snapshotLocked() Snapshot {
	s := v.snap
	s.Query = v.query
	s.Items = append([]contact.Contact(nil), v.snap.Items...)
	return s
}
