// Package createform holds the state of the single and batch create forms.
package createform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/pkg/validator"
)

const (
	FieldName     = "name"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldAge      = "age"
	FieldImageURL = "image_url"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrNoUpload     = errors.New("no completed upload to attach")
	ErrLastEntry    = errors.New("batch form needs at least one entry")
	ErrNoEntry      = errors.New("no such entry")
	ErrSubmitting   = errors.New("submission already in progress")
)

// Inserter is the insert side of the record store.
type Inserter interface {
	Create(ctx context.Context, req contact.CreateContactRequest) (*contact.Contact, error)
	CreateBatch(ctx context.Context, reqs []contact.CreateContactRequest) (*contact.BatchResult, error)
}

// ImageSource yields the public URL of a finished upload, or "" while no
// upload has completed. directupload.Flow satisfies it.
type ImageSource interface {
	PublicURL() string
}

// Entry is the raw text of one record as typed by the operator.
type Entry struct {
	Name     string
	Phone    string
	Email    string
	Age      string
	ImageURL string
}

func (e *Entry) set(field, value string) error {
	switch field {
	case FieldName:
		e.Name = value
	case FieldPhone:
		e.Phone = value
	case FieldEmail:
		e.Email = value
	case FieldAge:
		e.Age = value
	case FieldImageURL:
		e.ImageURL = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

func (e *Entry) attach(src ImageSource) error {
	url := ""
	if src != nil {
		url = src.PublicURL()
	}
	if url == "" {
		return ErrNoUpload
	}
	e.ImageURL = url
	return nil
}

// Request validates the entry and converts it to an insert payload.
// Errors are keyed by field name.
func (e Entry) Request() (contact.CreateContactRequest, validator.FieldErrors) {
	req := contact.CreateContactRequest{
		Name:     e.Name,
		Phone:    e.Phone,
		Email:    e.Email,
		ImageURL: e.ImageURL,
	}
	req.Normalize()

	age, ageErr := contact.ParseAge(e.Age)
	req.Age = age

	errs := validator.FieldErrors{}
	for k, v := range req.Validate() {
		errs[k] = v
	}
	if ageErr != nil {
		errs[FieldAge] = contact.MsgInvalidAge
	}
	if len(errs) == 0 {
		return req, nil
	}
	return req, errs
}

// Form is the single-record create form.
type Form struct {
	store Inserter

	mu         sync.Mutex
	entry      Entry
	errs       validator.FieldErrors
	submitting bool
}

func NewForm(store Inserter) *Form {
	return &Form{store: store}
}

func (f *Form) Set(field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entry.set(field, value)
}

// AttachImage copies the public URL of a completed upload into the form.
func (f *Form) AttachImage(src ImageSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entry.attach(src)
}

func (f *Form) Values() Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entry
}

// Errors from the last submission attempt.
func (f *Form) Errors() validator.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs
}

// Submit validates and inserts the record. Invalid input never reaches the
// store. The form is cleared on success and kept as typed on failure.
func (f *Form) Submit(ctx context.Context) (*contact.Contact, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}
	req, errs := f.entry.Request()
	f.errs = errs
	if errs != nil {
		f.mu.Unlock()
		return nil, errs
	}
	f.submitting = true
	f.mu.Unlock()

	created, err := f.store.Create(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	f.entry = Entry{}
	return created, nil
}

// Batch is the multi-record create form. It always holds at least one entry.
type Batch struct {
	store Inserter

	mu         sync.Mutex
	entries    []Entry
	errs       validator.FieldErrors
	submitting bool
}

func NewBatch(store Inserter) *Batch {
	return &Batch{store: store, entries: []Entry{{}}}
}

// Add appends an empty entry and returns its index.
func (b *Batch) Add() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{})
	return len(b.entries) - 1
}

// Remove drops entry i. Removing the only entry is refused.
func (b *Batch) Remove(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(i); err != nil {
		return err
	}
	if len(b.entries) == 1 {
		return ErrLastEntry
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return nil
}

func (b *Batch) Set(i int, field, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(i); err != nil {
		return err
	}
	return b.entries[i].set(field, value)
}

func (b *Batch) AttachImage(i int, src ImageSource) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(i); err != nil {
		return err
	}
	return b.entries[i].attach(src)
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Batch) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Errors are keyed as contacts[i].field, the same way the API reports them.
func (b *Batch) Errors() validator.FieldErrors {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errs
}

// Submit validates every entry and inserts them in one call; all or none.
func (b *Batch) Submit(ctx context.Context) (*contact.BatchResult, error) {
	b.mu.Lock()
	if b.submitting {
		b.mu.Unlock()
		return nil, ErrSubmitting
	}
	reqs := make([]contact.CreateContactRequest, len(b.entries))
	errs := validator.FieldErrors{}
	for i, e := range b.entries {
		req, fe := e.Request()
		reqs[i] = req
		for field, msg := range fe {
			errs[fmt.Sprintf("contacts[%d].%s", i, field)] = msg
		}
	}
	if len(errs) > 0 {
		b.errs = errs
		b.mu.Unlock()
		return nil, errs
	}
	b.errs = nil
	b.submitting = true
	b.mu.Unlock()

	res, err := b.store.CreateBatch(ctx, reqs)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitting = false
	if err != nil {
		return nil, fmt.Errorf("create %d contacts: %w", len(reqs), err)
	}
	b.entries = []Entry{{}}
	return res, nil
}

func (b *Batch) checkLocked(i int) error {
	if i < 0 || i >= len(b.entries) {
		return fmt.Errorf("%w: %d", ErrNoEntry, i)
	}
	return nil
}
