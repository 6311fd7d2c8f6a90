// Package editor implements inline editing of one listed contact.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/pkg/validator"
)

type Mode int

const (
	Display Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "display"
}

// Editable fields, named as on the wire.
const (
	FieldName     = "name"
	FieldPhone    = "phone"
	FieldEmail    = "email"
	FieldAge      = "age"
	FieldImageURL = "image_url"
)

var (
	ErrNotEditing   = errors.New("row is not being edited")
	ErrUnknownField = errors.New("unknown field")
	ErrDeleted      = errors.New("row was deleted")
)

// Store is the write side of the record store.
type Store interface {
	Update(ctx context.Context, id string, patch contact.UpdateContactRequest) (*contact.Contact, error)
	Delete(ctx context.Context, id string) error
}

// Row is the Display <-> Editing state machine of a single record.
type Row struct {
	store Store

	mu      sync.Mutex
	mode    Mode
	record  contact.Contact
	draft   map[string]string
	deleted bool
}

func New(store Store, record contact.Contact) *Row {
	return &Row{store: store, record: record}
}

func (r *Row) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Record is the last confirmed state of the row.
func (r *Row) Record() contact.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

func (r *Row) Deleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleted
}

// Draft returns the value being edited for field.
func (r *Row) Draft(field string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft[field]
}

// Edit seeds the edit buffer from the displayed record. Editing an already
// editing row keeps its buffer.
func (r *Row) Edit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return ErrDeleted
	}
	if r.mode == Editing {
		return nil
	}
	r.draft = fieldsOf(r.record)
	r.mode = Editing
	return nil
}

func (r *Row) Set(field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != Editing {
		return ErrNotEditing
	}
	if _, ok := r.draft[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	r.draft[field] = value
	return nil
}

// Cancel drops the buffer without contacting the store.
func (r *Row) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft = nil
	r.mode = Display
}

// Save sends the fields that differ from the displayed record as a partial
// update. With no differences the row returns to Display without a call.
// On failure the row stays in Editing with the buffer intact.
func (r *Row) Save(ctx context.Context) error {
	r.mu.Lock()
	if r.mode != Editing {
		r.mu.Unlock()
		return ErrNotEditing
	}
	id := r.record.ID
	patch, err := diff(r.record, r.draft)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if patch.Empty() {
		r.draft = nil
		r.mode = Display
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	updated, err := r.store.Update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.record = *updated
	r.draft = nil
	r.mode = Display
	return nil
}

func (r *Row) Delete(ctx context.Context) error {
	r.mu.Lock()
	id, deleted := r.record.ID, r.deleted
	r.mu.Unlock()
	if deleted {
		return ErrDeleted
	}

	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = true
	r.draft = nil
	r.mode = Display
	return nil
}

func fieldsOf(c contact.Contact) map[string]string {
	return map[string]string{
		FieldName:     c.Name,
		FieldPhone:    c.Phone,
		FieldEmail:    c.Email,
		FieldAge:      strconv.Itoa(c.Age),
		FieldImageURL: c.Image(),
	}
}

// diff builds a patch of changed fields only; the id is never part of it.
func diff(orig contact.Contact, draft map[string]string) (contact.UpdateContactRequest, error) {
	var patch contact.UpdateContactRequest
	before := fieldsOf(orig)
	changed := func(field string) (string, bool) {
		v := strings.TrimSpace(draft[field])
		return v, v != before[field]
	}

	if v, ok := changed(FieldName); ok {
		patch.Name = &v
	}
	if v, ok := changed(FieldPhone); ok {
		patch.Phone = &v
	}
	if v, ok := changed(FieldEmail); ok {
		patch.Email = &v
	}
	if v, ok := changed(FieldImageURL); ok {
		patch.ImageURL = &v
	}
	if v, ok := changed(FieldAge); ok {
		age, err := contact.ParseAge(v)
		if err != nil {
			return patch, validator.FieldErrors{FieldAge: contact.MsgInvalidAge}
		}
		if age != orig.Age {
			patch.Age = &age
		}
	}

	if errs := patch.Validate(); errs != nil {
		return patch, validator.FieldErrors(errs)
	}
	return patch, nil
}
