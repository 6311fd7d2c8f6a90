package createform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contactdesk/internal/client"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/pkg/validator"
	"contactdesk/internal/server/servertest"
	"contactdesk/internal/views/directupload"
)

type MockInserter struct {
	mock.Mock
}

func (m *MockInserter) Create(ctx context.Context, req contact.CreateContactRequest) (*contact.Contact, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contact.Contact), args.Error(1)
}

func (m *MockInserter) CreateBatch(ctx context.Context, reqs []contact.CreateContactRequest) (*contact.BatchResult, error) {
	args := m.Called(ctx, reqs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contact.BatchResult), args.Error(1)
}

type uploaded string

func (u uploaded) PublicURL() string { return string(u) }

func fill(t *testing.T, set func(field, value string) error, name, phone, email, age string) {
	t.Helper()
	require.NoError(t, set(FieldName, name))
	require.NoError(t, set(FieldPhone, phone))
	require.NoError(t, set(FieldEmail, email))
	require.NoError(t, set(FieldAge, age))
}

func TestEntry_Request(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  map[string]string
	}{
		{"valid", Entry{Name: "John Doe", Phone: "123", Email: "john@example.com", Age: "30"}, nil},
		{"short name", Entry{Name: "J", Phone: "123", Email: "john@example.com", Age: "30"},
			map[string]string{"name": "Name must be at least 2 characters."}},
		{"letters in phone", Entry{Name: "John", Phone: "12a", Email: "john@example.com", Age: "30"},
			map[string]string{"phone": "Please enter a valid phone number."}},
		{"bad email", Entry{Name: "John", Phone: "123", Email: "john@", Age: "30"},
			map[string]string{"email": "Please enter a valid email address."}},
		{"age not a number", Entry{Name: "John", Phone: "123", Email: "john@example.com", Age: "thirty"},
			map[string]string{"age": "Please enter a valid age."}},
		{"age empty", Entry{Name: "John", Phone: "123", Email: "john@example.com"},
			map[string]string{"age": "Please enter a valid age."}},
		{"age too low", Entry{Name: "John", Phone: "123", Email: "john@example.com", Age: "17"},
			map[string]string{"age": "Age must be between 18 and 120."}},
		{"age too high", Entry{Name: "John", Phone: "123", Email: "john@example.com", Age: "121"},
			map[string]string{"age": "Age must be between 18 and 120."}},
		{"bad image url", Entry{Name: "John", Phone: "123", Email: "john@example.com", Age: "30", ImageURL: "not a url"},
			map[string]string{"image_url": "Please enter a valid image URL."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, errs := tt.entry.Request()
			if tt.want == nil {
				assert.Nil(t, errs)
				assert.Equal(t, 30, req.Age)
				return
			}
			assert.Equal(t, validator.FieldErrors(tt.want), errs)
		})
	}
}

func TestForm_SubmitResetsOnSuccess(t *testing.T) {
	store := new(MockInserter)
	form := NewForm(store)
	fill(t, form.Set, " John Doe ", "123", "john@example.com", "30")

	want := contact.CreateContactRequest{Name: "John Doe", Phone: "123", Email: "john@example.com", Age: 30}
	store.On("Create", mock.Anything, want).Return(&contact.Contact{ID: "c-1", Name: "John Doe"}, nil).Once()

	created, err := form.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c-1", created.ID)
	assert.Equal(t, Entry{}, form.Values())
	assert.Nil(t, form.Errors())
	store.AssertExpectations(t)
}

func TestForm_InvalidInputBlocksSubmission(t *testing.T) {
	store := new(MockInserter)
	form := NewForm(store)
	fill(t, form.Set, "John", "12-34", "john@example.com", "30")

	_, err := form.Submit(context.Background())
	var fe validator.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Please enter a valid phone number.", fe[FieldPhone])
	assert.Equal(t, fe, form.Errors())
	assert.Equal(t, "12-34", form.Values().Phone)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestForm_StoreFailureKeepsValues(t *testing.T) {
	store := new(MockInserter)
	form := NewForm(store)
	fill(t, form.Set, "John", "123", "john@example.com", "30")
	store.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("network down"))

	_, err := form.Submit(context.Background())
	assert.ErrorContains(t, err, "network down")
	assert.Equal(t, "John", form.Values().Name)
	assert.Equal(t, "30", form.Values().Age)
}

func TestForm_AttachImage(t *testing.T) {
	form := NewForm(new(MockInserter))

	assert.ErrorIs(t, form.AttachImage(uploaded("")), ErrNoUpload)
	assert.ErrorIs(t, form.AttachImage(nil), ErrNoUpload)
	assert.Empty(t, form.Values().ImageURL)

	require.NoError(t, form.AttachImage(uploaded("https://cdn.example.com/a.png")))
	assert.Equal(t, "https://cdn.example.com/a.png", form.Values().ImageURL)

	assert.ErrorIs(t, form.Set("id", "x"), ErrUnknownField)
}

func TestBatch_KeepsAtLeastOneEntry(t *testing.T) {
	b := NewBatch(new(MockInserter))
	assert.Equal(t, 1, b.Len())
	assert.ErrorIs(t, b.Remove(0), ErrLastEntry)

	assert.Equal(t, 1, b.Add())
	require.NoError(t, b.Set(1, FieldName, "second"))
	require.NoError(t, b.Remove(0))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, "second", b.Entries()[0].Name)

	assert.ErrorIs(t, b.Remove(3), ErrNoEntry)
	assert.ErrorIs(t, b.Set(-1, FieldName, "x"), ErrNoEntry)
}

func TestBatch_SubmitAllOrNothing(t *testing.T) {
	store := new(MockInserter)
	b := NewBatch(store)
	fill(t, func(f, v string) error { return b.Set(0, f, v) }, "John", "123", "john@example.com", "30")
	b.Add()
	fill(t, func(f, v string) error { return b.Set(1, f, v) }, "Jane", "456", "jane@example.com", "17")

	_, err := b.Submit(context.Background())
	var fe validator.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, validator.FieldErrors{"contacts[1].age": "Age must be between 18 and 120."}, fe)
	assert.Equal(t, 2, b.Len())
	store.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)

	require.NoError(t, b.Set(1, FieldAge, "45"))
	require.NoError(t, b.AttachImage(1, uploaded("https://cdn.example.com/jane.png")))
	want := []contact.CreateContactRequest{
		{Name: "John", Phone: "123", Email: "john@example.com", Age: 30},
		{Name: "Jane", Phone: "456", Email: "jane@example.com", Age: 45, ImageURL: "https://cdn.example.com/jane.png"},
	}
	store.On("CreateBatch", mock.Anything, want).Return(&contact.BatchResult{Count: 2}, nil).Once()

	res, err := b.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []Entry{{}}, b.Entries())
	assert.Nil(t, b.Errors())
	store.AssertExpectations(t)
}

func TestBatch_StoreFailureKeepsEntries(t *testing.T) {
	store := new(MockInserter)
	b := NewBatch(store)
	fill(t, func(f, v string) error { return b.Set(0, f, v) }, "John", "123", "john@example.com", "30")
	store.On("CreateBatch", mock.Anything, mock.Anything).Return(nil, contact.ErrConstraint)

	_, err := b.Submit(context.Background())
	assert.ErrorIs(t, err, contact.ErrConstraint)
	assert.Equal(t, "John", b.Entries()[0].Name)
}

func TestForm_UploadedImageAgainstAPI(t *testing.T) {
	env := servertest.Start(t, servertest.Options{})
	api := client.New(env.URL, env.Token)
	ctx := context.Background()

	flow := directupload.New(api, nil)
	form := NewForm(api)
	assert.ErrorIs(t, form.AttachImage(flow), ErrNoUpload)

	require.NoError(t, flow.Select(directupload.File{Name: "me.png", ContentType: "image/png", Data: []byte("png")}))
	public, err := flow.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, form.AttachImage(flow))

	fill(t, form.Set, "John Doe", "123", "john@example.com", "30")
	created, err := form.Submit(ctx)
	require.NoError(t, err)

	got, err := api.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, public, got.Image())
}
