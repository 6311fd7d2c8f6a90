package contact

import (
	"errors"
	"strconv"
	"strings"

	"contactdesk/internal/pkg/validator"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxBatchSize    = 100

	DefaultSortKey = "created_at"
	DefaultSortDir = SortDesc
)

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Field rules shared by create and partial update validation.
const (
	ruleName     = "required,min=2"
	rulePhone    = "required,digits"
	ruleEmail    = "required,email"
	ruleAge      = "min=18,max=120"
	ruleImageURL = "omitempty,url"
)

func init() {
	validator.RegisterMessage("name", "required", "Name must be at least 2 characters.")
	validator.RegisterMessage("name", "min", "Name must be at least 2 characters.")
	validator.RegisterMessage("phone", "required", "Please enter a valid phone number.")
	validator.RegisterMessage("phone", "digits", "Please enter a valid phone number.")
	validator.RegisterMessage("email", "required", "Please enter a valid email address.")
	validator.RegisterMessage("email", "email", "Please enter a valid email address.")
	validator.RegisterMessage("age", "min", "Age must be between 18 and 120.")
	validator.RegisterMessage("age", "max", "Age must be between 18 and 120.")
	validator.RegisterMessage("image_url", "url", "Please enter a valid image URL.")
}

// sortable lists the columns a listing may be ordered by.
var sortable = map[string]bool{
	"id":         true,
	"name":       true,
	"phone":      true,
	"email":      true,
	"age":        true,
	"image_url":  true,
	"created_at": true,
}

// IsSortable reports whether key names a sortable contact column.
func IsSortable(key string) bool {
	return sortable[key]
}

// MsgInvalidAge is reported when age input is not a whole number.
const MsgInvalidAge = "Please enter a valid age."

var errInvalidAge = errors.New(MsgInvalidAge)

// ParseAge converts form input to an age. Range checks happen in Validate.
func ParseAge(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errInvalidAge
	}
	return n, nil
}

type CreateContactRequest struct {
	Name     string `json:"name" yaml:"name" validate:"required,min=2"`
	Phone    string `json:"phone" yaml:"phone" validate:"required,digits"`
	Email    string `json:"email" yaml:"email" validate:"required,email"`
	Age      int    `json:"age" yaml:"age" validate:"min=18,max=120"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty" validate:"omitempty,url"`
}

// Normalize trims surrounding whitespace from text fields.
func (r *CreateContactRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
}

// Validate returns field errors keyed by JSON name, or nil.
func (r *CreateContactRequest) Validate() map[string]string {
	return validator.Validate(r)
}

func (r *CreateContactRequest) toEntity() *Contact {
	c := &Contact{
		Name:  r.Name,
		Phone: r.Phone,
		Email: r.Email,
		Age:   r.Age,
	}
	if r.ImageURL != "" {
		url := r.ImageURL
		c.ImageURL = &url
	}
	return c
}

type BatchCreateRequest struct {
	Contacts []CreateContactRequest `json:"contacts"`
}

// UpdateContactRequest is a partial update: nil fields are left untouched.
// An empty ImageURL clears the image.
type UpdateContactRequest struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
	Age      *int    `json:"age,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

func (r *UpdateContactRequest) Normalize() {
	for _, f := range []*string{r.Name, r.Phone, r.Email, r.ImageURL} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (r *UpdateContactRequest) Empty() bool {
	return r.Name == nil && r.Phone == nil && r.Email == nil && r.Age == nil && r.ImageURL == nil
}

// Validate checks only the fields present in the patch.
func (r *UpdateContactRequest) Validate() map[string]string {
	errs := map[string]string{}
	check := func(name string, value any, rule string) {
		if msg := validator.Field(name, value, rule); msg != "" {
			errs[name] = msg
		}
	}
	if r.Name != nil {
		check("name", *r.Name, ruleName)
	}
	if r.Phone != nil {
		check("phone", *r.Phone, rulePhone)
	}
	if r.Email != nil {
		check("email", *r.Email, ruleEmail)
	}
	if r.Age != nil {
		check("age", *r.Age, ruleAge)
	}
	if r.ImageURL != nil {
		check("image_url", *r.ImageURL, ruleImageURL)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Changes maps the present fields to column values.
func (r *UpdateContactRequest) Changes() map[string]any {
	changes := map[string]any{}
	if r.Name != nil {
		changes["name"] = *r.Name
	}
	if r.Phone != nil {
		changes["phone"] = *r.Phone
	}
	if r.Email != nil {
		changes["email"] = *r.Email
	}
	if r.Age != nil {
		changes["age"] = *r.Age
	}
	if r.ImageURL != nil {
		if *r.ImageURL == "" {
			changes["image_url"] = nil
		} else {
			changes["image_url"] = *r.ImageURL
		}
	}
	return changes
}

// ListQuery selects one page of contacts.
type ListQuery struct {
	Filter   string  `form:"filter" json:"filter"`
	SortKey  string  `form:"sort" json:"sort"`
	SortDir  SortDir `form:"dir" json:"dir"`
	Page     int     `form:"page" json:"page"`
	PageSize int     `form:"page_size" json:"page_size"`
}

// Normalize applies defaults and clamps paging. An unknown sort key is
// reported rather than silently replaced.
func (q *ListQuery) Normalize() error {
	q.Filter = strings.TrimSpace(q.Filter)
	if q.SortKey == "" {
		q.SortKey = DefaultSortKey
	}
	if !IsSortable(q.SortKey) {
		return ErrInvalidSortField
	}
	switch SortDir(strings.ToLower(string(q.SortDir))) {
	case SortAsc:
		q.SortDir = SortAsc
	case SortDesc:
		q.SortDir = SortDesc
	default:
		q.SortDir = DefaultSortDir
	}
	if q.Page < 0 {
		q.Page = 0
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return nil
}

// Range returns the inclusive row range [from, to] covered by the page.
func (q ListQuery) Range() (from, to int) {
	from = q.Page * q.PageSize
	return from, from + q.PageSize - 1
}

type ListResult struct {
	Items      []Contact `json:"items" yaml:"items"`
	Total      int64     `json:"total" yaml:"total"`
	Page       int       `json:"page" yaml:"page"`
	PageSize   int       `json:"page_size" yaml:"page_size"`
	TotalPages int       `json:"total_pages" yaml:"total_pages"`
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

type BatchResult struct {
	Items []Contact `json:"items"`
	Count int       `json:"count"`
}
