// Package directupload moves a file straight to object storage using an
// authorization issued by the API, then reports the object's public URL.
package directupload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"contactdesk/internal/domain/upload"
)

type State int

const (
	Idle State = iota
	FileSelected
	RequestingAuthorization
	Uploading
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FileSelected:
		return "file_selected"
	case RequestingAuthorization:
		return "requesting_authorization"
	case Uploading:
		return "uploading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrInvalidState = errors.New("action not allowed in current upload state")
	ErrEmptyFile    = errors.New("file is empty")
)

// Authorizer issues upload authorizations; *client.Client implements it.
type Authorizer interface {
	AuthorizeUpload(ctx context.Context, fileName, fileType string) (*upload.AuthorizeResponse, error)
}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Flow is a single-file upload. Transitions:
//
//	Idle -> FileSelected -> RequestingAuthorization -> Uploading -> Succeeded | Failed
//
// Start is the only way past FileSelected; Reset returns to Idle.
type Flow struct {
	auth     Authorizer
	http     *http.Client
	onChange func(State)

	mu        sync.Mutex
	state     State
	file      *File
	publicURL string
	err       error
}

type Option func(*Flow)

// OnChange registers a callback invoked after every transition.
func OnChange(fn func(State)) Option {
	return func(f *Flow) { f.onChange = fn }
}

func New(auth Authorizer, httpClient *http.Client, opts ...Option) *Flow {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	f := &Flow{auth: auth, http: httpClient}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// PublicURL is set once the flow Succeeded.
func (f *Flow) PublicURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publicURL
}

// Err is the cause of the last failure.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Select picks (or replaces) the file to upload.
func (f *Flow) Select(file File) error {
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	f.mu.Lock()
	if f.state != Idle && f.state != FileSelected {
		f.mu.Unlock()
		return fmt.Errorf("%w: select while %s", ErrInvalidState, f.state)
	}
	f.file = &file
	f.mu.Unlock()
	f.transition(FileSelected)
	return nil
}

// Reset discards the selection and any result.
func (f *Flow) Reset() {
	f.mu.Lock()
	f.file, f.publicURL, f.err = nil, "", nil
	f.mu.Unlock()
	f.transition(Idle)
}

// Start requests an authorization and transfers the selected file. There is
// no automatic retry: after a failure the caller must Reset and select again.
func (f *Flow) Start(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.state != FileSelected {
		state := f.state
		f.mu.Unlock()
		return "", fmt.Errorf("%w: start while %s", ErrInvalidState, state)
	}
	file := *f.file
	f.state = RequestingAuthorization
	f.mu.Unlock()
	f.notify(RequestingAuthorization)

	auth, err := f.auth.AuthorizeUpload(ctx, file.Name, file.ContentType)
	if err != nil {
		return "", f.fail(fmt.Errorf("request authorization: %w", err))
	}

	f.transition(Uploading)
	if err := f.transfer(ctx, auth, file); err != nil {
		return "", f.fail(err)
	}

	public, err := PublicURL(auth)
	if err != nil {
		return "", f.fail(err)
	}
	f.mu.Lock()
	f.publicURL = public
	f.mu.Unlock()
	f.transition(Succeeded)
	return public, nil
}

func (f *Flow) transfer(ctx context.Context, auth *upload.AuthorizeResponse, file File) error {
	var req *http.Request
	var err error
	switch auth.Method {
	case http.MethodPost:
		req, err = postRequest(ctx, auth, file)
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, auth.UploadURL, bytes.NewReader(file.Data))
		if err == nil {
			req.Header.Set("Content-Type", boundType(auth, file))
		}
	}
	if err != nil {
		return fmt.Errorf("build transfer: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage rejected transfer: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// postRequest builds the policy form: every issued field first, file last.
func postRequest(ctx context.Context, auth *upload.AuthorizeResponse, file File) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	keys := make([]string, 0, len(auth.Fields))
	for k := range auth.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, auth.Fields[k]); err != nil {
			return nil, err
		}
	}
	if _, ok := auth.Fields["Content-Type"]; !ok {
		if err := mw.WriteField("Content-Type", boundType(auth, file)); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(file.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

// boundType is the content type the authorization was issued for. The
// caller's own value is only a fallback for issuers that do not echo it.
func boundType(auth *upload.AuthorizeResponse, file File) string {
	if auth.ContentType != "" {
		return auth.ContentType
	}
	return file.ContentType
}

// PublicURL derives the object's public location: the PUT URL without its
// signature, or the POST endpoint joined with the key.
func PublicURL(auth *upload.AuthorizeResponse) (string, error) {
	if auth.PublicURL != "" {
		return auth.PublicURL, nil
	}
	if auth.Method == http.MethodPost {
		key := auth.Fields["key"]
		if key == "" {
			key = auth.Key
		}
		return strings.TrimRight(auth.URL, "/") + "/" + key, nil
	}
	u, err := url.Parse(auth.UploadURL)
	if err != nil {
		return "", fmt.Errorf("parse upload url: %w", err)
	}
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

func (f *Flow) fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrUploadFailed, cause)
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	f.transition(Failed)
	return err
}

func (f *Flow) transition(to State) {
	f.mu.Lock()
	f.state = to
	f.mu.Unlock()
	f.notify(to)
}

func (f *Flow) notify(s State) {
	if f.onChange != nil {
		f.onChange(s)
	}
}
