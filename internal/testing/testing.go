// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
)

// MockSource is an in-memory source registry.
type MockSource struct {
	Lists      []models.SourceList
	Members    map[string][]json.RawMessage
	AuthErr    error
	ListsErr   error
	MembersErr map[string]error

	Authenticated bool
	MemberCalls   []string
}

// NewMockSource creates a source with no lists.
func NewMockSource() *MockSource {
	return &MockSource{Members: map[string][]json.RawMessage{}, MembersErr: map[string]error{}}
}

// AddList registers a top-level list with its raw member records, given as JSON strings.
func (m *MockSource) AddList(id, name string, records ...string) {
	m.Lists = append(m.Lists, models.SourceList{ID: id, Name: name})
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		raw = append(raw, json.RawMessage(r))
	}
	m.Members[id] = raw
}

func (m *MockSource) Name() string { return "mock-source" }

func (m *MockSource) Authenticate(ctx context.Context) error {
	if m.AuthErr != nil {
		return m.AuthErr
	}
	m.Authenticated = true
	return nil
}

func (m *MockSource) FetchLists(ctx context.Context) ([]models.SourceList, error) {
	if m.ListsErr != nil {
		return nil, m.ListsErr
	}
	return m.Lists, nil
}

func (m *MockSource) FetchMembers(ctx context.Context, listID string) ([]json.RawMessage, error) {
	m.MemberCalls = append(m.MemberCalls, listID)
	if err := m.MembersErr[listID]; err != nil {
		return nil, err
	}
	return m.Members[listID], nil
}

// MockDestination is an in-memory destination contact service.
//
// Failure hooks are consulted before the in-memory state is touched; a nil hook never fails.
type MockDestination struct {
	mu sync.Mutex

	folders  map[string]int64
	lists    map[string]int64
	parents  map[int64]int64
	members  map[int64][]string
	contacts map[string]models.ContactInfo
	nextID   int64

	CreateErr       func(email string) error
	UpdateErr       func(email string) error
	GetErr          func(email string) error
	ListContactsErr func(listID int64, offset int) error
	AddErr          func(call int, emails []string) error
	RemoveErr       func(call int, emails []string) error
	FindFolderErr   error
	FindListErr     error
	CreateListErr   error
	// UnreadableIDs makes GetContact return contacts without an ID.
	UnreadableIDs bool

	CreateCalls       []string
	UpdateCalls       []string
	GetCalls          []string
	ListContactsCalls []int
	AddCalls          [][]string
	RemoveCalls       [][]string
	CreatedLists      []string
}

// NewMockDestination creates an empty destination.
func NewMockDestination() *MockDestination {
	return &MockDestination{
		folders:  map[string]int64{},
		lists:    map[string]int64{},
		parents:  map[int64]int64{},
		members:  map[int64][]string{},
		contacts: map[string]models.ContactInfo{},
		nextID:   100,
	}
}

func (m *MockDestination) id() int64 {
	m.nextID++
	return m.nextID
}

// AddFolder registers a folder and returns its ID.
func (m *MockDestination) AddFolder(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.folders[name] = id
	return id
}

// AddList registers a list holding emails and returns its ID. Emails are stored as given.
func (m *MockDestination) AddList(name string, emails ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.lists[name] = id
	m.members[id] = slices.Clone(emails)
	return id
}

// AddContact registers an existing contact.
func (m *MockDestination) AddContact(email string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.contacts[strings.ToLower(email)] = models.ContactInfo{ID: id, Email: email}
	return id
}

// Members returns the emails currently in a list.
func (m *MockDestination) Members(listID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.members[listID])
}

// HasContact reports whether a contact record exists.
func (m *MockDestination) HasContact(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.contacts[strings.ToLower(email)]
	return ok
}

func (m *MockDestination) Name() string { return "mock-destination" }

func (m *MockDestination) CreateContact(ctx context.Context, email string, attrs models.ContactAttributes) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, email)

	if m.CreateErr != nil {
		if err := m.CreateErr(email); err != nil {
			return 0, err
		}
	}
	key := strings.ToLower(email)
	if _, ok := m.contacts[key]; ok {
		return 0, fmt.Errorf("%w: contact %s already exists", shared.ErrConflict, email)
	}
	id := m.id()
	m.contacts[key] = models.ContactInfo{ID: id, Email: email}
	return id, nil
}

func (m *MockDestination) UpdateContact(ctx context.Context, email string, attrs models.ContactAttributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, email)

	if m.UpdateErr != nil {
		if err := m.UpdateErr(email); err != nil {
			return err
		}
	}
	if _, ok := m.contacts[strings.ToLower(email)]; !ok {
		return fmt.Errorf("%w: contact %s", shared.ErrNotFound, email)
	}
	return nil
}

func (m *MockDestination) GetContact(ctx context.Context, email string) (*models.ContactInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, email)

	if m.GetErr != nil {
		if err := m.GetErr(email); err != nil {
			return nil, err
		}
	}
	c, ok := m.contacts[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: contact %s", shared.ErrNotFound, email)
	}
	if m.UnreadableIDs {
		c.ID = 0
	}
	return &c, nil
}

func (m *MockDestination) ListContacts(ctx context.Context, listID int64, limit, offset int) ([]models.ContactInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListContactsCalls = append(m.ListContactsCalls, offset)

	if m.ListContactsErr != nil {
		if err := m.ListContactsErr(listID, offset); err != nil {
			return nil, err
		}
	}
	emails, ok := m.members[listID]
	if !ok {
		return nil, fmt.Errorf("%w: list %d", shared.ErrNotFound, listID)
	}
	if offset >= len(emails) {
		return []models.ContactInfo{}, nil
	}
	end := min(offset+limit, len(emails))
	page := make([]models.ContactInfo, 0, end-offset)
	for _, e := range emails[offset:end] {
		page = append(page, models.ContactInfo{Email: e})
	}
	return page, nil
}

func (m *MockDestination) AddToList(ctx context.Context, listID int64, emails []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls = append(m.AddCalls, slices.Clone(emails))

	if m.AddErr != nil {
		if err := m.AddErr(len(m.AddCalls), emails); err != nil {
			return err
		}
	}
	for _, e := range emails {
		if !slices.Contains(m.members[listID], e) {
			m.members[listID] = append(m.members[listID], e)
		}
	}
	return nil
}

func (m *MockDestination) RemoveFromList(ctx context.Context, listID int64, emails []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls = append(m.RemoveCalls, slices.Clone(emails))

	if m.RemoveErr != nil {
		if err := m.RemoveErr(len(m.RemoveCalls), emails); err != nil {
			return err
		}
	}
	m.members[listID] = slices.DeleteFunc(m.members[listID], func(e string) bool {
		return slices.Contains(emails, strings.ToLower(strings.TrimSpace(e)))
	})
	return nil
}

func (m *MockDestination) Lists(ctx context.Context) ([]models.DestinationList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindListErr != nil {
		return nil, m.FindListErr
	}
	lists := make([]models.DestinationList, 0, len(m.lists))
	for name, id := range m.lists {
		lists = append(lists, models.DestinationList{ID: id, Name: name, FolderID: m.parents[id], Subscribers: len(m.members[id])})
	}
	slices.SortFunc(lists, func(a, b models.DestinationList) int { return int(a.ID - b.ID) })
	return lists, nil
}

func (m *MockDestination) FindList(ctx context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindListErr != nil {
		return 0, false, m.FindListErr
	}
	id, ok := m.lists[name]
	return id, ok, nil
}

func (m *MockDestination) CreateList(ctx context.Context, name string, folderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateListErr != nil {
		return 0, m.CreateListErr
	}
	m.CreatedLists = append(m.CreatedLists, name)
	id := m.id()
	m.lists[name] = id
	m.parents[id] = folderID
	m.members[id] = []string{}
	return id, nil
}

// Folders returns every registered folder, oldest first.
func (m *MockDestination) Folders(ctx context.Context) ([]models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	folders := make([]models.Folder, 0, len(m.folders))
	for name, id := range m.folders {
		folders = append(folders, models.Folder{ID: id, Name: name})
	}
	slices.SortFunc(folders, func(a, b models.Folder) int { return int(a.ID - b.ID) })
	return folders, nil
}

func (m *MockDestination) FindFolder(ctx context.Context, name string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindFolderErr != nil {
		return 0, false, m.FindFolderErr
	}
	id, ok := m.folders[name]
	return id, ok, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
