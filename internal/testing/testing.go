// Package testing contains shared test doubles and helpers.
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/services"
)

// MockProvider is a test double for [services.Provider].
//
// Every [MockProvider.Library] call returns Lib and records the credential it was opened with.
type MockProvider struct {
	Lib            *MockLibrary
	ExchangeResult models.SessionCredential
	ExchangeErr    error
	Refreshed      *services.RefreshResult
	RefreshErr     error

	mu           sync.Mutex
	refreshCalls int
	opened       []models.SessionCredential
}

func (m *MockProvider) AuthURL(state string) string {
	return "https://accounts.example/authorize?state=" + url.QueryEscape(state)
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (models.SessionCredential, error) {
	if m.ExchangeErr != nil {
		return models.SessionCredential{}, m.ExchangeErr
	}
	return m.ExchangeResult, nil
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*services.RefreshResult, error) {
	m.mu.Lock()
	m.refreshCalls++
	m.mu.Unlock()

	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	if m.Refreshed == nil {
		return &services.RefreshResult{AccessToken: "refreshed-access", ExpiresIn: time.Hour}, nil
	}
	return m.Refreshed, nil
}

func (m *MockProvider) Library(ctx context.Context, cred models.SessionCredential) services.Library {
	m.mu.Lock()
	m.opened = append(m.opened, cred)
	m.mu.Unlock()

	if m.Lib == nil {
		m.Lib = &MockLibrary{}
	}
	return m.Lib
}

// RefreshCalls returns how often Refresh was called.
func (m *MockProvider) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// Opened returns the credentials libraries were opened with.
func (m *MockProvider) Opened() []models.SessionCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionCredential(nil), m.opened...)
}

// MockLibrary is a test double for [services.Library] that records play and queue calls.
type MockLibrary struct {
	PlaylistsResult []models.Playlist
	TracksResult    []models.Track
	DevicesResult   []models.Device
	PlaylistsErr    error
	TracksErr       error
	DevicesErr      error
	PlayErr         error
	EnqueueErr      error
	EnqueueFailAt   int // 1-based enqueue call that returns EnqueueErr, 0 fails every call when EnqueueErr is set

	mu          sync.Mutex
	playCalls   [][]string
	playDevices []string
	enqueued    []string
	enqueueDevs []string
}

func (m *MockLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	return m.PlaylistsResult, m.PlaylistsErr
}

func (m *MockLibrary) Tracks(ctx context.Context, selector string) ([]models.Track, error) {
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return append([]models.Track(nil), m.TracksResult...), nil
}

func (m *MockLibrary) Devices(ctx context.Context) ([]models.Device, error) {
	return m.DevicesResult, m.DevicesErr
}

func (m *MockLibrary) StartPlayback(ctx context.Context, uris []string, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls = append(m.playCalls, append([]string(nil), uris...))
	m.playDevices = append(m.playDevices, deviceID)
	return m.PlayErr
}

func (m *MockLibrary) Enqueue(ctx context.Context, uri, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.enqueued) + 1
	if m.EnqueueErr != nil && (m.EnqueueFailAt == 0 || m.EnqueueFailAt == call) {
		return m.EnqueueErr
	}
	m.enqueued = append(m.enqueued, uri)
	m.enqueueDevs = append(m.enqueueDevs, deviceID)
	return nil
}

// PlayCalls returns the URI batches passed to StartPlayback.
func (m *MockLibrary) PlayCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.playCalls...)
}

// PlayDevices returns the device of every StartPlayback call.
func (m *MockLibrary) PlayDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.playDevices...)
}

// Enqueued returns the URIs successfully enqueued, in order.
func (m *MockLibrary) Enqueued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.enqueued...)
}

// EnqueueDevices returns the device of every successful Enqueue call.
func (m *MockLibrary) EnqueueDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.enqueueDevs...)
}

// Tracks builds n tracks whose URIs come from [TrackURI].
func Tracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{Name: fmt.Sprintf("Track %d", i), URI: TrackURI(i)}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper returns a fixed response or error for every request.
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
