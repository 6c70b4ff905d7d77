package testing

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/shared"
)

// FakeSpotify is an httptest server speaking enough of the Spotify accounts service and Web API
// for the service, task and handler tests.
//
// Configure the exported fields before making requests; read the recorded fields afterwards.
type FakeSpotify struct {
	Server *httptest.Server

	Code            string // the only authorization code accepted
	AccessToken     string
	RefreshToken    string
	RefreshedAccess string // access token handed out on refresh
	ExpiresIn       int
	SavedTotal      int
	PlaylistTotal   int // tracks in every playlist
	PlaylistCount   int
	EpisodeEvery    int // playlist items at i%EpisodeEvery == 1 are podcast episodes, 0 disables
	LocalEvery      int // playlist items at i%LocalEvery == 2 are local files, 0 disables
	TotalSurplus    int // added to the reported total of track listings without serving more items
	Devices         []models.Device
	PlayStatus      int   // status for play requests, 0 means 204
	QueueStatuses   []int // consumed one per queue request, then 204

	mu              sync.Mutex
	trackPages      int
	played          []string
	playDevice      string
	queued          []string
	exchanges       int
	refreshes       int
	lastAuthHeaders []string
}

// NewFakeSpotify starts a fake with 120 saved tracks, 120 tracks per playlist, three playlists and one device.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		Code:            "abc",
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		RefreshedAccess: "access-2",
		ExpiresIn:       3600,
		SavedTotal:      120,
		PlaylistTotal:   120,
		PlaylistCount:   3,
		Devices:         []models.Device{{ID: "dev-1", Name: "Desk", Type: "Computer", Active: true}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.token)
	mux.HandleFunc("GET /v1/me/playlists", f.authorized(f.playlists))
	mux.HandleFunc("GET /v1/me/tracks", f.authorized(f.savedTracks))
	mux.HandleFunc("GET /v1/playlists/", f.authorized(f.playlistItems))
	mux.HandleFunc("GET /v1/me/player/devices", f.authorized(f.devices))
	mux.HandleFunc("PUT /v1/me/player/play", f.authorized(f.play))
	mux.HandleFunc("POST /v1/me/player/queue", f.authorized(f.queue))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns Spotify settings pointing at the fake.
func (f *FakeSpotify) Config() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:3050/callback",
		AuthURL:      f.Server.URL + "/authorize",
		TokenURL:     f.Server.URL + "/api/token",
		APIBaseURL:   f.Server.URL + "/v1/",
	}
}

// TrackPages returns how many track pages were served.
func (f *FakeSpotify) TrackPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackPages
}

// Played returns the URIs of the last play request and its device.
func (f *FakeSpotify) Played() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...), f.playDevice
}

// Queued returns every queued URI in request order.
func (f *FakeSpotify) Queued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queued...)
}

// Exchanges returns the number of authorization code grants served.
func (f *FakeSpotify) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

// Refreshes returns the number of refresh grants served.
func (f *FakeSpotify) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// AuthHeaders returns the Authorization headers seen on API calls.
func (f *FakeSpotify) AuthHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lastAuthHeaders...)
}

// TrackURI is the URI the fake uses for track i.
func TrackURI(i int) string { return fmt.Sprintf("spotify:track:t%04d", i) }

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if id, _, ok := r.BasicAuth(); !ok || id != "client-id" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != f.Code {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid authorization code"})
			return
		}
		f.exchanges++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  f.AccessToken,
			"token_type":    "Bearer",
			"expires_in":    f.ExpiresIn,
			"refresh_token": f.RefreshToken,
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.RefreshToken {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh token revoked"})
			return
		}
		f.refreshes++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": f.RefreshedAccess,
			"token_type":   "Bearer",
			"expires_in":   f.ExpiresIn,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeSpotify) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		f.mu.Lock()
		f.lastAuthHeaders = append(f.lastAuthHeaders, header)
		valid := header == "Bearer "+f.AccessToken || header == "Bearer "+f.RefreshedAccess
		f.mu.Unlock()

		if !valid {
			apiError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}
		next(w, r)
	}
}

func (f *FakeSpotify) playlists(w http.ResponseWriter, r *http.Request) {
	offset, limit := paging(r)
	end := min(offset+limit, f.PlaylistCount)

	items := []any{}
	for i := offset; i < end; i++ {
		items = append(items, map[string]any{
			"id":   fmt.Sprintf("p%d", i),
			"name": fmt.Sprintf("Playlist %d", i),
			"uri":  fmt.Sprintf("spotify:playlist:p%d", i),
			"images": []map[string]any{
				{"url": fmt.Sprintf("https://img.example/300/p%d", i), "width": 300, "height": 300},
				{"url": fmt.Sprintf("https://img.example/640/p%d", i), "width": 640, "height": 640},
			},
			"tracks": map[string]any{"total": f.PlaylistTotal},
		})
	}
	if offset == 0 {
		items = append(items, nil)
	}

	writeJSON(w, http.StatusOK, page(r, items, offset, limit, f.PlaylistCount))
}

func (f *FakeSpotify) savedTracks(w http.ResponseWriter, r *http.Request) {
	offset, limit := paging(r)
	end := min(offset+limit, f.SavedTotal)

	items := []any{}
	for i := offset; i < end; i++ {
		items = append(items, map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": trackJSON(i)})
	}

	f.mu.Lock()
	f.trackPages++
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, page(r, items, offset, limit, f.SavedTotal+f.TotalSurplus))
}

func (f *FakeSpotify) playlistItems(w http.ResponseWriter, r *http.Request) {
	offset, limit := paging(r)
	end := min(offset+limit, f.PlaylistTotal)

	items := []any{}
	for i := offset; i < end; i++ {
		item := map[string]any{"added_at": "2024-01-01T00:00:00Z", "is_local": false, "track": trackJSON(i)}
		switch {
		case f.EpisodeEvery > 0 && i%f.EpisodeEvery == 1:
			item["track"] = episodeJSON(i)
		case f.LocalEvery > 0 && i%f.LocalEvery == 2:
			item["is_local"] = true
			item["track"] = localJSON(i)
		}
		items = append(items, item)
	}

	f.mu.Lock()
	f.trackPages++
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, page(r, items, offset, limit, f.PlaylistTotal+f.TotalSurplus))
}

func (f *FakeSpotify) devices(w http.ResponseWriter, r *http.Request) {
	devices := []map[string]any{}
	for _, d := range f.Devices {
		devices = append(devices, map[string]any{
			"id": d.ID, "name": d.Name, "type": d.Type, "is_active": d.Active, "volume_percent": 50,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (f *FakeSpotify) play(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		apiError(w, http.StatusBadRequest, "Malformed json")
		return
	}
	uris := []string{}
	for _, u := range gjson.GetBytes(body, "uris").Array() {
		uris = append(uris, u.String())
	}

	f.mu.Lock()
	f.played = uris
	f.playDevice = r.URL.Query().Get("device_id")
	status := f.PlayStatus
	f.mu.Unlock()

	if status != 0 && status != http.StatusNoContent {
		apiError(w, status, "Player command failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeSpotify) queue(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status := http.StatusNoContent
	if len(f.QueueStatuses) > 0 {
		status, f.QueueStatuses = f.QueueStatuses[0], f.QueueStatuses[1:]
	}
	if status == http.StatusNoContent {
		f.queued = append(f.queued, r.URL.Query().Get("uri"))
	}
	f.mu.Unlock()

	if status != http.StatusNoContent {
		apiError(w, status, "Queue command failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func trackJSON(i int) map[string]any {
	uri := TrackURI(i)
	return map[string]any{
		"id":   strings.TrimPrefix(uri, "spotify:track:"),
		"name": fmt.Sprintf("Track %d", i),
		"uri":  uri,
		"type": "track",
	}
}

func episodeJSON(i int) map[string]any {
	id := fmt.Sprintf("e%04d", i)
	return map[string]any{
		"id":   id,
		"name": fmt.Sprintf("Episode %d", i),
		"uri":  "spotify:episode:" + id,
		"type": "episode",
	}
}

// localJSON is a local file: no id and a spotify:local URI the player cannot queue.
func localJSON(i int) map[string]any {
	return map[string]any{
		"id":       nil,
		"name":     fmt.Sprintf("Local %d", i),
		"uri":      fmt.Sprintf("spotify:local:Artist:Album:Local+%d:180", i),
		"type":     "track",
		"is_local": true,
	}
}

func paging(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	return offset, limit
}

func page(r *http.Request, items []any, offset, limit, total int) map[string]any {
	var next any
	if offset+limit < total {
		q := r.URL.Query()
		q.Set("offset", strconv.Itoa(offset+limit))
		next = "http://" + r.Host + r.URL.Path + "?" + q.Encode()
	}
	return map[string]any{
		"href":   "http://" + r.Host + r.URL.String(),
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
		"next":   next,
	}
}

func apiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
