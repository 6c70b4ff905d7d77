package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/teremich/spotify-true-random/internal/shared"
	"github.com/teremich/spotify-true-random/internal/tasks"
	tu "github.com/teremich/spotify-true-random/internal/testing"
)

var linkPattern = regexp.MustCompile(`href="(/playlist/[^"]+)"`)

// stubReplayer records the selector and credential it was called with.
type stubReplayer struct {
	err error

	mu       sync.Mutex
	selector string
	cred     models.SessionCredential
}

func (s *stubReplayer) ReplayShuffled(ctx context.Context, progress chan<- tasks.ProgressUpdate, selector string, cred models.SessionCredential) (*tasks.ReplayResult, error) {
	s.mu.Lock()
	s.selector, s.cred = selector, cred
	s.mu.Unlock()
	return &tasks.ReplayResult{Selector: selector, Status: models.RunStatusStarted}, s.err
}

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "client-id"
	cfg.Credentials.Spotify.ClientSecret = "client-secret"
	cfg.Server.StaticDir = t.TempDir()
	return cfg
}

func testCodec(t *testing.T) *session.Codec {
	t.Helper()
	key, err := session.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	codec, err := session.NewCodec(key)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}
	return codec
}

func newTestServer(t *testing.T, cfg *shared.Config, provider services.Provider, replayer tasks.Replayer, codec *session.Codec) *Server {
	t.Helper()
	srv, err := New(Deps{
		Config:   cfg,
		Provider: provider,
		Replayer: replayer,
		Codec:    codec,
		Logger:   log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(srv.states.Stop)
	return srv
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew(t *testing.T) {
	t.Run("Missing Dependencies", func(t *testing.T) {
		_, err := New(Deps{Config: testConfig(t)})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Shuts Down On Cancel", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = 0
		srv := newTestServer(t, cfg, &tu.MockProvider{}, &stubReplayer{}, testCodec(t))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.ListenAndServe(ctx) }()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Listen Failure", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to reserve a port: %v", err)
		}
		defer ln.Close()

		cfg := testConfig(t)
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
		srv := newTestServer(t, cfg, &tu.MockProvider{}, &stubReplayer{}, testCodec(t))

		if err := srv.ListenAndServe(context.Background()); err == nil {
			t.Error("expected an error for a port in use")
		}
	})

	t.Run("Login URL", func(t *testing.T) {
		srv := newTestServer(t, testConfig(t), &tu.MockProvider{}, &stubReplayer{}, testCodec(t))
		if got := srv.LoginURL(); got != "http://localhost:3050/login" {
			t.Errorf("unexpected login URL %q", got)
		}
	})
}

func TestAuthHandler(t *testing.T) {
	cred := models.SessionCredential{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}
	playlists := []models.Playlist{
		{ID: "p0", URI: "spotify:playlist:p0", Name: "Morning", ImageURL: "https://img.example/640/p0"},
		{ID: "p1", URI: "spotify:playlist:p1", Name: "Evening"},
	}

	newProvider := func() *tu.MockProvider {
		return &tu.MockProvider{ExchangeResult: cred, Lib: &tu.MockLibrary{PlaylistsResult: playlists}}
	}

	t.Run("Login Redirects With State", func(t *testing.T) {
		srv := newTestServer(t, testConfig(t), newProvider(), &stubReplayer{}, testCodec(t))

		rec := get(t, srv.Handler(), "/login")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid location: %v", err)
		}
		state := loc.Query().Get("state")
		if state == "" {
			t.Fatal("expected a state in the authorize URL")
		}
		if !srv.states.Consume(state) {
			t.Error("expected the issued state to be stored")
		}
	})

	t.Run("Callback Error", func(t *testing.T) {
		srv := newTestServer(t, testConfig(t), newProvider(), &stubReplayer{}, testCodec(t))

		rec := get(t, srv.Handler(), "/callback?error=access_denied")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if got := rec.Body.String(); got != "Callback Error: access_denied" {
			t.Errorf("unexpected body %q", got)
		}
	})

	t.Run("Invalid State", func(t *testing.T) {
		provider := newProvider()
		srv := newTestServer(t, testConfig(t), provider, &stubReplayer{}, testCodec(t))

		rec := get(t, srv.Handler(), "/callback?code=abc&state=forged")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(provider.Opened()) != 0 {
			t.Error("expected no provider calls for a forged state")
		}
	})

	t.Run("State Is Single Use", func(t *testing.T) {
		srv := newTestServer(t, testConfig(t), newProvider(), &stubReplayer{}, testCodec(t))
		state := srv.states.Issue()

		if rec := get(t, srv.Handler(), "/callback?code=abc&state="+state); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec := get(t, srv.Handler(), "/callback?code=abc&state="+state); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		provider := newProvider()
		provider.ExchangeErr = shared.ErrAuthExchange
		cfg := testConfig(t)
		cfg.Server.VerifyState = false
		srv := newTestServer(t, cfg, provider, &stubReplayer{}, testCodec(t))

		rec := get(t, srv.Handler(), "/callback?code=bad")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Body.String(), "Error getting Tokens: ") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("Playlists Failure", func(t *testing.T) {
		provider := newProvider()
		provider.Lib.PlaylistsErr = shared.ErrAPIRequest
		cfg := testConfig(t)
		cfg.Server.VerifyState = false
		srv := newTestServer(t, cfg, provider, &stubReplayer{}, testCodec(t))

		if rec := get(t, srv.Handler(), "/callback?code=abc"); rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Renders Selection Page", func(t *testing.T) {
		codec := testCodec(t)
		cfg := testConfig(t)
		cfg.Server.VerifyState = false
		srv := newTestServer(t, cfg, newProvider(), &stubReplayer{}, codec)

		rec := get(t, srv.Handler(), "/callback?code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("expected html, got %q", ct)
		}

		body := rec.Body.String()
		links := linkPattern.FindAllStringSubmatch(body, -1)
		if len(links) != 3 {
			t.Fatalf("expected 3 links, got %d", len(links))
		}
		if !strings.HasPrefix(links[0][1], "/playlist/::ft?token=") {
			t.Errorf("expected featured tracks first, got %q", links[0][1])
		}
		if !strings.HasPrefix(links[1][1], "/playlist/spotify:playlist:p0?token=") {
			t.Errorf("unexpected second link %q", links[1][1])
		}
		if !strings.Contains(body, "https://img.example/640/p0") {
			t.Error("expected the cover image")
		}
		if strings.Contains(body, "access-1") {
			t.Error("page must not contain the plaintext access token")
		}

		u, err := url.Parse(links[2][1])
		if err != nil {
			t.Fatalf("invalid link: %v", err)
		}
		decoded, err := codec.Decode(u.Query().Get("token"))
		if err != nil {
			t.Fatalf("failed to decode embedded token: %v", err)
		}
		if decoded != cred {
			t.Errorf("expected %+v, got %+v", cred, decoded)
		}
	})
}

func TestPlaylistHandler(t *testing.T) {
	cred := models.SessionCredential{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}

	t.Run("Selector From URI", func(t *testing.T) {
		codec := testCodec(t)
		token, _ := codec.Encode(cred)

		tests := []struct {
			name     string
			uri      string
			selector string
		}{
			{name: "Playlist", uri: "spotify:playlist:p0", selector: "p0"},
			{name: "Featured Tracks", uri: "::ft", selector: "ft"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				replayer := &stubReplayer{}
				srv := newTestServer(t, testConfig(t), &tu.MockProvider{}, replayer, codec)

				rec := get(t, srv.Handler(), PlaylistPath(tt.uri, token))
				if rec.Code != http.StatusFound {
					t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
				}
				if loc := rec.Header().Get("Location"); loc != "/success" {
					t.Errorf("expected redirect to /success, got %q", loc)
				}
				if replayer.selector != tt.selector {
					t.Errorf("expected selector %q, got %q", tt.selector, replayer.selector)
				}
				if replayer.cred != cred {
					t.Errorf("expected decoded credential, got %+v", replayer.cred)
				}
			})
		}
	})

	t.Run("Error Status", func(t *testing.T) {
		codec := testCodec(t)
		token, _ := codec.Encode(cred)

		tests := []struct {
			name   string
			err    error
			status int
		}{
			{name: "No Device", err: shared.ErrNoActiveDevice, status: http.StatusConflict},
			{name: "Empty Playlist", err: shared.ErrEmptyPlaylist, status: http.StatusUnprocessableEntity},
			{name: "Provider Failure", err: shared.ErrAPIRequest, status: http.StatusBadGateway},
			{name: "Enqueue Failure", err: shared.ErrEnqueue, status: http.StatusBadGateway},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newTestServer(t, testConfig(t), &tu.MockProvider{}, &stubReplayer{err: tt.err}, codec)

				if rec := get(t, srv.Handler(), PlaylistPath("spotify:playlist:p0", token)); rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
			})
		}
	})

	t.Run("Invalid Token", func(t *testing.T) {
		tests := []struct {
			name  string
			token string
		}{
			{name: "Missing", token: ""},
			{name: "Garbage", token: "not-a-token"},
			{name: "Other Key", token: func() string {
				tok, _ := testCodec(t).Encode(cred)
				return tok
			}()},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				replayer := &stubReplayer{}
				srv := newTestServer(t, testConfig(t), &tu.MockProvider{}, replayer, testCodec(t))

				rec := get(t, srv.Handler(), PlaylistPath("spotify:playlist:p0", tt.token))
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
				if replayer.selector != "" {
					t.Error("expected no replay for an invalid token")
				}
			})
		}
	})

	t.Run("No Device Through Engine", func(t *testing.T) {
		codec := testCodec(t)
		token, _ := codec.Encode(cred)
		lib := &tu.MockLibrary{TracksResult: tu.Tracks(10)}
		provider := &tu.MockProvider{Lib: lib}
		engine := tasks.NewReplayEngine(provider, nil, log.New(io.Discard), tasks.DefaultReplayOptions())
		srv := newTestServer(t, testConfig(t), provider, engine, codec)

		rec := get(t, srv.Handler(), PlaylistPath("spotify:playlist:p0", token))
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
		if len(lib.PlayCalls()) != 0 || len(lib.Enqueued()) != 0 {
			t.Error("expected no play or queue calls without a device")
		}
	})
}

func TestPagesHandler(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Server.StaticDir, "style.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("failed to write static file: %v", err)
	}
	srv := newTestServer(t, cfg, &tu.MockProvider{}, &stubReplayer{}, testCodec(t))

	t.Run("Health Check", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/healthz")
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Errorf("expected 200 ok, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Success Page", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/success")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "true random order") {
			t.Error("expected the confirmation text")
		}
	})

	t.Run("Static File", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/style.css")
		if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
			t.Errorf("expected static content, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		if rec := get(t, srv.Handler(), "/missing.js"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Render Failure Is Logged", func(t *testing.T) {
		var logs bytes.Buffer
		h := NewPagesHandler(log.New(&logs))
		h.success = template.Must(template.New("success.html").Funcs(template.FuncMap{
			"fail": func() (string, error) { return "", errors.New("template exploded") },
		}).Parse(`<p>{{fail}}</p>`))

		rec := get(t, h, "/success")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "<p>") {
			t.Error("expected no partial page")
		}
		if !strings.Contains(logs.String(), "template exploded") {
			t.Errorf("expected the render error to be logged, got %q", logs.String())
		}
	})
}

func TestEndToEnd(t *testing.T) {
	fake := tu.NewFakeSpotify(t)
	cfg := testConfig(t)
	cfg.Credentials.Spotify = fake.Config()

	svc, err := services.NewSpotifyService(cfg.Credentials.Spotify, cfg.RedirectURI())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	svc.SetLogger(log.New(io.Discard))
	engine := tasks.NewReplayEngine(svc, nil, log.New(io.Discard), tasks.DefaultReplayOptions())
	srv := newTestServer(t, cfg, svc, engine, testCodec(t))
	h := srv.Handler()

	login := get(t, h, "/login")
	loc, err := url.Parse(login.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), fake.Server.URL+"/authorize") {
		t.Fatalf("expected the fake authorize URL, got %q", loc)
	}

	page := get(t, h, "/callback?code=abc&state="+url.QueryEscape(loc.Query().Get("state")))
	if page.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", page.Code, page.Body.String())
	}
	links := linkPattern.FindAllStringSubmatch(page.Body.String(), -1)
	if len(links) != 4 {
		t.Fatalf("expected featured tracks plus 3 playlists, got %d links", len(links))
	}

	rec := get(t, h, links[0][1])
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}

	played, device := fake.Played()
	if len(played) != 50 || device != "dev-1" {
		t.Errorf("expected 50 tracks played on dev-1, got %d on %q", len(played), device)
	}
	if queued := fake.Queued(); len(queued) != 70 {
		t.Errorf("expected 70 queued tracks, got %d", len(queued))
	}
}
