package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/teremich/spotify-true-random/internal/models"
	"github.com/teremich/spotify-true-random/internal/services"
	"github.com/teremich/spotify-true-random/internal/session"
	"github.com/teremich/spotify-true-random/internal/shared"
)

// playlistLink is one entry on the selection page.
type playlistLink struct {
	Name     string
	ImageURL string
	Href     string
	Featured bool
}

// AuthHandler runs the authorization code flow: /login sends the browser to the provider,
// /callback exchanges the code and renders the playlist selection page.
type AuthHandler struct {
	provider    services.Provider
	codec       *session.Codec
	states      *StateStore
	verifyState bool
	logger      *log.Logger
	page        *template.Template
}

// NewAuthHandler creates an AuthHandler. With verifyState off any state is accepted on callback.
func NewAuthHandler(provider services.Provider, codec *session.Codec, states *StateStore, verifyState bool, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		provider:    provider,
		codec:       codec,
		states:      states,
		verifyState: verifyState,
		logger:      logger,
		page:        templates.Lookup("playlists.html"),
	}
}

func (h *AuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.provider.AuthURL(h.states.Issue()), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if e := query.Get("error"); e != "" {
		writeText(w, http.StatusOK, "Callback Error: "+e)
		return
	}

	if h.verifyState && !h.states.Consume(query.Get("state")) {
		writeText(w, http.StatusBadRequest, shared.ErrInvalidState.Error())
		return
	}

	cred, err := h.provider.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.logger.Warn("code exchange failed", "err", err)
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Error getting Tokens: %v", err))
		return
	}

	playlists, err := h.provider.Library(r.Context(), cred).Playlists(r.Context())
	if err != nil {
		h.logger.Error("failed to list playlists", "err", err)
		writeText(w, http.StatusBadGateway, fmt.Sprintf("Error getting Playlists: %v", err))
		return
	}

	token, err := h.codec.Encode(cred)
	if err != nil {
		h.logger.Error("failed to encode session", "err", err)
		writeText(w, http.StatusInternalServerError, "Error creating session")
		return
	}

	entries := append([]models.Playlist{models.FeaturedTracksPlaylist()}, playlists...)
	links := make([]playlistLink, 0, len(entries))
	for _, p := range entries {
		links = append(links, playlistLink{
			Name:     p.Name,
			ImageURL: p.ImageURL,
			Href:     PlaylistPath(p.URI, token),
			Featured: p.FeaturedTracks,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, links); err != nil {
		h.logger.Error("failed to render playlists", "err", err)
	}
}

// PlaylistPath builds the selection link for a playlist URI carrying the session token.
func PlaylistPath(uri, token string) string {
	return "/playlist/" + url.PathEscape(uri) + "?token=" + url.QueryEscape(token)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}
