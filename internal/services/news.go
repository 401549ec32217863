package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// NewsService provides headline lookups via NewsAPI.
type NewsService struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewNewsService creates a news service. An empty apiKey enables demo mode.
func NewNewsService(apiKey string) *NewsService {
	return &NewsService{
		apiKey:  apiKey,
		baseURL: "https://newsapi.org/v2",
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
	}
}

// IsConfigured reports whether a real API key is available.
func (s *NewsService) IsConfigured() bool { return s.apiKey != "" }

type newsResponse struct {
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		URL string `json:"url"`
	} `json:"articles"`
}

// TopHeadlines returns formatted top headlines, optionally filtered by topic.
func (s *NewsService) TopHeadlines(ctx context.Context, topic string) string {
	if !s.IsConfigured() {
		if topic != "" {
			return fmt.Sprintf("📰 Demo headlines about %s:\n• Markets steady as tech rallies\n• Local team wins derby\nSet NEWS_API_KEY for live headlines.", topic)
		}
		return "📰 Demo headlines:\n• Markets steady as tech rallies\n• Rain expected across the Cape this weekend\nSet NEWS_API_KEY for live headlines."
	}

	query := url.Values{"apiKey": {s.apiKey}, "pageSize": {"5"}, "language": {"en"}}
	endpoint := s.baseURL + "/top-headlines"
	if topic != "" {
		query.Set("q", topic)
		endpoint = s.baseURL + "/everything"
		query.Set("sortBy", "publishedAt")
	} else {
		query.Set("country", "us")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "⚠️ News service is unavailable right now."
	}
	resp, err := s.http.Do(req)
	if err != nil {
		slog.Error("NewsService request failed", "error", err)
		return "⚠️ News service is unavailable right now."
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("NewsService unexpected status", "status", resp.StatusCode)
		return "⚠️ News service is unavailable right now."
	}

	var body newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "⚠️ News service returned an unreadable response."
	}
	if len(body.Articles) == 0 {
		return "📰 No headlines found right now."
	}

	out := "📰 Top headlines:\n"
	for _, a := range body.Articles {
		out += fmt.Sprintf("• %s (%s)\n", a.Title, a.Source.Name)
	}
	return out
}
