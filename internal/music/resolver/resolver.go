// Package resolver classifies raw user input as a direct track URL or a
// search term, runs search queries, and looks up track metadata on demand.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"groovebot/internal/music/track"
	"groovebot/pkg/retrylimit"

	youtube "github.com/kkdai/youtube/v2"
	"github.com/raitonoberu/ytsearch"
)

// Kind tags the outcome of input classification.
type Kind int

const (
	KindDirectTrack Kind = iota
	KindSearchQuery
)

// ResolvedInput is the classification result: either a playable URL or a
// search term to disambiguate.
type ResolvedInput struct {
	Kind Kind
	URL  string // canonical watch URL when Kind == KindDirectTrack
	Term string // when Kind == KindSearchQuery
}

var ErrEmptyInput = errors.New("empty input")

type searchFunc func(term string, limit int) ([]track.Candidate, error)

// Resolver wraps the metadata client and search provider.
type Resolver struct {
	client  *youtube.Client
	limiter *retrylimit.AdaptiveLimiter
	search  searchFunc
}

// New creates a Resolver. httpClient may be nil; pass a proxied client to
// route metadata lookups through MEDIA_PROXY.
func New(httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{
		client:  &youtube.Client{HTTPClient: httpClient},
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		search:  searchProvider,
	}
}

// Resolve decides whether input is a direct track URL or a search term.
func (r *Resolver) Resolve(input string) (ResolvedInput, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ResolvedInput{}, ErrEmptyInput
	}

	if id, err := youtube.ExtractVideoID(input); err == nil && looksLikeURL(input) {
		return ResolvedInput{
			Kind: KindDirectTrack,
			URL:  "https://www.youtube.com/watch?v=" + id,
		}, nil
	}

	return ResolvedInput{Kind: KindSearchQuery, Term: input}, nil
}

// Search queries the provider and returns up to limit ranked candidates.
// Empty input short-circuits without calling the provider; provider failures
// are logged and surface as an empty list so callers render "no results"
// uniformly.
func (r *Resolver) Search(term string, limit int) []track.Candidate {
	if strings.TrimSpace(term) == "" {
		return nil
	}

	candidates, err := r.search(term, limit)
	if err != nil {
		log.Printf("[WARN] Search failed for %q: %v", term, err)
		return nil
	}
	return candidates
}

// Metadata fetches track metadata for a watch URL. Fetched fresh on each
// call; YouTube lookups are flaky enough to warrant a bounded retry.
func (r *Resolver) Metadata(ctx context.Context, url string) (*track.Track, error) {
	var video *youtube.Video
	err := retrylimit.WithRetryMax(ctx, func() error {
		v, err := r.client.GetVideoContext(ctx, url)
		if err != nil {
			return err
		}
		video = v
		return nil
	}, r.limiter, 3)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup failed: %w", err)
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	return &track.Track{
		URL:       "https://www.youtube.com/watch?v=" + video.ID,
		Title:     video.Title,
		Author:    video.Author,
		Thumbnail: thumbnail,
		Duration:  video.Duration,
	}, nil
}

// searchProvider is the live ytsearch-backed search.
func searchProvider(term string, limit int) ([]track.Candidate, error) {
	search := ytsearch.VideoSearch(term)
	results, err := search.Next()
	if err != nil {
		return nil, err
	}

	var out []track.Candidate
	for _, v := range results.Videos {
		if len(out) >= limit {
			break
		}
		out = append(out, track.Candidate{
			Title:    v.Title,
			Duration: time.Duration(v.Duration) * time.Second,
			URL:      "https://www.youtube.com/watch?v=" + v.ID,
		})
	}
	return out, nil
}

// looksLikeURL filters out bare video IDs: ExtractVideoID accepts an 11-char
// ID on its own, but users typing one almost certainly meant a search.
func looksLikeURL(input string) bool {
	return strings.Contains(input, "youtube.com/") ||
		strings.Contains(input, "youtu.be/") ||
		strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://")
}
