// Package stream opens playable PCM streams for YouTube tracks and pushes
// them to a voice connection as opus frames. The stream URL comes from the
// YouTube API; ffmpeg decodes it to raw s16le PCM on a pipe.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"time"

	"groovebot/internal/music/track"
	"groovebot/pkg/retrylimit"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"golang.org/x/net/proxy"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz
)

// Opener turns a track URL into metadata plus a PCM stream. The cleanup
// function must be called when the stream is done.
type Opener interface {
	Open(ctx context.Context, trackURL string) (*track.Track, io.ReadCloser, func(), error)
}

// YouTubeOpener opens streams via the YouTube API and an ffmpeg child process.
type YouTubeOpener struct {
	client  *youtube.Client
	limiter *retrylimit.AdaptiveLimiter
}

// NewYouTubeOpener creates an opener. proxyURL may be empty; otherwise it is
// an http/https/socks5/socks4 URL the YouTube API traffic is routed through.
func NewYouTubeOpener(proxyURL string) *YouTubeOpener {
	return &YouTubeOpener{
		client: &youtube.Client{
			HTTPClient: NewHTTPClient(proxyURL),
		},
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
	}
}

// Open fetches video info, picks the first audio format and spawns ffmpeg to
// decode the stream URL into s16le PCM.
func (o *YouTubeOpener) Open(ctx context.Context, trackURL string) (*track.Track, io.ReadCloser, func(), error) {
	videoID, err := youtube.ExtractVideoID(trackURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid track URL: %w", err)
	}

	var video *youtube.Video
	err = retrylimit.WithRetryMax(ctx, func() error {
		v, err := o.client.GetVideoContext(ctx, videoID)
		if err != nil {
			return err
		}
		video = v
		return nil
	}, o.limiter, 3)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("video lookup failed: %w", err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nil, nil, errors.New("no audio formats found for video")
	}

	link, err := o.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get stream URL: %w", err)
	}

	// The load context only scopes the lookup; the decoder must outlive it
	// for the whole playback run and is torn down via cleanup.
	pcm, cleanup, err := decodeToPCM(context.WithoutCancel(ctx), link)
	if err != nil {
		return nil, nil, nil, err
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	meta := &track.Track{
		URL:       "https://www.youtube.com/watch?v=" + video.ID,
		Title:     video.Title,
		Author:    video.Author,
		Thumbnail: thumbnail,
		Duration:  video.Duration,
	}
	return meta, pcm, cleanup, nil
}

// decodeToPCM spawns ffmpeg reading the remote link and writing raw PCM to a
// pipe. The reconnect flags keep long tracks alive over flaky CDN links.
func decodeToPCM(ctx context.Context, link string) (io.ReadCloser, func(), error) {
	ffmpeg := exec.CommandContext(ctx, "ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", fmt.Sprintf("%d", Channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	cleanup := func() {
		if ffmpeg.Process != nil {
			_ = ffmpeg.Process.Kill()
		}
		_ = ffmpeg.Wait()
	}
	return stdout, cleanup, nil
}

// NewHTTPClient builds an HTTP client, optionally routed through a proxy.
// Unsupported or malformed proxy URLs fall back to a direct client.
func NewHTTPClient(proxyStr string) *http.Client {
	base := &http.Client{Timeout: 15 * time.Second}
	if proxyStr == "" {
		return base
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Printf("[WARN] Invalid media proxy %q: %v", proxyStr, err)
		return base
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5", "socks4":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Printf("[WARN] Media proxy dialer error: %v", err)
			return base
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		log.Printf("[WARN] Unsupported media proxy scheme: %s", proxyURL.Scheme)
		return base
	}

	log.Printf("[INFO] Routing media lookups through %s proxy", proxyURL.Scheme)
	return &http.Client{Timeout: 15 * time.Second, Transport: transport}
}
