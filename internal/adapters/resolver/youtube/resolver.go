package youtube

import (
	"context"
	"fmt"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"

	"github.com/billaspace/anonxmusic/internal/domain"
)

// Resolver turns a YouTube link into a playable track with a direct audio
// stream URL.
type Resolver struct {
	client ytdl.Client
}

func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Resolve(ctx context.Context, query string) (domain.Track, error) {
	videoID, err := ytdl.ExtractVideoID(strings.TrimSpace(query))
	if err != nil {
		return domain.Track{}, fmt.Errorf("extract video id: %w", domain.ErrTrackNotFound)
	}

	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Track{}, fmt.Errorf("fetch video %s: %w", videoID, err)
		}
		return domain.Track{}, fmt.Errorf("fetch video %s: %w", videoID, domain.ErrTrackNotFound)
	}

	format, ok := pickAudioFormat(video)
	if !ok {
		return domain.Track{}, fmt.Errorf("video %s: %w", videoID, domain.ErrTrackUnsupported)
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, &format)
	if err != nil {
		return domain.Track{}, fmt.Errorf("stream url for %s: %w", videoID, err)
	}

	return domain.Track{
		ID:       videoID,
		Title:    video.Title,
		Duration: video.Duration,
		MediaURL: streamURL,
	}, nil
}

// pickAudioFormat prefers the highest-bitrate audio/mp4 format. Video tracks
// carry audio too, but the group-call stream only needs the audio rendition.
func pickAudioFormat(video *ytdl.Video) (ytdl.Format, bool) {
	var best ytdl.Format
	found := false
	for _, f := range video.Formats.WithAudioChannels() {
		if !strings.HasPrefix(f.MimeType, "audio/mp4") {
			continue
		}
		if !found || f.Bitrate > best.Bitrate {
			best = f
			found = true
		}
	}
	if found {
		return best, true
	}

	// Some uploads expose no audio-only rendition at all; fall back to the
	// smallest muxed format rather than refusing the track outright.
	for _, f := range video.Formats.WithAudioChannels() {
		if !found || f.Bitrate < best.Bitrate {
			best = f
			found = true
		}
	}
	return best, found
}
