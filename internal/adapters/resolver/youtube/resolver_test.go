package youtube

import (
	"testing"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickAudioFormat_PrefersHighestBitrateAudio(t *testing.T) {
	t.Parallel()

	video := &ytdl.Video{
		Formats: ytdl.FormatList{
			{ItagNo: 18, MimeType: "video/mp4", Bitrate: 500_000, AudioChannels: 2},
			{ItagNo: 140, MimeType: "audio/mp4; codecs=\"mp4a.40.2\"", Bitrate: 128_000, AudioChannels: 2},
			{ItagNo: 139, MimeType: "audio/mp4; codecs=\"mp4a.40.5\"", Bitrate: 48_000, AudioChannels: 2},
		},
	}

	format, ok := pickAudioFormat(video)
	require.True(t, ok)
	assert.Equal(t, 140, format.ItagNo)
}

func TestPickAudioFormat_FallsBackToMuxed(t *testing.T) {
	t.Parallel()

	video := &ytdl.Video{
		Formats: ytdl.FormatList{
			{ItagNo: 22, MimeType: "video/mp4", Bitrate: 1_000_000, AudioChannels: 2},
			{ItagNo: 18, MimeType: "video/mp4", Bitrate: 500_000, AudioChannels: 2},
		},
	}

	format, ok := pickAudioFormat(video)
	require.True(t, ok)
	assert.Equal(t, 18, format.ItagNo)
}

func TestPickAudioFormat_NoAudio(t *testing.T) {
	t.Parallel()

	video := &ytdl.Video{
		Formats: ytdl.FormatList{
			{ItagNo: 160, MimeType: "video/mp4", Bitrate: 250_000},
		},
	}

	_, ok := pickAudioFormat(video)
	assert.False(t, ok)
}
