package audio

import "github.com/linuxmatters/codecflux/internal/media"

// ChannelLayout names a target channel count ChannelMixer can convert to.
type ChannelLayout int

const (
	Mono ChannelLayout = iota
	Stereo
)

// ChannelMixer remixes a frame's channel count, averaging stereo down to
// mono or duplicating mono up to stereo. Frames already at the target
// layout pass through unchanged.
type ChannelMixer struct {
	Target ChannelLayout
}

func NewChannelMixer(target ChannelLayout) *ChannelMixer {
	return &ChannelMixer{Target: target}
}

func MonoToStereo() *ChannelMixer { return NewChannelMixer(Stereo) }
func StereoToMono() *ChannelMixer { return NewChannelMixer(Mono) }

func (m *ChannelMixer) targetChannels() int {
	if m.Target == Stereo {
		return 2
	}
	return 1
}

func (m *ChannelMixer) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}

	target := m.targetChannels()
	if audio.Channels == target {
		return f, nil
	}

	n := audio.NumSamples()
	var out *media.AudioFrame
	switch {
	case audio.Channels == 1 && target == 2:
		out = media.NewAudioFrame(audio.SampleRate, 2, n)
		copy(out.Samples[0], audio.Samples[0])
		copy(out.Samples[1], audio.Samples[0])
	case audio.Channels == 2 && target == 1:
		out = media.NewAudioFrame(audio.SampleRate, 1, n)
		for i := 0; i < n; i++ {
			out.Samples[0][i] = (audio.Samples[0][i] + audio.Samples[1][i]) / 2
		}
	default:
		return f, nil
	}

	return media.NewAudioFrameWrapper(f.StreamIdx, f.PTS, f.Timebase, out), nil
}

func (m *ChannelMixer) Name() string { return "channel_mixer" }
