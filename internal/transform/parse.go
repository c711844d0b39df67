package transform

import (
	"strconv"
	"strings"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
	"github.com/linuxmatters/codecflux/internal/transform/audio"
	"github.com/linuxmatters/codecflux/internal/transform/video"
)

// StreamParams carries the source stream properties some transforms
// need at construction time: fades and limiters size their windows in
// samples, video operators need the source geometry.
type StreamParams struct {
	SampleRate int
	Channels   int
	Width      int
	Height     int
}

// Parse builds one transform from a "name" or "name=arg1,arg2,..."
// specification.
func Parse(spec string, p StreamParams) (media.Transform, error) {
	name, argStr, _ := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	var args []string
	if argStr != "" {
		args = strings.Split(argStr, ",")
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}

	switch name {
	case "gain":
		k, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return audio.NewGain(k), nil

	case "normalize":
		if len(args) == 0 {
			return audio.DefaultNormalize(), nil
		}
		peak, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return audio.NewNormalize(peak), nil

	case "lowpass":
		if len(args) < 1 || len(args) > 2 {
			return nil, ioutil.InvalidData("lowpass takes a cutoff frequency and optional Q")
		}
		cutoff, err := parseFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		lp := audio.NewLowpass(cutoff)
		if len(args) == 2 {
			q, err := parseFloat(name, args[1])
			if err != nil {
				return nil, err
			}
			lp.WithQ(q)
		}
		return lp, nil

	case "eq":
		if len(args) != 3 {
			return nil, ioutil.InvalidData("eq takes exactly bass,mid,treble gains in dB")
		}
		gains := make([]float64, 3)
		for i, a := range args {
			v, err := parseFloat(name, a)
			if err != nil {
				return nil, err
			}
			gains[i] = v
		}
		return audio.ThreeBandEqualizer(gains[0], gains[1], gains[2]), nil

	case "peak_limiter":
		db, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return audio.NewPeakLimiter(db), nil

	case "rms_limiter":
		if len(args) != 2 {
			return nil, ioutil.InvalidData("rms_limiter takes threshold_db,window_ms")
		}
		db, err := parseFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		window, err := parseFloat(name, args[1])
		if err != nil {
			return nil, err
		}
		return audio.NewRmsLimiter(db, window, p.SampleRate), nil

	case "fadein":
		ms, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return audio.NewFadeIn(ms, p.SampleRate), nil

	case "fadeout":
		if len(args) != 2 {
			return nil, ioutil.InvalidData("fadeout takes duration_ms,total_ms")
		}
		ms, err := parseFloat(name, args[0])
		if err != nil {
			return nil, err
		}
		total, err := parseFloat(name, args[1])
		if err != nil {
			return nil, err
		}
		return audio.NewFadeOut(ms, total, p.SampleRate), nil

	case "crossfade":
		ms, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return audio.NewCrossfade(ms, p.SampleRate, p.Channels), nil

	case "mix":
		if len(args) != 1 {
			return nil, ioutil.InvalidData("mix takes mono or stereo")
		}
		switch args[0] {
		case "mono":
			return audio.StereoToMono(), nil
		case "stereo":
			return audio.MonoToStereo(), nil
		}
		return nil, ioutil.InvalidData("unknown mix target %q", args[0])

	case "resample":
		rate, err := oneInt(name, args)
		if err != nil {
			return nil, err
		}
		if rate <= 0 {
			return nil, ioutil.InvalidData("resample rate must be positive")
		}
		return audio.NewResample(rate), nil

	case "scale":
		w, h, err := parseDims(name, args)
		if err != nil {
			return nil, err
		}
		return video.NewScale(p.Width, p.Height, w, h), nil

	case "crop":
		w, h, x, y, err := parseGeometry(name, args)
		if err != nil {
			return nil, err
		}
		return video.NewCrop(w, h, x, y), nil

	case "pad":
		w, h, x, y, err := parseGeometry(name, args)
		if err != nil {
			return nil, err
		}
		return video.NewPad(w, h, x, y), nil

	case "rotate":
		deg, err := oneInt(name, args)
		if err != nil {
			return nil, err
		}
		if deg != 90 && deg != 180 && deg != 270 {
			return nil, ioutil.InvalidData("rotate takes 90, 180, or 270")
		}
		return video.NewRotate(deg), nil

	case "flip":
		if len(args) != 1 {
			return nil, ioutil.InvalidData("flip takes h or v")
		}
		switch args[0] {
		case "h":
			return video.NewFlip(video.Horizontal), nil
		case "v":
			return video.NewFlip(video.Vertical), nil
		}
		return nil, ioutil.InvalidData("unknown flip direction %q", args[0])

	case "blur":
		r, err := oneInt(name, args)
		if err != nil {
			return nil, err
		}
		if r < 0 {
			return nil, ioutil.InvalidData("blur radius must not be negative")
		}
		return video.NewBlur(r), nil

	case "brightness":
		k, err := oneFloat(name, args)
		if err != nil {
			return nil, err
		}
		return video.NewBrightness(k), nil
	}

	return nil, ioutil.InvalidData("unknown transform %q", name)
}

// ParseChain builds a Chain from multiple specifications, in order.
func ParseChain(specs []string, p StreamParams) (*Chain, error) {
	chain := NewChain()
	for _, spec := range specs {
		t, err := Parse(spec, p)
		if err != nil {
			return nil, err
		}
		chain.Append(t)
	}
	return chain, nil
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ioutil.InvalidData("%s: bad numeric argument %q", name, s)
	}
	return v, nil
}

func oneFloat(name string, args []string) (float64, error) {
	if len(args) != 1 {
		return 0, ioutil.InvalidData("%s takes exactly one argument", name)
	}
	return parseFloat(name, args[0])
}

func oneInt(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, ioutil.InvalidData("%s takes exactly one argument", name)
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, ioutil.InvalidData("%s: bad integer argument %q", name, args[0])
	}
	return v, nil
}

// parseDims reads a "WxH" argument.
func parseDims(name string, args []string) (w, h int, err error) {
	if len(args) != 1 {
		return 0, 0, ioutil.InvalidData("%s takes WxH", name)
	}
	ws, hs, ok := strings.Cut(args[0], "x")
	if !ok {
		return 0, 0, ioutil.InvalidData("%s takes WxH, got %q", name, args[0])
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, ioutil.InvalidData("%s: bad dimensions %q", name, args[0])
	}
	return w, h, nil
}

// parseGeometry reads "WxH@x,y"; the comma in the offset means the
// argument arrives split across two comma-separated fields.
func parseGeometry(name string, args []string) (w, h, x, y int, err error) {
	if len(args) != 2 {
		return 0, 0, 0, 0, ioutil.InvalidData("%s takes WxH@x,y", name)
	}
	dims, xs, ok := strings.Cut(args[0], "@")
	if !ok {
		return 0, 0, 0, 0, ioutil.InvalidData("%s takes WxH@x,y, got %q", name, args[0])
	}
	w, h, err = parseDims(name, []string{dims})
	if err != nil {
		return 0, 0, 0, 0, err
	}
	x, err1 := strconv.Atoi(xs)
	y, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || x < 0 || y < 0 {
		return 0, 0, 0, 0, ioutil.InvalidData("%s: bad offset in %q,%q", name, args[0], args[1])
	}
	return w, h, x, y, nil
}
