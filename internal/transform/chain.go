// Package transform composes the audio and video frame processors into
// ordered chains and parses the CLI's "name=arg1,arg2" transform
// specifications into concrete instances.
package transform

import (
	"strings"

	"github.com/linuxmatters/codecflux/internal/media"
)

// Chain applies a list of transforms in order, stopping at the first
// error. Transforms targeting the other media kind pass frames through
// untouched, so audio and video transforms can share one chain.
type Chain struct {
	transforms []media.Transform
}

func NewChain(transforms ...media.Transform) *Chain {
	return &Chain{transforms: transforms}
}

func (c *Chain) Append(t media.Transform) {
	c.transforms = append(c.transforms, t)
}

func (c *Chain) Len() int {
	return len(c.transforms)
}

func (c *Chain) Process(f media.Frame) (media.Frame, error) {
	var err error
	for _, t := range c.transforms {
		f, err = t.Process(f)
		if err != nil {
			return media.Frame{}, err
		}
	}
	return f, nil
}

func (c *Chain) Name() string {
	if len(c.transforms) == 0 {
		return "identity"
	}
	names := make([]string, len(c.transforms))
	for i, t := range c.transforms {
		names[i] = t.Name()
	}
	return strings.Join(names, ",")
}
