package intake

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync"
)

const sampleSize = 64

// sampleRecipe describes a generated sample: a base colour with circular
// blotches, enough to look like a leaf or a crate of produce in a thumbnail.
type sampleRecipe struct {
	base  color.RGBA
	spot  color.RGBA
	spots []image.Point
}

var sampleRecipes = map[string]sampleRecipe{
	"diseased": {
		base:  color.RGBA{R: 74, G: 124, B: 46, A: 255},
		spot:  color.RGBA{R: 110, G: 72, B: 30, A: 255},
		spots: []image.Point{{14, 18}, {40, 22}, {28, 44}, {50, 50}},
	},
	"healthy": {
		base: color.RGBA{R: 58, G: 150, B: 52, A: 255},
	},
	"fresh-produce": {
		base:  color.RGBA{R: 196, G: 40, B: 36, A: 255},
		spot:  color.RGBA{R: 230, G: 90, B: 60, A: 255},
		spots: []image.Point{{16, 16}, {48, 16}, {16, 48}, {48, 48}},
	},
}

type sampleSet struct {
	once    sync.Once
	encoded map[string][]byte
	err     error
}

var defaultSamples = &sampleSet{}

func (s *sampleSet) load() {
	s.encoded = make(map[string][]byte, len(sampleRecipes))
	for name, recipe := range sampleRecipes {
		data, err := renderSample(recipe)
		if err != nil {
			s.err = fmt.Errorf("render sample %s: %w", name, err)
			return
		}
		s.encoded[name] = data
	}
}

func (s *sampleSet) bytes(name string) ([]byte, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.encoded[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSample, name)
	}
	return bytes.Clone(data), nil
}

func (s *sampleSet) names() []string {
	names := make([]string, 0, len(sampleRecipes))
	for name := range sampleRecipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func renderSample(recipe sampleRecipe) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, sampleSize, sampleSize))
	const radius = 6
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			c := recipe.base
			for _, p := range recipe.spots {
				dx, dy := x-p.X, y-p.Y
				if dx*dx+dy*dy <= radius*radius {
					c = recipe.spot
					break
				}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
