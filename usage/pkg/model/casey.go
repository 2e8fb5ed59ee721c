package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/thinkparq/fsstrata/common/types"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/vfs"
)

const (
	CaseyName = "Casey"
	// photoSuffix is appended to every photo file name.
	photoSuffix = ".jpg"
)

var caseyDescriptor = Descriptor{
	Name: CaseyName,
	Description: "Simulates a camera. Every step takes a series of 1 to max_photo_num photos of " +
		"one randomly chosen resolution and then deletes the series in random order, except for " +
		"the last series which is kept. A step therefore produces several operations.",
	Parameters: []Parameter{
		{Key: "resolutions", Type: "list", Description: "photo resolutions as WIDTHxHEIGHT", Example: []any{"4000x3000", "1920x1080"}},
		{Key: "max_photo_num", Type: "int", Description: "largest number of photos in one series", Example: 10},
		{Key: "series_num", Type: "int", Description: "number of series", Example: 20},
		{Key: "bit_depth", Type: "int", Description: "bits per channel", Default: 8},
		{Key: "channel_num", Type: "int", Description: "channels per pixel", Default: 3},
	},
	factory: func(cfg Config) (Model, error) { return NewCasey(cfg) },
}

var resolutionPattern = regexp.MustCompile(`^(\d+)[xX](\d+)$`)

type caseyParams struct {
	Resolutions []string `mapstructure:"resolutions"`
	MaxPhotoNum int      `mapstructure:"max_photo_num"`
	SeriesNum   int      `mapstructure:"series_num"`
	BitDepth    int64    `mapstructure:"bit_depth"`
	ChannelNum  int64    `mapstructure:"channel_num"`
}

// photoSizes validates the parameters and returns the file size for each resolution.
func (p caseyParams) photoSizes() ([]int64, error) {
	errs := &types.MultiError{}
	if p.MaxPhotoNum < 1 {
		errs.Add(fmt.Errorf("max_photo_num must be greater than 0 (got %d)", p.MaxPhotoNum))
	}
	if p.SeriesNum < 1 {
		errs.Add(fmt.Errorf("series_num must be greater than 0 (got %d)", p.SeriesNum))
	}
	if p.BitDepth < 1 {
		errs.Add(fmt.Errorf("bit_depth must be greater than 0 (got %d)", p.BitDepth))
	}
	if p.ChannelNum < 1 {
		errs.Add(fmt.Errorf("channel_num must be greater than 0 (got %d)", p.ChannelNum))
	}
	if len(p.Resolutions) == 0 {
		errs.Add(fmt.Errorf("resolutions must not be empty"))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	pixel, ok := mulInt64(ceilDiv(p.BitDepth, 8), p.ChannelNum)
	if !ok {
		return nil, fmt.Errorf("bit_depth %d with channel_num %d exceeds the largest supported pixel size", p.BitDepth, p.ChannelNum)
	}
	sizes := make([]int64, 0, len(p.Resolutions))
	for _, r := range p.Resolutions {
		m := resolutionPattern.FindStringSubmatch(strings.TrimSpace(r))
		if m == nil {
			errs.Add(fmt.Errorf("resolution %q must have the format WIDTHxHEIGHT", r))
			continue
		}
		w, errW := strconv.ParseInt(m[1], 10, 64)
		h, errH := strconv.ParseInt(m[2], 10, 64)
		if errW != nil || errH != nil || w < 1 || h < 1 {
			errs.Add(fmt.Errorf("resolution %q must have positive dimensions", r))
			continue
		}
		pixels, okPixels := mulInt64(w, h)
		size, okSize := mulInt64(pixels, pixel)
		if !okPixels || !okSize {
			errs.Add(fmt.Errorf("photo size of resolution %q exceeds %d bytes", r, int64(math.MaxInt64)))
			continue
		}
		sizes = append(sizes, size)
	}
	return sizes, errs.ErrorOrNil()
}

// mulInt64 multiplies two positive numbers and reports whether the product fits an int64.
func mulInt64(a, b int64) (int64, bool) {
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func ceilDiv(a, b int64) int64 {
	return a/b + min(a%b, 1)
}

type caseyPhase int

const (
	phaseIdle caseyPhase = iota
	phaseCapture
	phaseDelete
)

// Casey produces series of photo writes followed by their deletion.
type Casey struct {
	vfs    *vfs.VFS
	params caseyParams
	sizes  []int64

	series    int
	phase     caseyPhase
	remaining int
	size      int64
	taken     []string
}

func NewCasey(cfg Config) (*Casey, error) {
	if err := requireVFS(CaseyName, cfg); err != nil {
		return nil, err
	}
	p := caseyParams{BitDepth: 8, ChannelNum: 3}
	if err := decodeParameters(CaseyName, cfg.Parameters, &p, "bit_depth", "channel_num"); err != nil {
		return nil, err
	}
	sizes, err := p.photoSizes()
	if err != nil {
		return nil, configError(CaseyName, err)
	}
	return &Casey{vfs: cfg.VFS, params: p, sizes: sizes}, nil
}

func (m *Casey) Name() string { return CaseyName }

// Steps returns the number of series.
func (m *Casey) Steps() int { return m.params.SeriesNum }

func (m *Casey) Next() (operation.Operation, bool, error) {
	for {
		switch m.phase {
		case phaseCapture:
			if m.remaining > 0 {
				return m.capture()
			}
			if m.series == m.params.SeriesNum {
				// The last series stays on the card.
				m.phase = phaseIdle
				m.taken = nil
				continue
			}
			random.Shuffle(len(m.taken), func(i, j int) { m.taken[i], m.taken[j] = m.taken[j], m.taken[i] })
			m.phase = phaseDelete
		case phaseDelete:
			if len(m.taken) > 0 {
				p := m.taken[0]
				m.taken = m.taken[1:]
				op, err := build(operation.NewRemove(p))
				return op, err == nil, err
			}
			m.phase = phaseIdle
		default:
			if m.series >= m.params.SeriesNum {
				return nil, false, nil
			}
			m.series++
			m.remaining = random.IntN(m.params.MaxPhotoNum) + 1
			m.size = m.sizes[random.IntN(len(m.sizes))]
			m.taken = make([]string, 0, m.remaining)
			m.phase = phaseCapture
		}
	}
}

func (m *Casey) capture() (operation.Operation, bool, error) {
	p, err := m.vfs.NonexistentPath(vfs.WithParent("/"), vfs.WithSuffix(photoSuffix))
	if err != nil {
		return nil, false, fmt.Errorf("series %d: %w", m.series, simulationError(err))
	}
	m.remaining--
	m.taken = append(m.taken, p)
	op, err := build(operation.NewWrite(p, m.size))
	return op, err == nil, err
}
