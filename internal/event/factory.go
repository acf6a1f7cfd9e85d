package event

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/errs"
	"github.com/topsongs/playsim/internal/refdata"
)

// Device categories recognized on the wire.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
	DeviceOther   = "other"
)

// Factory creates self-consistent play events from loaded reference data.
// A Factory owns its random source and is not safe for concurrent use; give
// each generation path its own instance.
type Factory struct {
	refs       *refdata.Context
	rng        *rand.Rand
	devices    []string
	cumulative []float64
}

// NewFactory builds a factory over the reference context with the given
// device weights and random seed.
func NewFactory(refs *refdata.Context, weights config.DeviceWeights, seed int64) (*Factory, error) {
	if refs == nil {
		return nil, errs.New("event", errs.CodeInvalidConfig, errs.WithMessage("reference context must not be nil"))
	}
	devices := []string{DeviceMobile, DeviceDesktop, DeviceTablet, DeviceOther}
	raw := []float64{weights.Mobile, weights.Desktop, weights.Tablet, weights.Other}

	var total float64
	cumulative := make([]float64, len(raw))
	for i, w := range raw {
		if w < 0 {
			return nil, errs.New("event", errs.CodeInvalidConfig, errs.WithMessage("device weights must be >=0"))
		}
		total += w
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, errs.New("event", errs.CodeInvalidConfig, errs.WithMessage("device weights must not all be zero"))
	}

	return &Factory{
		refs:       refs,
		rng:        rand.New(rand.NewSource(seed)),
		devices:    devices,
		cumulative: cumulative,
	}, nil
}

// Create produces one play event for the given timestamp. Every referenced id
// exists in the loaded reference set, and the play duration never exceeds the
// sampled song's duration.
func (f *Factory) Create(playedAt time.Time) PlayEvent {
	song := f.refs.SampleSong(f.rng)
	user := f.refs.SampleUser(f.rng)
	location := f.refs.SampleLocation(f.rng)

	// Fraction in (0, 1] models partial listens; floor to whole milliseconds.
	fraction := 1 - f.rng.Float64()
	duration := int(fraction * float64(song.DurationMS))
	if duration < 1 && song.DurationMS >= 1 {
		duration = 1
	}

	return PlayEvent{
		EventID:        uuid.NewString(),
		SongID:         song.ID,
		UserID:         user.ID,
		LocationID:     location.ID,
		PlayedAt:       playedAt,
		PlayDurationMS: duration,
		DeviceType:     f.pickDevice(),
	}
}

func (f *Factory) pickDevice() string {
	total := f.cumulative[len(f.cumulative)-1]
	draw := f.rng.Float64() * total
	for i, bound := range f.cumulative {
		if draw < bound {
			return f.devices[i]
		}
	}
	return f.devices[len(f.devices)-1]
}
