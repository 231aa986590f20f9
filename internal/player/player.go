package player

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
)

// DefaultSkipRefresh is the pause between a skip and re-reading playback state.
const DefaultSkipRefresh = 500 * time.Millisecond

// Snapshot is what a front end renders after each event.
type Snapshot struct {
	Profile   *services.SpotifyUser
	Playing   *services.CurrentlyPlaying
	Repeat    services.RepeatMode
	Shuffle   bool
	UpdatedAt time.Time
}

// Options configures a [Player].
type Options struct {
	SkipRefresh time.Duration // zero selects DefaultSkipRefresh, negative disables the pause
	Logger      *log.Logger
	Now         func() time.Time
}

// Player applies [Event]s to a [services.PlaybackService] and keeps the latest [Snapshot].
type Player struct {
	svc         services.PlaybackService
	skipRefresh time.Duration
	logger      *log.Logger
	now         func() time.Time
	wait        func(context.Context, time.Duration) error

	mu    sync.Mutex
	state Snapshot
}

// New creates a [Player] with repeat off and shuffle off until [Player.Load] reads the device state.
func New(svc services.PlaybackService, opts Options) *Player {
	if opts.SkipRefresh == 0 {
		opts.SkipRefresh = DefaultSkipRefresh
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Player{
		svc:         svc,
		skipRefresh: opts.SkipRefresh,
		logger:      opts.Logger,
		now:         opts.Now,
		wait:        sleep,
		state:       Snapshot{Repeat: services.RepeatOff},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Snapshot returns a copy of the latest state.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load fetches the profile and playback state, seeding repeat and shuffle from the device.
func (p *Player) Load(ctx context.Context) (Snapshot, error) {
	profile, err := p.svc.UserProfile(ctx)
	if err != nil {
		return p.Snapshot(), fmt.Errorf("failed to fetch profile: %w", err)
	}

	playing, err := p.svc.CurrentlyPlaying(ctx)
	if err != nil {
		return p.Snapshot(), fmt.Errorf("failed to fetch playback state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Profile = profile
	p.state.Playing = playing
	if playing.Item != nil {
		p.state.Repeat = playing.RepeatState
		p.state.Shuffle = playing.ShuffleState
	}
	p.state.UpdatedAt = p.now()

	return p.state, nil
}

// Handle applies ev and returns the resulting state.
//
// On error the returned snapshot is the last good state.
func (p *Player) Handle(ctx context.Context, ev Event) (Snapshot, error) {
	p.logger.Debug("player event", "action", ev.Action)

	var err error
	switch ev.Action {
	case ActionRefresh:
		err = p.refresh(ctx)
	case ActionNext:
		err = p.skip(ctx, p.svc.Next)
	case ActionPrevious:
		err = p.skip(ctx, p.svc.Previous)
	case ActionSetVolume:
		err = p.setVolume(ctx, ev.Volume)
	case ActionCycleRepeat:
		err = p.setRepeat(ctx, p.Snapshot().Repeat.Cycle())
	case ActionSetRepeat:
		err = p.setRepeat(ctx, ev.Repeat)
	case ActionToggleShuffle:
		err = p.setShuffle(ctx, !p.Snapshot().Shuffle)
	case ActionSetShuffle:
		err = p.setShuffle(ctx, ev.Shuffle)
	default:
		err = fmt.Errorf("%w: unknown player action %q", shared.ErrInvalidArgument, ev.Action)
	}

	if err != nil {
		p.logger.Warn("player event failed", "action", ev.Action, "error", err)
	}
	return p.Snapshot(), err
}

func (p *Player) refresh(ctx context.Context) error {
	playing, err := p.svc.CurrentlyPlaying(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch playback state: %w", err)
	}

	p.mu.Lock()
	p.state.Playing = playing
	p.state.UpdatedAt = p.now()
	p.mu.Unlock()
	return nil
}

func (p *Player) skip(ctx context.Context, call func(context.Context) error) error {
	if err := call(ctx); err != nil {
		return err
	}
	if err := p.wait(ctx, p.skipRefresh); err != nil {
		return err
	}
	return p.refresh(ctx)
}

func (p *Player) setVolume(ctx context.Context, percent int) error {
	if err := p.svc.SetVolume(ctx, percent); err != nil {
		return err
	}

	p.mu.Lock()
	if p.state.Playing != nil {
		playing := *p.state.Playing
		playing.Device.VolumePercent = percent
		p.state.Playing = &playing
	}
	p.state.UpdatedAt = p.now()
	p.mu.Unlock()
	return nil
}

func (p *Player) setRepeat(ctx context.Context, mode services.RepeatMode) error {
	if err := p.svc.SetRepeat(ctx, mode); err != nil {
		return err
	}

	p.mu.Lock()
	p.state.Repeat = mode
	p.state.UpdatedAt = p.now()
	p.mu.Unlock()
	return nil
}

func (p *Player) setShuffle(ctx context.Context, on bool) error {
	if err := p.svc.SetShuffle(ctx, on); err != nil {
		return err
	}

	p.mu.Lock()
	p.state.Shuffle = on
	p.state.UpdatedAt = p.now()
	p.mu.Unlock()
	return nil
}
