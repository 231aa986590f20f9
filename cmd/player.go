package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/player"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Profile prints the authenticated user's profile.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.player(ctx); err != nil {
		return err
	}

	user, err := r.service().UserProfile(ctx)
	if err != nil {
		return r.revoke(ctx, err)
	}

	view := formatter.NewProfileView(user)
	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.ProfileText(view))
}

// Now prints the playback state.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	p, err := r.player(ctx)
	if err != nil {
		return err
	}

	snapshot, err := p.Load(ctx)
	if err != nil {
		return r.revoke(ctx, err)
	}
	return r.writeSnapshot(cmd, snapshot)
}

func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	return r.dispatch(ctx, cmd, player.Next())
}

func (r *Runner) Previous(ctx context.Context, cmd *cli.Command) error {
	return r.dispatch(ctx, cmd, player.Previous())
}

// Volume sets the device volume from the first argument.
func (r *Runner) Volume(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.Args().First()
	if arg == "" {
		return fmt.Errorf("%w: volume percent", shared.ErrMissingArgument)
	}

	ev, err := player.ParseEvent(string(player.ActionSetVolume), arg)
	if err != nil {
		return err
	}
	return r.dispatch(ctx, cmd, ev)
}

// Repeat sets the repeat mode, or advances it one step when no mode is given.
func (r *Runner) Repeat(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.Args().First()
	if arg == "" {
		return r.dispatch(ctx, cmd, player.CycleRepeat())
	}

	mode, err := services.ParseRepeatMode(arg)
	if err != nil {
		return err
	}
	return r.dispatch(ctx, cmd, player.SetRepeat(mode))
}

// Shuffle sets shuffle, or flips it when no state is given.
func (r *Runner) Shuffle(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.Args().First()
	if arg == "" {
		return r.dispatch(ctx, cmd, player.ToggleShuffle())
	}

	on, err := player.ParseSwitch(arg)
	if err != nil {
		return err
	}
	return r.dispatch(ctx, cmd, player.SetShuffle(on))
}

// dispatch loads the player so repeat and shuffle reflect the device, applies ev and prints the result.
func (r *Runner) dispatch(ctx context.Context, cmd *cli.Command, ev player.Event) error {
	p, err := r.player(ctx)
	if err != nil {
		return err
	}

	if _, err := p.Load(ctx); err != nil {
		return r.revoke(ctx, err)
	}

	snapshot, err := p.Handle(ctx, ev)
	if err != nil {
		return r.revoke(ctx, err)
	}
	return r.writeSnapshot(cmd, snapshot)
}

func (r *Runner) writeSnapshot(cmd *cli.Command, snapshot player.Snapshot) error {
	view := formatter.NewPlaybackView(snapshot.Playing, snapshot.Repeat, snapshot.Shuffle)
	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.PlaybackText(view))
}
