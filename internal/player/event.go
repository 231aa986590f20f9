package player

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
)

// Action names a player operation.
type Action string

const (
	ActionRefresh       Action = "refresh"
	ActionNext          Action = "next"
	ActionPrevious      Action = "previous"
	ActionSetVolume     Action = "volume"
	ActionCycleRepeat   Action = "repeat"
	ActionSetRepeat     Action = "set-repeat"
	ActionToggleShuffle Action = "shuffle"
	ActionSetShuffle    Action = "set-shuffle"
)

// Event is a request from a front end. Only the field matching Action is read.
type Event struct {
	Action  Action
	Volume  int
	Repeat  services.RepeatMode
	Shuffle bool
}

func Refresh() Event { return Event{Action: ActionRefresh} }
func Next() Event { return Event{Action: ActionNext} }
func Previous() Event { return Event{Action: ActionPrevious} }
func SetVolume(percent int) Event { return Event{Action: ActionSetVolume, Volume: percent} }
func CycleRepeat() Event { return Event{Action: ActionCycleRepeat} }
func SetRepeat(mode services.RepeatMode) Event { return Event{Action: ActionSetRepeat, Repeat: mode} }
func ToggleShuffle() Event { return Event{Action: ActionToggleShuffle} }
func SetShuffle(on bool) Event { return Event{Action: ActionSetShuffle, Shuffle: on} }

// ParseAction maps a front-end action name to an [Action].
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionRefresh, ActionNext, ActionPrevious, ActionSetVolume,
		ActionCycleRepeat, ActionSetRepeat, ActionToggleShuffle, ActionSetShuffle:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown player action %q", shared.ErrInvalidArgument, name)
}

// ParseEvent builds an [Event] from an action name and its argument, as sent by the web front end.
//
// volume takes a percent, set-repeat a mode and set-shuffle on or off; other actions ignore arg.
func ParseEvent(name, arg string) (Event, error) {
	action, err := ParseAction(name)
	if err != nil {
		return Event{}, err
	}

	switch action {
	case ActionSetVolume:
		percent, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(arg), "%"))
		if err != nil || percent < 0 || percent > 100 {
			return Event{}, fmt.Errorf("%w: volume must be an integer within [0, 100], got %q", shared.ErrInvalidArgument, arg)
		}
		return SetVolume(percent), nil
	case ActionSetRepeat:
		mode, err := services.ParseRepeatMode(arg)
		if err != nil {
			return Event{}, err
		}
		return SetRepeat(mode), nil
	case ActionSetShuffle:
		on, err := ParseSwitch(arg)
		if err != nil {
			return Event{}, err
		}
		return SetShuffle(on), nil
	default:
		return Event{Action: action}, nil
	}
}

// ParseSwitch reads on/off style flags.
func ParseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on or off, got %q", shared.ErrInvalidArgument, s)
	}
}
