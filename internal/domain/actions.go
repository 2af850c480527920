package domain

import "time"

type Action string

const (
	ActionPlay       Action = "PLAY"
	ActionPause      Action = "PAUSE"
	ActionSkip       Action = "SKIP"
	ActionVideoEnded Action = "VIDEO_ENDED"
)

var actionCooldowns = map[Action]time.Duration{
	ActionPlay:       time.Second,
	ActionPause:      time.Second,
	ActionSkip:       3 * time.Second,
	ActionVideoEnded: 3 * time.Second,
}

// actionLog stores the last accepted time per member and action.
type actionLog map[string]map[Action]time.Time

func (l actionLog) allow(memberId string, action Action, now time.Time) bool {
	cooldown, ok := actionCooldowns[action]
	if !ok {
		return true
	}

	last, ok := l[memberId][action]
	if ok && now.Sub(last) < cooldown {
		return false
	}

	if l[memberId] == nil {
		l[memberId] = make(map[Action]time.Time, len(actionCooldowns))
	}
	l[memberId][action] = now

	return true
}

func (l actionLog) forget(memberId string) {
	delete(l, memberId)
}

// AllowAction records the action and reports true unless the same member
// already had the same action accepted within its cooldown.
func (r *Room) AllowAction(memberId string, action Action, now time.Time) bool {
	return r.actions.allow(memberId, action, now)
}
