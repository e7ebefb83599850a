package delivery

import (
	"sort"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/prefs"
	"github.com/coinsentry/coinsentry/internal/types"
)

// RealtimeChannelName is the always-on in-process channel. The router
// includes it for every notification regardless of preferences.
const RealtimeChannelName = "realtime"

// Router resolves a notification to its channel set at delivery time.
type Router struct {
	logger   *zap.Logger
	prefs    prefs.Provider
	channels map[string]Channel
}

func NewRouter(logger *zap.Logger, provider prefs.Provider, channels []Channel) *Router {
	byName := make(map[string]Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}
	return &Router{
		logger:   logger.Named("router"),
		prefs:    provider,
		channels: byName,
	}
}

// Resolve returns the configured channels the notification should go to,
// plus the names of selected-but-unconfigured channels for the audit record.
// Resolution is deterministic; the channel list is sorted by name.
func (r *Router) Resolve(n types.Notification) (selected []Channel, notConfigured []string) {
	p := r.prefs.Get()

	names := n.RequestedChannels
	if len(names) == 0 {
		names = r.selectByPreferences(n, p)
	}

	for _, name := range names {
		ch, exists := r.channels[name]
		if !exists || !ch.IsConfigured() {
			notConfigured = append(notConfigured, name)
			continue
		}
		selected = append(selected, ch)
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Name() < selected[j].Name() })
	sort.Strings(notConfigured)
	return selected, notConfigured
}

func (r *Router) selectByPreferences(n types.Notification, p prefs.Preferences) []string {
	tier := n.Priority
	if tier != types.PriorityHigh && p.Escalates(n.Mention.Payload.Text()) {
		tier = types.PriorityHigh
		escalatedTotal.Inc()
		r.logger.Debug("Keyword escalation applied",
			zap.String("id", n.ID),
			zap.String("priority", string(n.Priority)),
		)
	}

	names := []string{RealtimeChannelName}
	for name, pref := range p.Channels {
		if name == RealtimeChannelName {
			continue
		}
		if pref.Enabled(tier) {
			names = append(names, name)
		}
	}
	return names
}
