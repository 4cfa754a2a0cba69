package diag

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Diagnostic kinds
const (
	ConstructionFailed = "construction_failed"
	BorderExhausted    = "border_exhausted"
	FreightDropped     = "freight_dropped"
	UnboundHandle      = "unbound_handle"
	PrivateRouteBusy   = "private_route_busy"
	PrivateRouteCache  = "private_route_cache"
	FeedStopUnknown    = "feed_stop_unknown"
	FeedTripUnknown    = "feed_trip_unknown"
)

// kindInfo holds aggregated information about a specific diagnostic kind
type kindInfo struct {
	count    int
	examples []string
}

// Aggregator collects diagnostics and outputs consolidated summaries.
// A nil *Aggregator discards everything.
type Aggregator struct {
	kinds map[string]*kindInfo
}

// NewAggregator creates a new diagnostics aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{kinds: make(map[string]*kindInfo)}
}

// Add records an occurrence with an example subject
func (a *Aggregator) Add(kind, example string) {
	if a == nil {
		return
	}
	info := a.kinds[kind]
	if info == nil {
		info = &kindInfo{examples: make([]string, 0, 3)}
		a.kinds[kind] = info
	}
	info.count++

	// Store up to 3 examples
	if len(info.examples) < 3 {
		info.examples = append(info.examples, example)
	}
}

// Count returns how often kind was recorded.
func (a *Aggregator) Count(kind string) int {
	if a == nil || a.kinds[kind] == nil {
		return 0
	}
	return a.kinds[kind].count
}

// Reset forgets everything recorded so far.
func (a *Aggregator) Reset() {
	if a == nil {
		return
	}
	a.kinds = make(map[string]*kindInfo)
}

// Lines formats all collected diagnostics, sorted by kind.
func (a *Aggregator) Lines(scope string) []string {
	if a == nil {
		return nil
	}
	kinds := make([]string, 0, len(a.kinds))
	for k := range a.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, formatMessage(k, scope, a.kinds[k]))
	}
	return out
}

// LogAll prints every consolidated diagnostic and resets the aggregator.
func (a *Aggregator) LogAll(scope string) {
	for _, line := range a.Lines(scope) {
		log.Printf("%s", line)
	}
	a.Reset()
}

func formatMessage(kind, scope string, info *kindInfo) string {
	var description, action string

	switch kind {
	case ConstructionFailed:
		description = "growth steps without a buildable site"
		action = "Dropping growth until the next step"
	case BorderExhausted:
		description = "cities unable to enlarge their borders in any direction"
		action = "Keeping current borders"
	case FreightDropped:
		description = "freight packets with no route past the retry policy"
		action = "Discarding the packets"
	case UnboundHandle:
		description = "persisted references that no longer resolve"
		action = "Substituting unbound handles"
	case PrivateRouteBusy:
		description = "private car searches requested while one was in progress"
		action = "Skipping the duplicate search"
	case FeedStopUnknown:
		description = "realtime stop references with no imported station"
		action = "Ignoring the update"
	case FeedTripUnknown:
		description = "realtime trips with no imported line"
		action = "Ignoring the update"
	default:
		description = "unclassified events"
		action = "No action"
	}

	return fmt.Sprintf("%s has %s (%d occurrences). %s. Examples: %s",
		scope, description, info.count, action, strings.Join(info.examples, ", "))
}
