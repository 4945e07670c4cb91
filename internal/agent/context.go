package agent

import (
	"fmt"
	"strings"

	"github.com/lazypower/ghostkg/internal/store"
)

// forgottenThreshold is the retrievability below which a topic reads as
// forgotten rather than known.
const forgottenThreshold = 0.2

// Relations that express a position rather than a plain fact.
var beliefRelations = map[string]bool{
	"said": true, "thinks": true, "believes": true, "wants": true,
	"supports": true, "opposes": true, "likes": true, "dislikes": true,
	"advocates": true, "criticizes": true,
	"strongly supports": true, "strongly opposes": true,
}

// Context composes a prompt-ready summary of what the agent currently
// knows about a topic: its own stance, known facts, and what others have
// said. A topic whose memory has decayed below the forgetting threshold
// yields only an admission of forgetting. Results are cached per
// (agent, topic) until the agent's next write.
func (a *Agent) Context(topic string) (string, error) {
	n := a.normalize(topic)
	if n == "" {
		return "(I am confused)", nil
	}
	now := a.Now()

	// Epoch sampled before the reads: a write landing while the context
	// is being composed bumps it, and the stale result is not admitted.
	cacheKey := fmt.Sprintf("%s@%d", n, now.Key())
	var epoch uint64
	if c := a.store.Cache(); c != nil {
		if v, ok := c.GetContext(a.name, cacheKey); ok {
			return v, nil
		}
		epoch = c.Epoch(a.name)
	}

	// One transaction for memory, stance, and world knowledge; a
	// concurrent write cannot tear the composed view.
	tv, err := a.store.QueryTopicView(a.name, n, now, 8)
	if err != nil {
		return "", err
	}
	if tv.Memory != nil && tv.Memory.LastReview != nil {
		r := a.store.Scheduler().Retrievability(tv.Memory.Stability, tv.Memory.LastReview, now)
		if r < forgottenThreshold {
			return fmt.Sprintf("(I have forgotten the details about %s)", topic), nil
		}
	}

	out := composeContext(tv.Stance, tv.World)
	if c := a.store.Cache(); c != nil {
		c.PutContext(a.name, cacheKey, out, epoch)
	}
	return out, nil
}

func composeContext(stance, world []store.EdgeFact) string {
	beliefs := dedupe{}
	facts := dedupe{}
	others := dedupe{}

	for _, e := range stance {
		beliefs.add(fmt.Sprintf("I %s %s%s", e.Relation, e.Target, sentimentQualifier(e.Sentiment)))
	}
	for _, e := range world {
		q := ""
		if e.Sentiment != 0 {
			q = sentimentQualifier(e.Sentiment)
		}
		line := fmt.Sprintf("%s %s %s%s", e.Source, e.Relation, e.Target, q)
		if beliefRelations[e.Relation] {
			others.add(line)
		} else {
			facts.add(line)
		}
	}

	var parts []string
	if len(beliefs.order) > 0 {
		parts = append(parts, "MY CURRENT STANCE: "+strings.Join(beliefs.order, "; ")+".")
	} else {
		parts = append(parts, "MY CURRENT STANCE: (I have no strong opinion yet).")
	}
	if len(facts.order) > 0 {
		parts = append(parts, "KNOWN FACTS: "+strings.Join(facts.first(5), "; ")+".")
	}
	if len(others.order) > 0 {
		parts = append(parts, "WHAT OTHERS THINK: "+strings.Join(others.first(3), "; ")+".")
	}
	return strings.Join(parts, " ")
}

func sentimentQualifier(sentiment float64) string {
	switch {
	case sentiment > 0.6:
		return " (very positively)"
	case sentiment > 0.3:
		return " (positively)"
	case sentiment > 0.1:
		return " (somewhat positively)"
	case sentiment < -0.6:
		return " (very negatively)"
	case sentiment < -0.3:
		return " (negatively)"
	case sentiment < -0.1:
		return " (somewhat negatively)"
	}
	return ""
}

// dedupe is an insertion-ordered string set.
type dedupe struct {
	seen  map[string]bool
	order []string
}

func (d *dedupe) add(s string) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[s] {
		return
	}
	d.seen[s] = true
	d.order = append(d.order, s)
}

func (d *dedupe) first(n int) []string {
	if len(d.order) <= n {
		return d.order
	}
	return d.order[:n]
}
