package events

import "sort"

// ActiveAgents lists the agent runs of a history that have started but not yet
// reported a terminal event, in order of first appearance. Events without a run id
// are grouped by agent type.
func ActiveAgents(history []AgentEvent) []string {
	type state struct {
		agent    string
		first    int
		terminal bool
	}
	runs := map[string]*state{}
	for i, ev := range history {
		key := ev.RunID
		if key == "" {
			key = "agent:" + ev.AgentType
		}
		st, ok := runs[key]
		if !ok {
			st = &state{agent: ev.AgentType, first: i}
			runs[key] = st
		}
		switch {
		case ev.EventType.Terminal():
			st.terminal = true
		case ev.EventType == Started && ev.RunID == "":
			// an unsequenced agent that starts again is a new run
			st.terminal = false
		}
	}
	active := make([]*state, 0, len(runs))
	for _, st := range runs {
		if !st.terminal {
			active = append(active, st)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].first < active[j].first })
	out := make([]string, 0, len(active))
	for _, st := range active {
		out = append(out, st.agent)
	}
	return out
}
