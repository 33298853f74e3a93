package eventlog

import "sort"

// Log is the append-only store for one game's events. It is touched only
// by the owning orchestrator goroutine (see pkg/orchestrator); opponent
// fan-out goroutines only read it, through SinceFor, while no event is
// being appended.
type Log struct {
	counter int

	public         []Event
	privateByAgent map[string][]Event
}

// New creates an empty log for the given set of agent IDs.
func New(agentIDs []string) *Log {
	l := &Log{privateByAgent: make(map[string][]Event, len(agentIDs))}
	for _, id := range agentIDs {
		l.privateByAgent[id] = nil
	}
	return l
}

// AppendPublic assigns the next counter to e and appends it to the public
// stream, returning the stamped event.
func (l *Log) AppendPublic(e Event) Event {
	e.Counter = l.next()
	l.public = append(l.public, e)
	return e
}

// AppendPrivate assigns the next counter to e, sets its recipient, and
// appends it to agentID's private stream, returning the stamped event.
func (l *Log) AppendPrivate(agentID string, e Event) Event {
	e.Counter = l.next()
	e.Recipient = agentID
	l.privateByAgent[agentID] = append(l.privateByAgent[agentID], e)
	return e
}

func (l *Log) next() int {
	c := l.counter
	l.counter++
	return c
}

// SnapshotFor returns, in counter order, every public event plus every
// private event whose recipient is agentID.
func (l *Log) SnapshotFor(agentID string) []Event {
	priv := l.privateByAgent[agentID]
	merged := make([]Event, 0, len(l.public)+len(priv))
	merged = append(merged, l.public...)
	merged = append(merged, priv...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Counter < merged[j].Counter })
	return merged
}

// SinceFor returns agentID's snapshot filtered to counters strictly greater
// than lastSeen, the delta the orchestrator folds into a history at each
// decision point.
func (l *Log) SinceFor(agentID string, lastSeen int) []Event {
	all := l.SnapshotFor(agentID)
	out := all[:0:0]
	for _, e := range all {
		if e.Counter > lastSeen {
			out = append(out, e)
		}
	}
	return out
}

// NextCounter exposes the counter the next appended event will receive,
// for tests asserting P1 (event monotonicity, starts at 0).
func (l *Log) NextCounter() int {
	return l.counter
}
