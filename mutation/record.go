package mutation

// Action says how a batch came about.
type Action string

const (
	ActionApply Action = "apply"
	ActionUndo  Action = "undo"
	ActionRedo  Action = "redo"
)

// Record describes one mutation as seen by journal sinks.
type Record struct {
	Op      Op          `json:"op"`
	Target  string      `json:"target"`
	Name    string      `json:"name"`
	Session SessionFlag `json:"session,omitempty"`
	Old     string      `json:"old,omitempty"`
	New     string      `json:"new,omitempty"`
	// Docs lists the documents the change applied to.
	Docs []string `json:"docs"`
}

// Batch is emitted once per Apply, Undo or Redo call.
type Batch struct {
	ID        string   `json:"id"` // UUIDv7
	ProjectID string   `json:"project_id,omitempty"`
	Action    Action   `json:"action"`
	Seq       uint64   `json:"seq"`      // monotonically increasing per engine
	Revision  uint64   `json:"revision"` // engine revision after the change
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}

func recordOf(m Mutation, ch Changes, docs []string) Record {
	return Record{
		Op:      m.Op(),
		Target:  m.Target(),
		Name:    m.DisplayName(),
		Session: m.Session(),
		Old:     ch.Old,
		New:     ch.New,
		Docs:    docs,
	}
}
