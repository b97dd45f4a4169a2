package deploy

// Status is the lifecycle state of one descriptor during a deployment run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCreated    Status = "created"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled-back"
)

// Handle is an opaque provider identifier for a realized resource. The
// deployment core never interprets it; only the adapter that minted it does.
type Handle string

// ResourceState tracks the realization of one descriptor.
type ResourceState struct {
	Descriptor Descriptor
	Status     Status
	Handle     Handle
	Err        error
}

// Result holds the per-descriptor outcome of a deployment run.
type Result struct {
	// States lists one state per plan descriptor, in plan order.
	States []*ResourceState

	// RolledBack is set when a failure triggered the reverse teardown.
	RolledBack bool

	// RollbackErr collects best-effort teardown failures, if any.
	RollbackErr error
}

func newResult(plan *Plan) *Result {
	r := &Result{}
	for _, d := range plan.Descriptors() {
		r.States = append(r.States, &ResourceState{Descriptor: d, Status: StatusPending})
	}
	return r
}

// State returns the state tracked for the given descriptor id, or nil.
func (r *Result) State(id string) *ResourceState {
	for _, st := range r.States {
		if st.Descriptor.ID == id {
			return st
		}
	}
	return nil
}

// OK reports whether every descriptor reached created.
func (r *Result) OK() bool {
	for _, st := range r.States {
		if st.Status != StatusCreated {
			return false
		}
	}
	return true
}

// Failures returns the states of descriptors that failed, in plan order.
func (r *Result) Failures() []*ResourceState {
	var out []*ResourceState
	for _, st := range r.States {
		if st.Status == StatusFailed {
			out = append(out, st)
		}
	}
	return out
}
