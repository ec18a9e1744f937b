package pipeline

// mergeAccumulator tracks the jobs a future merge operation will collect.
// It is a two-state machine: idle until the first job is added, collecting
// afterwards, reset by Drain when a merge consumes the set.
type mergeAccumulator struct {
	collecting bool
	ids        []string
}

func (a *mergeAccumulator) Add(id string) {
	a.collecting = true
	a.ids = append(a.ids, id)
}

// Collecting reports whether any jobs are pending collection.
func (a *mergeAccumulator) Collecting() bool {
	return a.collecting && len(a.ids) > 0
}

// Replace swaps consumed ids for the jobs that superseded them, keeping
// insertion order for the survivors. An id consumed by a downstream job must
// not also be collected by the next merge.
func (a *mergeAccumulator) Replace(olds []string, news ...string) {
	consumed := make(map[string]bool, len(olds))
	for _, id := range olds {
		consumed[id] = true
	}
	kept := a.ids[:0]
	for _, id := range a.ids {
		if !consumed[id] {
			kept = append(kept, id)
		}
	}
	a.ids = append(kept, news...)
	a.collecting = a.collecting || len(news) > 0
}

// Drain returns the collected ids in insertion order and resets the
// accumulator to idle.
func (a *mergeAccumulator) Drain() []string {
	ids := a.ids
	a.ids = nil
	a.collecting = false
	return ids
}
