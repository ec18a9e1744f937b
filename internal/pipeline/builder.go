package pipeline

import (
	"fmt"

	"github.com/synthome-dev/synthome/internal/domain"
)

// inputParamKeys are the parameter names that count as an explicit input for
// a transform operation; a transform carrying any of them never chains onto
// a preceding job implicitly.
var inputParamKeys = []string{"input", "url", "image", "audio", "video"}

// Flatten compiles an ordered operation sequence into a flat,
// dependency-annotated execution plan. Job ids are job1..jobN in flattening
// order; nested operations are extracted depth-first, each placed before its
// owner with the owner's parameter rewritten to a dependency token.
func Flatten(ops []Operation) (*domain.ExecutionPlan, error) {
	f := &flattener{}
	for i, op := range ops {
		if err := f.addOperation(op); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i+1, op.Type, err)
		}
	}
	plan := &domain.ExecutionPlan{Jobs: f.jobs}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

type flattener struct {
	jobs []domain.Job
	acc  mergeAccumulator

	// mergeHead is the id of the most recent merge job; it is the implicit
	// predecessor of every job created after it until the next merge.
	mergeHead    string
	headConsumed bool

	// group holds the job ids of the trailing run of same-segment jobs: a
	// multi-scene generation group while consecutive generates arrive, or
	// the output jobs of the latest transform.
	group         []string
	groupGenerate bool
}

func (f *flattener) nextID() string {
	return fmt.Sprintf("job%d", len(f.jobs)+1)
}

func (f *flattener) addOperation(op Operation) error {
	if op.Type == domain.JobTypeMerge {
		return f.addMerge(op)
	}
	if isGenerate(op.Type) {
		id, err := f.emit(op, nil, "")
		if err != nil {
			return err
		}
		if f.groupGenerate {
			f.group = append(f.group, id)
		} else {
			f.group = []string{id}
			f.groupGenerate = true
		}
		f.acc.Add(id)
		return nil
	}
	return f.addTransform(op)
}

// addTransform wires caption/background-removal style operations to their
// implicit input when no explicit one is present.
func (f *flattener) addTransform(op Operation) error {
	if hasExplicitInput(op.Params) {
		id, err := f.emit(op, nil, "")
		if err != nil {
			return err
		}
		f.group = []string{id}
		f.groupGenerate = false
		f.acc.Add(id)
		return nil
	}

	// A transform right after a multi-scene generation group joins the
	// group: one job per scene, replacing the scenes in the merge set,
	// rather than chaining onto the last scene only.
	if f.groupGenerate && len(f.group) >= 2 {
		replaced := f.group
		next := make([]string, 0, len(replaced))
		for _, member := range replaced {
			id, err := f.emit(op, []string{member}, domain.DependencyToken(member))
			if err != nil {
				return err
			}
			next = append(next, id)
		}
		f.acc.Replace(replaced, next...)
		f.group = next
		f.groupGenerate = false
		return nil
	}

	// Linear chain onto the single preceding job of the segment.
	if len(f.group) == 1 {
		prev := f.group[0]
		id, err := f.emit(op, []string{prev}, domain.DependencyToken(prev))
		if err != nil {
			return err
		}
		f.acc.Replace([]string{prev}, id)
		f.group = []string{id}
		f.groupGenerate = false
		return nil
	}

	// Nothing in the segment yet: fall back to the merge head.
	if f.mergeHead != "" {
		id, err := f.emit(op, []string{f.mergeHead}, domain.DependencyToken(f.mergeHead))
		if err != nil {
			return err
		}
		f.headConsumed = true
		f.group = []string{id}
		f.groupGenerate = false
		f.acc.Add(id)
		return nil
	}

	return fmt.Errorf("no input available: provide one of %v or place the operation after a job that produces its input", inputParamKeys)
}

func (f *flattener) addMerge(op Operation) error {
	deps := f.acc.Drain()
	if f.mergeHead != "" && !f.headConsumed {
		deps = append([]string{f.mergeHead}, deps...)
	}
	if len(deps) == 0 {
		return fmt.Errorf("merge has nothing to collect")
	}

	params := cloneParams(op.Params)
	if _, ok := params["inputs"]; !ok {
		tokens := make([]any, 0, len(deps))
		for _, dep := range deps {
			tokens = append(tokens, domain.DependencyToken(dep))
		}
		params["inputs"] = tokens
	}

	id := f.nextID()
	f.jobs = append(f.jobs, domain.Job{
		ID:        id,
		Type:      op.Type,
		Params:    params,
		DependsOn: deps,
		Output:    id + "_output",
	})

	f.mergeHead = id
	f.headConsumed = false
	f.group = nil
	f.groupGenerate = false
	return nil
}

// emit extracts nested operations from the params depth-first, then appends
// the job itself. extraDeps and inputToken wire implicit predecessors chosen
// by the caller.
func (f *flattener) emit(op Operation, extraDeps []string, inputToken string) (string, error) {
	params := cloneParams(op.Params)
	var deps []string

	for _, key := range nestedParamKeys {
		nested, ok := asOperation(params[key])
		if !ok {
			continue
		}
		if nested.Type == domain.JobTypeMerge {
			return "", fmt.Errorf("merge cannot be nested under %q", key)
		}
		childID, err := f.emit(nested, nil, "")
		if err != nil {
			return "", err
		}
		params[key] = domain.DependencyToken(childID)
		deps = append(deps, childID)
	}

	for _, dep := range extraDeps {
		if !contains(deps, dep) {
			deps = append(deps, dep)
		}
	}
	if inputToken != "" {
		if _, ok := params["input"]; !ok {
			params["input"] = inputToken
		}
	}

	// Jobs created after a merge are ordered behind its output unless a
	// direct predecessor already provides that ordering.
	if f.mergeHead != "" && len(extraDeps) == 0 && !contains(deps, f.mergeHead) {
		deps = append(deps, f.mergeHead)
	}

	id := f.nextID()
	f.jobs = append(f.jobs, domain.Job{
		ID:        id,
		Type:      op.Type,
		Params:    params,
		DependsOn: deps,
		Output:    id + "_output",
	})
	return id, nil
}

func hasExplicitInput(params map[string]any) bool {
	for _, key := range inputParamKeys {
		if v, ok := params[key]; ok && v != nil {
			return true
		}
	}
	return false
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
