// Package pipeline composes media operations client-side and flattens them
// into the execution plan the orchestrator consumes.
package pipeline

import (
	"github.com/synthome-dev/synthome/internal/domain"
)

// Operation is a pre-compilation descriptor of one media transformation.
// Params may nest further Operations under the conventional media keys
// (image, audio, video); those are compiled into their own jobs.
type Operation struct {
	Type   domain.JobType
	Params map[string]any
}

// nestedParamKeys are the parameter names inspected for nested operations,
// in extraction order.
var nestedParamKeys = []string{"image", "audio", "video"}

// asOperation recognizes a nested operation either as a typed Operation or
// as its wire shape ({"type": ..., "params": {...}}).
func asOperation(v any) (Operation, bool) {
	switch op := v.(type) {
	case Operation:
		return op, op.Type != ""
	case *Operation:
		if op == nil {
			return Operation{}, false
		}
		return *op, op.Type != ""
	case map[string]any:
		t, _ := op["type"].(string)
		if t == "" {
			return Operation{}, false
		}
		params, _ := op["params"].(map[string]any)
		return Operation{Type: domain.JobType(t), Params: params}, true
	default:
		return Operation{}, false
	}
}

// isGenerate reports whether the type is a source generation (as opposed to
// a transform over prior outputs).
func isGenerate(t domain.JobType) bool {
	switch t {
	case domain.JobTypeGenerateVideo, domain.JobTypeGenerateImage, domain.JobTypeGenerateAudio:
		return true
	default:
		return false
	}
}

// Pipeline is an ordered operation sequence under construction.
type Pipeline struct {
	ops []Operation
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Add appends an operation.
func (p *Pipeline) Add(op Operation) *Pipeline {
	p.ops = append(p.ops, op)
	return p
}

// Append inlines a previously built sub-pipeline in order.
func (p *Pipeline) Append(sub *Pipeline) *Pipeline {
	if sub != nil {
		p.ops = append(p.ops, sub.ops...)
	}
	return p
}

// GenerateVideo appends a video generation operation.
func (p *Pipeline) GenerateVideo(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeGenerateVideo, Params: params})
}

// GenerateImage appends an image generation operation.
func (p *Pipeline) GenerateImage(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeGenerateImage, Params: params})
}

// GenerateAudio appends an audio generation operation.
func (p *Pipeline) GenerateAudio(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeGenerateAudio, Params: params})
}

// Merge appends a merge operation collecting everything produced since the
// previous merge.
func (p *Pipeline) Merge(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeMerge, Params: params})
}

// Caption appends a captioning operation over the preceding output.
func (p *Pipeline) Caption(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeCaption, Params: params})
}

// RemoveBackground appends a background removal operation over the
// preceding output.
func (p *Pipeline) RemoveBackground(params map[string]any) *Pipeline {
	return p.Add(Operation{Type: domain.JobTypeRemoveBackground, Params: params})
}

// Build flattens the composed sequence into an execution plan.
func (p *Pipeline) Build() (*domain.ExecutionPlan, error) {
	return Flatten(p.ops)
}
