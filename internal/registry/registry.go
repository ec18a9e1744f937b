// Package registry maps model identifiers to providers, validates job
// parameters against per-model schemas, translates unified parameters into
// provider shapes and normalizes provider payloads. It is the single place
// that knows what each (provider, model) pair accepts and returns.
package registry

import (
	"github.com/synthome-dev/synthome/internal/domain"
)

// Strategy names how a job's completion is learned.
type Strategy string

const (
	StrategyWebhook Strategy = "webhook"
	StrategyPolling Strategy = "polling"
	// StrategySynchronous marks providers whose call blocks and returns the
	// artifact; adapters wrap them so callers treat them as polling.
	StrategySynchronous Strategy = "synchronous"
)

// Capabilities describes how a provider signals completion.
type Capabilities struct {
	SupportsWebhooks bool
	SupportsPolling  bool
	DefaultStrategy  Strategy
}

// ParamMapper converts validated unified parameters into the provider's
// exact request shape, returning documentation notes for lossy coercions.
type ParamMapper func(validated map[string]any) (map[string]any, []string, error)

// ModelInfo is one registry entry.
type ModelInfo struct {
	ID              string
	Provider        string
	ProviderModelID string
	MediaType       domain.MediaType
	Schema          Schema
	MapParams       ParamMapper
	WebhookParser   Parser
	PollingParser   Parser
	Capabilities    Capabilities
}

// Registry resolves model ids to their entries.
type Registry struct {
	models   map[string]ModelInfo
	defaults map[domain.JobType]string
}

// Lookup returns the entry for a model id. Absence is fatal for the job:
// callers must fail without contacting any provider.
func (r *Registry) Lookup(modelID string) (ModelInfo, bool) {
	info, ok := r.models[modelID]
	return info, ok
}

// DefaultModel returns the model used for a job type when the job params do
// not name one.
func (r *Registry) DefaultModel(t domain.JobType) (string, bool) {
	id, ok := r.defaults[t]
	return id, ok
}

// ParseOptions validates raw job parameters against the model schema.
func (r *Registry) ParseOptions(modelID string, raw map[string]any) (map[string]any, error) {
	info, ok := r.Lookup(modelID)
	if !ok {
		return nil, domain.NewError(domain.KindValidation, "", "unknown model %q", modelID)
	}
	return info.Schema.Validate(raw)
}

// UnifiedFromMap lifts a validated parameter map into the unified struct.
func UnifiedFromMap(m map[string]any) UnifiedParams {
	return UnifiedParams{
		Prompt:       getString(m, "prompt"),
		Duration:     getNumber(m, "duration"),
		Resolution:   getString(m, "resolution"),
		AspectRatio:  getString(m, "aspectRatio"),
		Seed:         int(getNumber(m, "seed")),
		Image:        getString(m, "image"),
		Audio:        getString(m, "audio"),
		Video:        getString(m, "video"),
		StartImage:   getString(m, "startImage"),
		EndImage:     getString(m, "endImage"),
		CameraMotion: getString(m, "cameraMotion"),
	}
}

// unifiedMapper builds the default ParamMapper for generation models.
func unifiedMapper(provider, modelID string) ParamMapper {
	return func(validated map[string]any) (map[string]any, []string, error) {
		return ToProviderOptions(provider, modelID, UnifiedFromMap(validated))
	}
}

// generationSchema declares the unified fields generation models share.
// Per-model schemas extend or restrict it.
func generationSchema(extra map[string]Field) Schema {
	fields := map[string]Field{
		"model":        {Type: FieldString},
		"prompt":       {Type: FieldString, Required: true},
		"seed":         {Type: FieldNumber},
		"image":        {Type: FieldString},
		"audio":        {Type: FieldString},
		"video":        {Type: FieldString},
		"startImage":   {Type: FieldString},
		"endImage":     {Type: FieldString},
		"cameraMotion": {Type: FieldString},
	}
	for k, v := range extra {
		fields[k] = v
	}
	return Schema{Fields: fields}
}

var aspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// NewDefault builds the model catalog.
func NewDefault() *Registry {
	r := &Registry{
		models:   map[string]ModelInfo{},
		defaults: map[domain.JobType]string{},
	}

	asyncReplicate := Capabilities{SupportsWebhooks: true, SupportsPolling: true, DefaultStrategy: StrategyWebhook}
	asyncFal := Capabilities{SupportsWebhooks: true, SupportsPolling: true, DefaultStrategy: StrategyPolling}
	pollOnly := Capabilities{SupportsPolling: true, DefaultStrategy: StrategyPolling}
	sync := Capabilities{DefaultStrategy: StrategySynchronous}

	r.register(ModelInfo{
		ID:              "wan-2.2",
		Provider:        ProviderReplicate,
		ProviderModelID: "wan-video/wan-2.2-t2v-fast",
		MediaType:       domain.MediaTypeVideo,
		Schema: generationSchema(map[string]Field{
			"duration":    {Type: FieldNumber, Min: 1, Max: 10, HasRange: true},
			"resolution":  {Type: FieldString, Enum: []string{"480p", "720p", "1080p"}},
			"aspectRatio": {Type: FieldString, Enum: aspectRatios},
		}),
		MapParams:     unifiedMapper(ProviderReplicate, "wan-2.2"),
		WebhookParser: ParseReplicate,
		PollingParser: ParseReplicate,
		Capabilities:  asyncReplicate,
	})

	r.register(ModelInfo{
		ID:              "kling-2.1",
		Provider:        ProviderFal,
		ProviderModelID: "fal-ai/kling-video/v2.1/standard/image-to-video",
		MediaType:       domain.MediaTypeVideo,
		Schema: generationSchema(map[string]Field{
			"duration":    {Type: FieldNumber, Min: 1, Max: 10, HasRange: true},
			"resolution":  {Type: FieldString, Enum: []string{"720p", "1080p"}},
			"aspectRatio": {Type: FieldString, Enum: aspectRatios},
		}),
		MapParams:     unifiedMapper(ProviderFal, "kling-2.1"),
		WebhookParser: ParseFal,
		PollingParser: ParseFal,
		Capabilities:  asyncFal,
	})

	r.register(ModelInfo{
		ID:              "flux-dev",
		Provider:        ProviderReplicate,
		ProviderModelID: "black-forest-labs/flux-dev",
		MediaType:       domain.MediaTypeImage,
		Schema: generationSchema(map[string]Field{
			"aspectRatio": {Type: FieldString, Enum: aspectRatios},
			"resolution":  {Type: FieldString, Enum: []string{"512", "768", "1024"}},
		}),
		MapParams:     unifiedMapper(ProviderReplicate, "flux-dev"),
		WebhookParser: ParseReplicate,
		PollingParser: ParseReplicate,
		Capabilities:  asyncReplicate,
	})

	r.register(ModelInfo{
		ID:              "qwen-image",
		Provider:        ProviderDashScope,
		ProviderModelID: "qwen-image-plus",
		MediaType:       domain.MediaTypeImage,
		Schema: generationSchema(map[string]Field{
			"aspectRatio": {Type: FieldString, Enum: aspectRatios},
		}),
		MapParams:     unifiedMapper(ProviderDashScope, "qwen-image"),
		PollingParser: ParseDashScope,
		Capabilities:  pollOnly,
	})

	r.register(ModelInfo{
		ID:              "gemini-image",
		Provider:        ProviderGemini,
		ProviderModelID: "gemini-2.5-flash-image",
		MediaType:       domain.MediaTypeImage,
		Schema: generationSchema(map[string]Field{
			"aspectRatio": {Type: FieldString, Enum: aspectRatios},
		}),
		MapParams:     unifiedMapper(ProviderGemini, "gemini-image"),
		PollingParser: ParseNormalized,
		Capabilities:  sync,
	})

	r.register(ModelInfo{
		ID:              "eleven-tts",
		Provider:        ProviderElevenLabs,
		ProviderModelID: "eleven_multilingual_v2",
		MediaType:       domain.MediaTypeAudio,
		Schema: generationSchema(map[string]Field{
			"voice": {Type: FieldString},
		}),
		MapParams: func(validated map[string]any) (map[string]any, []string, error) {
			out, notes, err := ToProviderOptions(ProviderElevenLabs, "eleven-tts", UnifiedFromMap(validated))
			if err != nil {
				return nil, nil, err
			}
			if voice := getString(validated, "voice"); voice != "" {
				out["voice_id"] = voice
			}
			return out, notes, nil
		},
		PollingParser: ParseNormalized,
		Capabilities:  sync,
	})

	r.register(ModelInfo{
		ID:              "ffmpeg-merge",
		Provider:        ProviderFal,
		ProviderModelID: "fal-ai/ffmpeg-api/merge-videos",
		MediaType:       domain.MediaTypeVideo,
		Schema: Schema{Fields: map[string]Field{
			"model":      {Type: FieldString},
			"inputs":     {Type: FieldStringList, Required: true},
			"resolution": {Type: FieldString, Enum: []string{"720p", "1080p"}},
		}},
		MapParams: func(validated map[string]any) (map[string]any, []string, error) {
			out := map[string]any{"video_urls": validated["inputs"]}
			if res := getString(validated, "resolution"); res != "" {
				out["resolution"] = res
			}
			return out, nil, nil
		},
		WebhookParser: ParseFal,
		PollingParser: ParseFal,
		Capabilities:  asyncFal,
	})

	r.register(ModelInfo{
		ID:              "auto-caption",
		Provider:        ProviderFal,
		ProviderModelID: "fal-ai/auto-caption",
		MediaType:       domain.MediaTypeVideo,
		Schema: Schema{Fields: map[string]Field{
			"model": {Type: FieldString},
			"input": {Type: FieldString},
			"url":   {Type: FieldString},
			"video": {Type: FieldString},
			"style": {Type: FieldString, Enum: []string{"plain", "bold", "karaoke"}},
		}},
		MapParams: func(validated map[string]any) (map[string]any, []string, error) {
			input, err := requireInput(validated, "input", "url", "video")
			if err != nil {
				return nil, nil, err
			}
			out := map[string]any{"video_url": input}
			if style := getString(validated, "style"); style != "" {
				out["style"] = style
			}
			return out, nil, nil
		},
		WebhookParser: ParseFal,
		PollingParser: ParseFal,
		Capabilities:  asyncFal,
	})

	r.register(ModelInfo{
		ID:              "rembg",
		Provider:        ProviderReplicate,
		ProviderModelID: "cjwbw/rembg",
		MediaType:       domain.MediaTypeImage,
		Schema: Schema{Fields: map[string]Field{
			"model": {Type: FieldString},
			"input": {Type: FieldString},
			"url":   {Type: FieldString},
			"image": {Type: FieldString},
		}},
		MapParams: func(validated map[string]any) (map[string]any, []string, error) {
			input, err := requireInput(validated, "input", "url", "image")
			if err != nil {
				return nil, nil, err
			}
			return map[string]any{"image": input}, nil, nil
		},
		WebhookParser: ParseReplicate,
		PollingParser: ParseReplicate,
		Capabilities:  asyncReplicate,
	})

	r.defaults = map[domain.JobType]string{
		domain.JobTypeGenerateVideo:    "wan-2.2",
		domain.JobTypeGenerateImage:    "flux-dev",
		domain.JobTypeGenerateAudio:    "eleven-tts",
		domain.JobTypeMerge:            "ffmpeg-merge",
		domain.JobTypeCaption:          "auto-caption",
		domain.JobTypeRemoveBackground: "rembg",
	}

	return r
}

func (r *Registry) register(info ModelInfo) {
	r.models[info.ID] = info
}

// requireInput returns the transform input, probing the implicit "input"
// wired by the graph builder before the explicit aliases.
func requireInput(validated map[string]any, keys ...string) (string, error) {
	for _, key := range keys {
		if v := getString(validated, key); v != "" {
			return v, nil
		}
	}
	return "", domain.NewError(domain.KindValidation, "", "invalid parameters: input: required")
}
