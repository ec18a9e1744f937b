package registry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnifiedParams is the provider-agnostic parameter shape exposed to callers.
type UnifiedParams struct {
	Prompt       string
	Duration     float64
	Resolution   string
	AspectRatio  string
	Seed         int
	Image        string
	Audio        string
	Video        string
	StartImage   string
	EndImage     string
	CameraMotion string
}

// Provider identifiers.
const (
	ProviderReplicate  = "replicate"
	ProviderFal        = "fal"
	ProviderDashScope  = "dashscope"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
)

// dashScopeSizes folds aspect ratio into DashScope's single size parameter.
// The inverse mapping restores the aspect ratio; the pixel dimensions are a
// documented lossy choice.
var dashScopeSizes = map[string]string{
	"1:1":  "1328*1328",
	"16:9": "1664*928",
	"9:16": "928*1664",
	"4:3":  "1472*1140",
	"3:4":  "1140*1472",
}

// ToProviderOptions rewrites unified parameters into the exact shape a
// provider expects. The returned notes document every lossy coercion and
// every field the provider cannot express; nothing is dropped silently.
func ToProviderOptions(provider, modelID string, u UnifiedParams) (map[string]any, []string, error) {
	out := map[string]any{}
	var notes []string

	drop := func(field, value string) {
		if value != "" {
			notes = append(notes, fmt.Sprintf("%s: not supported by %s, dropped (%q)", field, provider, value))
		}
	}

	switch provider {
	case ProviderReplicate:
		setString(out, "prompt", u.Prompt)
		if u.Duration > 0 {
			seconds := int(math.Round(u.Duration))
			if float64(seconds) != u.Duration {
				notes = append(notes, fmt.Sprintf("duration: rounded %.2fs to %ds (replicate takes whole seconds)", u.Duration, seconds))
			}
			out["duration"] = seconds
		}
		if u.Resolution != "" {
			res := u.Resolution
			if res == "1080p" {
				res = "720p"
				notes = append(notes, "resolution: downgraded 1080p to 720p (model caps at 720p)")
			}
			out["resolution"] = res
		}
		setString(out, "aspect_ratio", u.AspectRatio)
		if u.Seed != 0 {
			out["seed"] = u.Seed
		}
		setString(out, "image", u.Image)
		setString(out, "audio", u.Audio)
		setString(out, "video", u.Video)
		setString(out, "first_frame_image", u.StartImage)
		setString(out, "last_frame_image", u.EndImage)
		setString(out, "camera_motion", u.CameraMotion)

	case ProviderFal:
		setString(out, "prompt", u.Prompt)
		if u.Duration > 0 {
			seconds := nearestSupportedDuration(u.Duration, 5, 10)
			if float64(seconds) != u.Duration {
				notes = append(notes, fmt.Sprintf("duration: coerced %.2fs to %ds (model supports 5s or 10s)", u.Duration, seconds))
			}
			out["duration"] = strconv.Itoa(seconds)
		}
		setString(out, "resolution", u.Resolution)
		setString(out, "aspect_ratio", u.AspectRatio)
		if u.Seed != 0 {
			out["seed"] = u.Seed
		}
		setString(out, "image_url", u.Image)
		setString(out, "audio_url", u.Audio)
		setString(out, "video_url", u.Video)
		setString(out, "start_image_url", u.StartImage)
		setString(out, "end_image_url", u.EndImage)
		setString(out, "camera_control", u.CameraMotion)

	case ProviderDashScope:
		setString(out, "prompt", u.Prompt)
		if u.AspectRatio != "" {
			size, ok := dashScopeSizes[u.AspectRatio]
			if !ok {
				size = dashScopeSizes["1:1"]
				notes = append(notes, fmt.Sprintf("aspectRatio: %q unsupported, coerced to 1:1", u.AspectRatio))
			}
			out["size"] = size
			notes = append(notes, fmt.Sprintf("aspectRatio: folded into size=%s", size))
		}
		drop("resolution", u.Resolution)
		if u.Seed != 0 {
			out["seed"] = u.Seed
		}
		setString(out, "ref_img", u.Image)
		if u.Duration > 0 {
			drop("duration", fmt.Sprintf("%.2fs", u.Duration))
		}
		drop("audio", u.Audio)
		drop("video", u.Video)
		drop("startImage", u.StartImage)
		drop("endImage", u.EndImage)
		drop("cameraMotion", u.CameraMotion)

	case ProviderGemini:
		setString(out, "prompt", u.Prompt)
		setString(out, "image", u.Image)
		setString(out, "aspect_ratio", u.AspectRatio)
		if u.Duration > 0 {
			drop("duration", fmt.Sprintf("%.2fs", u.Duration))
		}
		drop("resolution", u.Resolution)
		if u.Seed != 0 {
			drop("seed", strconv.Itoa(u.Seed))
		}
		drop("audio", u.Audio)
		drop("video", u.Video)
		drop("startImage", u.StartImage)
		drop("endImage", u.EndImage)
		drop("cameraMotion", u.CameraMotion)

	case ProviderElevenLabs:
		setString(out, "text", u.Prompt)
		if u.Seed != 0 {
			out["seed"] = u.Seed
		}
		if u.Duration > 0 {
			drop("duration", fmt.Sprintf("%.2fs", u.Duration))
		}
		drop("resolution", u.Resolution)
		drop("aspectRatio", u.AspectRatio)
		drop("image", u.Image)
		drop("audio", u.Audio)
		drop("video", u.Video)
		drop("startImage", u.StartImage)
		drop("endImage", u.EndImage)
		drop("cameraMotion", u.CameraMotion)

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", provider)
	}

	return out, notes, nil
}

// FromProviderOptions reconstructs unified parameters from a provider
// option map. Provider-only fields (e.g. replicate output_format with its
// jpg/jpeg spelling normalized) have no unified representation and are
// ignored.
func FromProviderOptions(provider string, opts map[string]any) (UnifiedParams, error) {
	u := UnifiedParams{}
	switch provider {
	case ProviderReplicate:
		u.Prompt = getString(opts, "prompt")
		u.Duration = getNumber(opts, "duration")
		u.Resolution = getString(opts, "resolution")
		u.AspectRatio = getString(opts, "aspect_ratio")
		u.Seed = int(getNumber(opts, "seed"))
		u.Image = getString(opts, "image")
		u.Audio = getString(opts, "audio")
		u.Video = getString(opts, "video")
		u.StartImage = getString(opts, "first_frame_image")
		u.EndImage = getString(opts, "last_frame_image")
		u.CameraMotion = getString(opts, "camera_motion")
	case ProviderFal:
		u.Prompt = getString(opts, "prompt")
		if d := getString(opts, "duration"); d != "" {
			if f, err := strconv.ParseFloat(d, 64); err == nil {
				u.Duration = f
			}
		}
		u.Resolution = getString(opts, "resolution")
		u.AspectRatio = getString(opts, "aspect_ratio")
		u.Seed = int(getNumber(opts, "seed"))
		u.Image = getString(opts, "image_url")
		u.Audio = getString(opts, "audio_url")
		u.Video = getString(opts, "video_url")
		u.StartImage = getString(opts, "start_image_url")
		u.EndImage = getString(opts, "end_image_url")
		u.CameraMotion = getString(opts, "camera_control")
	case ProviderDashScope:
		u.Prompt = getString(opts, "prompt")
		if size := getString(opts, "size"); size != "" {
			for ratio, s := range dashScopeSizes {
				if s == size {
					u.AspectRatio = ratio
					break
				}
			}
		}
		u.Seed = int(getNumber(opts, "seed"))
		u.Image = getString(opts, "ref_img")
	case ProviderGemini:
		u.Prompt = getString(opts, "prompt")
		u.Image = getString(opts, "image")
		u.AspectRatio = getString(opts, "aspect_ratio")
	case ProviderElevenLabs:
		u.Prompt = getString(opts, "text")
		u.Seed = int(getNumber(opts, "seed"))
	default:
		return UnifiedParams{}, fmt.Errorf("unknown provider %q", provider)
	}
	return u, nil
}

// NormalizeImageFormat maps the jpg/jpeg spelling variants onto the form a
// provider accepts.
func NormalizeImageFormat(provider, format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch provider {
	case ProviderReplicate:
		// Replicate spells it jpg.
		if f == "jpeg" {
			return "jpg"
		}
	default:
		if f == "jpg" {
			return "jpeg"
		}
	}
	return f
}

func nearestSupportedDuration(d float64, supported ...int) int {
	best := supported[0]
	for _, s := range supported[1:] {
		if math.Abs(float64(s)-d) < math.Abs(float64(best)-d) {
			best = s
		}
	}
	return best
}

func setString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getNumber(m map[string]any, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
