package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthome-dev/synthome/internal/domain"
)

func TestParseReplicateSucceeded(t *testing.T) {
	raw := []byte(`{"status":"succeeded","output":"https://replicate.delivery/out.mp4"}`)
	resp, err := ParseReplicate(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://replicate.delivery/out.mp4"}, resp.Outputs)
}

func TestParseReplicateOutputArray(t *testing.T) {
	raw := []byte(`{"status":"succeeded","output":["https://a.png","https://b.png"]}`)
	resp, err := ParseReplicate(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.png", "https://b.png"}, resp.Outputs)
}

func TestParseReplicateSucceededWithoutOutputIsFailure(t *testing.T) {
	raw := []byte(`{"status":"succeeded","output":null}`)
	resp, err := ParseReplicate(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, resp.Status)
	assert.Contains(t, resp.Error, "no output")
}

func TestParseReplicateInFlightAndFailure(t *testing.T) {
	for _, status := range []string{"starting", "processing", "queued"} {
		resp, err := ParseReplicate([]byte(`{"status":"` + status + `"}`))
		require.NoError(t, err, status)
		assert.Equal(t, domain.JobStatusProcessing, resp.Status, status)
	}
	for _, status := range []string{"failed", "canceled"} {
		resp, err := ParseReplicate([]byte(`{"status":"` + status + `"}`))
		require.NoError(t, err, status)
		assert.Equal(t, domain.JobStatusFailed, resp.Status, status)
		assert.NotEmpty(t, resp.Error, status)
	}
}

func TestParseReplicateErrorMessageCarried(t *testing.T) {
	raw := []byte(`{"status":"failed","error":"NSFW content detected"}`)
	resp, err := ParseReplicate(raw)
	require.NoError(t, err)
	assert.Equal(t, "NSFW content detected", resp.Error)
}

func TestParseFalQueueStatuses(t *testing.T) {
	for _, status := range []string{"IN_QUEUE", "IN_PROGRESS"} {
		resp, err := ParseFal([]byte(`{"status":"` + status + `"}`))
		require.NoError(t, err, status)
		assert.Equal(t, domain.JobStatusProcessing, resp.Status, status)
	}
}

func TestParseFalCompletedPayload(t *testing.T) {
	raw := []byte(`{"status":"COMPLETED","payload":{"video":{"url":"https://fal.media/out.mp4"}}}`)
	resp, err := ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://fal.media/out.mp4"}, resp.Outputs)
}

func TestParseFalResultBodyWithoutStatus(t *testing.T) {
	raw := []byte(`{"video":{"url":"https://fal.media/out.mp4"}}`)
	resp, err := ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
}

func TestParseFalImagesList(t *testing.T) {
	raw := []byte(`{"status":"COMPLETED","images":[{"url":"https://fal.media/1.png"},{"url":"https://fal.media/2.png"}]}`)
	resp, err := ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://fal.media/1.png", "https://fal.media/2.png"}, resp.Outputs)
}

func TestParseFalQueuePositionMetadata(t *testing.T) {
	raw := []byte(`{"status":"IN_QUEUE","queue_position":3}`)
	resp, err := ParseFal(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Metadata["queue_position"])
}

func TestParseDashScope(t *testing.T) {
	raw := []byte(`{"output":{"task_status":"SUCCEEDED","results":[{"url":"https://dashscope.oss/out.png"}]}}`)
	resp, err := ParseDashScope(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://dashscope.oss/out.png"}, resp.Outputs)

	resp, err = ParseDashScope([]byte(`{"output":{"task_status":"RUNNING"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, resp.Status)

	resp, err = ParseDashScope([]byte(`{"output":{"task_status":"FAILED","code":"InvalidParameter","message":"size not supported"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, resp.Status)
	assert.Equal(t, "size not supported", resp.Error)
}

func TestParseNormalized(t *testing.T) {
	raw := []byte(`{"status":"completed","outputs":["https://cdn/out.mp3"]}`)
	resp, err := ParseNormalized(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, []string{"https://cdn/out.mp3"}, resp.Outputs)
}

func TestUnrecognizedStatusIsError(t *testing.T) {
	_, err := ParseReplicate([]byte(`{"status":"exploded"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}

func TestMalformedPayloadIsError(t *testing.T) {
	_, err := ParseFal([]byte(`not json`))
	require.Error(t, err)
}
