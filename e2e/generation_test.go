package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genstudio/api/internal/model"
)

func submit(t *testing.T, ta *testApp, token, provider, body string) *model.SubmitResponse {
	t.Helper()
	resp, err := doRequestAs(t, ta.app, token, http.MethodPost, "/api/"+provider+"/submit", body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit failed with %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var out model.SubmitResponse
	decode(t, resp, &out)
	return &out
}

func status(t *testing.T, ta *testApp, token, provider, taskID string) (*model.StatusResponse, int) {
	t.Helper()
	resp, err := doRequestAs(t, ta.app, token, http.MethodGet, "/api/"+provider+"/status/"+taskID, "")
	require.NoError(t, err)
	var out model.StatusResponse
	decode(t, resp, &out)
	return &out, resp.StatusCode
}

func TestSubmit_ImageLifecycle(t *testing.T) {
	ta := setupApp(t)
	token := generateToken(t, testUser)

	sub := submit(t, ta, token, model.ProviderNanoBanana, `{"type":"text-to-image","prompt":"a red fox","num_images":2}`)
	assert.True(t, sub.Success)
	assert.Equal(t, 4, sub.CreditsUsed)
	assert.Equal(t, 46, sub.RemainingCredits)

	st, code := status(t, ta, token, model.ProviderNanoBanana, sub.TaskID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.RemoteStatusPending, st.Status)

	ta.runWorkers(t)

	st, _ = status(t, ta, token, model.ProviderNanoBanana, sub.TaskID)
	assert.Equal(t, model.RemoteStatusCompleted, st.Status)
	require.NotNil(t, st.Result)
	assert.Len(t, st.Result.Images, 2)
	assert.Len(t, st.Result.ResultURLs, 2)

	resp, err := doRequestAs(t, ta.app, token, http.MethodGet, "/api/"+model.ProviderNanoBanana+"/history?limit=5", "")
	require.NoError(t, err)
	var history model.HistoryResponse
	decode(t, resp, &history)
	require.Len(t, history.Items, 1)
	assert.Equal(t, sub.TaskID, history.Items[0].TaskID)
	assert.Equal(t, "a red fox", history.Items[0].Prompt)

	resp, err = doRequestAs(t, ta.app, token, http.MethodGet, "/api/credits", "")
	require.NoError(t, err)
	var credits model.CreditsResponse
	decode(t, resp, &credits)
	assert.Equal(t, 46, credits.Balance)
	assert.Equal(t, 30, credits.Pricing[model.TaskTypeTextToVideo])
}

func TestSubmit_FailedGenerationRefunds(t *testing.T) {
	ta := setupApp(t)
	ta.images.FailPrompts = map[string]string{"blocked": "content policy violation"}
	token := generateToken(t, testUser)

	sub := submit(t, ta, token, model.ProviderNanoBanana, `{"type":"text-to-image","prompt":"blocked"}`)
	ta.runWorkers(t)

	st, _ := status(t, ta, token, model.ProviderNanoBanana, sub.TaskID)
	assert.Equal(t, model.RemoteStatusFailed, st.Status)
	assert.Equal(t, "content policy violation", st.ErrorMessage)
	assert.Equal(t, sub.CreditsUsed, st.CreditsRefunded)

	resp, err := doRequestAs(t, ta.app, token, http.MethodGet, "/api/credits", "")
	require.NoError(t, err)
	var credits model.CreditsResponse
	decode(t, resp, &credits)
	assert.Equal(t, 50, credits.Balance)
}

func TestSubmit_Rejections(t *testing.T) {
	ta := setupApp(t)
	token := generateToken(t, testUser)

	cases := []struct {
		name     string
		provider string
		body     string
		status   int
		code     string
	}{
		{"unknown provider", "dall-e", `{"type":"text-to-image","prompt":"x"}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad body", model.ProviderNanoBanana, `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad type", model.ProviderNanoBanana, `{"type":"audio","prompt":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unsupported type", model.ProviderNanoBanana, `{"type":"text-to-video","prompt":"x"}`, http.StatusBadRequest, "UNSUPPORTED_TYPE"},
		{"missing prompt", model.ProviderNanoBanana, `{"type":"text-to-image"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing image", model.ProviderVeo3, `{"type":"image-to-video","prompt":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doRequestAs(t, ta.app, token, http.MethodPost, "/api/"+tc.provider+"/submit", tc.body)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			body := parseJSON(t, resp)
			assert.Equal(t, tc.code, body["error_code"])
		})
	}
}

func TestSubmit_InsufficientCredits(t *testing.T) {
	ta := setupApp(t)
	token := generateToken(t, testUser)

	submit(t, ta, token, model.ProviderVeo3, `{"type":"text-to-video","prompt":"waves"}`)

	resp, err := doRequestAs(t, ta.app, token, http.MethodPost, "/api/"+model.ProviderVeo3+"/submit", `{"type":"text-to-video","prompt":"waves"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	body := parseJSON(t, resp)
	assert.Equal(t, model.ErrorCodeInsufficientCredits, body["error_code"])
	details, _ := body["details"].(map[string]interface{})
	assert.EqualValues(t, 30, details["required"])
	assert.EqualValues(t, 20, details["balance"])
}

func TestStatus_OtherUserCannotSee(t *testing.T) {
	ta := setupApp(t)
	owner := generateToken(t, testUser)
	other := generateToken(t, "someone-else")

	sub := submit(t, ta, owner, model.ProviderNanoBanana, `{"type":"text-to-image","prompt":"fox"}`)

	_, code := status(t, ta, other, model.ProviderNanoBanana, sub.TaskID)
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := doRequestAs(t, ta.app, other, http.MethodDelete, "/api/"+model.ProviderNanoBanana+"/history/"+sub.TaskID, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = doRequestAs(t, ta.app, owner, http.MethodDelete, "/api/"+model.ProviderNanoBanana+"/history/"+sub.TaskID, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, code = status(t, ta, owner, model.ProviderNanoBanana, sub.TaskID)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpgrade_VideoLifecycle(t *testing.T) {
	ta := setupApp(t)
	member := generateToken(t, testUser)
	vip := generateToken(t, testUser, "vip")

	sub := submit(t, ta, vip, model.ProviderVeo3, `{"type":"text-to-video","prompt":"waves"}`)
	path := "/api/" + model.ProviderVeo3 + "/upgrade/" + sub.TaskID

	resp, err := doRequestAs(t, ta.app, member, http.MethodPost, path, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, model.ErrorCodeVIPRequired, parseJSON(t, resp)["error_code"])

	resp, err = doRequestAs(t, ta.app, vip, http.MethodPost, path, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, model.ErrorCodeProcessing, parseJSON(t, resp)["error_code"])

	ta.runWorkers(t)

	st, _ := status(t, ta, vip, model.ProviderVeo3, sub.TaskID)
	assert.Equal(t, model.RemoteStatusCompleted, st.Status)
	assert.NotEmpty(t, st.VideoURL)

	resp, err = doRequestAs(t, ta.app, vip, http.MethodPost, path, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up model.UpgradeResponse
	decode(t, resp, &up)
	assert.True(t, up.Success)
	assert.Contains(t, up.VideoURL, "1080p")
}

func TestRateLimit(t *testing.T) {
	ta := setupApp(t)

	for i := 0; i < 3; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/"+model.ProviderNanoBanana+"/history", "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-RateLimit-Limit"), "history is not rate limited")
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/"+model.ProviderNanoBanana+"/submit", `{"type":"text-to-image","prompt":"fox"}`)
	require.NoError(t, err)
	assert.Equal(t, "10000", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "9999", resp.Header.Get("X-RateLimit-Remaining"))
}
