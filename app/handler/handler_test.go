package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"benchhub/app/handler"
	"benchhub/app/router"
	"benchhub/internal/dispatch"
	"benchhub/internal/service"
	"benchhub/pkg/config"
	"benchhub/pkg/constants"
	redisstore "benchhub/pkg/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	config.GlobalConfig = cfg

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redisstore.NewStoreWithClient(client)
	dispatcher := dispatch.New(store, time.Second)
	workers := service.NewWorkerService(store, time.Minute)
	workers.SetDispatcher(dispatcher)
	campaigns := service.NewCampaignService(store, time.Hour, config.TimeoutPolicyFail)
	campaigns.SetDispatcher(dispatcher)

	r := router.NewRouter(
		handler.NewWorkerHandler(workers, store),
		handler.NewCampaignHandler(campaigns),
		handler.NewJobHandler(campaigns),
		handler.NewAdminHandler(store, t.TempDir(), nil),
		nil,
	)
	engine := gin.New()
	r.Setup(engine)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func registerBody(udid string) map[string]interface{} {
	return map[string]interface{}{
		"udid":         udid,
		"device_name":  "mac-studio",
		"ip_address":   "192.168.1.20",
		"capabilities": []string{constants.ComputeUnitCPUONNX},
		"device_info":  map[string]string{"soc": "M2 Max"},
	}
}

func TestWorkerLifecycleOverHTTP(t *testing.T) {
	engine := newTestServer(t)

	// Register
	w := doJSON(t, engine, http.MethodPost, "/api/register", registerBody("udid-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reg struct {
		WorkerID string `json:"worker_id"`
		Action   string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.Equal(t, "created", reg.Action)

	// Re-register same device
	w = doJSON(t, engine, http.MethodPost, "/api/register", registerBody("udid-1"))
	require.Equal(t, http.StatusOK, w.Code)

	// Heartbeat, both routes
	w = doJSON(t, engine, http.MethodPost, "/api/workers/"+reg.WorkerID+"/heartbeat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, engine, http.MethodGet, "/api/ping/"+reg.WorkerID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Unknown worker is a 404
	w = doJSON(t, engine, http.MethodGet, "/api/workers/worker-ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Manual busy is a 409
	w = doJSON(t, engine, http.MethodPut, "/api/workers/"+reg.WorkerID+"/status", map[string]string{"status": "busy"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCampaignFlowOverHTTP(t *testing.T) {
	engine := newTestServer(t)

	w := doJSON(t, engine, http.MethodPost, "/api/register", registerBody("udid-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	var reg struct {
		WorkerID string `json:"worker_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))

	// Create a one-job campaign; dispatch happens on creation
	w = doJSON(t, engine, http.MethodPost, "/api/campaigns", map[string]interface{}{
		"model_url": "https://models.example.com/resnet.onnx",
		"jobs": []map[string]interface{}{
			{"compute_unit": constants.ComputeUnitCPUONNX, "num_inference_runs": 10},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		CampaignID string   `json:"campaign_id"`
		JobIDs     []string `json:"job_ids"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.JobIDs, 1)

	// The worker pulls its delivered descriptor
	w = doJSON(t, engine, http.MethodGet, "/api/workers/"+reg.WorkerID+"/jobs/next", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var descriptor struct {
		JobID    string `json:"job_id"`
		ModelURL string `json:"model_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &descriptor))
	assert.Equal(t, created.JobIDs[0], descriptor.JobID)

	// Channel drained
	w = doJSON(t, engine, http.MethodGet, "/api/workers/"+reg.WorkerID+"/jobs/next", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Ingest the result
	w = doJSON(t, engine, http.MethodPost, "/api/results", map[string]interface{}{
		"job_id":            created.JobIDs[0],
		"worker_id":         reg.WorkerID,
		"status":            "Complete",
		"InferenceMsMedian": 12.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Campaign is completed
	w = doJSON(t, engine, http.MethodGet, "/api/campaigns/"+created.CampaignID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Status    string `json:"status"`
		Breakdown struct {
			Complete int `json:"complete"`
		} `json:"job_breakdown"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "completed", detail.Status)
	assert.Equal(t, 1, detail.Breakdown.Complete)

	// Duplicate result is accepted
	w = doJSON(t, engine, http.MethodPost, "/api/results", map[string]interface{}{
		"job_id": created.JobIDs[0],
		"status": "Complete",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Conflicting result is a 409
	w = doJSON(t, engine, http.MethodPost, "/api/results", map[string]interface{}{
		"job_id": created.JobIDs[0],
		"status": "Failed",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// CSV report
	w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/campaigns/%s/results", created.CampaignID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "InferenceMsMedian")
	assert.Contains(t, w.Body.String(), created.JobIDs[0])
}

func TestBearerAuthOverHTTP(t *testing.T) {
	engine := newTestServer(t)
	config.GlobalConfig.Server.APIKey = "secret-key"
	t.Cleanup(func() { config.GlobalConfig.Server.APIKey = "" })

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestArchiveDisabledOverHTTP(t *testing.T) {
	engine := newTestServer(t)

	// No MySQL archive configured: the endpoint says so instead of 500ing
	w := doJSON(t, engine, http.MethodGet, "/api/campaigns/campaign-x/archive", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "archive not enabled")
}

func TestResetOverHTTP(t *testing.T) {
	engine := newTestServer(t)

	w := doJSON(t, engine, http.MethodPost, "/api/register", registerBody("udid-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, engine, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Zero(t, list.Count)
}
