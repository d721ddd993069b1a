package httpio

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr"
	"github.com/rapidaai/realtime-asr-gateway/internal/audio/pipeline"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

func testEngine(t *testing.T) (*gin.Engine, *asr.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	manager := asr.New(logging.NewNop(), asr.NewMockClient(1))
	cfg := pipeline.Config{
		InputSampleRateHz:  16000,
		InputChannels:      1,
		TargetSampleRateHz: 16000,
		TargetFrameSamples: 4,
		TargetRMSDb:        -20,
		LimiterThresholdDb: -1,
	}
	ingestor := NewIngestor(logging.NewNop(), manager, cfg)
	engine := gin.New()
	RegisterRoutes(engine, ingestor)
	return engine, manager
}

func encodeS16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestIngest_ChunkThenFinish(t *testing.T) {
	engine, manager := testEngine(t)

	body := encodeS16LE([]int16{100, 200, 300, 400})
	req := httptest.NewRequest(http.MethodPost, "/http/v1/sessions/sess-1/chunk", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	update, ok, err := manager.PollUpdate("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, update.Text, "sess-1")

	finishReq := httptest.NewRequest(http.MethodPost, "/http/v1/sessions/sess-1/finish", nil)
	finishRec := httptest.NewRecorder()
	engine.ServeHTTP(finishRec, finishReq)
	require.Equal(t, http.StatusNoContent, finishRec.Code)

	deadline := time.After(time.Second)
	for {
		update, ok, err := manager.PollUpdate("sess-1")
		require.NoError(t, err)
		require.True(t, ok)
		if update.Kind == session.Final {
			assert.Contains(t, update.Text, "sess-1")
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for final update")
		default:
		}
	}
}

func TestIngest_ChunkOnUnknownSessionStartsOne(t *testing.T) {
	engine, manager := testEngine(t)

	// Below the 4-sample frame threshold: no frame reaches the ASR
	// backend yet, but the session must still have been created.
	body := encodeS16LE([]int16{1, 2})
	req := httptest.NewRequest(http.MethodPost, "/http/v1/sessions/fresh/chunk", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.NoError(t, manager.FinishSession("fresh"))
	update, ok, err := manager.PollUpdate("fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session fresh complete no additional data", update.Text)
}

func TestIngest_FinishOnUnknownSessionFails(t *testing.T) {
	engine, _ := testEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/http/v1/sessions/never-started/finish", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
