// Package httpio implements the HTTP ingest fallback transport:
// POST .../chunk, POST .../finish, GET .../events (SSE), grounded on
// original_source/{http_api/mod.rs,ingest/mod.rs}.
package httpio

import (
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr"
	"github.com/rapidaai/realtime-asr-gateway/internal/audio/pipeline"
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

type sessionState struct {
	pipeline *pipeline.Pipeline
}

// Ingestor lazily allocates a per-session pipeline and forwards
// produced target frames into the ASR manager, grounded on
// ingest/mod.rs's PcmIngestor.
type Ingestor struct {
	logger     logging.Logger
	asrManager *asr.Manager
	pipelineCfg pipeline.Config

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewIngestor builds an Ingestor backed by asrManager, stamping every
// new session's pipeline with pipelineCfg.
func NewIngestor(logger logging.Logger, asrManager *asr.Manager, pipelineCfg pipeline.Config) *Ingestor {
	return &Ingestor{
		logger:      logger,
		asrManager:  asrManager,
		pipelineCfg: pipelineCfg,
		sessions:    make(map[string]*sessionState),
	}
}

func (ing *Ingestor) ensureSession(sessionID string) error {
	ing.mu.Lock()
	_, exists := ing.sessions[sessionID]
	ing.mu.Unlock()
	if exists {
		return nil
	}
	if err := ing.asrManager.StartSession(sessionID); err != nil {
		return err
	}
	ing.mu.Lock()
	if _, exists := ing.sessions[sessionID]; !exists {
		ing.sessions[sessionID] = &sessionState{pipeline: pipeline.New(ing.pipelineCfg)}
	}
	ing.mu.Unlock()
	return nil
}

// IngestChunk decodes a raw S16LE body into i16 samples, feeds the
// session's pipeline, and forwards every produced frame to the ASR manager.
func (ing *Ingestor) IngestChunk(sessionID string, body []byte) error {
	if err := ing.ensureSession(sessionID); err != nil {
		return err
	}
	samples := decodeS16LE(body)

	ing.mu.Lock()
	state, ok := ing.sessions[sessionID]
	ing.mu.Unlock()
	if !ok {
		return gatewayerr.New(gatewayerr.SessionNotFound, "unknown ingest session")
	}
	frames := state.pipeline.Process(samples)
	for _, f := range frames {
		if err := ing.asrManager.SendAudio(sessionID, f); err != nil {
			return err
		}
	}
	return nil
}

// FinishSession flushes the pipeline residue, finalizes the ASR
// stream, and drops local ingest state.
func (ing *Ingestor) FinishSession(sessionID string) error {
	ing.mu.Lock()
	state, ok := ing.sessions[sessionID]
	ing.mu.Unlock()
	if !ok {
		return gatewayerr.New(gatewayerr.SessionNotFound, "unknown ingest session")
	}
	if residue := state.pipeline.Flush(); residue != nil {
		if err := ing.asrManager.SendAudio(sessionID, residue); err != nil {
			return err
		}
	}
	if err := ing.asrManager.FinishSession(sessionID); err != nil {
		return err
	}
	ing.mu.Lock()
	delete(ing.sessions, sessionID)
	ing.mu.Unlock()
	return nil
}

func decodeS16LE(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i : 2*i+2]))
	}
	return out
}

// RegisterRoutes attaches the three /http/v1/sessions/:id/... routes
// to engine under a gin.RouterGroup, grounded on the teacher's
// router/healthcheck.go route-grouping idiom.
func RegisterRoutes(engine *gin.Engine, ing *Ingestor) {
	group := engine.Group("/http/v1/sessions")
	group.POST("/:id/chunk", func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		if err := ing.IngestChunk(c.Param("id"), body); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	group.POST("/:id/finish", func(c *gin.Context) {
		if err := ing.FinishSession(c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	group.GET("/:id/events", func(c *gin.Context) {
		serveSSE(c, ing.asrManager, c.Param("id"))
	})
}

func respondErr(c *gin.Context, err error) {
	if ge, ok := gatewayerr.As(err); ok {
		c.JSON(ge.HTTPStatus(), gin.H{"message": ge.Message, "code": ge.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}

// serveSSE streams partial/final events with a monotonically
// increasing id field, closing the stream after Final (spec.md §4.2).
func serveSSE(c *gin.Context, asrManager *asr.Manager, sessionID string) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, _ := c.Writer.(http.Flusher)
	eventID := uint64(0)

	for {
		update, ok, err := asrManager.PollUpdate(sessionID)
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if !ok {
			return
		}
		eventID++
		switch update.Kind {
		case session.Partial:
			fmt.Fprintf(c.Writer, "id: %d\nevent: partial\ndata: {\"text\":%q,\"confidence\":%v}\n\n",
				eventID, update.Text, update.Confidence)
		case session.Final:
			fmt.Fprintf(c.Writer, "id: %d\nevent: final\ndata: {\"text\":%q}\n\n", eventID, update.Text)
			if flusher != nil {
				flusher.Flush()
			}
			asrManager.DropSession(sessionID)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
