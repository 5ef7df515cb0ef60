package cloneapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"vocalis-server-go/internal/domain/audio"
	"vocalis-server-go/internal/domain/voice"
	"vocalis-server-go/internal/platform/config"
	platformerrors "vocalis-server-go/internal/platform/errors"
	"vocalis-server-go/internal/platform/logging"
	httptransport "vocalis-server-go/internal/transport/http"
)

const downloadName = "synthesized_output.wav"

// VoiceService is the pipeline surface the handlers need.
type VoiceService interface {
	Health() voice.HealthStatus
	ExtractVoicePrint(ctx context.Context, data []byte, nameHint string) (voice.VoicePrint, error)
	Synthesize(ctx context.Context, req voice.SynthesisRequest) (voice.SynthesisResult, error)
}

// Service registers the voice-cloning API routes.
type Service struct {
	cfg      *config.Config
	logger   *logging.Logger
	pipeline VoiceService
	started  time.Time
}

func NewService(cfg *config.Config, logger *logging.Logger, pipeline VoiceService) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		started:  time.Now(),
	}
}

// Start registers all voice-cloning routes on the API group.
func (s *Service) Start(ctx context.Context, apiGroup *gin.RouterGroup) error {
	apiGroup.POST("/record", s.handleRecord)
	apiGroup.POST("/synthesize", s.handleSynthesize)
	apiGroup.GET("/health", s.handleHealth)

	s.logger.InfoTag("HTTP", "voice-cloning routes registered")
	return nil
}

func (s *Service) handleRecord(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "no audio file provided", nil)
		return
	}
	if file.Filename == "" || file.Size == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "no audio file selected", nil)
		return
	}
	if max := s.cfg.Server.MaxUploadBytes; max > 0 && file.Size > max {
		httptransport.RespondError(c, http.StatusBadRequest, "audio file too large", nil)
		return
	}

	reader, err := file.Open()
	if err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "unreadable upload", nil)
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil || len(data) == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "unreadable upload", nil)
		return
	}

	print, err := s.pipeline.ExtractVoicePrint(c.Request.Context(), data, file.Filename)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"embedding_shape": []int{len(print)},
		"embedding":       print,
	}, "voice recorded and processed successfully")
}

type synthesizePayload struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Speed     *float64  `json:"speed"`
}

func (s *Service) handleSynthesize(c *gin.Context) {
	var payload synthesizePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	req := voice.SynthesisRequest{
		Text:       strings.TrimSpace(payload.Text),
		VoicePrint: payload.Embedding,
		Speed:      voice.DefaultSpeed,
	}
	if payload.Speed != nil {
		req.Speed = *payload.Speed
	}
	if err := req.Normalize(); err != nil {
		s.respondPipelineError(c, err)
		return
	}

	result, err := s.pipeline.Synthesize(c.Request.Context(), req)
	if err != nil {
		s.respondPipelineError(c, err)
		return
	}

	wavBytes, err := audio.EncodeWAV(result.Waveform)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to encode audio", nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	c.Data(http.StatusOK, "audio/wav", wavBytes)
}

func (s *Service) handleHealth(c *gin.Context) {
	status := s.pipeline.Health()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"models_loaded": status.ModelsLoaded,
		"sample_rate":   status.SampleRate,
		"system":        s.systemStats(),
	})
}

// systemStats reports process uptime and memory for operators; failures
// degrade to an uptime-only view.
func (s *Service) systemStats() gin.H {
	stats := gin.H{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats["rss_bytes"] = mem.RSS
	}
	return stats
}

func (s *Service) respondPipelineError(c *gin.Context, err error) {
	switch platformerrors.KindOf(err) {
	case platformerrors.KindValidation:
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
	case platformerrors.KindModelInit:
		s.logger.ErrorTag("HTTP", "model initialization failed: %v", err)
		httptransport.RespondError(c, http.StatusServiceUnavailable, "models are not available", nil)
	default:
		s.logger.ErrorTag("HTTP", "request failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
