package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// sileroSegment is one voice segment as reported by the Silero service,
// in seconds from the start of the clip.
type sileroSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// sileroResponse is the JSON body returned by the Silero VAD sidecar.
type sileroResponse struct {
	HasVoice         bool            `json:"has_voice"`
	Confidence       float32         `json:"confidence"`
	Segments         []sileroSegment `json:"segments"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
	AudioDurationMs  float64         `json:"audio_duration_ms"`
}

// SileroDetector implements Detector against a Silero VAD HTTP sidecar.
type SileroDetector struct {
	config     Config
	logger     *Logger.Logger
	mutex      sync.Mutex
	closed     bool
	httpClient *http.Client
	serviceURL string
}

// NewSileroDetector creates a detector pointed at the given service URL.
func NewSileroDetector(config Config, logger *Logger.Logger, serviceURL string) *SileroDetector {
	if serviceURL == "" {
		serviceURL = "http://localhost:8001"
	}
	return &SileroDetector{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		serviceURL: serviceURL,
	}
}

// DetectSegments implements Detector.
func (s *SileroDetector) DetectSegments(ctx context.Context, buffer types.AudioBuffer) ([]types.Segment, error) {
	// the mutex guards only the closed flag; holding it across the
	// HTTP round-trip would serialize every VAD call in the process
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()
	if closed {
		return nil, fmt.Errorf("VAD is closed")
	}

	if len(buffer.Data) == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}

	resp, err := s.callService(ctx, buffer)
	if err != nil {
		return nil, err
	}

	sampleRate := buffer.Format.SampleRate
	if sampleRate == 0 {
		sampleRate = s.config.SampleRate
	}
	channels := buffer.Format.Channels
	if channels == 0 {
		channels = 1
	}
	// 16-bit PCM: 2 bytes per sample per channel
	bytesPerSec := float64(sampleRate) * 2 * float64(channels)

	segments := make([]types.Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, types.Segment{
			Start: int64(seg.Start * bytesPerSec),
			End:   int64(seg.End * bytesPerSec),
		})
	}

	s.logger.Debugf("Silero VAD: hasVoice=%v, confidence=%.3f, segments=%d, processing_time=%.1fms",
		resp.HasVoice, resp.Confidence, len(segments), resp.ProcessingTimeMs)

	return segments, nil
}

// callService posts the buffer to the Silero sidecar as a WAV upload.
func (s *SileroDetector) callService(ctx context.Context, buffer types.AudioBuffer) (*sileroResponse, error) {
	wavData, err := s.createWAVFromPCM(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV data: %v", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %v", err)
	}

	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %v", err)
	}

	writer.WriteField("threshold", fmt.Sprintf("%.3f", s.config.Threshold))
	writer.WriteField("min_speech_duration_ms", strconv.Itoa(s.config.MinSpeechMs))
	writer.WriteField("min_silence_duration_ms", strconv.Itoa(s.config.MinSilenceMs))
	writer.WriteField("sampling_rate", strconv.Itoa(int(s.config.SampleRate)))

	writer.Close()

	url := s.serviceURL + "/vad"
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call VAD service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("VAD service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var sileroResp sileroResponse
	if err := json.NewDecoder(resp.Body).Decode(&sileroResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	return &sileroResp, nil
}

// createWAVFromPCM wraps raw PCM data with a WAV header.
func (s *SileroDetector) createWAVFromPCM(b types.AudioBuffer) ([]byte, error) {
	buffer := &bytes.Buffer{}

	sampleRate := b.Format.SampleRate
	if sampleRate == 0 {
		sampleRate = s.config.SampleRate
	}
	channels := b.Format.Channels
	if channels == 0 {
		channels = 1
	}

	dataSize := uint32(len(b.Data))
	fileSize := dataSize + 36
	byteRate := uint32(sampleRate) * uint32(channels) * 2
	blockAlign := uint16(channels) * 2

	buffer.WriteString("RIFF")
	buffer.Write(uint32ToBytes(fileSize))
	buffer.WriteString("WAVE")
	buffer.WriteString("fmt ")
	buffer.Write(uint32ToBytes(16)) // PCM format chunk size
	buffer.Write(uint16ToBytes(1))  // PCM format
	buffer.Write(uint16ToBytes(uint16(channels)))
	buffer.Write(uint32ToBytes(uint32(sampleRate)))
	buffer.Write(uint32ToBytes(byteRate))
	buffer.Write(uint16ToBytes(blockAlign))
	buffer.Write(uint16ToBytes(16)) // Bits per sample
	buffer.WriteString("data")
	buffer.Write(uint32ToBytes(dataSize))

	buffer.Write(b.Data)

	return buffer.Bytes(), nil
}

func uint32ToBytes(val uint32) []byte {
	return []byte{
		byte(val & 0xFF),
		byte((val >> 8) & 0xFF),
		byte((val >> 16) & 0xFF),
		byte((val >> 24) & 0xFF),
	}
}

func uint16ToBytes(val uint16) []byte {
	return []byte{
		byte(val & 0xFF),
		byte((val >> 8) & 0xFF),
	}
}

// Close releases resources
func (s *SileroDetector) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed = true
	s.logger.Debugf("Silero VAD closed")
	return nil
}
