package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/io/stt"
)

// transcriptionResponse is the JSON body returned by the Whisper service.
type transcriptionResponse struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language"`
	Segments []transcriptionSegment `json:"segments,omitempty"`
}

type transcriptionSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	ID         int     `json:"id"`
	AvgLogProb float64 `json:"avg_logprob"`
}

// Client talks to a Whisper STT HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *Logger.Logger
}

// NewClient creates a new Whisper client.
func NewClient(baseURL string, timeout time.Duration, logger *Logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Transcribe implements stt.Transcriber.
func (w *Client) Transcribe(ctx context.Context, audio []byte, format types.AudioFormat) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio provided")
	}

	wavData := pcmToWAV(audio, format)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	requestURL := fmt.Sprintf("%s/asr?encode=true&task=transcribe&language=en&output=json", w.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		w.logger.Errorf("Whisper service error (status %d): %s", resp.StatusCode, string(responseBody))
		return nil, fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(responseBody))
	}

	if len(responseBody) == 0 {
		return nil, fmt.Errorf("whisper service returned empty response")
	}

	var transcription transcriptionResponse
	if err := json.Unmarshal(responseBody, &transcription); err != nil {
		// Some deployments respond with the bare transcript as text
		responseText := string(responseBody)
		if responseText != "" {
			w.logger.Infof("Treating response as plain text transcription: %s", responseText)
			return &stt.Result{
				Text:       responseText,
				Confidence: defaultConfidence,
			}, nil
		}

		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	w.logger.Debugf("Whisper transcription: %s (language: %s)", transcription.Text, transcription.Language)

	return transcription.toResult(), nil
}

// Whisper does not report a recognition confidence; treat responses
// without segment log-probs as high confidence like the engine docs suggest.
const defaultConfidence = 0.95

func (t *transcriptionResponse) toResult() *stt.Result {
	result := &stt.Result{
		Text:       t.Text,
		Confidence: defaultConfidence,
	}

	if len(t.Segments) > 0 {
		var probSum float64
		for _, seg := range t.Segments {
			// avg_logprob is <= 0; e^logprob maps it into (0,1]
			probSum += logProbToConfidence(seg.AvgLogProb)
			result.Words = append(result.Words, types.WordTiming{
				Word:  seg.Text,
				Start: seg.Start,
				End:   seg.End,
			})
		}
		result.Confidence = probSum / float64(len(t.Segments))
	}

	return result
}

func logProbToConfidence(logProb float64) float64 {
	if logProb >= 0 {
		return 1.0
	}
	// Crude linear mapping; -1.0 and below reads as no confidence
	conf := 1.0 + logProb
	if conf < 0 {
		conf = 0
	}
	return conf
}

// pcmToWAV prefixes raw PCM with a 44-byte WAV header.
func pcmToWAV(pcm []byte, format types.AudioFormat) []byte {
	sampleRate := format.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	numChannels := int(format.Channels)
	if numChannels == 0 {
		numChannels = 1
	}

	const bitsPerSample = 16

	byteRate := int(sampleRate) * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	wavSize := 44 + len(pcm)

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	writeUint32LE(header[4:8], uint32(wavSize-8))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	writeUint32LE(header[16:20], 16) // PCM format chunk size
	writeUint16LE(header[20:22], 1)  // PCM format
	writeUint16LE(header[22:24], uint16(numChannels))
	writeUint32LE(header[24:28], uint32(sampleRate))
	writeUint32LE(header[28:32], uint32(byteRate))
	writeUint16LE(header[32:34], uint16(blockAlign))
	writeUint16LE(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	writeUint32LE(header[40:44], uint32(len(pcm)))

	wavData := make([]byte, 0, wavSize)
	wavData = append(wavData, header...)
	wavData = append(wavData, pcm...)

	return wavData
}

func writeUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func writeUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// Close implements stt.Transcriber.
func (w *Client) Close() error {
	w.httpClient.CloseIdleConnections()
	return nil
}
