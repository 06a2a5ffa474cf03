package piper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tobenna/aria/internal/types"
)

// Piper renders text to speech via a wyoming-piper HTTP sidecar.
type Piper struct {
	BaseURL string        // e.g. "http://tts:5000"
	Client  *http.Client  // inject; default if nil
	Voice   string        // default voice (override per-call)
	Timeout time.Duration // request timeout per call
}

func New(baseURL, voice string, timeout time.Duration) *Piper {
	return &Piper{
		BaseURL: baseURL,
		Voice:   voice,
		Timeout: timeout,
	}
}

// Synthesize implements tts.Synthesizer.
// rhasspy/wyoming-piper HTTP: GET /api/text-to-speech?text=...&voice=...
// streams a WAV body on success.
func (p *Piper) Synthesize(ctx context.Context, text string, format types.AudioFormat) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	u, err := url.Parse(p.BaseURL + "/api/text-to-speech")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("text", text)
	if p.Voice != "" {
		q.Set("voice", p.Voice)
	}
	if format.SampleRate > 0 {
		q.Set("sample_rate", fmt.Sprintf("%d", format.SampleRate))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/wav")

	hc := p.Client
	if hc == nil {
		hc = &http.Client{}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx2, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx2)

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts http request failed: %w (url=%s)", err, u.String())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tts http %d: %s (url=%s, dur=%s)", resp.StatusCode, string(b), u.String(), time.Since(start))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts body read failed: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned empty audio")
	}

	return audio, nil
}

// Close implements tts.Synthesizer.
func (p *Piper) Close() error {
	if p.Client != nil {
		p.Client.CloseIdleConnections()
	}
	return nil
}
