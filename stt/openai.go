package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/voxchord/conditioner"
	"go.aimuz.me/voxchord/langdetect"
)

const defaultModel = "whisper-1"

// OpenAI recognizes speech with the OpenAI transcription API or a
// compatible server.
type OpenAI struct {
	client   openai.Client
	model    string
	prompt   string
	language string
	name     string
}

// NewOpenAI creates an OpenAI recognizer. A non-empty BaseURL targets a
// compatible server.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	}
	name := "openai"
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		name = "openai-compatible"
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	language := cfg.Language
	if language == "auto" {
		language = ""
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		prompt:   cfg.Prompt,
		language: language,
		name:     name,
	}
}

func (o *OpenAI) Name() string { return o.name }

// Recognize uploads buf as a 16-bit WAV file and returns the transcript.
func (o *OpenAI) Recognize(ctx context.Context, buf conditioner.Buffer) (*Result, error) {
	wavData, err := EncodeWAV(buf.Samples, buf.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
		// verbose_json carries the detected language and the audio duration.
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	// The API rejects "auto"; an absent language means auto-detect.
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	if o.prompt != "" {
		params.Prompt = openai.String(o.prompt)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	res := &Result{
		Text:     resp.Text,
		Duration: bufferDuration(buf),
		Language: o.language,
	}
	if resp.Duration > 0 {
		res.Duration = time.Duration(resp.Duration * float64(time.Second))
	}
	if code, ok := langdetect.CodeOf(resp.Language); ok {
		res.Language = code
	}
	return res, nil
}

func bufferDuration(buf conditioner.Buffer) time.Duration {
	if buf.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(buf.Samples)) * time.Second / time.Duration(buf.SampleRate)
}
