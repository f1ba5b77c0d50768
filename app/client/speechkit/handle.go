package speechkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

type EventKind int

const (
	// EventPartial carries a provisional transcript that replaces any
	// previous partial.
	EventPartial EventKind = iota
	// EventFinal carries a finalized utterance.
	EventFinal
)

type Event struct {
	Kind EventKind
	Text string
}

type Handle struct {
	client   stt.Recognizer_RecognizeStreamingClient
	cancel   context.CancelFunc
	language string
}

func (h *Handle) Send(content []byte) error {
	var req stt.StreamingRequest
	req.SetChunk(&stt.AudioChunk{
		Data: content,
	})

	return h.client.Send(&req)
}

func (h *Handle) SendConfig() error {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetRawAudio(&stt.RawAudio{
		AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
		SampleRateHertz:   16000,
		AudioChannelCount: 1,
	})

	var eouClassifier stt.EouClassifierOptions
	eouClassifier.SetDefaultClassifier(&stt.DefaultEouClassifier{
		Type:                       stt.DefaultEouClassifier_HIGH,
		MaxPauseBetweenWordsHintMs: 500,
	})

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: &stt.RecognitionModelOptions{
			Model:       "general",
			AudioFormat: &audioFormatOpts,
			LanguageRestriction: &stt.LanguageRestrictionOptions{
				RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
				LanguageCode:    []string{h.language},
			},
		},
		EouClassifier: &eouClassifier,
	})

	return h.client.Send(&req)
}

// Recv blocks for the next recognizer response. It returns nil, nil for
// responses that carry neither a partial nor a final transcript.
func (h *Handle) Recv() (*Event, error) {
	res, err := h.client.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive stt event: %w", err)
	}

	if partial := res.GetPartial(); partial != nil {
		return &Event{
			Kind: EventPartial,
			Text: firstAlternative(partial.Alternatives),
		}, nil
	}

	if final := res.GetFinal(); final != nil {
		return &Event{
			Kind: EventFinal,
			Text: firstAlternative(final.Alternatives),
		}, nil
	}

	return nil, nil
}

// Finalize signals end-of-audio so the recognizer emits its final
// transcript before closing the stream.
func (h *Handle) Finalize() error {
	return h.client.CloseSend()
}

// Close cancels the stream without waiting for a final transcript.
func (h *Handle) Close() error {
	h.cancel()
	return nil
}

func firstAlternative(alts []*stt.Alternative) string {
	for _, alt := range alts {
		if text := strings.TrimSpace(alt.Text); text != "" {
			return text
		}
	}

	return ""
}
