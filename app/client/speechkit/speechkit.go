package speechkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/samber/do"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
)

// Recognizer wraps the SpeechKit STT v3 streaming API. One Start call opens
// one recognition stream; the stream accepts raw PCM chunks and emits
// partial and final transcript events.
type Recognizer struct {
	cfg *config.Config
	sdk *ycsdk.SDK
}

func NewRecognizer(di *do.Injector) (*Recognizer, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.Speech.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, fmt.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yandex SDK: %w", err)
	}

	return &Recognizer{
		cfg: cfg,
		sdk: sdk,
	}, nil
}

func (r *Recognizer) Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := r.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create streaming client: %w", err)
	}

	return &Handle{
		client:   client,
		cancel:   cancel,
		language: r.cfg.Speech.Language,
	}, nil
}
