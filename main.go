package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/rajjagirdar007/platemateuh/app/client/geoip"
	"github.com/rajjagirdar007/platemateuh/app/client/llm"
	"github.com/rajjagirdar007/platemateuh/app/client/nominatim"
	"github.com/rajjagirdar007/platemateuh/app/client/speechkit"
	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/rajjagirdar007/platemateuh/app/service/conversation"
	"github.com/rajjagirdar007/platemateuh/app/service/extract"
	"github.com/rajjagirdar007/platemateuh/app/service/location"
	"github.com/rajjagirdar007/platemateuh/app/service/queue"
	"github.com/rajjagirdar007/platemateuh/app/service/session"
	"github.com/rajjagirdar007/platemateuh/app/service/speech"
	"github.com/rajjagirdar007/platemateuh/app/service/store"
	"github.com/rajjagirdar007/platemateuh/app/transport/httpapi"
	"github.com/rajjagirdar007/platemateuh/app/util/mylog"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	_ = godotenv.Load()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, llm.NewClient)
	do.Provide(di, speechkit.NewRecognizer)
	do.Provide(di, geoip.NewClient)
	do.Provide(di, nominatim.NewClient)
	do.Provide(di, store.New)
	do.Provide(di, queue.New)
	do.Provide(di, location.New)
	do.Provide(di, speech.New)
	do.Provide(di, conversation.New)
	do.Provide(di, extract.New)
	do.Provide(di, session.New)
	do.Provide(di, httpapi.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	do.MustInvoke[*location.Service](di).Start(appCtx)

	go do.MustInvoke[*session.Service](di).Run(appCtx)

	go func() {
		if err := do.MustInvoke[*httpapi.Server](di).Run(appCtx); err != nil {
			log.Errorf("http server failed: %v", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
