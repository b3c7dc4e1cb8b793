package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"snackpay/backend/internal/agent"
	"snackpay/backend/internal/audit"
	"snackpay/backend/internal/config"
	"snackpay/backend/internal/notify"
	"snackpay/backend/internal/prefs"
)

func main() {
	cfg := config.LoadAgent()

	var signer *agent.Signer
	var err error
	if cfg.SigningSeedHex != "" {
		signer, err = agent.NewSignerFromSeed(cfg.SigningSeedHex)
	} else {
		signer, err = agent.NewSigner()
	}
	if err != nil {
		log.Fatalf("signing key setup failed: %v", err)
	}

	vendors := make([]*agent.VendorClient, 0, len(cfg.VendorURLs))
	for i, url := range cfg.VendorURLs {
		vendors = append(vendors, agent.NewVendorClient(fmt.Sprintf("vendor-%d", i), url))
	}
	settlement := agent.NewSettlementClient(cfg.SettlementURL)

	var source prefs.Source = prefs.StaticSource{Preferences: prefs.Defaults()}
	if cfg.PreferencesPath != "" {
		source = prefs.FileSource{Path: cfg.PreferencesPath}
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	flow := agent.NewFlow(
		source,
		agent.NewComparator(vendors),
		settlement,
		signer,
		agent.NewWaiter(
			settlement,
			time.Duration(cfg.PollIntervalSec)*time.Second,
			time.Duration(cfg.WaitTimeoutSec)*time.Second,
		),
		notifier,
		audit.NewFileSink(cfg.AuditPath),
		cfg.PayerRef,
	)

	result := flow.Run(context.Background())

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("result encoding failed: %v", err)
	}
	fmt.Println(string(encoded))

	if !result.Success {
		os.Exit(1)
	}
}
