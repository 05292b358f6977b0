package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	var cfg replayConfig
	flag.StringVar(&cfg.file, "file", "", "JSON-lines file of captured push payloads")
	flag.StringVar(&cfg.url, "url", "http://127.0.0.1:1080/webhook/switchbot", "push listener URL")
	flag.DurationVar(&cfg.delay, "delay", 200*time.Millisecond, "pause between deliveries")
	flag.BoolVar(&cfg.stopOnError, "stop-on-error", false, "stop at the first rejected delivery")
	flag.Parse()

	if cfg.file == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(cfg.file)
	if err != nil {
		log.Fatal("Failed to open replay file: ", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	stats, err := replay(ctx, &http.Client{Timeout: 10 * time.Second}, cfg, f, os.Stdout)
	usedTime := time.Since(startTime)

	fmt.Printf("\nreplayed %v lines: accepted=%v discarded=%v rejected=%v skipped=%v, used time=%v seconds\n",
		stats.lines, stats.accepted, stats.discarded, stats.rejected, stats.skipped, usedTime.Seconds())

	if err != nil {
		log.Fatal(err)
	}
}
