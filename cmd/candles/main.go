package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chartfeed/internal/cli"
	"chartfeed/internal/config"
	"chartfeed/internal/svc"
	"chartfeed/pkg/confkit"
	"chartfeed/pkg/ohlcv"
)

const (
	fetchTimeout = 30 * time.Second // Timeout for one fetch round
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var (
		configPath = flag.String("f", "etc/chartfeed.yaml", "config file path")
		chainID    = flag.Int64("chain", 1, "chain id (1, 10, 56, 137, 8453, 42161)")
		base       = flag.String("base", "", "token contract address or exchange ticker (required)")
		quote      = flag.String("quote", "", "optional quote token contract address")
		interval   = flag.String("interval", "1h", "candle interval (1m..1M)")
		limit      = flag.Int("limit", 0, "max candles to return")
		start      = flag.Int64("start", 0, "window start, unix seconds")
		end        = flag.Int64("end", 0, "window end, unix seconds")
		asJSON     = flag.Bool("json", false, "print the series as JSON instead of a table")
		watch      = flag.Duration("watch", 0, "refetch on this interval until interrupted")
	)
	flag.Parse()

	if *base == "" {
		flag.Usage()
		os.Exit(2)
	}

	iv, err := ohlcv.ParseInterval(*interval)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	appCfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("[main] Failed to load app config: %v", err)
	}

	cli.LogConfigSummary(appCfg)

	svcCtx := svc.NewServiceContext(appCfg)
	if svcCtx.OHLCV == nil {
		log.Fatalf("[main] No candle sources configured; set ohlcv.file in %s", *configPath)
	}

	req := ohlcv.Request{
		ChainID:  *chainID,
		Base:     *base,
		Quote:    *quote,
		Interval: iv,
		Limit:    *limit,
		Start:    *start,
		End:      *end,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetchOnce(ctx, svcCtx, req, *asJSON)
	if *watch <= 0 {
		return
	}

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	log.Printf("[main] Watching every %s. Press Ctrl+C to stop.", *watch)
	for {
		select {
		case <-ctx.Done():
			log.Println("[main] Stopped")
			return
		case <-ticker.C:
			fetchOnce(ctx, svcCtx, req, *asJSON)
		}
	}
}

// resolveConfigPath keeps the relative default usable from any working
// directory: when the file is not present locally it is looked up against
// the repository root.
func resolveConfigPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if alt, err := confkit.ProjectPath(path); err == nil {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return path
}

func fetchOnce(parentCtx context.Context, svcCtx *svc.ServiceContext, req ohlcv.Request, asJSON bool) {
	if parentCtx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, fetchTimeout)
	defer cancel()

	started := time.Now()
	series, err := svcCtx.OHLCV.Fetch(ctx, req)
	elapsed := time.Since(started)
	if err != nil {
		log.Printf("[fetch] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
		return
	}

	log.Printf("[fetch] [OK] chain=%d base=%s interval=%s candles=%d, took %dms",
		series.ChainID, series.Base, series.Interval, len(series.Candles), elapsed.Milliseconds())

	if asJSON {
		payload, err := json.MarshalIndent(series, "", "  ")
		if err != nil {
			log.Printf("[fetch] [ERROR] encode series: %v", err)
			return
		}
		fmt.Println(string(payload))
		return
	}

	printTable(series)
}

func printTable(series *ohlcv.Series) {
	label := series.BaseSymbol
	if label == "" {
		label = series.Base
	}
	fmt.Printf("%s/%s @ %s (%d candles)\n", label, series.QuoteSymbol, series.Interval, len(series.Candles))
	fmt.Printf("%-20s %-16s %-16s %-16s %-16s %s\n", "time", "open", "high", "low", "close", "volume")
	for _, candle := range series.Candles {
		ts := time.Unix(candle.Time, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Printf("%-20s %-16s %-16s %-16s %-16s %s\n",
			ts, candle.Open, candle.High, candle.Low, candle.Close, candle.Volume)
	}
}
