package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/config"
	"github.com/Sriram-PR/corpus-crawler/pkg/crawler"
	crawllog "github.com/Sriram-PR/corpus-crawler/pkg/log"
	"github.com/Sriram-PR/corpus-crawler/pkg/process"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

const version = "1.0.0"

// shutdownGrace bounds how long a signalled crawl may take to stop before the process is killed.
const shutdownGrace = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		os.Exit(runCrawl(os.Args[2:]))
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("corpus-crawler %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `corpus-crawler - polite single-domain crawler that builds corpus statistics

Usage:
  corpus-crawler <command> [options]

Commands:
  crawl       Run a crawl and write the reports
  validate    Validate a configuration file
  version     Show version info

Run 'corpus-crawler <command> -h' for command-specific help.`)
}

// loadConfig loads and validates the config file, applying command-line overrides before validation.
func loadConfig(path, reportsDir string) (*config.AppConfig, []string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if reportsDir != "" {
		cfg.Reports.Dir = reportsDir
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// runCrawl handles the crawl subcommand and returns the process exit code.
func runCrawl(args []string) int {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to YAML config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	reportsDir := fs.String("reports-dir", "", "Override reports.dir from the config file")
	writeQueuedLog := fs.Bool("write-queued-log", false, "Write every queued URL with its depth when the crawl ends")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corpus-crawler crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}

	log, err := crawllog.New(*logLevel, os.Stderr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevel, err)
	}

	log.Infof("Loading configuration from %s", *configFile)
	appCfg, warnings, err := loadConfig(*configFile, *reportsDir)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Errorf("Configuration error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	if *pprofAddr != "" {
		go func() {
			log.Infof("Starting pprof HTTP server on: http://%s/debug/pprof/", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Errorf("Pprof server failed on %s: %v", *pprofAddr, err)
			}
		}()
	}

	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Stopping crawl and flushing reports...", sig)
		cancelCrawl()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(shutdownGrace):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	stopwords := process.LoadStopwords(appCfg.Analytics.StopwordsFile, log)

	c, err := crawler.NewFromConfig(crawlCtx, appCfg, stopwords, logrus.NewEntry(log))
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Errorf("Failed to initialize crawler: %v", err)
		return 1
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			log.Errorf("Error closing crawler resources: %v", closeErr)
		}
	}()

	log.WithField("crawl_id", c.CrawlID()).Info("Crawl starting")
	err = c.Run(crawlCtx)

	if *writeQueuedLog {
		path, writeErr := c.WriteQueuedLog()
		if writeErr != nil {
			log.Errorf("Error writing queued URL log: %v", writeErr)
		} else {
			log.Infof("Queued URL log written to %s", path)
		}
	}

	return exitCode(err, log)
}

// exitCode maps the crawl outcome onto a process exit code. A user interrupt is a clean stop.
func exitCode(err error, log *logrus.Logger) int {
	switch {
	case err == nil:
		log.Info("Crawl completed successfully.")
		return 0
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled; reports reflect the pages processed so far.")
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout); reports reflect the pages processed so far.")
		return 1
	default:
		log.WithField("category", utils.CategorizeError(err)).Errorf("Crawl finished with error: %v", err)
		return 1
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corpus-crawler validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate validates the config file and writes the outcome to the provided writers.
// Returns the exit code (0 = valid, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := loadConfig(configPath, "")
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: %d start URL(s), allowed domains %v\n", len(cfg.StartURLs), cfg.Scope.AllowedDomains)
	fmt.Fprintf(stdout, "OK: longest page metric '%s', error status range %s\n",
		cfg.Analytics.LongestPageMetric, cfg.Analytics.StatusClassifier())
	fmt.Fprintln(stdout, "Configuration valid")
	return 0
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: StartURLs:%d, AllowedDomains:%v, Workers:%d, MaxReqs:%d, MaxReqPerHost:%d",
		len(appCfg.StartURLs), appCfg.Scope.AllowedDomains, appCfg.NumWorkers, appCfg.MaxRequests, appCfg.MaxRequestsPerHost)
	log.Infof("Config Limits: DelayPerHost:%v, MaxDepth:%d, MaxPages:%d, MaxPageSize:%d bytes, RespectRobots:%t",
		appCfg.DelayPerHost, appCfg.MaxDepth, appCfg.MaxPages, appCfg.MaxPageSizeBytes, config.GetEffectiveRespectRobots(*appCfg))
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config Timeouts: SemaphoreAcquire:%v, GlobalCrawl:%v, HTTP:%v",
		appCfg.SemaphoreAcquireTimeout, appCfg.GlobalCrawlTimeout, appCfg.HTTPClientSettings.Timeout)
	log.Infof("Config Analytics: Stopwords:%s, LongestPage:%s, ErrorRange:%s, TopWords:%d",
		appCfg.Analytics.StopwordsFile, appCfg.Analytics.LongestPageMetric, appCfg.Analytics.StatusClassifier(), appCfg.Analytics.TopWords)
	log.Infof("Config Reports: Dir:%s, FlushInterval:%v, Summary:%t",
		appCfg.Reports.Dir, appCfg.Reports.FlushInterval, config.GetEffectiveEnableSummary(appCfg.Reports))
}
