// Package main is the feeder CLI: it seeds crawl requests into a
// spider's domain queues or stops a running crawl.
//
//	feeder -url http://example.com/ -appid myapp
//	feeder -stop -appid myapp -crawlid abc123
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/muaviaUsmani/stampede/internal/config"
	"github.com/muaviaUsmani/stampede/internal/logger"
	"github.com/muaviaUsmani/stampede/pkg/client"
)

func main() {
	var (
		rawurl    = flag.String("url", "", "url to crawl")
		appid     = flag.String("appid", "", "application id")
		crawlid   = flag.String("crawlid", "", "crawl id (generated when empty)")
		priority  = flag.Int64("priority", 0, "request priority; higher pops earlier")
		expiresIn = flag.Int64("expires-in", 0, "seconds until the request expires; 0 never")
		useragent = flag.String("useragent", "", "user agent override")
		cookie    = flag.String("cookie", "", "cookie string, name=value; pairs")
		stop      = flag.Bool("stop", false, "blacklist the crawl instead of feeding")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	feederLog := log.WithComponent(logger.ComponentFeeder)

	c, err := client.NewClient(cfg.RedisHost, cfg.RedisPort)
	if err != nil {
		feederLog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *stop {
		if *appid == "" || *crawlid == "" {
			fmt.Fprintln(os.Stderr, "-stop requires -appid and -crawlid")
			os.Exit(1)
		}
		if err := c.StopCrawl(ctx, cfg.SpiderName, *appid, *crawlid); err != nil {
			feederLog.Error("Failed to stop crawl", "error", err)
			os.Exit(1)
		}
		feederLog.Info("Crawl blacklisted", "appid", *appid, "crawlid", *crawlid)
		return
	}

	if *rawurl == "" || *appid == "" {
		fmt.Fprintln(os.Stderr, "feeding requires -url and -appid")
		os.Exit(1)
	}

	var expires int64
	if *expiresIn > 0 {
		expires = time.Now().Unix() + *expiresIn
	}

	id, err := c.Submit(ctx, cfg.SpiderName, client.Submission{
		URL:       *rawurl,
		AppID:     *appid,
		CrawlID:   *crawlid,
		Priority:  *priority,
		Expires:   expires,
		UserAgent: *useragent,
		Cookie:    *cookie,
	})
	if err != nil {
		feederLog.Error("Failed to submit request", "error", err)
		os.Exit(1)
	}

	feederLog.Info("Request submitted", "url", *rawurl, "crawlid", id)
}
