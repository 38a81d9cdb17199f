package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/report"
	"example.com/segyview/internal/server"
)

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	Port               int       `yaml:"port"`
	StorageDir         string    `yaml:"storageDir"`
	Concurrency        int       `yaml:"concurrency"`
	SpecDir            string    `yaml:"specDir"`
	MaxDecompressedMB  int64     `yaml:"maxDecompressedMB"`
	RenderCacheEntries int       `yaml:"renderCacheEntries"`
	ActivityLog        string    `yaml:"activityLog"`
	Lang               string    `yaml:"lang"`
	Logs               logConfig `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data"
	}
	cfg.StorageDir = resolvePath(cfg.StorageDir)
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	cfg.SpecDir = resolvePath(cfg.SpecDir)
	cfg.ActivityLog = resolvePath(cfg.ActivityLog)
	if cfg.MaxDecompressedMB <= 0 {
		cfg.MaxDecompressedMB = 2048
	}
	if cfg.RenderCacheEntries == 0 {
		cfg.RenderCacheEntries = 64
	}
	if cfg.Lang == "" {
		cfg.Lang = string(report.LangEnglish)
	}
	if _, err := report.ParseLanguage(cfg.Lang); err != nil {
		return cfg, err
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(cfg.StorageDir, "logs")
	} else {
		cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

// serverOptions maps the file configuration onto server.Options.
func serverOptions(cfg config) (server.Options, error) {
	lang, err := report.ParseLanguage(cfg.Lang)
	if err != nil {
		return server.Options{}, err
	}
	return server.Options{
		StorageDir:           cfg.StorageDir,
		Concurrency:          cfg.Concurrency,
		SpecDir:              cfg.SpecDir,
		MaxDecompressedBytes: cfg.MaxDecompressedMB << 20,
		RenderCacheEntries:   cfg.RenderCacheEntries,
		ActivityLog:          cfg.ActivityLog,
		Lang:                 lang,
	}, nil
}

func setupLogging(cfg config) (io.Closer, error) {
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile := filepath.Join(cfg.Logs.Directory, "segyd.log")
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	out := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	common.SetLogOutput(out)
	return rotator, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	addr := flag.String("addr", "", "listen address (overrides config port)")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 120*time.Second, "HTTP write timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		log.Fatalf("storage dir: %v", err)
	}
	rotator, err := setupLogging(cfg)
	if err != nil {
		log.Fatalf("setup logging: %v", err)
	}
	defer rotator.Close()

	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	if *addr != "" {
		listenAddr = *addr
	}
	opts, err := serverOptions(cfg)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		log.Fatalf("server init: %v", err)
	}
	defer srv.Close()

	router, err := server.NewRouter(srv)
	if err != nil {
		log.Fatalf("router init: %v", err)
	}
	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}

	log.Printf("segyd listening on %s (storage %s, %d workers)", listenAddr, cfg.StorageDir, cfg.Concurrency)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	snap := srv.Metrics().Snapshot()
	log.Printf("segyd stopped after %d renders, %d traces decoded", snap.Renders, snap.Traces)
}
