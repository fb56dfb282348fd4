package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/goyalankit/click/internal/commands"
	"github.com/goyalankit/click/internal/config"
	"github.com/goyalankit/click/internal/logging"
	"github.com/goyalankit/click/internal/repl"
	"github.com/goyalankit/click/internal/session"
)

func main() {
	// Suppress klog output from client-go; the REPL owns the terminal.
	klog.InitFlags(nil)
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "FATAL")
	flag.Set("v", "0")

	configFlag := flag.String("config", config.DefaultPath(), "Path to the session configuration file")
	contextFlag := flag.String("context", "", "Context to activate on startup")
	logFileFlag := flag.String("log-file", "", "Log file path (overrides settings.log-file)")
	logLevelFlag := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides settings.log-level)")
	flag.Parse()
	defer klog.Flush()

	if err := run(*configFlag, *contextFlag, *logFileFlag, *logLevelFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, startContext, logFile, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, err := logging.Init(logging.Config{
		FilePath: cfg.LogFile,
		Level:    level,
		Format:   logging.Format(cfg.LogFormat),
	})
	if err != nil {
		return err
	}

	for name, reason := range cfg.Skipped {
		fmt.Printf("Warning: skipping context %q: %v\n", name, reason)
	}

	sess := session.New(cfg)
	defer sess.Close()

	ctx := context.Background()
	if startContext != "" {
		fmt.Printf("Connecting to context %s...\n", startContext)
		if err := sess.Switch(ctx, startContext); err != nil {
			return fmt.Errorf("activate context %q: %w", startContext, err)
		}
	} else {
		fmt.Println("No context selected. Use 'ctx <name>' to connect.")
	}

	log.Info("starting repl", "config", configPath, "contexts", len(cfg.Contexts))
	dispatcher := commands.NewDispatcher(commands.NewRegistry(), sess, os.Stdout, os.Stdin, cfg.CancelGrace)
	return repl.New(dispatcher, sess).Run(ctx)
}
