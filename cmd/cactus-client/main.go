// Command cactus-client is the execution entry point: given a global
// config and a run config (test-procedure path, participating client
// aliases, headless flag), it runs the procedure's steps to
// completion and writes a run output directory with the full
// request/response trail, a report, and a pass/fail result.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/action"
	"github.com/cactuslab/cactus-client-go/internal/channels"
	"github.com/cactuslab/cactus-client-go/internal/check"
	"github.com/cactuslab/cactus-client-go/internal/config"
	"github.com/cactuslab/cactus-client-go/internal/discovery"
	"github.com/cactuslab/cactus-client-go/internal/notification"
	"github.com/cactuslab/cactus-client-go/internal/procedure"
	"github.com/cactuslab/cactus-client-go/internal/protocol"
	"github.com/cactuslab/cactus-client-go/internal/resource"
	"github.com/cactuslab/cactus-client-go/internal/run"
	"github.com/cactuslab/cactus-client-go/internal/scheduler"
	"github.com/cactuslab/cactus-client-go/internal/step"
	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

var version = "0.1.0"

func main() {
	os.Exit(run_())
}

func run_() int {
	configPath := flag.String("config", "", "path to the global config file")
	procedurePath := flag.String("procedure", "", "path to the test procedure document")
	clientAliasesFlag := flag.String("clients", "", "comma-separated client aliases participating in this run")
	outputDir := flag.String("output", "runs", "base output directory for run NNN - <procedure-id>/")
	headless := flag.Bool("headless", true, "suppress interactive progress output")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cactus-client v%s\n", version)
		return 0
	}
	if *configPath == "" || *procedurePath == "" {
		fmt.Fprintln(os.Stderr, "cactus-client: -config and -procedure are required")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var clientAliases []string
	if *clientAliasesFlag != "" {
		clientAliases = strings.Split(*clientAliasesFlag, ",")
	}

	passed, err := execute(ctx, *configPath, *procedurePath, *outputDir, clientAliases, *headless)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cactus-client: %v\n", err)
		return 1
	}
	if !passed {
		return 1
	}
	return 0
}

func execute(ctx context.Context, configPath, procedurePath, outputBaseDir string, clientAliases []string, headless bool) (bool, error) {
	root, err := config.Load(configPath)
	if err != nil {
		return false, fmt.Errorf("loading config: %w", err)
	}

	testProcedureID, steps, err := procedure.Load(procedurePath)
	if err != nil {
		return false, fmt.Errorf("loading procedure: %w", err)
	}

	if len(clientAliases) == 0 {
		for _, c := range root.Clients {
			clientAliases = append(clientAliases, c.ID)
		}
	}

	outputMgr, err := run.New(outputBaseDir, testProcedureID, run.SchemaVersion, clientAliases)
	if err != nil {
		return false, fmt.Errorf("allocating output directory: %w", err)
	}

	logFile, err := os.Create(outputMgr.FilePath(run.FileConsoleLog))
	if err != nil {
		return false, fmt.Errorf("opening console log: %w", err)
	}
	defer logFile.Close()

	var logWriter io.Writer = logFile
	if !headless {
		logWriter = io.MultiWriter(logFile, os.Stdout)
	}
	logger := slog.New(slog.NewTextHandler(logWriter, nil))

	responses := tracker.NewResponseTracker()
	warnings := tracker.NewWarningTracker()
	progress := tracker.NewProgressTracker()
	for _, s := range steps {
		progress.Register(s)
	}

	queue := scheduler.NewQueue()
	for _, s := range steps {
		queue.Add(step.NewExecution(s))
	}

	stores := map[string]*resource.Store{}
	clients := map[string]*scheduler.ClientResources{}
	startedAt := time.Now()

	for _, alias := range clientAliases {
		clientCfg, ok := root.ClientByAlias(alias)
		if !ok {
			return false, fmt.Errorf("no config entry for client alias %q", alias)
		}

		store := resource.NewStore()
		stores[alias] = store

		protoClient, err := protocol.New(*clientCfg, root.Server, responses, nil, logger)
		if err != nil {
			return false, fmt.Errorf("building protocol client for %s: %w", alias, err)
		}

		notifCtx := notification.NewContext(channels.NewDefaultHTTPClient(nil), root.Server.NotificationCollectorURI, store, responses, warnings, alias, logger)
		walker := discovery.NewWalker(protoClient, store, warnings, logger, discovery.DefaultPageSize)

		clients[alias] = &scheduler.ClientResources{
			Action: &action.Context{
				Client:        protoClient,
				Store:         store,
				Notifications: notifCtx,
				Walker:        walker,
				ClientConfig:  *clientCfg,
				ServerConfig:  root.Server,
				RootHref:      root.Server.DeviceCapabilityURI,
				Warnings:      warnings,
				Progress:      progress,
				StartedAt:     startedAt,
				Logger:        logger,
			},
			Check: &check.Context{Store: store},
		}
	}

	runner := scheduler.NewRunner(queue, clients, progress, warnings, 5*time.Second, logger)
	executionCompleted := runner.Run(ctx)

	for _, c := range clients {
		c.Action.Notifications.SafelyDeleteAll(ctx)
	}

	scheduler.ValidateResources(stores, root.Server, warnings)

	eval := tracker.Evaluate(executionCompleted, progress, warnings, responses)

	if err := outputMgr.PersistRequests(responses); err != nil {
		return false, fmt.Errorf("persisting requests: %w", err)
	}
	if err := outputMgr.WriteReport(testProcedureID, eval, progress); err != nil {
		return false, fmt.Errorf("writing report: %w", err)
	}
	if err := outputMgr.WriteResult(eval.Passed); err != nil {
		return false, fmt.Errorf("writing result: %w", err)
	}

	if !headless {
		fmt.Println(tracker.SummaryLine(testProcedureID, eval))
	}

	return eval.Passed, nil
}
