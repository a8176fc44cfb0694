package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/adapters/decoder"
	"github.com/labelscan/label-scanner/internal/adapters/frames"
	"github.com/labelscan/label-scanner/internal/adapters/storage"
	"github.com/labelscan/label-scanner/internal/application"
	"github.com/labelscan/label-scanner/internal/domain/extraction"
	"github.com/labelscan/label-scanner/internal/platform/config"
	"github.com/labelscan/label-scanner/internal/platform/logger"
	"github.com/labelscan/label-scanner/internal/ports"
)

const usage = `usage: label-scanner [-config file.yaml] <command> [flags] [args]

commands:
  parse <payload>...         extract order, package and customer from raw payloads
  scan <image>...            decode and parse every label in still images
  stream [flags] <dir>       replay a directory of frames through the detection gate
  export [flags] [file.json] convert saved results, or a stored session, to JSON/CSV
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("label-scanner", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	// Config problems are reported before the configured logger exists
	bootLog := logger.New(logger.Options{Format: "console", Service: "label-scanner"})
	cfg, err := config.Load(*configPath, bootLog)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Service:    "label-scanner",
		WithCaller: logger.ParseLevel(cfg.Log.Level) <= zerolog.DebugLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "parse":
		return runParse(rest)
	case "scan":
		return runScan(ctx, cfg, rest)
	case "stream":
		return runStream(ctx, cfg, log, rest)
	case "export":
		return runExport(ctx, cfg, log, rest)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runParse(args []string) error {
	if len(args) == 0 {
		return errors.New("parse: at least one payload is required")
	}
	parser := extraction.NewParser(extraction.WithLogger(logger.Named("parser")))

	fields := make([]any, 0, len(args))
	for _, payload := range args {
		fields = append(fields, parser.Parse(payload))
	}
	return printJSON(fields)
}

func runScan(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	tryHarder := fs.Bool("try-harder", true, "spend more time looking for a symbol")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("scan: at least one image is required")
	}

	service := newService(cfg, *tryHarder, nil)

	type imageResult struct {
		Image   string `json:"image"`
		Results any    `json:"results,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	var out []imageResult
	for _, path := range fs.Args() {
		img, err := decoder.LoadImage(path)
		if err != nil {
			out = append(out, imageResult{Image: path, Error: err.Error()})
			continue
		}
		results, err := service.ScanImage(ctx, img)
		if err != nil {
			out = append(out, imageResult{Image: path, Error: err.Error()})
			continue
		}
		if len(results) == 0 {
			out = append(out, imageResult{Image: path, Error: "no label found"})
			continue
		}
		out = append(out, imageResult{Image: path, Results: results})
	}
	return printJSON(out)
}

func runStream(ctx context.Context, cfg config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	saveJSON := fs.Bool("json", false, "save detections as JSON in the export directory")
	saveCSV := fs.Bool("csv", false, "save detections as CSV in the export directory")
	usePostgres := fs.Bool("postgres", cfg.Storage.PostgresURL != "", "also store detections in PostgreSQL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("stream: exactly one frame directory is required")
	}

	source, err := frames.NewDirectorySource(fs.Arg(0), logger.Named("frames"))
	if err != nil {
		return err
	}

	resultLog := storage.NewResultLog(cfg.Storage.ExportDir)
	sinks := []ports.DetectionSink{resultLog}

	if *usePostgres {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	service := newService(cfg, false, sinks)
	summary, err := service.RunSession(ctx, source)
	if err != nil {
		return err
	}

	if *saveJSON {
		path, err := resultLog.SaveJSON("")
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("saved JSON results")
	}
	if *saveCSV {
		path, err := resultLog.SaveCSV("")
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("saved CSV results")
	}

	return printJSON(struct {
		Summary    any `json:"summary"`
		Detections any `json:"detections"`
	}{summary, resultLog.Results()})
}

func runExport(ctx context.Context, cfg config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "csv", "output format: csv or json")
	session := fs.String("session", "", "export a session stored in PostgreSQL instead of a JSON file")
	limit := fs.Int("limit", 1000, "maximum number of stored detections to export")
	name := fs.String("out", "", "file name inside the export directory (default scan_results_<timestamp>)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resultLog := storage.NewResultLog(cfg.Storage.ExportDir)

	switch {
	case *session != "":
		sessionID, err := uuid.Parse(*session)
		if err != nil {
			return fmt.Errorf("export: invalid session id: %w", err)
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListDetections(ctx, sessionID, *limit)
		if err != nil {
			return err
		}
		for i := range events {
			if err := resultLog.SaveDetection(ctx, &events[i]); err != nil {
				return err
			}
		}
	case fs.NArg() == 1:
		if err := resultLog.LoadJSON(fs.Arg(0)); err != nil {
			return err
		}
	default:
		return errors.New("export: pass a results JSON file or -session")
	}

	var (
		path string
		err  error
	)
	switch *format {
	case "csv":
		path, err = resultLog.SaveCSV(*name)
	case "json":
		path, err = resultLog.SaveJSON(*name)
	default:
		return fmt.Errorf("export: unknown format %q", *format)
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Int("detections", len(resultLog.Results())).
		Msg("export written")
	return nil
}

func newService(cfg config.Config, tryHarder bool, sinks []ports.DetectionSink) *application.ScanService {
	parser := extraction.NewParser(extraction.WithLogger(logger.Named("parser")))
	qr := decoder.NewQRDecoder(tryHarder, logger.Named("decoder"))

	return application.NewScanService(qr, parser, sinks, application.SessionConfig{
		Cooldown:     cfg.Scanner.Cooldown,
		HistorySize:  cfg.Scanner.HistorySize,
		TickInterval: cfg.Scanner.TickInterval,
	}, logger.Named("scanner"))
}

func openStore(ctx context.Context, cfg config.Config) (*storage.PostgresStore, error) {
	if cfg.Storage.PostgresURL == "" {
		return nil, fmt.Errorf("no database configured, set %sDATABASE_URL", config.EnvPrefix)
	}
	store, err := storage.NewPostgresStore(cfg.Storage.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
