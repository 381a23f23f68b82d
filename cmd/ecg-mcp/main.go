package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/analysis"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/gemini"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/httpapi"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/ocr/tesseract"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/roboflow"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ecg-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	configPath := flag.String("config", "", "path to a YAML config file")
	httpAddr := flag.String("http", "", "also serve the upload API on this address (e.g. :8080)")
	noStdio := flag.Bool("no-stdio", false, "serve only the upload API, not MCP on stdin/stdout")
	flag.Parse()

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debug := os.Getenv("ECG_MCP_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("ECG MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *noStdio && cfg.HTTP.Addr == "" {
		log.Fatalf("--no-stdio requires --http or %s", config.EnvHTTPAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := buildService(ctx, cfg, debug)

	if cfg.HTTP.Addr != "" {
		go serveHTTP(ctx, cfg, svc)
	}

	if *noStdio {
		<-ctx.Done()
		return
	}

	server.Version = Version
	srv := server.New(svc, cfg)
	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	// A blocked stdin read does not observe ctx, so a signal ends main directly
	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
	}
}

func buildService(ctx context.Context, cfg *config.Config, debug bool) *analysis.Service {
	var rfOpts []roboflow.Option
	opts := []analysis.Option{analysis.WithRender(cfg.Render)}
	if debug {
		rfOpts = append(rfOpts, roboflow.WithLogger(log.Default()))
		opts = append(opts, analysis.WithLogger(log.Default()))
	}

	if cfg.Roboflow.APIKey == "" {
		log.Printf("Warning: %s is not set; hosted model calls will be rejected", config.EnvRoboflowKey)
	}
	detector := roboflow.NewAnalyzer(cfg.Roboflow, rfOpts...)

	if cfg.Gemini.Enabled() {
		client, err := gemini.New(ctx, cfg.Gemini, log.Default())
		if err != nil {
			log.Printf("Warning: second opinions disabled: %v", err)
		} else {
			opts = append(opts, analysis.WithOpinionProvider(client))
		}
	}

	if cfg.OCR.Enabled {
		if debug {
			log.Printf("Tesseract %s, language %s", tesseract.Version(), cfg.OCR.Language)
		}
		opts = append(opts, analysis.WithStripReader(tesseract.NewReader(cfg.OCR.Language)))
	}

	return analysis.NewService(detector, opts...)
}

func serveHTTP(ctx context.Context, cfg *config.Config, svc *analysis.Service) {
	h := httpapi.NewHandler(svc,
		httpapi.WithEndpoints(cfg.Roboflow.Endpoints),
		httpapi.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes),
		httpapi.WithLogger(log.Default()),
	)
	hs := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(shutdownCtx)
	}()

	log.Printf("Upload API listening on %s", cfg.HTTP.Addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("HTTP server error: %v", err)
	}
}

func printHelp() {
	fmt.Println("ecg-mcp - MCP server for multi-model ECG analysis")
	fmt.Println()
	fmt.Println("Usage: ecg-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v       Print version information")
	fmt.Println("  --help, -h          Print this help message")
	fmt.Println("  --config <file>     YAML config file (endpoints, timeouts, canvas, OCR)")
	fmt.Println("  --http <addr>       Also serve the upload API (POST /analyze)")
	fmt.Println("  --no-stdio          Serve only the upload API")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  ROBOFLOW_API_KEY             Key for the hosted detection models")
	fmt.Println("  GEMINI_API_KEY               Enables generative second opinions")
	fmt.Println("  ECG_MCP_HTTP_ADDR            Same as --http")
	fmt.Println("  ECG_MCP_LOG_LEVEL=debug      Enable debug logging")
	fmt.Println()
	fmt.Println("Without --no-stdio the server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Register it as a stdio server in your MCP client.")
}
