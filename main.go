// Command packed2048 serves the packed 4x4 position codec.
//
// It supports these commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, metrics and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "demo" – packs the default fixture, rotates it and prints every form
//  4. "pack" – packs sixteen tiles given as arguments
//  5. "rotate" – rotates a hex encoded position by quarter turns
//
// Flags control host/port, fixture directory, debug logging and optional
// ngrok tunneling for easy external access during development. Every flag
// can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/packed2048/api"
	"github.com/wricardo/packed2048/game/config"
	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/service"
	"github.com/wricardo/packed2048/transport/mcp"
	"github.com/wricardo/packed2048/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Packed 2048 Codec Server"
)

// options holds the resolved root flags
type options struct {
	host         string
	port         int
	fixtureDir   string
	debug        bool
	ngrokEnabled bool
	ngrokAuth    string
	ngrokDomain  string
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		host:         cmd.String("host"),
		port:         cmd.Int("port"),
		fixtureDir:   cmd.String("fixture-dir"),
		debug:        cmd.Bool("debug"),
		ngrokEnabled: cmd.Bool("ngrok"),
		ngrokAuth:    cmd.String("ngrok-auth"),
		ngrokDomain:  cmd.String("ngrok-domain"),
	}
}

// newCommand builds the command tree
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "packed2048",
		Usage:   "pack, unpack and rotate 4x4 2048 positions",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "fixture-dir",
				Value:   "fixtures",
				Usage:   "Directory containing fixture grids",
				Sources: cli.EnvVars("FIXTURE_DIR"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Action: serverAction,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, metrics and MCP endpoint",
				Action:  serverAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFrom(cmd)
					codecService, err := initializeServices(opts.fixtureDir)
					if err != nil {
						return fmt.Errorf("failed to initialize services: %w", err)
					}
					return runStdioMCPWithInternalServer(codecService, opts)
				},
			},
			{
				Name:      "demo",
				Usage:     "Pack the default fixture, rotate it and print every form",
				ArgsUsage: "[fixture]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					codecService, err := initializeServices(optionsFrom(cmd).fixtureDir)
					if err != nil {
						return fmt.Errorf("failed to initialize services: %w", err)
					}
					return runDemo(ctx, cmd.Root().Writer, codecService, cmd.Args().First())
				},
			},
			{
				Name:      "pack",
				Usage:     "Pack sixteen tiles, row-major",
				ArgsUsage: "<16 tiles>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runPack(ctx, cmd.Root().Writer, service.NewCodecService(nil), cmd.Args().Slice())
				},
			},
			{
				Name:            "rotate",
				Usage:           "Rotate a hex encoded position clockwise by quarter turns",
				ArgsUsage:       "<packed hex> <turns>",
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runRotate(ctx, cmd.Root().Writer, service.NewCodecService(nil), cmd.Args().Slice())
				},
			},
		},
	}
}

// main loads .env, then runs the selected command.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		// Only log if it's not a "file not found" error
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serverAction(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	log.Printf("Starting %s v%s", AppName, Version)

	codecService, err := initializeServices(opts.fixtureDir)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	return runHTTPServer(codecService, opts)
}

// newMCPHandler serves single MCP JSON-RPC messages over HTTP POST
func newMCPHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(codecService service.CodecService, opts options) error {
	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create WebSocket hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Create API server
	apiServer := api.NewServer(codecService, hub)

	// Setup HTTP server address
	addr := fmt.Sprintf("%s:%d", opts.host, opts.port)

	// Create MCP client for /mcp endpoint
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	// Create main router that combines API and MCP
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", newMCPHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?channel=%s", addr, websocket.DefaultChannel)
		log.Printf("Metrics: http://%s/metrics", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Start ngrok tunnel if enabled
	if opts.ngrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, mainRouter, opts)
		}()
	}

	// Wait for shutdown signal or a listener failure
	var runErr error
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case runErr = <-serveErr:
		log.Printf("%v. Shutting down...", runErr)
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Println("Server stopped")
	return runErr
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is done
func runNgrokTunnel(ctx context.Context, handler http.Handler, opts options) {
	if opts.ngrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		log.Printf("Using custom ngrok domain: %s", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(opts.ngrokAuth),
	)
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	// Close the tunnel on shutdown so Serve returns
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?channel=%s", ngrokURL, websocket.DefaultChannel)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// initializeServices wires the fixture manager and the codec service.
func initializeServices(fixtureDir string) (service.CodecService, error) {
	fixtureManager, err := config.NewManager(fixtureDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture manager: %w", err)
	}

	return service.NewCodecService(fixtureManager), nil
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:<port>; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(codecService service.CodecService, opts options) error {
	var baseURL string

	// First, try to connect to external API server
	externalURL := fmt.Sprintf("http://localhost:%d", opts.port)
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hubCtx, stopHub := context.WithCancel(context.Background())
		defer stopHub()
		hub := websocket.NewHub()
		go hub.Run(hubCtx)

		httpServer := &http.Server{
			Handler: api.NewServer(codecService, hub),
		}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)

	if baseURL == externalURL {
		log.Println("MCP stdio server ready (using external HTTP server)")
	} else {
		log.Println("MCP stdio server ready (using internal HTTP server)")
	}

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runDemo walks a fixture through pack, rotate and unpack
func runDemo(ctx context.Context, w io.Writer, codecService service.CodecService, fixture string) error {
	loaded, err := codecService.LoadFixture(ctx, fixture)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Fixture: %s (%s)\n", loaded.FixtureID, loaded.Fixture.Name)
	printView(w, loaded.Position)

	rotated, err := codecService.Rotate(ctx, loaded.Position.Packed, 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nAfter 1 clockwise quarter turn:\n")
	printView(w, rotated.To)

	back, err := codecService.Unpack(ctx, position.Rotate(rotated.To.Packed, -1))
	if err != nil {
		return err
	}
	if back.Grid != loaded.Position.Grid {
		return fmt.Errorf("rotating back did not restore the grid")
	}
	fmt.Fprintf(w, "\nRotated back: %s (round trip ok)\n", back.Packed)

	set, err := codecService.Rotations(ctx, loaded.Position.Packed)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Distinct rotations: %d\n", set.Distinct)
	return nil
}

// runPack packs sixteen tiles given as separate arguments or one quoted string
func runPack(ctx context.Context, w io.Writer, codecService service.CodecService, args []string) error {
	view, err := codecService.Parse(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printView(w, view)
	return nil
}

// runRotate rotates a hex position; turns may be negative
func runRotate(ctx context.Context, w io.Writer, codecService service.CodecService, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rotate <packed hex> <turns>")
	}

	packed, err := position.ParsePacked(args[0])
	if err != nil {
		return err
	}
	turns, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: turns %q is not an integer", position.ErrMalformedInput, args[1])
	}

	result, err := codecService.Rotate(ctx, packed, turns)
	if err != nil {
		return err
	}
	printView(w, result.To)
	return nil
}

func printView(w io.Writer, view *service.PositionView) {
	fmt.Fprint(w, view.Display)
	fmt.Fprintf(w, "packed:    %s\n", view.Packed)
	fmt.Fprintf(w, "lanes:     %s %s\n", view.Lanes[0], view.Lanes[1])
	fmt.Fprintf(w, "exponents: %v\n", view.Exponents)
}
