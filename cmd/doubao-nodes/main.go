// Command doubao-nodes lists, inspects and invokes Doubao nodes, captions image
// batches and serves the host bridge.
//
// Usage:
//
//	doubao-nodes [-config file] <command> [flags] [args]
//
// Commands: list, info, invoke, caption, serve. The API key is taken from -key
// or DOUBAO_API_KEY.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/config"
	"github.com/skosovsky/doubao/hostapi"
	"github.com/skosovsky/doubao/mediafetch"
	"github.com/skosovsky/doubao/node/interrogator"
	"github.com/skosovsky/doubao/nodes"
)

const apiKeyEnv = "DOUBAO_API_KEY"

const usage = `doubao-nodes - Doubao node host

Usage:
  doubao-nodes [-config file] <command> [flags] [args]

Commands:
  list                                   List registered nodes
  info <node>                            Print a node schema as JSON
  invoke -node N [-in k=v]... [-image S] Invoke one node
  caption [-model M] [-parallel P] S...  Caption images (paths, https URLs or data URLs)
  serve [-listen addr]                   Run the HTTP host bridge

Environment:
  DOUBAO_API_KEY, DOUBAO_BASE_URL, DOUBAO_TIMEOUT, DOUBAO_MANIFEST_DIR,
  DOUBAO_LISTEN, DOUBAO_LOG_LEVEL, DOUBAO_LOG_FORMAT, DOUBAO_PARALLEL`

var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doubao-nodes", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		fmt.Fprintln(stderr, usage) //nolint:errcheck
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err) //nolint:errcheck
		return 1
	}
	app := &app{cfg: cfg, logger: cfg.Logger(stderr), stdout: stdout, stderr: stderr}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		err = app.list()
	case "info":
		err = app.info(rest)
	case "invoke":
		err = app.invoke(rest)
	case "caption":
		err = app.caption(rest)
	case "serve":
		err = app.serve(rest)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage) //nolint:errcheck
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s\n", cmd, usage) //nolint:errcheck
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err) //nolint:errcheck
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err) //nolint:errcheck
		return 1
	}
}

type app struct {
	cfg    config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func (a *app) registry() (*doubao.Registry, error) {
	opts := []nodes.Option{
		nodes.WithBaseURL(a.cfg.BaseURL),
		nodes.WithTimeout(a.cfg.Timeout),
		nodes.WithLogger(a.logger),
	}
	if a.cfg.ManifestDir != "" {
		opts = append(opts, nodes.WithManifests(os.DirFS(a.cfg.ManifestDir), "."))
	}
	return nodes.NewRegistry(opts...)
}

func (a *app) list() error {
	reg, err := a.registry()
	if err != nil {
		return err
	}
	for _, spec := range reg.Specs() {
		label, _ := reg.DisplayName(spec.Name)
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", spec.Name, label, spec.Category) //nolint:errcheck
	}
	return nil
}

func (a *app) info(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: info <node>", errUsage)
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}
	node, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(node.Spec())
}

func (a *app) invoke(args []string) error {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	name := fs.String("node", "", "node name")
	key := fs.String("key", "", "API key (default $"+apiKeyEnv+")")
	image := fs.String("image", "", "image path, https URL or data URL for the image input")
	inputs := doubao.Inputs{}
	fs.Func("in", "input as name=value (repeatable)", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return fmt.Errorf("want name=value, got %q", s)
		}
		inputs[k] = v
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *name == "" {
		return fmt.Errorf("%w: invoke requires -node", errUsage)
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}
	node, err := reg.Lookup(*name)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if k := apiKey(*key); k != "" {
		if _, set := inputs["api_key"]; !set {
			inputs["api_key"] = k
		}
	}
	if *image != "" {
		t, err := mediafetch.New().Load(ctx, *image)
		if err != nil {
			return err
		}
		inputs["image"] = t
	}
	out, err := node.Invoke(ctx, inputs)
	if err != nil {
		return err
	}
	for _, v := range out {
		fmt.Fprintln(a.stdout, v) //nolint:errcheck
	}
	return nil
}

func (a *app) caption(args []string) error {
	fs := flag.NewFlagSet("caption", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	key := fs.String("key", "", "API key (default $"+apiKeyEnv+")")
	model := fs.String("model", interrogator.DefaultModel, "vision model name")
	parallel := fs.Int("parallel", a.cfg.Parallel, "concurrent requests")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: caption requires at least one image", errUsage)
	}
	if *parallel < 1 {
		return fmt.Errorf("%w: -parallel must be at least 1", errUsage)
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}
	node, err := reg.Lookup(interrogator.NodeName)
	if err != nil {
		return err
	}
	fetcher := mediafetch.New()
	sources := fs.Args()
	captions := make([]string, len(sources))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*parallel)
	for i, src := range sources {
		g.Go(func() error {
			img, err := fetcher.Load(ctx, src)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			in := doubao.Inputs{"image": img, "model_name": *model}
			if k := apiKey(*key); k != "" {
				in["api_key"] = k
			}
			out, err := node.Invoke(ctx, in)
			if err != nil {
				return fmt.Errorf("%s: %w", src, err)
			}
			captions[i] = fmt.Sprint(out[0])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, src := range sources {
		fmt.Fprintf(a.stdout, "%s\t%s\n", src, captions[i]) //nolint:errcheck
	}
	return nil
}

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	listen := fs.String("listen", a.cfg.Listen, "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}
	srv := hostapi.NewServer(*listen, hostapi.NewRouter(reg, a.logger), a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func apiKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(apiKeyEnv)
}
