package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func (a *app) serveCmd() *cobra.Command {
	var addr, otlp string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the world over a JSON-RPC websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.RPCAddr = addr
			}
			if cmd.Flags().Changed("otlp") {
				a.cfg.OTLPEndpoint = otlp
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.OTLPEndpoint != "" {
				shutdown, err := setupTracing(ctx, a.cfg.OTLPEndpoint)
				if err != nil {
					return err
				}
				defer func() {
					flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(flushCtx); err != nil {
						log.Warn(log.RPCMonitoring, "trace exporter shutdown", "err", err)
					}
				}()
			}

			return a.withWorld(func(w *config.World) error {
				srv := rpc.NewServer(ctx, w)
				defer srv.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "serving %d units on ws://%s\n", len(w.Host.Units()), a.cfg.RPCAddr)
				return srv.ListenAndServe(ctx, a.cfg.RPCAddr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&otlp, "otlp", "", "OTLP/HTTP collector endpoint for invocation spans")
	return cmd
}

// setupTracing installs a global tracer provider exporting to endpoint.
func setupTracing(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "unitctl"),
			attribute.String("service.version", Version),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info(log.RPCMonitoring, "exporting traces", "endpoint", endpoint)
	return tp.Shutdown, nil
}
