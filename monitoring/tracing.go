// Copyright (C) 2025 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package monitoring

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const TracerName = "github.com/l3montree-dev/sbomgraph"

// InitTracer installs a global tracer provider. exporter is either empty
// (tracing stays a no-op), "stdout", an OTLP/HTTP endpoint url or
// grpc://host:port for an OTLP/gRPC collector without TLS. The returned
// function flushes pending spans.
func InitTracer(ctx context.Context, exporter string, w io.Writer, version string) (func(context.Context) error, error) {
	if exporter == "" {
		return func(context.Context) error { return nil }, nil
	}

	var spanExporter sdktrace.SpanExporter
	var err error
	switch {
	case exporter == "stdout":
		spanExporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case strings.HasPrefix(exporter, "http://") || strings.HasPrefix(exporter, "https://"):
		spanExporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(exporter))
	case strings.HasPrefix(exporter, "grpc://"):
		spanExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(strings.TrimPrefix(exporter, "grpc://")),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, errors.Errorf("unknown trace exporter %q, expected \"stdout\", an http(s) or a grpc url", exporter)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not create trace exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "sbomgraph"),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(provider)
	slog.Debug("tracing enabled", "exporter", exporter)

	return provider.Shutdown, nil
}
