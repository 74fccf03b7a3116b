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

package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/l3montree-dev/sbomgraph/dtos"
	"github.com/l3montree-dev/sbomgraph/normalize"
	"github.com/l3montree-dev/sbomgraph/services"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// StatusClientClosedRequest is returned when the client went away before the
// pass finished.
const StatusClientClosedRequest = 499

const defaultSourceName = "upload"

type AnalysisController struct {
	worker *services.Worker
	merger *services.MergeService
}

func NewAnalysisController(worker *services.Worker, merger *services.MergeService) *AnalysisController {
	return &AnalysisController{
		worker: worker,
		merger: merger,
	}
}

// Analyze runs a full pass over the uploaded documents. The body is either a
// single CycloneDX JSON document or a multipart form with several "sbom" files.
// With "Accept: text/event-stream" the progress events are streamed instead.
func (a *AnalysisController) Analyze(ctx echo.Context) error {
	docs, err := readDocuments(ctx)
	if err != nil {
		slog.Error("could not read sbom upload", "err", err)
		return echo.NewHTTPError(400, "could not decode sbom as CycloneDX BOM").WithInternal(err)
	}

	job := a.worker.Start(ctx.Request().Context(), docs...)
	ctx.Response().Header().Set("X-Job-ID", job.ID)

	if strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), "text/event-stream") {
		return streamEvents(ctx, job)
	}

	result, err := job.Wait()
	if err != nil {
		return analysisError(ctx.Request().Context(), err)
	}
	return ctx.JSON(200, result)
}

// Merge reconciles the uploaded documents and returns the canonical document
// as CycloneDX JSON.
func (a *AnalysisController) Merge(ctx echo.Context) error {
	docs, err := readDocuments(ctx)
	if err != nil {
		slog.Error("could not read sbom upload", "err", err)
		return echo.NewHTTPError(400, "could not decode sbom as CycloneDX BOM").WithInternal(err)
	}

	merged, err := a.merger.Merge(ctx.Request().Context(), docs)
	if err != nil {
		return analysisError(ctx.Request().Context(), err)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.cyclonedx+json")
	ctx.Response().WriteHeader(200)
	return normalize.EncodeCdxBom(ctx.Response(), normalize.ToCdxBom(merged))
}

func streamEvents(ctx echo.Context, job *services.Job) error {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.WriteHeader(200)

	for ev := range job.Events() {
		b, err := json.Marshal(ev)
		if err != nil {
			job.Cancel()
			return errors.Wrap(err, "could not encode progress event")
		}
		if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Kind, b); err != nil {
			// client is gone
			job.Cancel()
			return nil
		}
		res.Flush()
	}
	return nil
}

func analysisError(reqCtx context.Context, err error) error {
	if services.IsAborted(err) {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "analysis timed out").WithInternal(err)
		}
		return echo.NewHTTPError(StatusClientClosedRequest, "analysis aborted").WithInternal(err)
	}
	var passErr *services.PassError
	if errors.As(err, &passErr) {
		return echo.NewHTTPError(500, passErr.Error()).WithInternal(err)
	}
	return echo.NewHTTPError(500, "analysis failed").WithInternal(err)
}

func readDocuments(ctx echo.Context) ([]dtos.Document, error) {
	defer ctx.Request().Body.Close()

	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return readMultipart(ctx)
	}

	sourceName := ctx.Request().Header.Get("X-Source-Name")
	if sourceName == "" {
		sourceName = ctx.QueryParam("source")
	}
	if sourceName == "" {
		sourceName = defaultSourceName
	}
	doc, err := normalize.DecodeDocument(ctx.Request().Body, sourceName)
	if err != nil {
		return nil, err
	}
	return []dtos.Document{doc}, nil
}

func readMultipart(ctx echo.Context) ([]dtos.Document, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, errors.Wrap(err, "could not parse multipart form")
	}
	files := form.File["sbom"]
	if len(files) == 0 {
		return nil, errors.New("multipart form contains no sbom file")
	}

	docs := make([]dtos.Document, 0, len(files))
	for _, header := range files {
		doc, err := func() (dtos.Document, error) {
			f, err := header.Open()
			if err != nil {
				return dtos.Document{}, err
			}
			defer f.Close()
			return normalize.DecodeDocument(f, normalize.SourceName(header.Filename))
		}()
		if err != nil {
			return nil, errors.Wrapf(err, "could not decode %s", header.Filename)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
