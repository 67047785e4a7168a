package inbound

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
)

// DefaultMaxUploadBytes is the upload cap when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

type HTTPEndpoint struct {
	uc        uc
	maxUpload int64
}

func (h *HTTPEndpoint) Ingest(ctx context.Context, r *http.Request) (any, error) {
	reader, filename, cleanup, err := extractUpload(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	data, err := io.ReadAll(io.LimitReader(reader, h.maxUpload+1))
	if err != nil {
		return nil, pkgerror.NewInvalidFormatErr(err, "unreadable upload")
	}
	if int64(len(data)) > h.maxUpload {
		return nil, pkgerror.NewInvalidInput(fmt.Errorf("upload exceeds %d bytes", h.maxUpload))
	}

	result, err := h.uc.Ingest(ctx, pkgrouter.GetOwner(ctx), filename, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	evicted := make([]string, 0, len(result.Evicted))
	for _, id := range result.Evicted {
		evicted = append(evicted, formatID(id))
	}

	return IngestResponse{
		ID:        formatID(result.DatasetID),
		Filename:  result.Filename,
		Timestamp: result.CreatedAt,
		Summary:   result.Summary,
		Evicted:   evicted,
	}, nil
}

func (h *HTTPEndpoint) History(ctx context.Context, r *http.Request) (any, error) {
	datasets, err := h.uc.History(ctx, pkgrouter.GetOwner(ctx))
	if err != nil {
		return nil, err
	}

	resp := make(HistoryResponse, 0, len(datasets))
	for _, d := range datasets {
		resp = append(resp, toHTTPDataset(d))
	}
	return resp, nil
}

func (h *HTTPEndpoint) Dataset(ctx context.Context, r *http.Request) (any, error) {
	id, err := parseID(ctx)
	if err != nil {
		return nil, err
	}

	dataset, err := h.uc.Dataset(ctx, pkgrouter.GetOwner(ctx), id)
	if err != nil {
		return nil, err
	}

	return toHTTPDataset(dataset), nil
}

func (h *HTTPEndpoint) Rows(ctx context.Context, r *http.Request) (any, error) {
	id, err := parseID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := h.uc.Rows(ctx, pkgrouter.GetOwner(ctx), id)
	if err != nil {
		return nil, err
	}

	items := make([]Row, 0, len(rows))
	for _, row := range rows {
		items = append(items, Row{
			Name:        row.Name,
			Type:        row.Category,
			Flowrate:    row.Flowrate,
			Pressure:    row.Pressure,
			Temperature: row.Temperature,
		})
	}

	return RowsResponse{DatasetID: formatID(id), Items: items}, nil
}

func (h *HTTPEndpoint) Report(ctx context.Context, r *http.Request) (any, error) {
	id, err := parseID(ctx)
	if err != nil {
		return nil, err
	}

	report, err := h.uc.Report(ctx, pkgrouter.GetOwner(ctx), id)
	if err != nil {
		return nil, err
	}

	return pkgrouter.File{
		Name:        report.Filename,
		ContentType: "application/pdf",
		Content:     report.Content,
	}, nil
}

func (h *HTTPEndpoint) Delete(ctx context.Context, r *http.Request) (any, error) {
	id, err := parseID(ctx)
	if err != nil {
		return nil, err
	}

	if err := h.uc.Delete(ctx, pkgrouter.GetOwner(ctx), id); err != nil {
		return nil, err
	}

	return DeleteResponse{}, nil
}

// parseID reads the :id path parameter. An id that is not a positive integer
// cannot name a dataset, so it is reported the same way as a missing one.
func parseID(ctx context.Context) (int64, error) {
	id, err := strconv.ParseInt(pkgrouter.GetParam(ctx, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, pkgerror.NewBusiness("dataset not found", pkgerror.CodeNotFound)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// extractUpload returns the uploaded file and its name: the "file" part of a
// multipart form, or the raw body named by the filename query parameter.
func extractUpload(r *http.Request) (io.Reader, string, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && strings.EqualFold(mediaType, "multipart/form-data") {
			return extractMultipartFile(r)
		}
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		return nil, "", func() {}, pkgerror.NewInvalidInput(errors.New("filename is required"))
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, "", func() {}, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	return r.Body, filename, func() {}, nil
}

func extractMultipartFile(r *http.Request) (io.Reader, string, func(), error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", func() {}, pkgerror.NewInvalidFormat()
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, "", func() {}, pkgerror.NewInvalidInput(errors.New("file part is required"))
			}
			return nil, "", func() {}, pkgerror.NewInvalidFormat()
		}

		if part.FormName() == "file" {
			return part, part.FileName(), func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}
