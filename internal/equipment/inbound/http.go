package inbound

import (
	"context"
	"io"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgrouter"
)

type uc interface {
	Ingest(ctx context.Context, owner, filename string, r io.Reader) (usecase.IngestResult, error)
	History(ctx context.Context, owner string) ([]entity.Dataset, error)
	Dataset(ctx context.Context, owner string, id int64) (entity.Dataset, error)
	Rows(ctx context.Context, owner string, id int64) ([]entity.EquipmentRow, error)
	Report(ctx context.Context, owner string, id int64) (usecase.ReportResult, error)
	Delete(ctx context.Context, owner string, id int64) error
}

type Options struct {
	// MaxUploadBytes caps the size of an uploaded file. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, auth pkgrouter.Authenticator, opts Options) {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	end := &HTTPEndpoint{uc: uc, maxUpload: maxUpload}
	authed := pkgrouter.Authenticated(auth)

	r.POST("/datasets", end.Ingest, authed) // multipart "file", or raw body with ?filename=
	r.GET("/datasets", end.History, authed)
	r.GET("/datasets/:id", end.Dataset, authed)
	r.GET("/datasets/:id/items", end.Rows, authed)
	r.GET("/datasets/:id/report", end.Report, authed)
	r.DELETE("/datasets/:id", end.Delete, authed)
}
