package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkguid"
)

// Tx is one atomic unit of work against an owner's datasets. Nothing written
// through a Tx is visible to readers before InTx returns nil.
type Tx interface {
	Create(ctx context.Context, dataset entity.Dataset, rows entity.RowSet) (entity.Dataset, error)
	ListRecentIDs(ctx context.Context, owner string) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}

type Store interface {
	// InTx runs fn as one unit of work, serialized with every other InTx for
	// the same owner. fn returning an error rolls everything back.
	InTx(ctx context.Context, owner string, fn func(ctx context.Context, tx Tx) error) error
	ListRecent(ctx context.Context, owner string, limit int) ([]entity.Dataset, error)
	Get(ctx context.Context, id int64, owner string) (entity.Dataset, error)
	Rows(ctx context.Context, id int64, owner string) ([]entity.EquipmentRow, error)
	Delete(ctx context.Context, id int64, owner string) error
}

type Reporter interface {
	Render(ctx context.Context, owner string, dataset entity.Dataset) ([]byte, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.DatasetEvent) error
}

type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

type Clock interface {
	Now() time.Time
}

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 50 * time.Millisecond
	maxFilenameLength  = 255
)

type Dependency struct {
	Store    Store
	Reporter Reporter
	Events   EventPublisher
	Runner   Runner
	Clock    Clock
	ID       pkguid.NumberID
	EventID  pkguid.StringID
	RootCtx  context.Context

	Retention   Retention
	MaxRetries  int
	BaseBackoff time.Duration
}

type Usecase struct {
	store     Store
	reporter  Reporter
	events    EventPublisher
	runner    Runner
	clock     Clock
	id        pkguid.NumberID
	eventID   pkguid.StringID
	rootCtx   context.Context
	retention Retention

	maxRetries  int
	baseBackoff time.Duration
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	maxRetries := dep.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	baseBackoff := dep.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}

	return &Usecase{
		store:       dep.Store,
		reporter:    dep.Reporter,
		events:      dep.Events,
		runner:      dep.Runner,
		clock:       clock,
		id:          dep.ID,
		eventID:     dep.EventID,
		rootCtx:     root,
		retention:   dep.Retention,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Ingest parses, summarizes and stores an upload, then trims the owner's
// history to the retention limit in the same unit of work.
func (u *Usecase) Ingest(ctx context.Context, owner, filename string, r io.Reader) (IngestResult, error) {
	if u.store == nil || u.id == nil {
		return IngestResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	owner, err := cleanOwner(owner)
	if err != nil {
		return IngestResult{}, err
	}

	filename, err = cleanFilename(filename)
	if err != nil {
		return IngestResult{}, err
	}

	rows, err := Parse(r)
	if err != nil {
		return IngestResult{}, mapInputErr(err)
	}

	summary, err := Summarize(rows)
	if err != nil {
		return IngestResult{}, mapInputErr(err)
	}

	var created entity.Dataset
	var evicted []int64

	err = u.retry(ctx, func() error {
		return u.store.InTx(ctx, owner, func(ctx context.Context, tx Tx) error {
			dataset, err := tx.Create(ctx, entity.Dataset{
				ID:        u.id.Generate(),
				OwnerID:   owner,
				Filename:  filename,
				CreatedAt: u.clock.Now().UTC(),
				Summary:   summary,
			}, rows)
			if err != nil {
				return err
			}

			ids, err := u.retention.Enforce(ctx, tx, owner)
			if err != nil {
				return err
			}

			created, evicted = dataset, ids
			return nil
		})
	})
	if err != nil {
		return IngestResult{}, normalizeErr(err)
	}

	slog.InfoContext(ctx, "dataset ingested",
		"dataset_id", created.ID,
		"filename", created.Filename,
		"rows", summary.RowCount,
	)
	u.publish(ctx, entity.EventDatasetIngested, created.OwnerID, created.ID, created.Filename)

	for _, id := range evicted {
		// Retention deletes are permanent; keep a trail of what went away.
		slog.WarnContext(ctx, "dataset evicted by retention",
			"dataset_id", id,
			"limit", u.retention.EffectiveLimit(),
		)
		u.publish(ctx, entity.EventDatasetEvicted, owner, id, "")
	}

	return IngestResult{
		DatasetID: created.ID,
		Filename:  created.Filename,
		CreatedAt: created.CreatedAt,
		Summary:   created.Summary,
		Evicted:   evicted,
	}, nil
}

// History returns the owner's retained datasets, newest first.
func (u *Usecase) History(ctx context.Context, owner string) ([]entity.Dataset, error) {
	owner, err := cleanOwner(owner)
	if err != nil {
		return nil, err
	}

	datasets, err := u.store.ListRecent(ctx, owner, u.retention.EffectiveLimit())
	if err != nil {
		return nil, normalizeErr(err)
	}

	return datasets, nil
}

func (u *Usecase) Dataset(ctx context.Context, owner string, id int64) (entity.Dataset, error) {
	owner, err := cleanOwner(owner)
	if err != nil {
		return entity.Dataset{}, err
	}

	dataset, err := u.store.Get(ctx, id, owner)
	if err != nil {
		return entity.Dataset{}, mapStoreErr(err)
	}

	return dataset, nil
}

func (u *Usecase) Rows(ctx context.Context, owner string, id int64) ([]entity.EquipmentRow, error) {
	owner, err := cleanOwner(owner)
	if err != nil {
		return nil, err
	}

	rows, err := u.store.Rows(ctx, id, owner)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return rows, nil
}

// Report renders the PDF report of one of the owner's datasets.
func (u *Usecase) Report(ctx context.Context, owner string, id int64) (ReportResult, error) {
	if u.reporter == nil {
		return ReportResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	dataset, err := u.Dataset(ctx, owner, id)
	if err != nil {
		return ReportResult{}, err
	}

	content, err := u.reporter.Render(ctx, owner, dataset)
	if err != nil {
		return ReportResult{}, mapStoreErr(err)
	}

	return ReportResult{
		DatasetID: dataset.ID,
		Filename:  fmt.Sprintf("report_%d.pdf", dataset.ID),
		Content:   content,
	}, nil
}

// Delete removes one of the owner's datasets and its rows permanently.
func (u *Usecase) Delete(ctx context.Context, owner string, id int64) error {
	owner, err := cleanOwner(owner)
	if err != nil {
		return err
	}

	if err := u.store.Delete(ctx, id, owner); err != nil {
		return mapStoreErr(err)
	}

	slog.InfoContext(ctx, "dataset deleted", "dataset_id", id)
	u.publish(ctx, entity.EventDatasetDeleted, owner, id, "")

	return nil
}

// retry runs fn again on transient storage conflicts, doubling the backoff
// between attempts. Any other error is returned immediately.
func (u *Usecase) retry(ctx context.Context, fn func() error) error {
	backoff := u.baseBackoff

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, entity.ErrTxConflict) || attempt >= u.maxRetries {
			return err
		}

		slog.WarnContext(ctx, "retrying dataset transaction", "attempt", attempt+1, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (u *Usecase) publish(ctx context.Context, kind entity.EventKind, owner string, id int64, filename string) {
	if u.events == nil || u.runner == nil {
		return
	}

	event := entity.DatasetEvent{
		Kind:       kind,
		OwnerID:    owner,
		DatasetID:  id,
		Filename:   filename,
		OccurredAt: u.clock.Now().UTC(),
	}
	if u.eventID != nil {
		event.EventID = u.eventID.Generate()
	}

	u.runner.Go(u.rootCtx, func(bgCtx context.Context) error {
		if err := u.events.Publish(bgCtx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish event", "event_id", event.EventID, "kind", kind, "error", err)
			return err
		}
		return nil
	})
}

func cleanOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", pkgerror.NewInvalidInput(errors.New("owner is required"))
	}
	return owner, nil
}

func cleanFilename(filename string) (string, error) {
	filename = strings.TrimSpace(strings.ReplaceAll(filename, `\`, "/"))
	if filename != "" {
		filename = path.Base(filename)
	}
	if filename == "" || filename == "." || filename == "/" {
		return "", pkgerror.NewInvalidInput(errors.New("filename is required"))
	}
	if utf8.RuneCountInString(filename) > maxFilenameLength {
		return "", pkgerror.NewInvalidInput(fmt.Errorf("filename longer than %d characters", maxFilenameLength))
	}
	return filename, nil
}

func mapInputErr(err error) error {
	var formatErr *entity.FormatError
	var schemaErr *entity.SchemaError
	var valueErr *entity.ValueError

	switch {
	case errors.As(err, &schemaErr):
		return pkgerror.NewValidation(err, "missing required columns", pkgerror.CodeInvalidSchema, map[string]string{
			"missing": strings.Join(schemaErr.Missing, ","),
		})
	case errors.As(err, &valueErr):
		return pkgerror.NewValidation(err, "invalid numeric value", pkgerror.CodeInvalidValue, map[string]string{
			"line":   strconv.Itoa(valueErr.Line),
			"column": valueErr.Column,
			"value":  valueErr.Value,
		})
	case errors.As(err, &formatErr):
		return pkgerror.NewInvalidFormatErr(err, "unreadable upload")
	case errors.Is(err, entity.ErrEmptyInput):
		return pkgerror.NewValidation(err, "dataset has no data rows", pkgerror.CodeEmptyInput, nil)
	default:
		return normalizeErr(err)
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness("dataset not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
