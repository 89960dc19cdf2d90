// Package mirror applies watcher change events to the workspace file store.
//
// Each event is resolved to its workspace through the layout and the registry; events for
// unregistered workspaces, version-control metadata and directories are skipped. Failures are
// logged and never retried: the store is a best-effort copy of the folders, not their source of truth.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/layout"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/registry"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/repository"
)

const instrumentationName = "github.com/YudyTkm/itlingo-itoi-sub001/internal/mirror"

// Mirror keeps the file store in step with the workspace folders.
type Mirror struct {
	layout   layout.Layout
	registry *registry.Registry
	repo     repository.Repository
	fs       afero.Fs
	emitter  telemetry.EventEmitter

	tracer  trace.Tracer
	applied metric.Int64Counter
}

// New returns a Mirror. emitter may be nil.
func New(l layout.Layout, reg *registry.Registry, repo repository.Repository, fsys afero.Fs, emitter telemetry.EventEmitter) *Mirror {
	m := &Mirror{
		layout:   l,
		registry: reg,
		repo:     repo,
		fs:       fsys,
		emitter:  emitter,
		tracer:   otel.Tracer(instrumentationName),
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter("itoi.mirror.events",
		metric.WithDescription("Change events applied to the workspace file store"))
	if err != nil {
		log.Printf("mirror: counter: %v", err)
	}
	m.applied = counter
	return m
}

// Run applies every batch received on batches until the channel closes or ctx is done.
// Store operations already issued are not cancelled by ctx.
func (m *Mirror) Run(ctx context.Context, batches <-chan []domain.ChangeEvent) {
	opCtx := context.WithoutCancel(ctx)
	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				return
			}
			for _, ev := range batch {
				if err := m.Apply(opCtx, ev); err != nil {
					log.Printf("mirror: %s %s: %v", ev.Kind, ev.Path(), err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Apply mirrors one change event. Skipped events return nil.
func (m *Mirror) Apply(ctx context.Context, ev domain.ChangeEvent) error {
	loc, ok := m.resolve(ev.Path())
	if !ok {
		return nil
	}
	entry, ok := m.registry.Lookup(loc.Workspace)
	if !ok {
		return nil
	}
	if ev.Kind == domain.Renamed {
		return m.rename(ctx, ev, loc, entry)
	}
	if layout.IsVCS(loc.Rel) {
		return nil
	}
	switch ev.Kind {
	case domain.Created:
		return m.observe(ctx, domain.Created, loc.Workspace, loc.Rel, entry, func(ctx context.Context) error {
			return m.store(ctx, loc, false)
		})
	case domain.Modified:
		return m.observe(ctx, domain.Modified, loc.Workspace, loc.Rel, entry, func(ctx context.Context) error {
			return m.store(ctx, loc, true)
		})
	case domain.Deleted:
		return m.observe(ctx, domain.Deleted, loc.Workspace, loc.Rel, entry, func(ctx context.Context) error {
			_, err := m.repo.DeleteByPrefix(ctx, loc.Workspace, loc.Rel)
			return err
		})
	}
	return nil
}

// rename moves the stored path. Moves into or out of a workspace, or across the metadata
// boundary, become a delete of the old path and a create of the new one.
func (m *Mirror) rename(ctx context.Context, ev domain.ChangeEvent, loc layout.Location, entry registry.Entry) error {
	old, oldOK := m.resolve(ev.OldPath())
	sameFolder := oldOK && old.Folder == loc.Folder
	if !sameFolder || layout.IsVCS(old.Rel) || layout.IsVCS(loc.Rel) {
		var errs []error
		if oldOK {
			errs = append(errs, m.Apply(ctx, domain.ChangeEvent{Kind: domain.Deleted, Dir: ev.OldDir, File: ev.OldFile}))
		}
		errs = append(errs, m.Apply(ctx, domain.ChangeEvent{Kind: domain.Created, Dir: ev.Dir, File: ev.File}))
		return errors.Join(errs...)
	}

	return m.observe(ctx, domain.Renamed, loc.Workspace, loc.Rel, entry, func(ctx context.Context) error {
		info, err := m.fs.Stat(m.path(loc))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			_, err := m.repo.RenamePrefix(ctx, loc.Workspace, old.Rel, loc.Rel)
			return err
		}
		err = m.repo.RenameFile(ctx, loc.Workspace, old.Rel, loc.Rel)
		if errors.Is(err, repository.ErrNotFound) {
			return m.store(ctx, loc, false)
		}
		return err
	})
}

// store reads the file at loc and writes it to the store. update selects the transactional
// update path, falling back to an insert for files the store has not seen.
func (m *Mirror) store(ctx context.Context, loc layout.Location, update bool) error {
	p := m.path(loc)
	info, err := m.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	content, err := afero.ReadFile(m.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", p, err)
	}
	if update {
		err := m.repo.UpdateFile(ctx, loc.Workspace, loc.Rel, content)
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return m.repo.InsertFile(ctx, loc.Workspace, loc.Rel, content)
}

// observe runs op inside a span and records its outcome as a metric and a telemetry event.
func (m *Mirror) observe(ctx context.Context, kind domain.ChangeKind, workspace, rel string, entry registry.Entry, op func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, "mirror."+kind.String(), trace.WithAttributes(
		attribute.String("workspace", workspace),
		attribute.String("path", rel),
	))
	defer span.End()

	err := op(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m.applied != nil {
		m.applied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind.String()),
			attribute.String("outcome", outcome),
		))
	}

	event := telemetry.NewEvent(telemetry.SourceMirror, "mirror."+kind.String(), workspace)
	event.User = entry.Identity.User
	event.Organization = entry.Identity.Organization
	event.Path = rel
	telemetry.EmitAsync(m.emitter, event.Fail(err))
	return err
}

func (m *Mirror) resolve(p string) (layout.Location, bool) {
	loc, ok := m.layout.Resolve(p)
	if !ok || loc.Rel == "" {
		return layout.Location{}, false
	}
	return loc, true
}

func (m *Mirror) path(loc layout.Location) string {
	p, _ := layout.Abs(loc.Folder, loc.Rel)
	return p
}
