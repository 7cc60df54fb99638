package client

import (
	"context"
	"net/url"

	"backoffice-backend/internal/domain"
)

// pagePayload mirrors the server's list envelope.
type pagePayload[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// PosImports is the client-side feature module for the POS import screen:
// the entity store, the upload sessions and the guarded list fetch.
type PosImports struct {
	api     *API
	Store   *EntityStore[domain.PosImport]
	Uploads *Uploads
	guard   *RequestGuard
}

// NewPosImports creates the feature module.
func NewPosImports(api *API) *PosImports {
	return &PosImports{
		api:     api,
		Store:   NewEntityStore(func(imp domain.PosImport) string { return imp.ID }),
		Uploads: NewUploads(0),
		guard:   NewRequestGuard(),
	}
}

// Fetch loads a page of imports. A newer Fetch cancels this one; only the
// latest call's response lands in the store.
func (p *PosImports) Fetch(ctx context.Context, filters map[string]string) (bool, error) {
	p.Store.SetFilters(filters)
	return FetchList(ctx, p.guard, p.Store, func(ctx context.Context) ([]domain.PosImport, int64, error) {
		query := url.Values{}
		for k, v := range filters {
			query.Set(k, v)
		}
		path := "/api/v1/pos-imports"
		if encoded := query.Encode(); encoded != "" {
			path += "?" + encoded
		}
		var page pagePayload[domain.PosImport]
		if err := p.api.Get(ctx, path, &page); err != nil {
			return nil, 0, err
		}
		return page.Items, page.Total, nil
	})
}

// Abort cancels the in-flight fetch, if any.
func (p *PosImports) Abort() {
	p.guard.Abort()
}

// Upload registers the import server-side, drives an upload session and
// submits the parsed rows for analysis. onProgress receives 0-100 as the
// caller's uploader reports bytes sent.
func (p *PosImports) Upload(ctx context.Context, fileName string, rows []domain.PosRow, onProgress func(report func(int))) (*domain.PosImport, error) {
	var created domain.PosImport
	if err := p.api.Post(ctx, "/api/v1/pos-imports", map[string]string{"file_name": fileName}, &created); err != nil {
		return nil, err
	}

	uploadCtx := p.Uploads.Start(ctx, created.ID)
	if onProgress != nil {
		onProgress(func(pct int) { p.Uploads.SetProgress(created.ID, pct) })
	}

	var analyzed domain.PosImport
	err := p.api.Post(uploadCtx, "/api/v1/pos-imports/"+created.ID+"/analyze",
		map[string]interface{}{"rows": rows}, &analyzed)
	if err != nil {
		if uploadCtx.Err() != nil {
			// Canceled uploads leave no session behind and no error state,
			// whether the user hit cancel or the parent context died.
			p.Uploads.Cancel(created.ID)
			return nil, uploadCtx.Err()
		}
		p.Uploads.Fail(created.ID, err.Error())
		return nil, err
	}
	p.Uploads.Complete(created.ID, &analyzed)
	return &analyzed, nil
}

// ConfirmImport finalizes an analyzed import. It is an optimistic mutation:
// the visible status flips immediately and rolls back if the server
// rejects the confirm.
func (p *PosImports) ConfirmImport(ctx context.Context, id string, skipDuplicates bool) (*domain.PosImport, error) {
	apply := func(items []domain.PosImport) []domain.PosImport {
		for i := range items {
			if items[i].ID == id {
				items[i].Status = domain.ImportStatusConfirmed
				items[i].SkipDuplicates = skipDuplicates
			}
		}
		return items
	}
	call := func(ctx context.Context) (*domain.PosImport, error) {
		var confirmed domain.PosImport
		err := p.api.Post(ctx, "/api/v1/pos-imports/"+id+"/confirm",
			map[string]bool{"skip_duplicates": skipDuplicates}, &confirmed)
		if err != nil {
			return nil, err
		}
		return &confirmed, nil
	}
	return WithOptimisticUpdate(ctx, p.Store, OpConfirm, apply, call, ReplaceByID(p.Store, id))
}

// SaveState persists the resume hint for the next session.
func (p *PosImports) SaveState(path string) error {
	return SaveSnapshot(path, Snapshot{
		Imports:       p.Store.Items(),
		SelectedIDs:   p.Store.SelectedIDs(),
		Filters:       p.Store.Filters(),
		LastFetchTime: p.Store.LastFetch(),
	})
}

// RestoreState loads the resume hint if it is still fresh. It returns true
// when state was restored; the caller should still refetch in the
// background, the snapshot is only a first paint.
func (p *PosImports) RestoreState(path string) (bool, error) {
	snap, err := LoadSnapshot(path, MaxSnapshotAge)
	if err != nil || snap == nil {
		return false, err
	}
	p.Store.Replace(snap.Imports, int64(len(snap.Imports)))
	p.Store.SetFilters(snap.Filters)
	for _, id := range snap.SelectedIDs {
		p.Store.Select(id)
	}
	return true, nil
}
