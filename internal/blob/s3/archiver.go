package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// RunSnapshot is the archived form of one budget run: the result together
// with the exact problem that produced it, so a run can be re-solved offline.
type RunSnapshot struct {
	Run     domain.PortfolioRun `json:"run"`
	Lambda  float64             `json:"lambda"`
	Budget  float64             `json:"budget"`
	Matrix  [][]float64         `json:"qubo"`
	H       []float64           `json:"h"`
	J       []domain.Coupling   `json:"j"`
	Offset  float64             `json:"offset"`
	Archive time.Time           `json:"archived_at"`
}

// SnapshotArchiver implements domain.Archiver on top of a BlobWriter and
// records every upload in the audit log when one is configured.
type SnapshotArchiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	now    func() time.Time
}

// NewArchiver creates a SnapshotArchiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *SnapshotArchiver {
	return &SnapshotArchiver{writer: writer, audit: audit, now: time.Now}
}

// ArchiveRun uploads runs/YYYY/MM/DD/<run-id>.json and returns its path.
func (a *SnapshotArchiver) ArchiveRun(ctx context.Context, run domain.PortfolioRun, problem domain.QUBOProblem, ising domain.IsingProblem) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("s3blob: archive run: missing run id")
	}
	snap := RunSnapshot{
		Run:     run,
		Lambda:  problem.Lambda,
		Budget:  problem.Budget,
		Matrix:  problem.Matrix,
		H:       ising.H,
		J:       ising.Couplings(),
		Offset:  ising.Offset,
		Archive: a.now().UTC(),
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run marshal: %w", err)
	}

	path := runPath(run.ID, run.CreatedAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run upload: %w", err)
	}
	a.record(ctx, "archive.run", map[string]any{
		"path":   path,
		"run_id": run.ID,
		"budget": run.Budget,
		"bytes":  len(body),
	})
	return path, nil
}

// ArchiveDraws uploads the full draw history as JSONL under
// draws/<latest-contest>.jsonl.
func (a *SnapshotArchiver) ArchiveDraws(ctx context.Context, draws []domain.Draw) (string, error) {
	if len(draws) == 0 {
		return "", nil
	}
	body, err := marshalJSONL(draws)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive draws marshal: %w", err)
	}

	latest := draws[len(draws)-1].Contest
	path := fmt.Sprintf("draws/%05d.jsonl", latest)
	if err := a.writer.Put(ctx, path, bytes.NewReader(body), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive draws upload: %w", err)
	}
	a.record(ctx, "archive.draws", map[string]any{
		"path":   path,
		"count":  len(draws),
		"latest": latest,
	})
	return path, nil
}

func (a *SnapshotArchiver) record(ctx context.Context, event string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	// the object is already stored; an audit failure must not fail the archive
	_ = a.audit.Log(ctx, event, detail)
}

// runPath partitions snapshots by the run's UTC creation day.
//
//	runs/2026/10/19/5f0c...e1.json
func runPath(id string, created time.Time) string {
	return fmt.Sprintf("runs/%s/%s.json", created.UTC().Format("2006/01/02"), id)
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*SnapshotArchiver)(nil)
