package storage

import (
	"context"

	"shimcheck/internal/index"
	"shimcheck/internal/rbi"
	"shimcheck/internal/resolver"
)

// Run is everything one check run produced.
type Run struct {
	Verdict      string
	Declarations []resolver.Declaration
	Clusters     []index.Cluster
	Warnings     []rbi.Warning
}

// RunStore archives check runs. Archived runs are never read back into an
// analysis.
type RunStore interface {
	// SaveRun writes a run and returns its ID.
	SaveRun(ctx context.Context, run Run) (int64, error)

	// LoadClusters returns the clusters archived for a run, in reported order.
	LoadClusters(ctx context.Context, runID int64) ([]ArchivedCluster, error)

	Close() error
}

// ArchivedCluster is a cluster as stored: its name and occurrence locations.
type ArchivedCluster struct {
	Name      string
	Locations []string
}
