package storage

import (
	"context"

	"hplattice/internal/model"
)

// Store persists enumeration densities, native states and sampling runs.
type Store interface {
	Init(ctx context.Context) error
	SaveDensity(ctx context.Context, density model.DensityRecord) error
	GetDensity(ctx context.Context, id string) (model.DensityRecord, bool, error)
	SaveNativeState(ctx context.Context, native model.NativeStateRecord) error
	GetNativeState(ctx context.Context, sequence string) (model.NativeStateRecord, bool, error)
	SaveSamplingRun(ctx context.Context, run model.SamplingRunRecord) error
	GetSamplingRun(ctx context.Context, runID string) (model.SamplingRunRecord, bool, error)
}
