package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hpapi "hplattice/pkg/hplattice"
)

func TestLoadSampleRequestFromConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcrex.conf")
	conf := strings.Join([]string{
		"# replica exchange settings",
		"HPSTRING          HPPHPH",
		"INITIALVEC        [0, 1, 2, 1, 0]",
		"EPS               -2.0",
		"RESTRAINED_STATE  [(0, 5)]",
		"KSPRING           0.5",
		"NREPLICAS         2",
		"REPLICATEMPS      [300.0, 350.0]",
		"MCSTEPS           1000",
		"SWAPEVERY         100",
		"SWAPMETHOD        random pair",
		"MOVESET           MS1",
		"PRINTEVERY        200",
		"TRJEVERY          200",
		"ENEEVERY          50",
		"NATIVEDIR         clist",
		"STOPATNATIVE      1",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0o644))

	req, err := loadSampleRequestFromConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "HPPHPH", req.Sequence)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, req.InitialVec)
	require.NotNil(t, req.Epsilon)
	assert.Equal(t, *hpapi.EpsilonKT(-2), *req.Epsilon)
	assert.Equal(t, "[(0, 5)]", req.Restraint)
	assert.Equal(t, 0.5, req.KSpring)
	assert.Equal(t, 2, req.Replicas)
	assert.Equal(t, []float64{300, 350}, req.Temperatures)
	assert.Equal(t, 1000, req.Steps)
	assert.Equal(t, 100, req.SwapEvery)
	assert.Equal(t, 200, req.PrintEvery)
	assert.Equal(t, 50, req.EnergyEvery)
	assert.Equal(t, "random pair", req.SwapPolicy)
	assert.Equal(t, "MS1", req.MoveSet)
	assert.Equal(t, "clist", req.NativeDir)
	assert.True(t, req.StopAtNative)
	assert.Equal(t, int64(defaultSeed), req.Seed)
}

func TestLoadSampleRequestFromConfReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("HPSTRING HPPH\nMCSTEPS lots\n"), 0o644))
	_, err := loadSampleRequestFromConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2: MCSTEPS")
}

func TestLoadSampleRequestFromConfKeepsZeroEpsilon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "athermal.conf")
	require.NoError(t, os.WriteFile(path, []byte("HPSTRING HPPH\nEPS 0\n"), 0o644))
	req, err := loadSampleRequestFromConfig(path)
	require.NoError(t, err)
	require.NotNil(t, req.Epsilon)
	assert.Zero(t, *req.Epsilon)
}

func TestLoadSampleRequestFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	payload := map[string]any{
		"sequence":       "hpphph",
		"initial_vec":    []int{0, 0, 0, 0, 0},
		"eps":            -3,
		"temperatures":   []float64{275, 300, 325},
		"steps":          5000,
		"swap_every":     50,
		"print_every":    500,
		"energy_every":   100,
		"swap_method":    "neighbors",
		"moveset":        "MS3",
		"stop_at_native": true,
		"native_dir":     "natives",
		"seed":           9,
		"trajectory_dir": "traj",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	req, err := loadSampleRequestFromConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "HPPHPH", req.Sequence)
	assert.Len(t, req.InitialVec, 5)
	require.NotNil(t, req.Epsilon)
	assert.Equal(t, *hpapi.EpsilonKT(-3), *req.Epsilon)
	assert.Len(t, req.Temperatures, 3)
	assert.Equal(t, 5000, req.Steps)
	assert.Equal(t, 50, req.SwapEvery)
	assert.Equal(t, 500, req.PrintEvery)
	assert.Equal(t, 100, req.EnergyEvery)
	assert.Equal(t, "neighbors", req.SwapPolicy)
	assert.Equal(t, "MS3", req.MoveSet)
	assert.True(t, req.StopAtNative)
	assert.Equal(t, "natives", req.NativeDir)
	assert.Equal(t, int64(9), req.Seed)
	assert.Equal(t, "traj", req.TrajectoryDir)
}

func TestOverrideFromFlagsOnlyAppliesSetFlags(t *testing.T) {
	req := hpapi.SampleRequest{Sequence: "HPPH", Steps: 10, Seed: 3, MoveSet: "MS1"}
	set := map[string]bool{"steps": true, "temps": true, "initial-vec": true}
	values := map[string]any{
		"steps":       250,
		"temps":       "300, 310",
		"initial-vec": "0,1,2",
		"seed":        int64(99),
		"moveset":     "MS2",
	}
	require.NoError(t, overrideFromFlags(&req, set, values))
	assert.Equal(t, 250, req.Steps)
	assert.Equal(t, []float64{300, 310}, req.Temperatures)
	assert.Equal(t, []int{0, 1, 2}, req.InitialVec)
	assert.Equal(t, int64(3), req.Seed, "unset flags must not override")
	assert.Equal(t, "MS1", req.MoveSet, "unset flags must not override")
	assert.Nil(t, req.Epsilon)

	require.NoError(t, overrideFromFlags(&req, map[string]bool{"eps": true}, map[string]any{"eps": 0.0}))
	require.NotNil(t, req.Epsilon)
	assert.Zero(t, *req.Epsilon)

	assert.Error(t, overrideFromFlags(&req, map[string]bool{"temps": true}, map[string]any{"temps": "hot"}))
}

func TestParseLists(t *testing.T) {
	ints, err := parseIntList("[1, 0,2 3]")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2, 3}, ints)

	empty, err := parseIntList("[]")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseFloatList("[300.0, x]")
	assert.Error(t, err)
}
