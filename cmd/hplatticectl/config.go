package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	hpapi "hplattice/pkg/hplattice"
)

const defaultSeed = 345

// loadSampleRequestFromConfig reads a JSON object, or any other file as the
// whitespace separated KEY value format.
func loadSampleRequestFromConfig(path string) (hpapi.SampleRequest, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadSampleRequestFromJSON(path)
	}
	return loadSampleRequestFromConf(path)
}

func loadSampleRequestFromJSON(path string) (hpapi.SampleRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hpapi.SampleRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return hpapi.SampleRequest{}, err
	}

	req := hpapi.SampleRequest{Seed: defaultSeed}
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["sequence"]); ok {
		req.Sequence = strings.ToUpper(v)
	}
	if v, ok := asIntSlice(raw["initial_vec"]); ok {
		req.InitialVec = v
	}
	if v, ok := asFloat64(raw["eps"]); ok {
		req.Epsilon = hpapi.EpsilonKT(v)
	}
	if v, ok := asString(raw["restraint"]); ok {
		req.Restraint = v
	}
	if v, ok := asFloat64(raw["kspring"]); ok {
		req.KSpring = v
	}
	if v, ok := asInt(raw["replicas"]); ok {
		req.Replicas = v
	}
	if v, ok := asFloat64Slice(raw["temperatures"]); ok {
		req.Temperatures = v
	}
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asInt(raw["swap_every"]); ok {
		req.SwapEvery = v
	}
	if v, ok := asInt(raw["print_every"]); ok {
		req.PrintEvery = v
	}
	if v, ok := asInt(raw["energy_every"]); ok {
		req.EnergyEvery = v
	}
	if v, ok := asString(raw["swap_method"]); ok {
		req.SwapPolicy = v
	}
	if v, ok := asString(raw["moveset"]); ok {
		req.MoveSet = v
	}
	if v, ok := asBool(raw["stop_at_native"]); ok {
		req.StopAtNative = v
	}
	if v, ok := asString(raw["native_dir"]); ok {
		req.NativeDir = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asString(raw["trajectory_dir"]); ok {
		req.TrajectoryDir = v
	}
	return req, nil
}

// loadSampleRequestFromConf parses lines of the form "KEY value". Unknown
// keys, blank lines and lines starting with '#' are skipped. List values may
// contain spaces.
func loadSampleRequestFromConf(path string) (hpapi.SampleRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return hpapi.SampleRequest{}, err
	}
	defer f.Close()

	req := hpapi.SampleRequest{Seed: defaultSeed}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		key, value := fields[0], strings.Join(fields[1:], " ")
		if err := applyConfKey(&req, key, value); err != nil {
			return hpapi.SampleRequest{}, fmt.Errorf("%s:%d: %s: %w", path, line, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return hpapi.SampleRequest{}, err
	}
	return req, nil
}

func applyConfKey(req *hpapi.SampleRequest, key, value string) error {
	var err error
	switch key {
	case "HPSTRING":
		req.Sequence = strings.ToUpper(value)
	case "INITIALVEC":
		req.InitialVec, err = parseIntList(value)
	case "EPS":
		var eps float64
		eps, err = strconv.ParseFloat(value, 64)
		req.Epsilon = hpapi.EpsilonKT(eps)
	case "RESTRAINED_STATE":
		req.Restraint = value
	case "KSPRING":
		req.KSpring, err = strconv.ParseFloat(value, 64)
	case "NREPLICAS":
		req.Replicas, err = strconv.Atoi(value)
	case "REPLICATEMPS":
		req.Temperatures, err = parseFloatList(value)
	case "MCSTEPS":
		req.Steps, err = strconv.Atoi(value)
	case "SWAPEVERY":
		req.SwapEvery, err = strconv.Atoi(value)
	case "SWAPMETHOD":
		req.SwapPolicy = value
	case "MOVESET":
		req.MoveSet = value
	case "PRINTEVERY":
		req.PrintEvery, err = strconv.Atoi(value)
	case "ENEEVERY":
		req.EnergyEvery, err = strconv.Atoi(value)
	case "NATIVEDIR":
		req.NativeDir = value
	case "STOPATNATIVE":
		req.StopAtNative, err = strconv.ParseBool(value)
	case "RANDSEED":
		req.Seed, err = strconv.ParseInt(value, 10, 64)
	}
	return err
}

// parseIntList accepts "[1,0,2]", "1,0,2" or "1 0 2".
func parseIntList(text string) ([]int, error) {
	parts := splitList(text)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloatList(text string) ([]float64, error) {
	parts := splitList(text)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func splitList(text string) []string {
	trimmed := strings.Trim(strings.TrimSpace(text), "[]")
	return strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		x, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, x)
	}
	return out, true
}

func asFloat64Slice(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		x, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out = append(out, x)
	}
	return out, true
}

func overrideFromFlags(req *hpapi.SampleRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "seq":
			req.Sequence = strings.ToUpper(v.(string))
		case "initial-vec":
			if s := v.(string); s != "" {
				vec, err := parseIntList(s)
				if err != nil {
					return fmt.Errorf("--initial-vec: %w", err)
				}
				req.InitialVec = vec
			}
		case "eps":
			req.Epsilon = hpapi.EpsilonKT(v.(float64))
		case "restraint":
			req.Restraint = v.(string)
		case "kspring":
			req.KSpring = v.(float64)
		case "replicas":
			req.Replicas = v.(int)
		case "temps":
			if s := v.(string); s != "" {
				temps, err := parseFloatList(s)
				if err != nil {
					return fmt.Errorf("--temps: %w", err)
				}
				req.Temperatures = temps
			}
		case "steps":
			req.Steps = v.(int)
		case "swap-every":
			req.SwapEvery = v.(int)
		case "print-every":
			req.PrintEvery = v.(int)
		case "energy-every":
			req.EnergyEvery = v.(int)
		case "swap-method":
			req.SwapPolicy = v.(string)
		case "moveset":
			req.MoveSet = v.(string)
		case "stop-at-native":
			req.StopAtNative = v.(bool)
		case "native-dir":
			req.NativeDir = v.(string)
		case "seed":
			req.Seed = v.(int64)
		case "traj-dir":
			req.TrajectoryDir = v.(string)
		}
	}
	return nil
}

func loadOrDefaultSampleRequest(configPath string) (hpapi.SampleRequest, error) {
	if configPath == "" {
		return hpapi.SampleRequest{}, nil
	}
	req, err := loadSampleRequestFromConfig(configPath)
	if err != nil {
		return hpapi.SampleRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
