package storage

import (
	"encoding/json"
	"errors"

	"hplattice/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps a record with the versions this build writes.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeDensity(d model.DensityRecord) ([]byte, error) {
	return json.Marshal(d)
}

func DecodeDensity(data []byte) (model.DensityRecord, error) {
	var density model.DensityRecord
	if err := json.Unmarshal(data, &density); err != nil {
		return model.DensityRecord{}, err
	}
	if err := checkVersion(density.VersionedRecord); err != nil {
		return model.DensityRecord{}, err
	}
	return density, nil
}

func EncodeNativeState(n model.NativeStateRecord) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNativeState(data []byte) (model.NativeStateRecord, error) {
	var native model.NativeStateRecord
	if err := json.Unmarshal(data, &native); err != nil {
		return model.NativeStateRecord{}, err
	}
	if err := checkVersion(native.VersionedRecord); err != nil {
		return model.NativeStateRecord{}, err
	}
	return native, nil
}

func EncodeSamplingRun(r model.SamplingRunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeSamplingRun(data []byte) (model.SamplingRunRecord, error) {
	var run model.SamplingRunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.SamplingRunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.SamplingRunRecord{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
