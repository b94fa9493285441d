package models

import (
	"encoding/json"
	"fmt"

	"spendplan/internal/core"
	"spendplan/internal/tsmodel"
)

// EncodeSeasonal and the functions below are the wire format shared by the
// sqlite and object storage backends.
func EncodeSeasonal(a *tsmodel.SeasonalArtifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(a)
}

func DecodeSeasonal(b []byte) (*tsmodel.SeasonalArtifact, error) {
	var a tsmodel.SeasonalArtifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptArtifact, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func EncodeSequence(a *tsmodel.SequenceArtifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(a)
}

func DecodeSequence(b []byte) (*tsmodel.SequenceArtifact, error) {
	var a tsmodel.SequenceArtifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptArtifact, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
