package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/starkvote/log"
)

// ArtifactEncoding defines the encoding formats for stored artifacts.
type ArtifactEncoding int

const (
	// ArtifactEncodingCBOR is the core deterministic CBOR encoding, the
	// default one.
	ArtifactEncodingCBOR ArtifactEncoding = iota
	// ArtifactEncodingJSON is the JSON encoding, used for exports.
	ArtifactEncodingJSON
)

var artifactEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder: %v", err))
	}
	return em
}()

// EncodeArtifact encodes an artifact into the specified encoding format. If no
// format is specified, CBOR is used.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	if len(encoding) == 0 {
		return EncodeArtifactCBOR(a)
	}
	switch encoding[0] {
	case ArtifactEncodingCBOR:
		return EncodeArtifactCBOR(a)
	case ArtifactEncodingJSON:
		res, err := json.Marshal(a)
		if err != nil {
			log.Warnw("falling back to CBOR encoding due to JSON encoding failure", "error", err)
			return EncodeArtifactCBOR(a)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unknown artifact encoding: %d", encoding[0])
	}
}

// DecodeArtifact decodes an artifact from the specified format. If no format
// is specified, CBOR is used.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	if len(encoding) == 0 {
		return cbor.Unmarshal(data, out)
	}
	switch encoding[0] {
	case ArtifactEncodingCBOR:
		return cbor.Unmarshal(data, out)
	case ArtifactEncodingJSON:
		if err := json.Unmarshal(data, out); err != nil {
			log.Warnw("falling back to CBOR decoding due to JSON decoding failure", "error", err)
			return cbor.Unmarshal(data, out)
		}
		return nil
	default:
		return fmt.Errorf("unknown artifact encoding: %d", encoding[0])
	}
}

// EncodeArtifactCBOR encodes an artifact with deterministic CBOR.
func EncodeArtifactCBOR(a any) ([]byte, error) {
	data, err := artifactEncMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}
