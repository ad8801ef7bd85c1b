package vaa

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// LogVAA logs all fields of a VAA at debug level.
func LogVAA(logger *zap.Logger, v *VAA) {
	logger.Debug("VAA",
		zap.Uint8("version", v.Version),
		zap.Uint32("guardianSetIndex", v.GuardianSetIndex),
		zap.Int("signatureCount", len(v.Signatures)),
		zap.Uint32("timestamp", v.Timestamp),
		zap.Uint32("nonce", v.Nonce),
		zap.Uint16("emitterChain", uint16(v.EmitterChain)),
		zap.String("emitterAddress", hex.EncodeToString(v.EmitterAddress[:])),
		zap.Uint64("sequence", v.Sequence),
		zap.Uint8("consistencyLevel", v.ConsistencyLevel),
		zap.String("payload", v.Literal()),
		zap.String("payloadHex", hex.EncodeToString(v.RawPayload)),
		zap.String("hash", v.Hash().Hex()),
	)

	for i, sig := range v.Signatures {
		logger.Debug("VAA signature",
			zap.Int("index", i),
			zap.Uint8("guardianIndex", sig.GuardianIndex),
			zap.String("r", hex.EncodeToString(sig.R[:])),
			zap.String("s", hex.EncodeToString(sig.S[:])),
			zap.Uint8("v", sig.RecoveryID),
		)
	}
}
