// Package codec encodes motor commands and decodes telemetry for the device's
// GATT characteristics.
//
// All multi-byte values are big-endian. Decoders never panic on malformed input;
// payloads shorter than required yield a *FrameError matching ErrShortFrame.
package codec
