// Package audio provides audio decoding utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - wav: RIFF/WAVE container parsing and mono PCM16 encoding
//   - resample: mono sample-rate conversion
//   - decode: format sniffing and decoding to a fixed-rate mono clip
package audio
