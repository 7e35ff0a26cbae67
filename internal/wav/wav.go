// Package wav builds and inspects PCM WAV payloads.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	gowav "github.com/go-audio/wav"
)

const (
	// HeaderSize is the size of a canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Format describes a PCM stream layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Speech is the mono 22.05kHz 16-bit layout most local TTS engines emit.
var Speech = Format{SampleRate: 22050, Channels: 1, BitsPerSample: 16}

// ByteRate returns bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BlockAlign returns bytes per sample frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// Encode prepends a canonical 44-byte header to raw little-endian PCM.
func Encode(pcm []byte, f Format) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(pcm)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(FormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(f.ByteRate()))
	binary.Write(buf, binary.LittleEndian, uint16(f.BlockAlign()))
	binary.Write(buf, binary.LittleEndian, uint16(f.BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Silence returns a WAV payload of d worth of zeroed samples.
func Silence(d time.Duration, f Format) []byte {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return Encode(make([]byte, frames*f.BlockAlign()), f)
}

// Duration decodes the header of a WAV payload and returns its play time.
// The result is accurate to within the header's own duration (under 1ms at
// speech rates).
func Duration(data []byte) (time.Duration, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("not a valid WAV payload")
	}
	return dec.Duration()
}
