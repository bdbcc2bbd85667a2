// Package wavewriter writes mono 16-bit PCM WAV files incrementally,
// one per channel, so a full session's audio (including silence) can be
// captured to disk without buffering it all in memory first.
package wavewriter

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	bitsPerSample = 16
	numChannels   = 1
	headerSize    = 44
)

// Writer appends PCM samples to one open WAV file and patches the RIFF
// and data chunk sizes when Close is called, since those sizes are not
// known up front for a live-captured stream.
type Writer struct {
	file           *os.File
	sampleRate     int
	samplesWritten int64
}

// Create opens path and reserves a placeholder 44-byte header, to be
// patched with real sizes on Close.
func Create(path string, sampleRate int) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create wav file %q: %w", path, err)
	}

	w := &Writer{file: file, sampleRate: sampleRate}
	if _, err := file.Write(make([]byte, headerSize)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("reserve wav header %q: %w", path, err)
	}
	return w, nil
}

// WriteSamples appends little-endian int16 PCM samples.
func (w *Writer) WriteSamples(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	w.samplesWritten += int64(len(samples))
	return nil
}

// SamplesWritten reports how many samples have been appended so far.
func (w *Writer) SamplesWritten() int64 { return w.samplesWritten }

// DurationSeconds reports the duration of audio written so far.
func (w *Writer) DurationSeconds() float64 {
	if w.sampleRate <= 0 {
		return 0
	}
	return float64(w.samplesWritten) / float64(w.sampleRate)
}

// Close patches the header with the final sizes and closes the file.
func (w *Writer) Close() error {
	dataSize := uint32(w.samplesWritten * 2)
	header := buildHeader(w.sampleRate, dataSize)

	if _, err := w.file.WriteAt(header, 0); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("patch wav header: %w", err)
	}
	return w.file.Close()
}

// buildHeader mirrors a minimal 44-byte canonical WAV header for mono
// 16-bit PCM, with the RIFF and data chunk sizes computed from dataSize.
func buildHeader(sampleRate int, dataSize uint32) []byte {
	byteRate := sampleRate * numChannels * (bitsPerSample / 8)
	blockAlign := numChannels * (bitsPerSample / 8)
	riffSize := 36 + dataSize

	header := make([]byte, headerSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	return header
}

// EncodeToMemory builds a complete WAV blob for a fixed batch of samples
// in one shot, for backends (e.g. non-streaming ASR) that need a whole
// file's bytes rather than an incrementally-patched one on disk.
func EncodeToMemory(samples []int16, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)
	out := buildHeader(sampleRate, dataSize)
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return append(out, buf...)
}
