package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

const wavFormatPCM = 1

// ErrNotWAV is returned when the input is not a RIFF/WAVE stream.
var ErrNotWAV = errors.New("not a valid WAV file")

// ReadWAV parses a 16-bit PCM WAV stream and downmixes it to mono.
// Unknown chunks (LIST, fact, ...) are skipped.
func ReadWAV(r io.Reader) (*Buffer, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		haveFormat    bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			if audioFormat != wavFormatPCM {
				return nil, fmt.Errorf("only PCM format supported, got %d", audioFormat)
			}
			if bitsPerSample != 16 {
				return nil, fmt.Errorf("only 16-bit samples supported, got %d", bitsPerSample)
			}
			if channels == 0 || sampleRate == 0 {
				return nil, fmt.Errorf("invalid format: channels=%d sampleRate=%d", channels, sampleRate)
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, errors.New("data chunk before fmt chunk")
			}
			return readPCM(r, size, int(channels), int(sampleRate))

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}

// readPCM reads interleaved little-endian samples and averages channels.
// ffmpeg writes 0xFFFFFFFF as the data size when streaming, so a short read
// at EOF is accepted.
func readPCM(r io.Reader, size uint32, channels, sampleRate int) (*Buffer, error) {
	raw, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, fmt.Errorf("read data chunk: %w", err)
	}
	frameBytes := 2 * channels
	frames := len(raw) / frameBytes

	samples := make([]int16, frames)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < channels; c++ {
			off := f*frameBytes + 2*c
			sum += int(int16(binary.LittleEndian.Uint16(raw[off : off+2])))
		}
		samples[f] = int16(sum / channels)
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: 1}, nil
}

// WriteWAV encodes mono 16-bit samples as a canonical 44-byte-header WAV.
func WriteWAV(w io.Writer, samples []int16, sampleRate int) error {
	dataSize := uint32(len(samples) * 2)
	hdr := make([]byte, wavHeaderSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], 1)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(hdr[32:34], 2)
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)
	if _, err := w.Write(hdr); err != nil {
		return err
	}

	body := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(body[2*i:], uint16(s))
	}
	_, err := w.Write(body)
	return err
}
