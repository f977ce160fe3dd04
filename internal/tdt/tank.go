// Package tdt reads Tucker-Davis Technologies data blocks and converts the
// photometry streams and epocs they contain into the BIDS rawdata layout.
package tdt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Event types and marks used in TSQ headers.
const (
	evTypeStrobeOn = 0x101
	evTypeScalar   = 0x201
	evTypeStream   = 0x8101
	evTypeSnip     = 0x8201
	evTypeMark     = 0x8801

	markStartBlock = 0x0001
	markStopBlock  = 0x0002
)

// Data formats of stream chunks.
const (
	formatFloat = iota
	formatLong
	formatShort
	formatByte
	formatDouble
)

const headerSize = 40

var ErrNotBlock = errors.New("not a TDT block")

// tsqHeader is one 40 byte record of the block's .tsq index.
type tsqHeader struct {
	Size      int32
	Type      int32
	Code      uint32
	Channel   uint16
	SortCode  uint16
	Timestamp float64
	Offset    [8]byte // file offset for data records, strobe value for epocs
	Format    int32
	Frequency float32
}

func (h *tsqHeader) offset() int64 {
	return int64(binary.LittleEndian.Uint64(h.Offset[:]))
}

func (h *tsqHeader) strobe() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(h.Offset[:]))
}

func (h *tsqHeader) dataBytes() int64 {
	return int64(h.Size-10) * 4
}

// storeName decodes the four character store code.
func storeName(code uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], code)
	return string(bytes.TrimRight(b[:], "\x00 "))
}

// StoreCode encodes a store name into its TSQ code.
func StoreCode(name string) uint32 {
	var b [4]byte
	copy(b[:], name)
	return binary.LittleEndian.Uint32(b[:])
}

// Stream is a continuously sampled store, one slice per channel.
type Stream struct {
	Name      string
	Fs        float64
	StartTime float64 // timestamp of the first chunk, seconds since epoch
	Channels  map[int][]float64
}

// Epoc is one strobe event.
type Epoc struct {
	Name  string
	Onset float64 // seconds since epoch
	Value float64
}

// Block is the decoded content of one TDT block directory.
type Block struct {
	Path      string
	StartTime float64
	StopTime  float64
	Streams   map[string]*Stream
	Epocs     []Epoc
}

// Duration is the recorded length of the block in seconds.
func (b *Block) Duration() float64 {
	return b.StopTime - b.StartTime
}

// findBlockFiles returns the .tsq and .tev paths in dir.
func findBlockFiles(dir string) (string, string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tsq"))
	if err != nil {
		return "", "", err
	}
	if len(matches) != 1 {
		return "", "", fmt.Errorf("%s: expected one .tsq file, found %d: %w", dir, len(matches), ErrNotBlock)
	}
	tsq := matches[0]
	tev := tsq[:len(tsq)-len(".tsq")] + ".tev"
	if _, err := os.Stat(tev); err != nil {
		return "", "", fmt.Errorf("%s: missing .tev file: %w", dir, ErrNotBlock)
	}
	return tsq, tev, nil
}

// ReadBlock decodes every stream and epoc of the block stored in dir.
func ReadBlock(dir string) (*Block, error) {
	tsqPath, tevPath, err := findBlockFiles(dir)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(tsqPath)
	if err != nil {
		return nil, err
	}

	tev, err := os.Open(tevPath)
	if err != nil {
		return nil, err
	}
	defer tev.Close()

	block := &Block{Path: dir, Streams: make(map[string]*Stream)}
	for i := range headers {
		h := &headers[i]
		switch h.Type {
		case evTypeMark:
			switch h.Code {
			case markStartBlock:
				block.StartTime = h.Timestamp
			case markStopBlock:
				block.StopTime = h.Timestamp
			}
		case evTypeStream:
			name := storeName(h.Code)
			st, ok := block.Streams[name]
			if !ok {
				st = &Stream{
					Name:      name,
					Fs:        float64(h.Frequency),
					StartTime: h.Timestamp,
					Channels:  make(map[int][]float64),
				}
				block.Streams[name] = st
			}
			samples, err := readChunk(tev, h)
			if err != nil {
				return nil, fmt.Errorf("%s: store %s: %w", tevPath, name, err)
			}
			ch := int(h.Channel)
			st.Channels[ch] = append(st.Channels[ch], samples...)
		case evTypeStrobeOn:
			block.Epocs = append(block.Epocs, Epoc{
				Name:  storeName(h.Code),
				Onset: h.Timestamp,
				Value: h.strobe(),
			})
		}
	}
	if block.StartTime == 0 {
		return nil, fmt.Errorf("%s: no start mark: %w", tsqPath, ErrNotBlock)
	}

	sort.SliceStable(block.Epocs, func(i, j int) bool {
		return block.Epocs[i].Onset < block.Epocs[j].Onset
	})
	return block, nil
}

func readHeaders(path string) ([]tsqHeader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%headerSize != 0 {
		return nil, fmt.Errorf("%s: size %d is not a multiple of %d: %w", path, len(raw), headerSize, ErrNotBlock)
	}
	headers := make([]tsqHeader, len(raw)/headerSize)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, headers); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	// records are written per channel in arrival order; sort by time so
	// chunks of each channel concatenate correctly
	sort.SliceStable(headers, func(i, j int) bool {
		return headers[i].Timestamp < headers[j].Timestamp
	})
	return headers, nil
}

func readChunk(r io.ReaderAt, h *tsqHeader) ([]float64, error) {
	n := h.dataBytes()
	if n < 0 {
		return nil, fmt.Errorf("invalid record size %d", h.Size)
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, h.offset()); err != nil {
		return nil, fmt.Errorf("reading %d bytes at %d: %w", n, h.offset(), err)
	}

	rd := bytes.NewReader(buf)
	switch h.Format {
	case formatFloat:
		v := make([]float32, n/4)
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case formatLong:
		v := make([]int32, n/4)
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case formatShort:
		v := make([]int16, n/2)
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case formatByte:
		v := make([]int8, n)
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		return widen(v), nil
	case formatDouble:
		v := make([]float64, n/8)
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported data format %d", h.Format)
	}
}

func widen[T float32 | int32 | int16 | int8](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
