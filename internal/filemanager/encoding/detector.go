// Package encoding provides robust text encoding detection.
//
// Detection runs in a fixed order: BOM inspection, statistical charset
// guessing, then probing a fixed list of fallback encodings. The pipeline
// never fails to produce an answer: Latin-1 can represent any byte sequence
// and is returned with low confidence when nothing else fits. Callers that
// need strictness must check the confidence score.
package encoding

import (
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	ferrors "github.com/dshills/tino/internal/filemanager/errors"
)

// Canonical encoding names.
const (
	UTF8    = "utf-8"
	UTF8BOM = "utf-8-sig"
	UTF16   = "utf-16"
	UTF16LE = "utf-16-le"
	UTF16BE = "utf-16-be"
	UTF32LE = "utf-32-le"
	UTF32BE = "utf-32-be"
	Latin1  = "latin-1"
	CP1252  = "cp1252"
	ISO8859 = "iso-8859-1"
	ASCII   = "ascii"
)

// Detection defaults.
const (
	// DefaultMinConfidence is the minimum statistical-guesser confidence
	// accepted without fallback probing.
	DefaultMinConfidence = 0.7

	// DefaultSampleSize bounds how much of a file is read for detection.
	DefaultSampleSize = 64 * 1024

	// DefaultNulThreshold is the NUL-byte ratio above which a buffer is
	// classified binary.
	DefaultNulThreshold = 0.2

	// binaryProbeSize bounds the prefix inspected by the density and
	// control-character heuristics.
	binaryProbeSize = 512
)

// fallbackEncodings is the ordered probe list used when statistical
// detection is not confident enough. Latin-1 accepts every byte sequence,
// so probing terminates by then at the latest.
var fallbackEncodings = []string{
	UTF8,
	UTF16,
	UTF16LE,
	UTF16BE,
	Latin1,
	CP1252,
	ISO8859,
	ASCII,
}

// aliases maps common encoding name variants to canonical names. It is a
// table rather than inline logic so new aliases don't touch detection
// control flow.
var aliases = map[string]string{
	"utf8":         UTF8,
	"utf16":        UTF16,
	"utf-8-bom":    UTF8BOM,
	"utf8-sig":     UTF8BOM,
	"utf-16le":     UTF16LE,
	"utf-16be":     UTF16BE,
	"utf-32le":     UTF32LE,
	"utf-32be":     UTF32BE,
	"iso8859-1":    ISO8859,
	"iso-8859-15":  ISO8859,
	"latin1":       Latin1,
	"windows-1252": CP1252,
	"us-ascii":     ASCII,
}

// binarySignatures are magic-byte prefixes of well-known binary formats.
var binarySignatures = [][]byte{
	{0x89, 'P', 'N', 'G'},       // PNG
	[]byte("GIF8"),              // GIF
	{0xFF, 0xD8, 0xFF},          // JPEG
	[]byte("%PDF-"),             // PDF
	{'P', 'K', 0x03, 0x04},      // ZIP
	{0x50, 0x4B},                // ZIP variants
	{0x7F, 'E', 'L', 'F'},       // ELF
	{'M', 'Z'},                  // Windows PE
}

// BOM markers, longest first so UTF-32 prefixes are not mistaken for UTF-16.
var boms = []struct {
	marker   []byte
	encoding string
}{
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, UTF32LE},
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, UTF32BE},
	{[]byte{0xEF, 0xBB, 0xBF}, UTF8BOM},
	{[]byte{0xFF, 0xFE}, UTF16LE},
	{[]byte{0xFE, 0xFF}, UTF16BE},
}

// Result is a detected encoding with a confidence score in [0,1].
type Result struct {
	Encoding   string
	Confidence float64
}

// Detector detects text encodings and classifies binary content.
type Detector struct {
	minConfidence float64
	sampleSize    int
	charset       *chardet.Detector
	logger        *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinConfidence sets the statistical confidence threshold, clamped to
// [0,1].
func WithMinConfidence(c float64) Option {
	return func(d *Detector) {
		d.minConfidence = min(1.0, max(0.0, c))
	}
}

// WithSampleSize sets how many bytes DetectFile reads for detection.
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		minConfidence: DefaultMinConfidence,
		sampleSize:    DefaultSampleSize,
		charset:       chardet.NewTextDetector(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect determines the encoding of data with a confidence score.
// Empty input is UTF-8 with full confidence.
func (d *Detector) Detect(data []byte) Result {
	if len(data) == 0 {
		return Result{Encoding: UTF8, Confidence: 1.0}
	}

	if enc, ok := BOMEncoding(data); ok {
		return Result{Encoding: enc, Confidence: 1.0}
	}

	// Pure ASCII needs no statistical pass and always reads back as UTF-8.
	if isASCII(data) {
		return Result{Encoding: UTF8, Confidence: 1.0}
	}

	if r, ok := d.detectStatistical(data); ok {
		return r
	}

	for i, enc := range fallbackEncodings {
		if CanDecode(data, enc) {
			conf := max(0.1, 1.0-float64(i)*0.1)
			return Result{Encoding: enc, Confidence: conf}
		}
	}

	// Latin-1 accepts any byte sequence; reached only if the probe list
	// were ever emptied.
	return Result{Encoding: Latin1, Confidence: 0.1}
}

// DetectFile determines the encoding of the file at path, reading at most
// the configured sample size. An empty file is UTF-8.
func (d *Detector) DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ferrors.NewPathError("detect", path, ferrors.Classify(err))
	}
	defer f.Close()

	sample, err := io.ReadAll(io.LimitReader(f, int64(d.sampleSize)))
	if err != nil {
		return "", ferrors.NewPathError("detect", path, ferrors.Classify(err))
	}

	r := d.Detect(sample)
	if r.Confidence < d.minConfidence {
		d.logger.Warn("low confidence encoding detection",
			zap.String("path", path),
			zap.String("encoding", r.Encoding),
			zap.Float64("confidence", r.Confidence))
	}
	return r.Encoding, nil
}

// detectStatistical runs the statistical charset guesser. The answer is
// accepted only when its confidence clears the configured threshold.
func (d *Detector) detectStatistical(data []byte) (Result, bool) {
	best, err := d.charset.DetectBest(data)
	if err != nil || best == nil || best.Charset == "" {
		return Result{}, false
	}

	conf := float64(best.Confidence) / 100.0
	if conf < d.minConfidence {
		return Result{}, false
	}

	enc := Normalize(best.Charset)
	if !Known(enc) {
		// The guesser knows more charsets than this layer decodes.
		return Result{}, false
	}
	return Result{Encoding: enc, Confidence: conf}, true
}

// ValidateFileEncoding reports whether the start of the file at path
// decodes cleanly under the named encoding.
func (d *Detector) ValidateFileEncoding(path, name string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	probe, err := io.ReadAll(io.LimitReader(f, 1024))
	if err != nil {
		return false
	}
	return CanDecode(probe, name)
}

// IsBinary heuristically classifies data as binary content. threshold is
// the NUL-byte ratio over the whole sample above which data is binary;
// pass a value <= 0 for the default. Empty input is never binary.
func (d *Detector) IsBinary(data []byte, threshold float64) bool {
	if len(data) == 0 {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultNulThreshold
	}

	for _, sig := range binarySignatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}

	// A run of NULs is a strong binary indicator on its own.
	if bytes.Contains(data, []byte{0, 0, 0}) {
		return true
	}

	nulRatio := float64(bytes.Count(data, []byte{0})) / float64(len(data))
	if nulRatio > threshold {
		return true
	}

	probe := data
	if len(probe) > binaryProbeSize {
		probe = probe[:binaryProbeSize]
	}

	probeNuls := bytes.Count(probe, []byte{0})
	if float64(probeNuls)/float64(len(probe)) > 0.15 {
		return true
	}

	control := 0
	for _, b := range probe {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return float64(control)/float64(len(probe)) > 0.1
}

// isASCII returns true if all bytes are below 0x80.
func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// BOMEncoding returns the encoding indicated by a leading byte-order mark.
func BOMEncoding(data []byte) (string, bool) {
	for _, b := range boms {
		if bytes.HasPrefix(data, b.marker) {
			return b.encoding, true
		}
	}
	return "", false
}

// Normalize maps an encoding name to its canonical form.
func Normalize(name string) string {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// Known reports whether name (after normalization) is an encoding this
// layer can decode.
func Known(name string) bool {
	switch Normalize(name) {
	case UTF8, UTF8BOM, UTF16, UTF16LE, UTF16BE, UTF32LE, UTF32BE,
		Latin1, CP1252, ISO8859, ASCII:
		return true
	default:
		return false
	}
}

// lookup returns the x/text encoding for a canonical name. UTF-8 and ASCII
// are handled without a transform and return nil.
func lookup(name string) (xencoding.Encoding, bool) {
	switch name {
	case UTF8, UTF8BOM, ASCII:
		return nil, true
	case UTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), true
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), true
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), true
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), true
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), true
	case Latin1, ISO8859:
		return charmap.ISO8859_1, true
	case CP1252:
		return charmap.Windows1252, true
	default:
		return nil, false
	}
}

// CanDecode reports whether data decodes cleanly under the named encoding.
func CanDecode(data []byte, name string) bool {
	_, err := Decode(data, name)
	return err == nil
}

// Decode converts raw bytes to a string using the named encoding.
// A UTF-8 BOM is stripped for the utf-8-sig variant; UTF-16/32 BOM
// characters are preserved as content so encoding round-trips exactly.
func Decode(data []byte, name string) (string, error) {
	canonical := Normalize(name)
	switch canonical {
	case UTF8:
		if !utf8.Valid(data) {
			return "", ferrors.ErrDecodeFailed
		}
		return string(data), nil
	case UTF8BOM:
		data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		if !utf8.Valid(data) {
			return "", ferrors.ErrDecodeFailed
		}
		return string(data), nil
	case ASCII:
		for _, b := range data {
			if b >= 0x80 {
				return "", ferrors.ErrDecodeFailed
			}
		}
		return string(data), nil
	}

	enc, ok := lookup(canonical)
	if !ok {
		return "", ferrors.ErrEncodingUnsupported
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", ferrors.ErrDecodeFailed
	}
	// x/text decoders substitute U+FFFD rather than failing; treat any
	// substitution as a decode failure for detection purposes.
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", ferrors.ErrDecodeFailed
	}
	return string(decoded), nil
}

// Encode converts a string to raw bytes in the named encoding. The
// utf-8-sig variant prepends a BOM.
func Encode(s, name string) ([]byte, error) {
	canonical := Normalize(name)
	switch canonical {
	case UTF8:
		return []byte(s), nil
	case UTF8BOM:
		return append([]byte{0xEF, 0xBB, 0xBF}, s...), nil
	case ASCII:
		for i := 0; i < len(s); i++ {
			if s[i] >= 0x80 {
				return nil, ferrors.ErrDecodeFailed
			}
		}
		return []byte(s), nil
	}

	enc, ok := lookup(canonical)
	if !ok {
		return nil, ferrors.ErrEncodingUnsupported
	}

	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, ferrors.ErrDecodeFailed
	}
	return out, nil
}
