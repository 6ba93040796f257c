package assets

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// ErrBadArray is returned for channel data that cannot be decoded.
var ErrBadArray = errors.New("bad array data")

// DecodeChannel decodes a channel payload. NumPy .npy payloads are detected
// by their magic prefix; anything else is read as one number per line.
func DecodeChannel(data []byte) ([]float64, error) {
	if bytes.HasPrefix(data, npyMagic) {
		return decodeNpy(bytes.NewReader(data), len(data))
	}
	return decodeText(data)
}

type npyHeader struct {
	order   binary.ByteOrder
	kind    byte
	size    int
	fortran bool
	count   int
}

type npyDecoder struct {
	r *bufio.Reader
	// limit is the payload size; no header or body may claim more.
	limit int
}

func decodeNpy(r io.Reader, limit int) ([]float64, error) {
	dec := npyDecoder{r: bufio.NewReader(r), limit: limit}
	hdr, err := dec.readHeader()
	if err != nil {
		return nil, err
	}
	return dec.readValues(hdr)
}

func (d *npyDecoder) readHeader() (npyHeader, error) {
	magic := make([]byte, len(npyMagic))
	if _, err := io.ReadFull(d.r, magic); err != nil {
		return npyHeader{}, fmt.Errorf("%w: short magic: %v", ErrBadArray, err)
	}
	if !bytes.Equal(magic, npyMagic) {
		return npyHeader{}, fmt.Errorf("%w: not an npy file", ErrBadArray)
	}
	major, err := d.r.ReadByte()
	if err != nil {
		return npyHeader{}, err
	}
	if _, err := d.r.ReadByte(); err != nil {
		return npyHeader{}, err
	}

	var headerLen int
	switch major {
	case 1:
		var n uint16
		if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
			return npyHeader{}, err
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
			return npyHeader{}, err
		}
		headerLen = int(n)
	default:
		return npyHeader{}, fmt.Errorf("%w: unsupported npy version %d", ErrBadArray, major)
	}

	if headerLen > d.limit {
		return npyHeader{}, fmt.Errorf("%w: header length %d exceeds payload", ErrBadArray, headerLen)
	}
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return npyHeader{}, fmt.Errorf("%w: short header: %v", ErrBadArray, err)
	}
	return parseNpyHeader(string(raw))
}

func parseNpyHeader(text string) (npyHeader, error) {
	var hdr npyHeader

	descr, ok := dictValue(text, "descr")
	if !ok {
		return hdr, fmt.Errorf("%w: header missing descr", ErrBadArray)
	}
	descr = strings.Trim(descr, "'\"")
	if len(descr) < 3 {
		return hdr, fmt.Errorf("%w: bad descr %q", ErrBadArray, descr)
	}
	switch descr[0] {
	case '<', '|', '=':
		hdr.order = binary.LittleEndian
	case '>':
		hdr.order = binary.BigEndian
	default:
		return hdr, fmt.Errorf("%w: bad byte order in %q", ErrBadArray, descr)
	}
	hdr.kind = descr[1]
	size, err := strconv.Atoi(descr[2:])
	if err != nil {
		return hdr, fmt.Errorf("%w: bad item size in %q", ErrBadArray, descr)
	}
	hdr.size = size
	if !supportedDtype(hdr.kind, hdr.size) {
		return hdr, fmt.Errorf("%w: unsupported dtype %q", ErrBadArray, descr)
	}

	if fortran, ok := dictValue(text, "fortran_order"); ok {
		hdr.fortran = strings.HasPrefix(fortran, "True")
	}

	shape, ok := dictValue(text, "shape")
	if !ok {
		return hdr, fmt.Errorf("%w: header missing shape", ErrBadArray)
	}
	count, err := shapeCount(shape)
	if err != nil {
		return hdr, err
	}
	hdr.count = count
	return hdr, nil
}

func (d *npyDecoder) readValues(hdr npyHeader) ([]float64, error) {
	if hdr.count < 0 || hdr.count > d.limit/hdr.size {
		return nil, fmt.Errorf("%w: %d elements exceed payload of %d bytes", ErrBadArray, hdr.count, d.limit)
	}
	out := make([]float64, hdr.count)
	buf := make([]byte, hdr.size)
	for i := range out {
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated at element %d: %v", ErrBadArray, i, err)
		}
		out[i] = convertItem(hdr, buf)
	}
	return out, nil
}

func supportedDtype(kind byte, size int) bool {
	switch kind {
	case 'f':
		return size == 4 || size == 8
	case 'i', 'u':
		return size == 1 || size == 2 || size == 4 || size == 8
	case 'b':
		return size == 1
	}
	return false
}

func convertItem(hdr npyHeader, b []byte) float64 {
	switch hdr.kind {
	case 'f':
		if hdr.size == 4 {
			return float64(math.Float32frombits(hdr.order.Uint32(b)))
		}
		return math.Float64frombits(hdr.order.Uint64(b))
	case 'i':
		switch hdr.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(hdr.order.Uint16(b)))
		case 4:
			return float64(int32(hdr.order.Uint32(b)))
		default:
			return float64(int64(hdr.order.Uint64(b)))
		}
	case 'u':
		switch hdr.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(hdr.order.Uint16(b))
		case 4:
			return float64(hdr.order.Uint32(b))
		default:
			return float64(hdr.order.Uint64(b))
		}
	case 'b':
		if b[0] != 0 {
			return 1
		}
		return 0
	}
	return math.NaN()
}

// dictValue extracts the raw value text for key from a Python dict literal.
func dictValue(text, key string) (string, bool) {
	needle := "'" + key + "'"
	i := strings.Index(text, needle)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(text[i+len(needle):])
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	rest = strings.TrimSpace(rest[1:])
	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return "", false
		}
		return rest[:end+1], true
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

func shapeCount(shape string) (int, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(shape, "("), ")")
	count := 1
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: bad shape %q", ErrBadArray, shape)
		}
		if n != 0 && count > math.MaxInt/n {
			return 0, fmt.Errorf("%w: shape %q overflows", ErrBadArray, shape)
		}
		count *= n
	}
	return count, nil
}

func decodeText(data []byte) ([]float64, error) {
	var values []float64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrBadArray, line, text)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
