package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
)

func TestDecodeChannelNpyFloat64(t *testing.T) {
	data := encodeTestNpy(t, "<f8", []float64{0.5, 1.25, math.NaN(), 3})

	values, err := DecodeChannel(data)
	if err != nil {
		t.Fatalf("DecodeChannel failed: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 values, got %d", len(values))
	}
	if values[0] != 0.5 || values[1] != 1.25 || values[3] != 3 {
		t.Fatalf("unexpected values %v", values)
	}
	if !math.IsNaN(values[2]) {
		t.Fatalf("expected NaN at index 2, got %v", values[2])
	}
}

func TestDecodeChannelNpyIntegers(t *testing.T) {
	data := encodeTestNpy(t, "<i4", []float64{-3, 0, 7})

	values, err := DecodeChannel(data)
	if err != nil {
		t.Fatalf("DecodeChannel failed: %v", err)
	}
	expected := []float64{-3, 0, 7}
	for i, v := range expected {
		if values[i] != v {
			t.Fatalf("expected %v at %d, got %v", v, i, values[i])
		}
	}
}

func TestDecodeChannelNpyBigEndian(t *testing.T) {
	data := encodeTestNpy(t, ">f4", []float64{1.5, -2})

	values, err := DecodeChannel(data)
	if err != nil {
		t.Fatalf("DecodeChannel failed: %v", err)
	}
	if values[0] != 1.5 || values[1] != -2 {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestDecodeChannelNpyUnsupportedDtype(t *testing.T) {
	data := encodeTestNpy(t, "<c16", nil)
	if _, err := DecodeChannel(data); !errors.Is(err, ErrBadArray) {
		t.Fatalf("expected ErrBadArray, got %v", err)
	}
}

func TestDecodeChannelNpyRejectsOversizedShape(t *testing.T) {
	for _, shape := range []string{
		"(1000000000000000,)",
		"(4,)",
		"(4294967296, 4294967296, 4294967296)",
	} {
		var buf bytes.Buffer
		writeTestNpyHeader(&buf, "<f8", shape)
		buf.Write(make([]byte, 24))
		if _, err := DecodeChannel(buf.Bytes()); !errors.Is(err, ErrBadArray) {
			t.Fatalf("shape %s: expected ErrBadArray, got %v", shape, err)
		}
	}
}

func TestDecodeChannelNpyRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.WriteByte(2)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(math.MaxUint32))
	buf.WriteString("{}")
	if _, err := DecodeChannel(buf.Bytes()); !errors.Is(err, ErrBadArray) {
		t.Fatalf("expected ErrBadArray, got %v", err)
	}
}

func TestDecodeChannelText(t *testing.T) {
	values, err := DecodeChannel([]byte("# wheel\n0.1\n\n 0.2 \nNaN\n"))
	if err != nil {
		t.Fatalf("DecodeChannel failed: %v", err)
	}
	if len(values) != 3 || values[0] != 0.1 || values[1] != 0.2 || !math.IsNaN(values[2]) {
		t.Fatalf("unexpected values %v", values)
	}
}

func TestDecodeChannelTextRejectsGarbage(t *testing.T) {
	if _, err := DecodeChannel([]byte("1\nnope\n")); !errors.Is(err, ErrBadArray) {
		t.Fatalf("expected ErrBadArray, got %v", err)
	}
}

func encodeTestNpy(t *testing.T, descr string, values []float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeTestNpyHeader(&buf, descr, "("+strconv.Itoa(len(values))+",)")

	var order binary.ByteOrder = binary.LittleEndian
	if descr[0] == '>' {
		order = binary.BigEndian
	}
	for _, v := range values {
		switch descr[1:] {
		case "f8":
			_ = binary.Write(&buf, order, v)
		case "f4":
			_ = binary.Write(&buf, order, float32(v))
		case "i4":
			_ = binary.Write(&buf, order, int32(v))
		default:
			t.Fatalf("unsupported test dtype %s", descr)
		}
	}
	return buf.Bytes()
}

func writeTestNpyHeader(buf *bytes.Buffer, descr, shape string) {
	header := "{'descr': '" + descr + "', 'fortran_order': False, 'shape': " + shape + ", }"
	total := len(npyMagic) + 2 + 2 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"
	buf.Write(npyMagic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
}
