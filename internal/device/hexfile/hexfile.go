// Package hexfile embeds a Python script in a MicroPython runtime image and
// extracts it again.
//
// The micro:bit runtime reads the user's script from a fixed flash region.
// The region starts with the magic "MP", followed by the script length as a
// little-endian uint16 and the script bytes, padded with zeros to a 16-byte
// boundary.
package hexfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/marcinbor85/gohex"
)

const (
	// ScriptAddr is the flash address of the script region.
	ScriptAddr uint32 = 0x3e000

	// regionSize is the size of the script region.
	regionSize = 8192

	headerSize = 4

	// MaxScriptSize is the longest script that fits the region.
	MaxScriptSize = regionSize - headerSize

	// recordLength is the number of data bytes per Intel HEX line.
	recordLength = 16
)

var magic = []byte("MP")

// ErrScriptTooLong is returned by Embed when the script does not fit.
var ErrScriptTooLong = errors.New("script is too long")

// Encode returns the script region for script, header and padding included.
func Encode(script string) ([]byte, error) {
	if len(script) > MaxScriptSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrScriptTooLong, len(script), MaxScriptSize)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(script)))
	buf.WriteString(script)
	if pad := buf.Len() % recordLength; pad != 0 {
		buf.Write(make([]byte, recordLength-pad))
	}
	return buf.Bytes(), nil
}

// Embed returns runtime with script placed in the script region. Any script
// already present in runtime is removed first, so an empty script yields a
// runtime with no script.
func Embed(runtime []byte, script string) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(runtime)); err != nil {
		return nil, fmt.Errorf("parse runtime: %w", err)
	}
	mem.RemoveBinary(ScriptAddr, regionSize)

	if script != "" {
		region, err := Encode(script)
		if err != nil {
			return nil, err
		}
		if err := mem.AddBinary(ScriptAddr, region); err != nil {
			return nil, fmt.Errorf("embed script: %w", err)
		}
	}

	var out bytes.Buffer
	if err := mem.DumpIntelHex(&out, recordLength); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	return out.Bytes(), nil
}

// Extract returns the script embedded in image, or "" if it carries none.
func Extract(image []byte) (string, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(image)); err != nil {
		return "", fmt.Errorf("parse image: %w", err)
	}

	header := mem.ToBinary(ScriptAddr, headerSize, 0xff)
	if !bytes.Equal(header[:2], magic) {
		return "", nil
	}
	n := binary.LittleEndian.Uint16(header[2:])
	if int(n) > MaxScriptSize {
		return "", fmt.Errorf("%w: header claims %d bytes", ErrScriptTooLong, n)
	}

	script := mem.ToBinary(ScriptAddr+headerSize, uint32(n), 0)
	return strings.TrimRight(string(script), "\x00"), nil
}
