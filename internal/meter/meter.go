// Package meter reads AC line telemetry from the dimmer board's metering
// head over a serial link. The board emits one ASCII record per line:
//
//	channel;voltage;frequency
//
// e.g. "1;230.4;49.98". Parsing is separated from I/O so it can be tested
// against plain readers.
package meter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// ErrBadRecord marks a malformed record line. Callers can keep streaming
// past these; any other error from Reader.Next ends the stream.
var ErrBadRecord = errors.New("meter: bad record")

// Reading is one telemetry record from the metering head.
type Reading struct {
	Channel   uint8
	Voltage   float64 // RMS volts
	Frequency float64 // mains hertz
}

// ParseReading decodes one record line.
func ParseReading(line string) (Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) != 3 {
		return Reading{}, fmt.Errorf("%w: expected 3 fields, got %d in %q", ErrBadRecord, len(fields), line)
	}

	channel, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: channel %q: %v", ErrBadRecord, fields[0], err)
	}
	voltage, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: voltage %q: %v", ErrBadRecord, fields[1], err)
	}
	frequency, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: frequency %q: %v", ErrBadRecord, fields[2], err)
	}
	if voltage < 0 {
		return Reading{}, fmt.Errorf("%w: negative voltage %v", ErrBadRecord, voltage)
	}
	if frequency <= 0 {
		return Reading{}, fmt.Errorf("%w: non-positive frequency %v", ErrBadRecord, frequency)
	}

	return Reading{
		Channel:   uint8(channel),
		Voltage:   voltage,
		Frequency: frequency,
	}, nil
}

// Reader streams readings from a record source.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps any line-oriented source of meter records.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next reading. Blank lines are skipped; a malformed line
// is returned as an error without ending the stream. io.EOF marks the end.
func (r *Reader) Next() (Reading, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		return ParseReading(line)
	}
	if err := r.scanner.Err(); err != nil {
		return Reading{}, err
	}
	return Reading{}, io.EOF
}

// Open opens the serial port the metering head is attached to, 8N1 at the
// given baud rate.
func Open(portPath string, baudRate int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portPath, err)
	}
	return port, nil
}
