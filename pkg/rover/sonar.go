package rover

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Serial sonar defaults for UART ultrasonic modules (A02YYUW style).
const (
	DefaultSonarBaud        = 9600
	DefaultSonarReadTimeout = 200 * time.Millisecond

	sonarHeader = 0xFF
	// a frame is searched for within this many bytes before giving up
	sonarMaxScan = 64
)

// ErrBadFrame means a sonar frame failed its checksum.
var ErrBadFrame = errors.New("rover: sonar frame checksum mismatch")

// SerialSonar reads distance frames from a UART ultrasonic sensor.
// Each frame is 0xFF, high byte, low byte, checksum; the distance is in
// millimeters and the checksum is the low byte of the sum of the first three.
type SerialSonar struct {
	mu   sync.Mutex
	port io.ReadCloser
	r    *bufio.Reader
}

// OpenSerialSonar opens the sensor on the given device.
func OpenSerialSonar(device string, baud int) (*SerialSonar, error) {
	if baud <= 0 {
		baud = DefaultSonarBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: DefaultSonarReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open sonar %s: %w", device, err)
	}
	return NewSerialSonar(port), nil
}

// NewSerialSonar wraps an already-open byte stream.
func NewSerialSonar(port io.ReadCloser) *SerialSonar {
	return &SerialSonar{port: port, r: bufio.NewReader(port)}
}

// ReadDistanceCm returns the next complete reading in centimeters.
func (s *SerialSonar) ReadDistanceCm() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mm, err := readSonarFrame(s.r)
	if err != nil {
		return 0, err
	}
	return float64(mm) / 10, nil
}

// Close releases the port.
func (s *SerialSonar) Close() error {
	return s.port.Close()
}

func readSonarFrame(r *bufio.Reader) (uint16, error) {
	for i := 0; i < sonarMaxScan; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("sonar read: %w", err)
		}
		if b != sonarHeader {
			continue
		}

		var body [3]byte
		if _, err := io.ReadFull(r, body[:]); err != nil {
			return 0, fmt.Errorf("sonar read: %w", err)
		}
		sum := byte(sonarHeader + int(body[0]) + int(body[1]))
		if sum != body[2] {
			return 0, ErrBadFrame
		}
		return uint16(body[0])<<8 | uint16(body[1]), nil
	}
	return 0, fmt.Errorf("sonar read: no frame header in %d bytes", sonarMaxScan)
}
