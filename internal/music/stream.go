package music

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"time"
)

const (
	streamURLTimeout = 60 * time.Second
	frameDuration    = 20 * time.Millisecond
	pausePollDelay   = 100 * time.Millisecond
	sendTimeout      = time.Second
)

var errStreamRestart = errors.New("stream restart requested")

// streamOnce spawns ffmpeg at the connection's current position and
// pumps opus packets into the voice connection until the track ends,
// the stream is stopped, or a restart is requested.
func (c *discordVoiceConn) streamOnce(streamURL string, stopCh chan struct{}) error {
	c.mu.Lock()
	volume := c.volume
	offset := time.Duration(c.frameSent) * frameDuration
	restartCh := c.restartCh
	c.mu.Unlock()

	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.2f", offset.Seconds()))
	}
	args = append(args,
		"-i", streamURL,
		"-af", fmt.Sprintf("volume=%.2f", float64(volume)/100.0),
		"-c:a", "libopus",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", "96k",
		"-vbr", "on",
		"-frame_duration", "20",
		"-application", "audio",
		"-f", "ogg",
		"-loglevel", "warning",
		"pipe:1",
	)

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: ffmpeg stdout pipe: %v", ErrStreamFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: ffmpeg start: %v", ErrStreamFailed, err)
	}

	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}()

	safeSpeaking(c.vc, true)
	defer safeSpeaking(c.vc, false)

	return c.pumpOpus(stdout, stopCh, restartCh)
}

func (c *discordVoiceConn) pumpOpus(r io.Reader, stopCh chan struct{}, restartCh chan struct{}) error {
	reader := bufio.NewReaderSize(r, 65536)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return nil
		case <-restartCh:
			return errStreamRestart
		default:
		}

		if c.isPaused() {
			safeSpeaking(c.vc, false)
			select {
			case <-stopCh:
				return nil
			case <-time.After(pausePollDelay):
			}
			continue
		}

		page, err := readOggPage(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: ogg read: %v", ErrStreamFailed, err)
		}

		if page.isHeader {
			continue
		}

		safeSpeaking(c.vc, true)

		for _, packet := range page.packets {
			if len(packet) == 0 {
				continue
			}

			select {
			case <-stopCh:
				return nil
			case <-restartCh:
				return errStreamRestart
			case <-ticker.C:
			}

			select {
			case c.vc.OpusSend <- packet:
				c.mu.Lock()
				c.frameSent++
				c.mu.Unlock()
			case <-stopCh:
				return nil
			case <-time.After(sendTimeout):
				log.Printf("timeout sending opus frame, dropping")
			}
		}
	}
}

type oggPage struct {
	isHeader bool
	packets  [][]byte
}

// readOggPage parses one page of the ogg stream ffmpeg produces.
// Segment sizes below 255 terminate a packet; OpusHead/OpusTags pages
// carry codec setup, not audio.
func readOggPage(reader *bufio.Reader) (*oggPage, error) {
	if err := syncToOggCapture(reader); err != nil {
		return nil, err
	}

	header := make([]byte, 23)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}

	headerType := header[1]
	segmentCount := header[22]

	segmentTable := make([]byte, segmentCount)
	if _, err := io.ReadFull(reader, segmentTable); err != nil {
		return nil, err
	}

	pageSize := 0
	for _, seg := range segmentTable {
		pageSize += int(seg)
	}

	pageData := make([]byte, pageSize)
	if _, err := io.ReadFull(reader, pageData); err != nil {
		return nil, err
	}

	isHeader := headerType&0x02 != 0
	if len(pageData) >= 8 {
		magic := string(pageData[:8])
		if magic == "OpusHead" || magic == "OpusTags" {
			isHeader = true
		}
	}

	return &oggPage{
		isHeader: isHeader,
		packets:  splitOggPackets(segmentTable, pageData),
	}, nil
}

func syncToOggCapture(reader *bufio.Reader) error {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return err
		}
		if b != 'O' {
			continue
		}

		peek, err := reader.Peek(3)
		if err != nil {
			return err
		}
		if string(peek) == "ggS" {
			if _, err := reader.Discard(3); err != nil {
				return err
			}
			return nil
		}
	}
}

func splitOggPackets(segmentTable []byte, pageData []byte) [][]byte {
	var packets [][]byte
	var current []byte
	offset := 0

	for _, segSize := range segmentTable {
		size := int(segSize)
		if offset+size > len(pageData) {
			break
		}

		current = append(current, pageData[offset:offset+size]...)
		offset += size

		if segSize < 255 && len(current) > 0 {
			packet := make([]byte, len(current))
			copy(packet, current)
			packets = append(packets, packet)
			current = current[:0]
		}
	}

	if len(current) > 0 {
		packet := make([]byte, len(current))
		copy(packet, current)
		packets = append(packets, packet)
	}

	return packets
}
