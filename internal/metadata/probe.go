// Package metadata extracts display metadata (title, artist, duration)
// from audio files without fully decoding them.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"

	"rubato/pkg/models"
)

// Prober handles metadata extraction from audio files
type Prober struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewProber creates a new metadata prober
func NewProber(supportedFormats []string, logger *logrus.Logger) *Prober {
	return &Prober{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// Probe extracts metadata from an audio file. A probe failure returns the
// error along with a best-effort Track (title from the filename) so the
// file can still be listed as unplayable.
func (p *Prober) Probe(filePath string) (models.Track, error) {
	startTime := time.Now()

	track := models.Track{
		Path:   filePath,
		Title:  strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Artist: "Unknown Artist",
	}

	file, err := os.Open(filePath)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"error":     err.Error(),
		}).Error("Failed to open audio file")
		track.Unreadable = true
		return track, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		track.Unreadable = true
		return track, err
	}
	track.FileSize = stat.Size()
	track.ModTime = stat.ModTime()

	// Calculate duration
	duration, err := p.calculateDuration(filePath)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"error":     err.Error(),
		}).Warn("Failed to calculate duration, marking unplayable")
		track.Unreadable = true
		return track, err
	}
	track.Duration = duration

	// Extract metadata using the tag library; failures fall back to the
	// filename-derived title already in place.
	meta, err := tag.ReadFrom(file)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"error":     err.Error(),
		}).Debug("No tags found, using filename")
		return track, nil
	}

	if title := meta.Title(); title != "" {
		track.Title = title
	}
	if artist := meta.Artist(); artist != "" {
		track.Artist = artist
	}

	p.logger.WithFields(logrus.Fields{
		"file_path":       filePath,
		"title":           track.Title,
		"artist":          track.Artist,
		"duration":        track.Duration,
		"processing_time": time.Since(startTime),
	}).Debug("Successfully extracted metadata")

	return track, nil
}

// calculateDuration calculates the duration of an audio file in seconds
func (p *Prober) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return p.durationMP3(filePath)
	case ".flac":
		return p.durationFLAC(filePath)
	case ".wav":
		return p.durationWAV(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (p *Prober) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return p.estimateFromFileSize(path, 192000) // assume 192 kbps = 192000 bps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via STREAMINFO metadata block
func (p *Prober) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read header
func (p *Prober) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	// Approximate using file size; full sample count may require decoding all samples.
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (p *Prober) estimateFromFileSize(path string, bitrate int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}

// IsAudioFile checks if a file is a supported audio format
func (p *Prober) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range p.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
