// Package edfio loads EDF/EDF+ recordings into analysis sample
// tables. It is the input boundary of the pipeline: the core never
// touches file formats itself.
package edfio

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/calmsense/neurometrics/logging"
	"github.com/calmsense/neurometrics/session"
)

// EDF+ annotation streams are not physiological channels
const annotationLabel = "EDF Annotations"

// header carries the fields needed to size and time-align the sample
// table. The edf library keeps its parsed header private, so the
// fixed-layout fields are decoded here; sample decoding (digital to
// physical calibration) is delegated to the library.
type header struct {
	startTime       time.Time
	headerBytes     int
	dataRecords     int
	recordSeconds   float64
	labels          []string
	samplesPerRecord []int
}

// Load reads an EDF recording into a SampleTable. The sampling rate is
// derived from the header as samples-per-record / record duration; the
// first physiological signal sets the table rate, and signals recorded
// at a different rate are skipped with a warning (the table requires
// one shared rate). Annotation streams are always skipped.
func Load(r io.ReadSeeker) (*session.SampleTable, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.recordSeconds <= 0 {
		return nil, fmt.Errorf("non-positive data record duration")
	}
	if hdr.dataRecords <= 0 {
		return nil, fmt.Errorf("no data records")
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error rewinding input: %w", err)
	}
	reader, err := edf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("error opening recording: %w", err)
	}

	var table *session.SampleTable
	for i, label := range hdr.labels {
		if label == annotationLabel {
			continue
		}

		spr := hdr.samplesPerRecord[i]
		if spr <= 0 {
			logging.Warn("skipping signal with no samples", logging.Fields{"label": label})
			continue
		}
		rate := float64(spr) / hdr.recordSeconds

		if table == nil {
			table = session.NewSampleTable(hdr.startTime, rate)
		} else if rate != table.SampleRate() {
			logging.Warn("skipping signal with mismatched sampling rate", logging.Fields{
				"label":   label,
				"rate_hz": rate,
				"want_hz": table.SampleRate(),
			})
			continue
		}

		samples, err := readSignal(reader, i, hdr.dataRecords*spr)
		if err != nil {
			return nil, fmt.Errorf("error reading signal %q: %w", label, err)
		}
		if err := table.AddChannel(label, samples); err != nil {
			return nil, err
		}
	}

	if table == nil || table.NumChannels() == 0 {
		return nil, fmt.Errorf("recording contains no physiological signals")
	}
	return table, nil
}

func readSignal(reader *edf.Reader, index, numSamples int) ([]float64, error) {
	sig, err := reader.Signal(index)
	if err != nil {
		return nil, err
	}

	samples := make([]float64, numSamples)
	n, err := sig.Read(samples)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n != numSamples {
		return nil, fmt.Errorf("short read: %d of %d samples", n, numSamples)
	}
	return samples, nil
}

// readHeader decodes the fixed 256-byte EDF header plus the per-signal
// label and samples-per-record fields; the remaining per-signal fields
// are skipped.
func readHeader(r io.ReadSeeker) (*header, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}

	b := make([]byte, 256)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr := &header{}

	startDate, err := time.Parse("02.01.06", field(b[168:176]))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(b[176:184]))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.startTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.headerBytes, err = strconv.Atoi(field(b[184:192])); err != nil {
		return nil, fmt.Errorf("error parsing header size: %w", err)
	}
	if hdr.dataRecords, err = strconv.Atoi(field(b[236:244])); err != nil {
		return nil, fmt.Errorf("error parsing data record count: %w", err)
	}
	if hdr.recordSeconds, err = strconv.ParseFloat(field(b[244:252]), 64); err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}

	signalCount, err := strconv.Atoi(field(b[252:256]))
	if err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if signalCount <= 0 {
		return nil, fmt.Errorf("recording declares no signals")
	}

	// The fixed header plus 256 bytes of metadata per signal; a mismatch
	// means the data records would be read from the wrong offset.
	if want := 256 + signalCount*256; hdr.headerBytes != want {
		return nil, fmt.Errorf("header size %d inconsistent with %d signals (want %d)",
			hdr.headerBytes, signalCount, want)
	}

	// Per-signal header layout: labels(16), transducer(80), physical
	// dimension(8), physical min/max(8+8), digital min/max(8+8),
	// prefiltering(80), samples per record(8), reserved(32).
	labels := make([]byte, signalCount*16)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("error reading signal labels: %w", err)
	}
	hdr.labels = make([]string, signalCount)
	for i := range hdr.labels {
		hdr.labels[i] = field(labels[i*16 : (i+1)*16])
	}

	skip := int64(signalCount) * (80 + 8 + 8 + 8 + 8 + 8 + 80)
	if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("error skipping signal metadata: %w", err)
	}

	sprBytes := make([]byte, signalCount*8)
	if _, err := io.ReadFull(r, sprBytes); err != nil {
		return nil, fmt.Errorf("error reading samples per record: %w", err)
	}
	hdr.samplesPerRecord = make([]int, signalCount)
	for i := range hdr.samplesPerRecord {
		spr, err := strconv.Atoi(field(sprBytes[i*8 : (i+1)*8]))
		if err != nil {
			return nil, fmt.Errorf("error parsing samples per record for signal %d: %w", i, err)
		}
		hdr.samplesPerRecord[i] = spr
	}

	return hdr, nil
}

func field(b []byte) string {
	return strings.TrimSpace(string(b))
}
