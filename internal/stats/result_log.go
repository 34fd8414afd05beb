package stats

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"hypermlp/internal/model"
)

// ResultLog is an append-only text sink with one line per fold run:
//
//	fold; hiddenLayerCount; [n1, n2]; gain; target; window; intensity; trainAccuracy; trainTimeNanos; testTimeNanos; testAccuracy
//
// Every Append is flushed, and synced when the destination supports it,
// before it returns.
type ResultLog struct {
	mu     sync.Mutex
	w      *bufio.Writer
	syncFn func() error
	closer io.Closer
}

func NewResultLog(w io.Writer) *ResultLog {
	log := &ResultLog{w: bufio.NewWriter(w)}
	if s, ok := w.(interface{ Sync() error }); ok {
		log.syncFn = s.Sync
	}
	return log
}

// OpenResultLog appends to path, creating it if needed.
func OpenResultLog(path string) (*ResultLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open result log %s", path)
	}
	log := NewResultLog(file)
	log.closer = file
	return log, nil
}

func (l *ResultLog) Append(ctx context.Context, record model.EvaluationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.w.WriteString(FormatRecord(record) + "\n"); err != nil {
		return errors.Wrap(err, "write result line")
	}
	if err := l.w.Flush(); err != nil {
		return errors.Wrap(err, "flush result log")
	}
	if l.syncFn != nil {
		if err := l.syncFn(); err != nil {
			return errors.Wrap(err, "sync result log")
		}
	}
	return nil
}

func (l *ResultLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		return errors.Wrap(err, "flush result log")
	}
	if l.closer == nil {
		return nil
	}
	return errors.Wrap(l.closer.Close(), "close result log")
}

// FormatRecord renders one result log line.
func FormatRecord(r model.EvaluationRecord) string {
	widths := make([]string, len(r.Config.HiddenLayers))
	for i, w := range r.Config.HiddenLayers {
		widths[i] = strconv.Itoa(w)
	}
	fields := []string{
		strconv.Itoa(r.Fold),
		strconv.Itoa(len(r.Config.HiddenLayers)),
		"[" + strings.Join(widths, ", ") + "]",
		formatFloat(r.Config.Gain),
		formatFloat(r.Config.TargetAccuracy),
		strconv.Itoa(r.Config.StagnationWindow),
		strconv.Itoa(r.Config.MutationIntensity),
		formatFloat(r.TrainAccuracy),
		strconv.FormatInt(r.TrainTime.Nanoseconds(), 10),
		strconv.FormatInt(r.TestTime.Nanoseconds(), 10),
		formatFloat(r.TestAccuracy),
	}
	return strings.Join(fields, "; ")
}

// ParseRecord reads a line written by FormatRecord. Candidate ids, iteration
// and mutation counts are not part of the line.
func ParseRecord(line string) (model.EvaluationRecord, error) {
	fields := strings.Split(strings.TrimSpace(line), "; ")
	if len(fields) != 11 {
		return model.EvaluationRecord{}, errors.Errorf("result line has %d fields, want 11", len(fields))
	}
	var (
		r    model.EvaluationRecord
		errs []error
	)
	atoi := func(s string) int {
		v, err := strconv.Atoi(s)
		errs = append(errs, err)
		return v
	}
	nanos := func(s string) time.Duration {
		v, err := strconv.ParseInt(s, 10, 64)
		errs = append(errs, err)
		return time.Duration(v)
	}
	atof := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		errs = append(errs, err)
		return v
	}
	r.Fold = atoi(fields[0])
	layers := atoi(fields[1])
	inner := strings.TrimSuffix(strings.TrimPrefix(fields[2], "["), "]")
	if inner != "" {
		for _, w := range strings.Split(inner, ", ") {
			r.Config.HiddenLayers = append(r.Config.HiddenLayers, atoi(w))
		}
	}
	r.Config.Gain = atof(fields[3])
	r.Config.TargetAccuracy = atof(fields[4])
	r.Config.StagnationWindow = atoi(fields[5])
	r.Config.MutationIntensity = atoi(fields[6])
	r.TrainAccuracy = atof(fields[7])
	r.TrainTime = nanos(fields[8])
	r.TestTime = nanos(fields[9])
	r.TestAccuracy = atof(fields[10])
	for _, err := range errs {
		if err != nil {
			return model.EvaluationRecord{}, errors.Wrapf(err, "parse result line %q", line)
		}
	}
	if layers != len(r.Config.HiddenLayers) {
		return model.EvaluationRecord{}, errors.Errorf("result line declares %d layers but lists %d", layers, len(r.Config.HiddenLayers))
	}
	return r, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
