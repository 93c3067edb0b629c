package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/pricetrace/internal/domain/model"
	"github.com/okian/pricetrace/internal/stream"
	"github.com/okian/pricetrace/pkg/logger"
)

// Streaming media types.
const (
	mediaJSON   = "application/json"
	mediaNDJSON = "application/x-ndjson"
	mediaSSE    = "text/event-stream"
)

type streamFormat int

const (
	formatJSONArray streamFormat = iota
	formatNDJSON
	formatSSE
)

func (f streamFormat) contentType() string {
	switch f {
	case formatNDJSON:
		return mediaNDJSON
	case formatSSE:
		return mediaSSE + "; charset=utf-8"
	default:
		return mediaJSON + "; charset=utf-8"
	}
}

// negotiate picks the highest weighted media type in Accept that it can
// render. Ties keep header order, q=0 excludes a type, and anything
// unrecognised falls back to a JSON array.
func negotiate(accept string) streamFormat {
	type candidate struct {
		format streamFormat
		q      float64
	}
	var candidates []candidate
	for _, part := range strings.Split(accept, ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		var f streamFormat
		switch mt {
		case mediaNDJSON, "application/stream+json":
			f = formatNDJSON
		case mediaSSE:
			f = formatSSE
		case mediaJSON:
			f = formatJSONArray
		default:
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed < 0 || parsed > 1 {
				continue
			}
			q = parsed
		}
		if q == 0 {
			continue
		}
		candidates = append(candidates, candidate{format: f, q: q})
	}
	if len(candidates) == 0 {
		return formatJSONArray
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].q > candidates[j].q })
	return candidates[0].format
}

// streamWriter renders signals in one of the streaming formats and flushes
// after every element.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	format  streamFormat
	started bool
	count   int
}

func newStreamWriter(w http.ResponseWriter, format streamFormat) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w), format: format}
}

func (sw *streamWriter) begin() error {
	if sw.started {
		return nil
	}
	sw.started = true
	h := sw.w.Header()
	h.Set("Content-Type", sw.format.contentType())
	if sw.format == formatSSE {
		h.Set("Cache-Control", "no-cache")
	}
	sw.w.WriteHeader(http.StatusOK)
	if sw.format == formatJSONArray {
		if _, err := sw.w.Write([]byte("[")); err != nil {
			return err
		}
	}
	return nil
}

func (sw *streamWriter) next(r model.Restaurant) error {
	if err := sw.begin(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	var frame []byte
	switch sw.format {
	case formatNDJSON:
		frame = append(data, '\n')
	case formatSSE:
		frame = append(append([]byte("data:"), data...), '\n', '\n')
	default:
		if sw.count > 0 {
			frame = append([]byte(","), data...)
		} else {
			frame = data
		}
	}
	sw.count++

	if _, err := sw.w.Write(frame); err != nil {
		return err
	}
	return sw.flush()
}

func (sw *streamWriter) complete() error {
	if err := sw.begin(); err != nil {
		return err
	}
	if sw.format == formatJSONArray {
		if _, err := sw.w.Write([]byte("]")); err != nil {
			return err
		}
	}
	return sw.flush()
}

// failSSE writes a terminal error event.
func (sw *streamWriter) failSSE(code string, err error) {
	data, _ := json.Marshal(errorResponse{Code: code, Message: err.Error()})
	frame := append(append([]byte("event:error\ndata:"), data...), '\n', '\n')
	_, _ = sw.w.Write(frame)
	_ = sw.flush()
}

func (sw *streamWriter) flush() error {
	err := sw.rc.Flush()
	if errors.Is(err, http.ErrNotSupported) {
		return nil
	}
	return err
}

// serveStream subscribes to st with the request context and writes it to w.
// An error before the first element becomes a JSON error response. An error
// after it ends an SSE stream with an error event and aborts other formats so
// the client sees a truncated body rather than a well-formed one.
func serveStream(w http.ResponseWriter, r *http.Request, st *stream.Stream[model.Restaurant], op string, log logger.Logger) {
	ctx := r.Context()
	sw := newStreamWriter(w, negotiate(r.Header.Get("Accept")))

	for sig := range st.Subscribe(ctx) {
		switch sig.Kind {
		case stream.KindNext:
			if err := sw.next(sig.Value); err != nil {
				log.Warn(ctx, "stream write failed", logger.String("op", op), logger.Error(err))
				return
			}
		case stream.KindComplete:
			if err := sw.complete(); err != nil {
				log.Warn(ctx, "stream write failed", logger.String("op", op), logger.Error(err))
			}
			return
		case stream.KindError:
			status, code := classify(sig.Err)
			if !sw.started {
				writeError(w, status, code, Wrap(op, sig.Err))
				return
			}
			log.Error(ctx, "stream failed after first element", logger.String("op", op), logger.Error(sig.Err))
			if sw.format == formatSSE {
				sw.failSSE(code, Wrap(op, sig.Err))
				return
			}
			panic(http.ErrAbortHandler)
		}
	}
	// Closed without a terminal signal: the client went away.
	log.Debug(ctx, "stream abandoned by client", logger.String("op", op))
}
