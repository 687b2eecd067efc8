package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// runIDWidth is how much of the run id the console prefix shows.
const runIDWidth = 8

// consoleHandler writes one human readable line per record:
//
//	2026-01-02 15:04:05 INFO  [daemon 1b4e28ba] daemonize: message key=value
//
// The stage, run id and component attributes are lifted into the prefix.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	attrs     []slog.Attr
	groups    []string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, qualify(h.groups, attr))
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// qualify bakes the open groups into the key so attrs added before and
// after WithGroup render the same way.
func qualify(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		return attr
	}
	attr.Key = strings.Join(append(append([]string{}, groups...), attr.Key), ".")
	return attr
}

type consoleLine struct {
	stage     string
	runID     string
	component string
	fields    bytes.Buffer
}

func (l *consoleLine) add(key string, value slog.Value) {
	value = value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, member := range value.Group() {
			name := member.Key
			if key != "" {
				name = key + "." + name
			}
			l.add(name, member.Value)
		}
		return
	}
	if key == "" {
		return
	}
	switch key {
	case FieldStage:
		if l.stage == "" {
			l.stage = value.String()
			return
		}
	case FieldRunID:
		if l.runID == "" {
			l.runID = value.String()
			return
		}
	case FieldComponent:
		if l.component == "" {
			l.component = value.String()
			return
		}
	}
	l.fields.WriteByte(' ')
	l.fields.WriteString(key)
	l.fields.WriteByte('=')
	l.fields.WriteString(consoleValue(value))
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var line consoleLine
	for _, attr := range h.attrs {
		line.add(attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		attr = qualify(h.groups, attr)
		line.add(attr.Key, attr.Value)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Format(time.DateTime))
	fmt.Fprintf(&buf, " %-5s ", record.Level.String())
	if line.stage != "" || line.runID != "" {
		buf.WriteByte('[')
		buf.WriteString(strings.TrimSpace(line.stage + " " + shortRunID(line.runID)))
		buf.WriteString("] ")
	}
	if line.component != "" {
		buf.WriteString(line.component)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	buf.Write(line.fields.Bytes())
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func shortRunID(id string) string {
	if len(id) > runIDWidth {
		return id[:runIDWidth]
	}
	return id
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
