package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "mediagraph"

// Fields the handler sets itself. Attributes with these keys are stored
// with an ATTR_ prefix instead of overwriting them.
var reservedFields = map[string]bool{
	"MESSAGE":           true,
	"PRIORITY":          true,
	"SYSLOG_IDENTIFIER": true,
	"CODE_FUNC":         true,
}

// JournalHandler is a slog.Handler that sends records to the systemd
// journal. Attribute keys become upper-case journal fields, so a renderer
// logging "renderer_id" can be filtered with RENDERER_ID=<id>.
type JournalHandler struct {
	level slog.Leveler
	// prefix is the joined group path for attributes added from here on.
	prefix string
	fields map[string]string
	send   func(message string, priority journal.Priority, fields map[string]string) error
}

// NewJournalHandler creates a journal handler gated by level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fields: map[string]string{}, send: journal.Send}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority, fields := h.entry(r)
	if err := h.send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "journal send failed: %v\n", err)
		return err
	}
	return nil
}

func (h *JournalHandler) entry(r slog.Record) (journal.Priority, map[string]string) {
	priority := journalPriority(r.Level)
	fields := make(map[string]string, len(h.fields)+r.NumAttrs()+3)
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(attr slog.Attr) bool {
		addField(fields, h.prefix, attr)
		return true
	})
	fields["MESSAGE"] = r.Message
	fields["PRIORITY"] = strconv.Itoa(int(priority))
	fields["SYSLOG_IDENTIFIER"] = SyslogIdentifier
	return priority, fields
}

// WithAttrs returns a handler that adds attrs to every entry.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, attr := range attrs {
		addField(next.fields, next.prefix, attr)
	}
	return next
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = joinKey(h.prefix, fieldName(name))
	return next
}

func (h *JournalHandler) clone() *JournalHandler {
	fields := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		fields[k] = v
	}
	return &JournalHandler{level: h.level, prefix: h.prefix, fields: fields, send: h.send}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func addField(fields map[string]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := joinKey(prefix, fieldName(attr.Key))

	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			addField(fields, key, a)
		}
		return
	}
	if key == "" {
		return
	}
	if reservedFields[key] {
		key = "ATTR_" + key
	}

	switch attr.Value.Kind() {
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		fields[key] = attr.Value.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = attr.Value.String()
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "_" + key
	}
}

// fieldName turns an attribute key into a valid journal field name:
// upper-case letters, digits and underscores, not starting with an
// underscore or a digit.
func fieldName(key string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(key) {
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "F_" + name
	}
	return name
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
