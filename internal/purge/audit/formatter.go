package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate is used when audit.file.template is empty
const DefaultTemplate = "{timestamp}\t{zone_id}\t{action}\t{status}\t{files_count}\t{duration}\t{error}"

var validFields = map[string]bool{
	"timestamp":   true,
	"bridge_id":   true,
	"zone_id":     true,
	"action":      true,
	"status":      true,
	"kind":        true,
	"status_code": true,
	"files_count": true,
	"duration":    true,
	"error":       true,
}

// TemplateFormatter renders a Record through a "{field}" template
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	field string
	start int
	end   int
}

// NewTemplateFormatter parses template. Unknown or malformed placeholders are errors.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	var placeholders []placeholder
	for i := 0; i < len(template); {
		start := strings.IndexByte(template[i:], '{')
		if start == -1 {
			break
		}
		start += i

		end := strings.IndexByte(template[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		field := template[start+1 : end]
		if field == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}
		if !validFields[field] {
			return nil, fmt.Errorf("unknown placeholder {%s}", field)
		}

		placeholders = append(placeholders, placeholder{field: field, start: start, end: end + 1})
		i = end + 1
	}

	return &TemplateFormatter{template: template, placeholders: placeholders}, nil
}

// Format renders rec
func (f *TemplateFormatter) Format(rec *Record) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	var b strings.Builder
	prev := 0
	for _, p := range f.placeholders {
		b.WriteString(f.template[prev:p.start])
		b.WriteString(fieldValue(rec, p.field))
		prev = p.end
	}
	b.WriteString(f.template[prev:])
	return b.String()
}

func fieldValue(rec *Record, field string) string {
	switch field {
	case "timestamp":
		return rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	case "bridge_id":
		return quoted(rec.BridgeID)
	case "zone_id":
		return quoted(rec.ZoneID)
	case "action":
		return quoted(rec.Action)
	case "status":
		if rec.Success {
			return "success"
		}
		return "failure"
	case "kind":
		return quoted(rec.Kind)
	case "status_code":
		return strconv.Itoa(rec.StatusCode)
	case "files_count":
		return strconv.Itoa(rec.FilesCount)
	case "duration":
		return formatDuration(rec.Duration)
	case "error":
		return quoted(rec.Error)
	default:
		return "-"
	}
}

// quoted wraps s in double quotes with log-safe escaping; "-" when empty
func quoted(s string) string {
	if s == "" {
		return "-"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return `"` + r.Replace(s) + `"`
}

// formatDuration renders seconds with millisecond precision
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
