package trv

import (
	"fmt"
	"strings"
)

// filter is one element of a query's FILTER block. Leaf filters render as
// <OP name=".." value=".."/>; group filters (op "AND"/"OR") render their
// children nested.
type filter struct {
	op       string
	name     string
	value    string
	children []filter
}

func leaf(op, name, value string) filter {
	return filter{op: op, name: name, value: value}
}

func group(op string, children ...filter) filter {
	return filter{op: op, children: children}
}

// query describes one upstream request: a single object type with optional
// filters, a result limit, and INCLUDE projections.
type query struct {
	objectType    string
	schemaVersion string
	limit         int
	filters       []filter
	includes      []string
}

// xml renders the full request document, authentication key included.
func (q query) xml(apiKey string) string {
	var b strings.Builder
	b.WriteString(`<REQUEST><LOGIN authenticationkey="`)
	b.WriteString(xmlEscape(apiKey))
	b.WriteString(`"/><QUERY objecttype="`)
	b.WriteString(xmlEscape(q.objectType))
	b.WriteString(`" schemaversion="`)
	b.WriteString(xmlEscape(q.schemaVersion))
	b.WriteString(`"`)
	if q.limit > 0 {
		fmt.Fprintf(&b, ` limit="%d"`, q.limit)
	}
	b.WriteString(">")
	if len(q.filters) > 0 {
		b.WriteString("<FILTER>")
		for _, f := range q.filters {
			writeFilter(&b, f)
		}
		b.WriteString("</FILTER>")
	}
	for _, inc := range q.includes {
		b.WriteString("<INCLUDE>")
		b.WriteString(xmlEscape(inc))
		b.WriteString("</INCLUDE>")
	}
	b.WriteString("</QUERY></REQUEST>")
	return b.String()
}

func writeFilter(b *strings.Builder, f filter) {
	if len(f.children) > 0 {
		b.WriteString("<")
		b.WriteString(f.op)
		b.WriteString(">")
		for _, c := range f.children {
			writeFilter(b, c)
		}
		b.WriteString("</")
		b.WriteString(f.op)
		b.WriteString(">")
		return
	}
	b.WriteString("<")
	b.WriteString(f.op)
	b.WriteString(` name="`)
	b.WriteString(xmlEscape(f.name))
	b.WriteString(`" value="`)
	b.WriteString(xmlEscape(f.value))
	b.WriteString(`"/>`)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlEscaper.Replace(s)
}

// dateAddExpr renders the server-side relative-time macro for a lookback of
// the given number of minutes, e.g. 2880 → "$dateadd(-2.00:00:00)".
func dateAddExpr(minutes int) string {
	if minutes < 0 {
		minutes = -minutes
	}
	days := minutes / (24 * 60)
	rem := minutes % (24 * 60)
	return fmt.Sprintf("$dateadd(-%d.%02d:%02d:00)", days, rem/60, rem%60)
}
