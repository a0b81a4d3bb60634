// Package templates renders the HTMX fragments served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/a-h/templ"
)

// statusClass maps an import status to its badge style.
func statusClass(st core.ImportStatus) string {
	switch st {
	case core.StatusCompleted:
		return "bg-green-100 text-green-800"
	case core.StatusFailed:
		return "bg-red-100 text-red-800"
	case core.StatusPending:
		return "bg-gray-100 text-gray-800"
	default:
		return "bg-blue-100 text-blue-800"
	}
}

// ImportStatus renders the live status card of an import. While the import
// is running the card polls itself every two seconds.
func ImportStatus(p core.ImportProgress) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<div id="import-status" class="rounded border p-4"`)
		if !p.Status.Terminal() {
			fmt.Fprintf(&b, ` hx-get="/imports/%s/status" hx-trigger="every 2s" hx-swap="outerHTML"`,
				templ.EscapeString(p.ImportID))
		}
		b.WriteString(`>`)

		fmt.Fprintf(&b, `<span class="rounded px-2 py-1 text-xs font-medium %s">%s</span>`,
			statusClass(p.Status), templ.EscapeString(p.Status.String()))

		fmt.Fprintf(&b, `<div class="mt-2 h-2 w-full rounded bg-gray-200"><div class="h-2 rounded bg-blue-600" style="width: %d%%"></div></div>`,
			p.Percent)
		fmt.Fprintf(&b, `<p class="mt-2 text-sm">%d / %d rows processed (%d%%)</p>`,
			p.ProcessedRows, p.TotalRows, p.Percent)
		fmt.Fprintf(&b, `<dl class="mt-2 grid grid-cols-3 text-sm"><dt>Success</dt><dd>%d</dd><dt>Warnings</dt><dd>%d</dd><dt>Errors</dt><dd>%d</dd></dl>`,
			p.SuccessCount, p.WarningCount, p.ErrorCount)

		if p.ErrorMessage != nil && *p.ErrorMessage != "" {
			fmt.Fprintf(&b, `<p class="mt-2 text-sm text-red-700">%s</p>`, templ.EscapeString(*p.ErrorMessage))
		}
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders an error message with its suggested action and code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="rounded border border-red-300 bg-red-50 p-4 text-sm text-red-800" role="alert">`)
		fmt.Fprintf(&b, `<p class="font-medium">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p>%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="text-xs text-red-600">Code: %s</p>`, templ.EscapeString(code))
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
