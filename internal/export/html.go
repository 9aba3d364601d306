// Package export turns a project's file list into shippable artifacts: a
// standalone HTML document with every stylesheet and script inlined, and a
// zip archive of the raw files.
package export

import (
	"fmt"
	"strings"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

const missingEntryPlaceholder = "<h1>No index.html found</h1>"

// StandaloneHTML inlines every .css file as a <style> block before </head>
// and every .js file as a module script before </body> of the first .html
// file. A project without an HTML entry yields a placeholder document, not
// an error.
func StandaloneHTML(files []types.FileNode) string {
	var entry *types.FileNode
	for i := range files {
		if strings.HasSuffix(files[i].Name, "html") {
			entry = &files[i]
			break
		}
	}
	if entry == nil {
		logging.Export("StandaloneHTML: no HTML entry among %d files", len(files))
		return missingEntryPlaceholder
	}

	content := entry.Content
	for _, f := range files {
		if strings.HasSuffix(f.Name, "css") {
			content = strings.Replace(content, "</head>", fmt.Sprintf("<style>%s</style></head>", f.Content), 1)
		}
	}
	for _, f := range files {
		if strings.HasSuffix(f.Name, "js") {
			content = strings.Replace(content, "</body>", fmt.Sprintf("<script type=\"module\">%s</script></body>", f.Content), 1)
		}
	}

	logging.Export("StandaloneHTML: built %d bytes from %d files", len(content), len(files))
	return content
}
