// Package templates holds the server-rendered pages.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// IndexPage is the fallback landing page, rendered when no static
// index.html is deployed.
func IndexPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, indexHTML)
		return err
	})
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8"/>
	<title>audiofetch</title>
</head>
<body>
	<h1>audiofetch</h1>
	<p>Submit a YouTube URL and receive an mp3 with progress updates.</p>
	<ul>
		<li><code>GET /ws/download?url=&amp;maxsize=</code> &mdash; streaming download</li>
		<li><code>POST /api/download/url</code> &mdash; plain download</li>
		<li><code>GET /api/download/status/{task_id}</code> &mdash; job status</li>
		<li><code>GET /api/platforms</code> &mdash; supported platforms</li>
	</ul>
	<p>Deploy a custom page as static/index.html to replace this one.</p>
</body>
</html>
`
