package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>docqa</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #0f172a; color: #e2e8f0; display: flex; justify-content: center; padding-top: 10vh; }
  .card { max-width: 640px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2rem; }
  h1 { margin: 0 0 0.5rem; }
  .subtitle { color: #94a3b8; }
  pre { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; overflow-x: auto; }
  code, .endpoint { font-family: "SF Mono", Menlo, monospace; color: #a5b4fc; }
</style>
</head>
<body>
<div class="card">
  <h1>docqa</h1>
  <p class="subtitle">Grounded question answering over a private document collection.</p>
  <p><span class="endpoint">POST /api/chat</span> ask a question (set "stream": true for Server-Sent Events)</p>
  <p><span class="endpoint">POST /api/documents</span> upload a PDF, text or markdown file</p>
  <p><span class="endpoint">GET /api/documents</span> list documents</p>
  <p><span class="endpoint">/mcp</span> MCP Streamable HTTP (tools: ask, search_passages, list_documents, get_document, get_index_status)</p>
  <p><a class="endpoint" href="/health">/health</a> vector index connectivity</p>
  <pre><code>curl -F file=@handbook.pdf localhost:8080/api/documents
curl -d '{"question":"What is the leave policy?"}' localhost:8080/api/chat</code></pre>
</div>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
