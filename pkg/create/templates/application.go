package templates

// Requirements is the dependency manifest of a new application.
const Requirements = `# Dependencies of {{.Name}}, installed with
#   pip install --no-cache-dir -r requirements.txt
# before the application is copied into the image. Only this file is present
# at install time, so list packages from an index, not local paths.
`

// Server is the server package of a new application.
const Server = `"""HTTP server of {{.Name}}."""
from http.server import BaseHTTPRequestHandler, HTTPServer


class Handler(BaseHTTPRequestHandler):
    def do_GET(self):
        body = b"{{.Name}}\n"
        self.send_response(200)
        self.send_header("Content-Type", "text/plain")
        self.send_header("Content-Length", str(len(body)))
        self.end_headers()
        self.wfile.write(body)


def serve(host, port):
    HTTPServer((host, port), Handler).serve_forever()
`

// Config is the config package of a new application.
const Config = `import os

HOST = os.environ.get("HOST", "0.0.0.0")
PORT = int(os.environ.get("PORT", "{{.Port}}"))
`

// Start is the entry point the image runs with python3 ./start.py.
const Start = `import config
import server

if __name__ == "__main__":
    print("{{.Name}} listening on %s:%d" % (config.HOST, config.PORT), flush=True)
    server.serve(config.HOST, config.PORT)
`

// DockerIgnore keeps local state out of the build context.
const DockerIgnore = `.git
**/__pycache__
**/*.pyc
.py2ifile
scripts/
`
