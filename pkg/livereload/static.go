package livereload

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/sitebuild/sitebuild/pkg/constants"
)

// staticHandler serves files from root and adds the client script to HTML
// pages. Everything else is delegated to http.FileServer.
type staticHandler struct {
	root http.FileSystem
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}
	if !strings.EqualFold(path.Ext(name), ".html") {
		http.FileServer(h.root).ServeHTTP(w, r)
		return
	}

	f, err := h.root.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	page, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(InjectScript(page)))
}

var scriptTag = []byte(`<script src="` + constants.LiveReloadScriptPath + `"></script>`)

// InjectScript inserts the client script tag before the last </body>. Pages
// without a body end get the tag appended.
func InjectScript(page []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, page...), scriptTag...)
	}
	out := make([]byte, 0, len(page)+len(scriptTag))
	out = append(out, page[:idx]...)
	out = append(out, scriptTag...)
	return append(out, page[idx:]...)
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, clientScript)
}

const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var retry = 1000;

  function refreshStyles(paths) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    Array.prototype.forEach.call(links, function (link) {
      var href = link.getAttribute("href");
      if (!href) return;
      var base = href.split("?")[0];
      var clean = base.replace(/^\//, "");
      var match = paths.some(function (p) {
        p = p.replace(/^\//, "");
        return clean === p || clean.slice(-p.length - 1) === "/" + p;
      });
      if (match) link.setAttribute("href", base + "?livereload=" + Date.now());
    });
  }

  function connect() {
    var ws = new WebSocket(proto + location.host + "` + constants.LiveReloadSocketPath + `");
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "css" && msg.paths) {
        refreshStyles(msg.paths);
      } else {
        location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(connect, retry);
    };
  }

  connect();
})();
`
