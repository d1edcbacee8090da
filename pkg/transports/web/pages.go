package web

import (
	"net/http"
	"net/url"
	"strings"
)

func (t *Transport) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writePage(w, loginPage)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(r.PostForm.Get("username"))
		if name == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     usernameCookie,
			Value:    url.QueryEscape(name),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/index", http.StatusFound)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (t *Transport) handleIndex(w http.ResponseWriter, r *http.Request) {
	if user := username(r); user == "" || user == guestUser {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	writePage(w, indexPage)
}

func writePage(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

const loginPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>MCP Chat - Login</title></head>
<body>
<form method="post" action="/login">
  <label for="username">Username</label>
  <input id="username" name="username" autofocus required>
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`

const indexPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>MCP Chat</title></head>
<body>
<div id="log"></div>
<form id="chat">
  <select id="provider"></select>
  <input id="model" placeholder="model (optional)">
  <select id="connection"><option value="">(no connection)</option></select>
  <label><input type="checkbox" id="use_mcp" checked> tools</label>
  <input id="text" autocomplete="off">
  <button type="submit">Send</button>
</form>
<script>
const log = document.getElementById("log");
let current = null;
function line(cls, text) {
  const p = document.createElement("pre");
  p.className = cls;
  p.textContent = text;
  log.appendChild(p);
  return p;
}
fetch("/api/ui-config").then(r => r.json()).then(cfg => {
  for (const p of cfg.providers || []) {
    document.getElementById("provider").add(new Option(p, p, p === cfg.default_provider, p === cfg.default_provider));
  }
  for (const c of cfg.db_connections || []) {
    const name = typeof c === "string" ? c : (c.name || JSON.stringify(c));
    document.getElementById("connection").add(new Option(name, name));
  }
}).catch(() => {});
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (m) => {
  const ev = JSON.parse(m.data);
  if (ev.type === "response") {
    if (!current) current = line("assistant", "");
    current.textContent += ev.message;
  } else {
    current = null;
    line(ev.type, typeof ev.message === "string" ? ev.message : JSON.stringify(ev.message));
  }
};
ws.onclose = () => line("error", "connection closed");
document.getElementById("chat").onsubmit = (e) => {
  e.preventDefault();
  const text = document.getElementById("text");
  if (!text.value.trim()) return;
  line("user", text.value);
  current = null;
  ws.send(JSON.stringify({
    text: text.value,
    use_mcp: document.getElementById("use_mcp").checked,
    llm_provider: document.getElementById("provider").value,
    llm_model: document.getElementById("model").value,
    db_connection_name: document.getElementById("connection").value
  }));
  text.value = "";
};
</script>
</body>
</html>
`
