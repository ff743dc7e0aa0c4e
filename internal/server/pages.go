package server

import (
	"html/template"
	"net/http"
)

type redirectPage struct {
	Title     string
	Heading   string
	Message   string
	SessionID string
	DeepLink  string
	WebLink   string
}

// The tg:// link opens the app directly; the t.me link is the fallback when no
// handler is registered for the scheme.
var redirectTemplate = template.Must(template.New("redirect").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;background:#f5f6f8;color:#1f2328;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
main{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(0,0,0,.08);padding:32px;max-width:420px;text-align:center}
a.button{display:inline-block;margin-top:16px;padding:12px 20px;border-radius:8px;background:#2aabee;color:#fff;text-decoration:none}
small{display:block;margin-top:16px;color:#6e7781;word-break:break-all}
</style>
</head>
<body>
<main>
<h1>{{.Heading}}</h1>
<p>{{.Message}}</p>
<a class="button" href="{{.WebLink}}">Return to the bot</a>
{{if .SessionID}}<small>Session: {{.SessionID}}</small>{{end}}
</main>
<script>
(function () {
  var deepLink = {{.DeepLink}};
  var webLink = {{.WebLink}};
  window.location.href = deepLink;
  setTimeout(function () { window.location.href = webLink; }, 1500);
})();
</script>
</body>
</html>
`))

func (s *Server) handleCheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	s.renderRedirect(w, redirectPage{
		Title:     "Payment successful",
		Heading:   "Thank you! Payment received.",
		Message:   "Your songs will appear in the bot in a moment. Redirecting you back to Telegram...",
		SessionID: r.URL.Query().Get("session_id"),
	})
}

func (s *Server) handleCheckoutCancel(w http.ResponseWriter, r *http.Request) {
	s.renderRedirect(w, redirectPage{
		Title:   "Payment cancelled",
		Heading: "Payment cancelled",
		Message: "No money was charged. Redirecting you back to Telegram...",
	})
}

func (s *Server) renderRedirect(w http.ResponseWriter, page redirectPage) {
	page.DeepLink = "tg://resolve?domain=" + s.cfg.BotUsername
	page.WebLink = "https://t.me/" + s.cfg.BotUsername

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := redirectTemplate.Execute(w, page); err != nil {
		s.log.Error("render redirect page", "err", err)
	}
}
