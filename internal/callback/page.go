package callback

import (
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

type page struct {
	Title    string
	Message  string
	Note     string
	Redirect string
	Delay    int
}

// RefreshTag возвращает на страницу входа через Delay секунд
func (p page) RefreshTag() template.HTML {
	if p.Redirect == "" {
		return ""
	}
	return template.HTML(fmt.Sprintf(`<meta http-equiv="refresh" content="%d;url=%s">`,
		p.Delay, template.HTMLEscapeString(p.Redirect)))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
{{.RefreshTag}}
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 32rem; margin: 4rem auto; text-align: center; color: #222; }
p.note { color: #777; font-size: 0.9rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{- if .Message}}
<p>{{.Message}}</p>
{{- end}}
{{- if .Note}}
<p class="note">{{.Note}}</p>
{{- end}}
</body>
</html>
`))

func (s *Server) render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		s.logger.Error("callback page render failed", zap.Error(err))
	}
}
