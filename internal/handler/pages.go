package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/soiree/internal/middleware"
	"github.com/hitoshi/soiree/internal/model"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static/*
var staticFS embed.FS

// page は1画面分のテンプレートと表示設定。
type page struct {
	file    string
	heading string
	nav     bool
	admin   bool
}

// pages はパスごとの画面。/login 以外はサイトゲートの内側に置く。
var pages = map[string]page{
	"/":                 {file: "home.html", nav: true},
	"/login":            {file: "login.html", heading: "Connexion"},
	"/dashboard":        {file: "dashboard.html", heading: "Dashboard"},
	"/messages":         {file: "messages.html", heading: "Messages", nav: true},
	"/qui-ramene":       {file: "bring.html", heading: "Qui ramène ?", nav: true},
	"/qui-ramene/admin": {file: "bring.html", heading: "Qui ramène ? (admin)", nav: true, admin: true},
	"/roulette":         {file: "roulette.html", heading: "Roulette", nav: true},
	"/roulette/admin":   {file: "roulette.html", heading: "Roulette (admin)", nav: true, admin: true},
	"/musique":          {file: "music.html", heading: "Musique", nav: true},
	"/rsvp":             {file: "rsvp.html", heading: "Présence", nav: true},
	"/infos":            {file: "infos.html", heading: "Infos", nav: true},
	"/reglement":        {file: "reglement.html", heading: "Règlement", nav: true},
}

// Article は règlement の1条。
type Article struct {
	Title string
	Lines []string
}

var articles = []Article{
	{"Capacité et sécurité", []string{
		"Les issues de secours doivent rester dégagées en permanence.",
		"Il est interdit d’introduire des matières dangereuses, inflammables ou explosives.",
	}},
	{"Niveau sonore", []string{
		"Il est interdit de diffuser de la musique à l’extérieur.",
		"Les ouvrants devront rester fermés dès 23h.",
	}},
	{"Installations électriques", []string{
		"Il est interdit de modifier les installations électriques ou de forcer les dispositifs de sécurité.",
	}},
	{"Propreté et remise en état", []string{
		"La salle, les sanitaires, la cuisine et les abords doivent être laissés propres.",
		"Les déchets doivent être triés et déposés dans les containers prévus.",
	}},
	{"Interdictions diverses", []string{
		"Il est interdit de fumer et de vapoter à l’intérieur de la salle.",
		"Toute décoration doit être retirée sans dégradation des murs et équipements.",
	}},
	{"Scène", []string{"L’utilisation de la scène est strictement INTERDITE."}},
}

// pageData はテンプレートに渡す値。
type pageData struct {
	Title      string
	Heading    string
	Page       string
	Nav        bool
	Admin      bool
	EventDate  string
	MapURL     string
	From       string
	Categories []model.BringCategory
	Articles   []Article
}

// PageHandler は埋め込みテンプレートからHTML画面を描画する。
type PageHandler struct {
	info      EventInfo
	templates map[string]*template.Template
}

// NewPageHandler はテンプレートを読み込んでPageHandlerを生成する。
func NewPageHandler(info EventInfo) (*PageHandler, error) {
	templates := make(map[string]*template.Template, len(pages))
	for path, p := range pages {
		tmpl, err := template.ParseFS(templateFS, "web/templates/layout.html", "web/templates/"+p.file)
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s の読み込みに失敗しました: %w", p.file, err)
		}
		templates[path] = tmpl
	}
	return &PageHandler{info: info, templates: templates}, nil
}

// Paths は登録された画面のパス一覧を返す。
func (h *PageHandler) Paths() []string {
	paths := make([]string, 0, len(pages))
	for path := range pages {
		paths = append(paths, path)
	}
	return paths
}

// ServeHTTP はリクエストパスに対応する画面を描画する。
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := pages[r.URL.Path]
	tmpl := h.templates[r.URL.Path]
	if !ok || tmpl == nil {
		http.NotFound(w, r)
		return
	}

	data := pageData{
		Title:      h.info.Title,
		Heading:    p.heading,
		Page:       r.URL.Path,
		Nav:        p.nav,
		Admin:      p.admin,
		EventDate:  h.info.EventDate,
		MapURL:     h.info.MapURL,
		Categories: model.BringCategories,
		Articles:   articles,
	}
	if r.URL.Path == middleware.LoginPath {
		data.From = middleware.SafeRedirectTarget(r.URL.Query().Get("from"))
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// StaticHandler は埋め込みの静的ファイルを /static/ 配下で配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
