package app

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"
)

const (
	layoutGlob  = "templates/layouts/*.html"
	partialGlob = "templates/partials/*.html"
)

// TemplateRenderer is a gin HTML renderer over a templates/ tree:
//
//	templates/
//	  layouts/   page skeletons, e.g. base.html
//	  partials/  shared fragments
//	  <module>/  pages, addressed as "<module>/<file>.html"
//
// Every page is parsed on its own clone of layouts and partials so pages
// can redefine the same blocks. In debug mode the tree is re-parsed on every
// render.
type TemplateRenderer struct {
	fsys    fs.FS
	funcs   template.FuncMap
	debug   bool
	compiled map[string]*template.Template
}

var _ render.HTMLRender = (*TemplateRenderer)(nil)

// NewTemplateRenderer parses fsys eagerly unless debug is set.
func NewTemplateRenderer(fsys fs.FS, debug bool) (*TemplateRenderer, error) {
	r := &TemplateRenderer{fsys: fsys, funcs: templateFuncMap(), debug: debug}
	if !debug {
		pages, err := r.parse()
		if err != nil {
			return nil, fmt.Errorf("parse templates: %w", err)
		}
		r.compiled = pages
	}
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *TemplateRenderer) Instance(name string, data any) render.Render {
	pages := r.compiled
	if r.debug {
		var err error
		if pages, err = r.parse(); err != nil {
			return &HTMLInstance{Name: name, err: err}
		}
	}
	return &HTMLInstance{Template: pages[name], Name: name, Data: data}
}

func (r *TemplateRenderer) parse() (map[string]*template.Template, error) {
	base, err := r.parseBase()
	if err != nil {
		return nil, err
	}
	files, err := r.pageFiles()
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base for %s: %w", f, err)
		}
		name := strings.TrimPrefix(f, "templates/")
		if err := parseFile(t.New(name), r.fsys, f); err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return pages, nil
}

func (r *TemplateRenderer) parseBase() (*template.Template, error) {
	base := template.New("").Funcs(r.funcs)
	for _, glob := range []string{layoutGlob, partialGlob} {
		files, err := fs.Glob(r.fsys, glob)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", glob, err)
		}
		for _, f := range files {
			if err := parseFile(base.New(f), r.fsys, f); err != nil {
				return nil, err
			}
		}
	}
	return base, nil
}

func parseFile(t *template.Template, fsys fs.FS, path string) error {
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := t.Parse(string(content)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// pageFiles lists every .html under templates/ outside layouts/ and partials/.
func (r *TemplateRenderer) pageFiles() ([]string, error) {
	var pages []string
	err := fs.WalkDir(r.fsys, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		rel := strings.TrimPrefix(path, "templates/")
		if strings.HasPrefix(rel, "layouts/") || strings.HasPrefix(rel, "partials/") {
			return nil
		}
		pages = append(pages, path)
		return nil
	})
	return pages, err
}

func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		// json embeds v in a script context.
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return template.JS(b)
		},
		"formatDate":  formatDate,
		"dateValue":   dateValue,
		"label":       label,
		"percent":     percent,
		"now":         func() time.Time { return time.Now().UTC() },
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"seq":         seq,
		"currentYear": func() int { return time.Now().Year() },
	}
}

// formatDate renders a date for display. It accepts time.Time or *time.Time
// and prints nothing for nil or zero values.
func formatDate(v any) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return ""
		}
		t = *x
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// dateValue formats t for an <input type="date">.
func dateValue(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

// label turns an enum value such as "in_progress" into "In progress".
func label(v any) string {
	s := strings.ReplaceAll(fmt.Sprint(v), "_", " ")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// percent renders a 0..1 ratio as a whole percentage.
func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

func seq(start, end int) []int {
	if start > end {
		return nil
	}
	s := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		s = append(s, i)
	}
	return s
}

// HTMLInstance renders one page.
type HTMLInstance struct {
	Template *template.Template
	Name     string
	Data     any
	err      error
}

const htmlContentType = "text/html; charset=utf-8"

// Render implements render.Render.
func (h *HTMLInstance) Render(w http.ResponseWriter) error {
	h.WriteContentType(w)
	if h.err != nil {
		return h.err
	}
	if h.Template == nil {
		return fmt.Errorf("template %q not found", h.Name)
	}
	return h.Template.ExecuteTemplate(w, h.Name, h.Data)
}

// WriteContentType implements render.Render without overriding an explicit
// Content-Type.
func (h *HTMLInstance) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if len(header["Content-Type"]) == 0 {
		header["Content-Type"] = []string{htmlContentType}
	}
}
