package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"vipra-store/internal/flash"
	"vipra-store/internal/order"
	"vipra-store/internal/product"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "login", "register"}

type pageData struct {
	Title    string
	Username string
	Messages []flash.Message

	Products   []product.Product
	PaidOrders []order.Order

	Errors       []string
	Next         string
	FormUsername string

	CSRFField template.HTML
}

type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &renderer{pages: pages}, nil
}

// render buffers the page so a template error can still become a 500.
func (rd *renderer) render(w http.ResponseWriter, status int, name string, data pageData) error {
	t, ok := rd.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
