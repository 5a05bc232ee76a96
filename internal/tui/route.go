package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// Screen names a top level view.
type Screen string

const (
	ScreenList Screen = "list"
	ScreenForm Screen = "form"
)

// Route selects the screen the program opens on.
type Route struct {
	Screen Screen
	// ID is the record identifier for the form; calificacion.NewSentinel selects create.
	ID string
}

// ParseRoute accepts "/", "/calificaciones/nuevo" and "/calificaciones/{id}", with or
// without a trailing slash. An empty path is the list.
func ParseRoute(path string) (Route, error) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" {
		return Route{Screen: ScreenList}, nil
	}
	parts := strings.Split(p, "/")
	if parts[0] != "calificaciones" {
		return Route{}, fmt.Errorf("ruta desconocida %q", path)
	}
	switch len(parts) {
	case 1:
		return Route{Screen: ScreenList}, nil
	case 2:
		id, err := url.PathUnescape(parts[1])
		if err != nil || strings.TrimSpace(id) == "" {
			return Route{}, fmt.Errorf("ruta desconocida %q", path)
		}
		return Route{Screen: ScreenForm, ID: id}, nil
	}
	return Route{}, fmt.Errorf("ruta desconocida %q", path)
}

// String renders the route in its canonical path form.
func (r Route) String() string {
	if r.Screen == ScreenForm {
		return "/" + calificacion.ItemPath(r.ID)
	}
	return "/"
}
