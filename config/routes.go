package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/target/learnhub/internal/domain/access"
	"github.com/target/learnhub/internal/domain/auth"
)

//go:embed routes.yaml
var defaultRoutes []byte

type routeFile struct {
	Login        string        `yaml:"login"`
	Unauthorized string        `yaml:"unauthorized"`
	Public       []publicEntry `yaml:"public"`
	Areas        []areaEntry   `yaml:"areas"`
}

type publicEntry struct {
	Path string `yaml:"path"`
	View string `yaml:"view"`
}

type areaEntry struct {
	Name   string   `yaml:"name"`
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// LoadRouteTable reads the route table from path, or the embedded default when
// path is empty.
func LoadRouteTable(path string) (access.RouteTable, error) {
	if path == "" {
		return ParseRouteTable(bytes.NewReader(defaultRoutes))
	}
	f, err := os.Open(path)
	if err != nil {
		return access.RouteTable{}, fmt.Errorf("open routes file: %w", err)
	}
	defer f.Close()
	return ParseRouteTable(f)
}

// ParseRouteTable decodes and validates a YAML route table.
func ParseRouteTable(r io.Reader) (access.RouteTable, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rf routeFile
	if err := dec.Decode(&rf); err != nil {
		return access.RouteTable{}, fmt.Errorf("decode routes: %w", err)
	}

	table := access.RouteTable{
		LoginPath:        access.CleanPath(rf.Login),
		UnauthorizedPath: access.CleanPath(rf.Unauthorized),
	}
	var errs []error
	for _, p := range rf.Public {
		view, err := parseView(p.View)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table.Public = append(table.Public, access.PublicRoute{Path: access.CleanPath(p.Path), View: view})
	}
	for _, a := range rf.Areas {
		roles := auth.NewRoleSet()
		for _, raw := range a.Roles {
			role, err := auth.ParseRole(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("area %s: %w", a.Name, err))
				continue
			}
			roles[role] = struct{}{}
		}
		table.Areas = append(table.Areas, access.Area{Name: a.Name, Prefix: access.CleanPath(a.Prefix), Roles: roles})
	}
	if err := errors.Join(errs...); err != nil {
		return access.RouteTable{}, err
	}
	if rf.Login == "" || rf.Unauthorized == "" {
		return access.RouteTable{}, errors.New("routes: login and unauthorized paths are required")
	}
	if err := table.Validate(); err != nil {
		return access.RouteTable{}, fmt.Errorf("routes: %w", err)
	}
	return table, nil
}

func parseView(v string) (access.View, error) {
	switch access.View(v) {
	case access.ViewLogin, access.ViewSignup:
		return access.View(v), nil
	default:
		return "", fmt.Errorf("unknown public view %q", v)
	}
}
