package routegate

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Rule связывает путь (или префикс с "/*") с требуемой ролью. Пустая роль означает открытый экран.
type Rule struct {
	Path string      `yaml:"path"`
	Role domain.Role `yaml:"role"`
}

type tableFile struct {
	Routes []Rule `yaml:"routes"`
}

type prefixRule struct {
	prefix string
	role   domain.Role
}

// Table — таблица требований ролей. Точный путь важнее префикса, длинный префикс важнее короткого.
// Неизвестные пути открыты.
type Table struct {
	exact    map[domain.Route]domain.Role
	prefixes []prefixRule
}

// NewTable строит таблицу из правил.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{exact: make(map[domain.Route]domain.Role)}
	for _, r := range rules {
		role := domain.Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
		if role != "" && !role.Valid() {
			return nil, fmt.Errorf("route %q: unknown role %q", r.Path, r.Role)
		}
		path := strings.TrimSpace(r.Path)
		if path == "" {
			return nil, fmt.Errorf("route with empty path")
		}
		if strings.HasSuffix(path, "/*") {
			prefix := string(domain.Route(strings.TrimSuffix(path, "/*")).Normalize())
			t.prefixes = append(t.prefixes, prefixRule{prefix: prefix, role: role})
			continue
		}
		t.exact[domain.Route(path).Normalize()] = role
	}
	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].prefix) > len(t.prefixes[j].prefix)
	})
	return t, nil
}

// DefaultTable повторяет маршруты магазина: админ-панель требует роль admin, остальное открыто.
func DefaultTable() *Table {
	t, err := NewTable([]Rule{
		{Path: string(domain.RouteAdminDashboard), Role: domain.RoleAdmin},
		{Path: string(domain.RouteAdminProducts), Role: domain.RoleAdmin},
		{Path: string(domain.RouteAdminUsers), Role: domain.RoleAdmin},
		{Path: "/admin/*", Role: domain.RoleAdmin},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable читает таблицу в формате YAML:
//
//	routes:
//	  - path: /admin/*
//	    role: admin
func LoadTable(r io.Reader) (*Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode route table: %w", err)
	}
	return NewTable(f.Routes)
}

// LoadTableFile читает таблицу из файла.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open route table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// RequiredRole возвращает роль, требуемую для пути.
func (t *Table) RequiredRole(path domain.Route) domain.Role {
	if role, ok := t.exact[path]; ok {
		return role
	}
	p := string(path)
	for _, pr := range t.prefixes {
		if p == pr.prefix || strings.HasPrefix(p, pr.prefix+"/") || pr.prefix == "/" {
			return pr.role
		}
	}
	return ""
}
