package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"assetdesk/internal/models"
)

// Kind selects which collection a report draws from.
type Kind string

const (
	KindResources Kind = "resources"
	KindLoans     Kind = "loans"
)

// Definition describes one catalog entry. State and Category narrow
// the collection; WarrantyExpired keeps only resources whose warranty
// date is on or before the render date.
type Definition struct {
	Slug            string `yaml:"slug"`
	Title           string `yaml:"title"`
	Kind            Kind   `yaml:"kind"`
	State           string `yaml:"state,omitempty"`
	Category        string `yaml:"category,omitempty"`
	WarrantyExpired bool   `yaml:"warrantyExpired,omitempty"`
}

// Catalog is the ordered set of available reports, addressable by slug.
type Catalog struct {
	defs []Definition
}

func builtins() []Definition {
	return []Definition{
		{Slug: "inventario-general", Title: "Inventario General", Kind: KindResources},
		{Slug: "recursos-bodega", Title: "Recursos En Bodega", Kind: KindResources, State: "bodega"},
		{Slug: "recursos-asignados", Title: "Recursos Asignados", Kind: KindResources, State: "asignado"},
		{Slug: "recursos-mantenimiento", Title: "Recursos En Mantenimiento", Kind: KindResources, State: "mantenimiento"},
		{Slug: "recursos-computacion", Title: "Recursos De Computación", Kind: KindResources, Category: "Computacion"},
		{Slug: "garantia-vencida", Title: "Recursos Con Garantía Vencida", Kind: KindResources, WarrantyExpired: true},
		{Slug: "prestamos-activos", Title: "Préstamos Activos", Kind: KindLoans, State: "activo"},
		{Slug: "prestamos-atrasados", Title: "Préstamos Atrasados", Kind: KindLoans, State: "atrasado"},
		{Slug: "prestamos-devueltos", Title: "Préstamos Devueltos", Kind: KindLoans, State: "devuelto"},
	}
}

// NewCatalog returns the built-in catalog, optionally merged with
// definitions from a YAML file. File entries override built-ins with
// the same slug; unknown slugs append in file order.
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{defs: builtins()}
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report catalog: %w", err)
	}
	var extra []Definition
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("parse report catalog: %w", err)
	}
	for _, d := range extra {
		if err := d.validate(); err != nil {
			return nil, err
		}
		c.upsert(d)
	}
	return c, nil
}

func (d Definition) validate() error {
	if d.Slug == "" || d.Title == "" {
		return fmt.Errorf("report definition needs slug and title, got %+v", d)
	}
	if d.Kind != KindResources && d.Kind != KindLoans {
		return fmt.Errorf("report %q: unknown kind %q", d.Slug, d.Kind)
	}
	return nil
}

func (c *Catalog) upsert(d Definition) {
	for i := range c.defs {
		if c.defs[i].Slug == d.Slug {
			c.defs[i] = d
			return
		}
	}
	c.defs = append(c.defs, d)
}

// List returns the catalog entries in order.
func (c *Catalog) List() []Definition {
	return append([]Definition(nil), c.defs...)
}

// Lookup finds a definition by slug.
func (c *Catalog) Lookup(slug string) (Definition, bool) {
	for _, d := range c.defs {
		if d.Slug == slug {
			return d, true
		}
	}
	return Definition{}, false
}

// Dataset carries the collections a report renders from.
type Dataset struct {
	Resources []models.Resource
	Loans     []models.Loan
}

// Export is a rendered report ready to download. Empty CSV means the
// definition matched no records.
type Export struct {
	Filename string
	CSV      string
}

// Render applies the definition's filters to the dataset and produces
// the CSV document and its download filename, dated at now.
func Render(def Definition, data Dataset, now time.Time) Export {
	var doc string
	switch def.Kind {
	case KindLoans:
		doc = RenderCSV(loanHeader, LoanRows(filterLoans(def, data.Loans)))
	default:
		doc = RenderCSV(resourceHeader, ResourceRows(filterResources(def, data.Resources, now)))
	}
	return Export{
		Filename: Filename(def.Title, now.Format("2006-01-02")),
		CSV:      doc,
	}
}

func filterResources(def Definition, in []models.Resource, now time.Time) []models.Resource {
	today := now.Format("2006-01-02")
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		if def.State != "" {
			want, ok := models.ParseResourceState(def.State)
			if !ok || !want.Equal(r.State) {
				continue
			}
		}
		if def.Category != "" && !strings.EqualFold(def.Category, r.Category) {
			continue
		}
		if def.WarrantyExpired {
			if r.WarrantyExpiry == "" || r.WarrantyExpiry > today {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func filterLoans(def Definition, in []models.Loan) []models.Loan {
	if def.State == "" {
		return in
	}
	want, ok := models.ParseLoanState(def.State)
	if !ok {
		return nil
	}
	out := make([]models.Loan, 0, len(in))
	for _, l := range in {
		if want.Equal(l.State) {
			out = append(out, l)
		}
	}
	return out
}
