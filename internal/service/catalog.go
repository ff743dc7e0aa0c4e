package service

import (
	"sort"

	"github.com/samber/lo"

	"github.com/digkill/TGSongBot/internal/models"
)

// DefaultPacks maps each purchasable pack to the song credits it grants.
var DefaultPacks = map[string]int{
	"pack_1":  1,
	"pack_5":  5,
	"pack_30": 30,
}

// Catalog is the fixed, read-only pack catalog.
type Catalog struct {
	packs map[string]int
}

func NewCatalog(packs map[string]int) *Catalog {
	copied := make(map[string]int, len(packs))
	for name, credits := range packs {
		if credits > 0 {
			copied[name] = credits
		}
	}
	return &Catalog{packs: copied}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultPacks)
}

func (c *Catalog) Credits(pack string) (int, bool) {
	credits, ok := c.packs[pack]
	return credits, ok
}

// Packs lists the catalog ordered by credits, then name.
func (c *Catalog) Packs() []models.Pack {
	packs := lo.MapToSlice(c.packs, func(name string, credits int) models.Pack {
		return models.Pack{Name: name, Credits: credits}
	})
	sort.Slice(packs, func(i, j int) bool {
		if packs[i].Credits != packs[j].Credits {
			return packs[i].Credits < packs[j].Credits
		}
		return packs[i].Name < packs[j].Name
	})
	return packs
}

func (c *Catalog) Names() []string {
	return lo.Map(c.Packs(), func(p models.Pack, _ int) string { return p.Name })
}
