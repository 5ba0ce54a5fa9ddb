// Package region holds the fixed table of Ukrainian first-level
// administrative regions as numbered by the NOAA STAR VHI provider.
package region

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Region is a NOAA province id paired with its canonical name.
type Region struct {
	ID   int
	Name string
}

// UnknownRegionError reports a lookup miss on the closed set of regions.
type UnknownRegionError struct {
	ID   int
	Name string
}

func (e *UnknownRegionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown region name %q", e.Name)
	}
	return fmt.Sprintf("unknown region id %d", e.ID)
}

// Registry is an immutable id<->name lookup table.
type Registry struct {
	regions []Region
	byID    map[int]string
	byName  map[string]int
}

// New builds a registry, rejecting non-positive ids and duplicate ids or names.
func New(regions []Region) (*Registry, error) {
	r := &Registry{
		regions: make([]Region, 0, len(regions)),
		byID:    make(map[int]string, len(regions)),
		byName:  make(map[string]int, len(regions)),
	}
	for _, reg := range regions {
		name := strings.TrimSpace(reg.Name)
		if reg.ID <= 0 {
			return nil, fmt.Errorf("region %q: id must be positive, got %d", name, reg.ID)
		}
		if name == "" {
			return nil, fmt.Errorf("region %d: empty name", reg.ID)
		}
		if strings.Contains(name, "_") {
			return nil, fmt.Errorf("region %d: name %q must not contain '_'", reg.ID, name)
		}
		if _, dup := r.byID[reg.ID]; dup {
			return nil, fmt.Errorf("duplicate region id %d", reg.ID)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate region name %q", name)
		}
		r.byID[reg.ID] = name
		r.byName[name] = reg.ID
		r.regions = append(r.regions, Region{ID: reg.ID, Name: name})
	}
	sort.Slice(r.regions, func(i, j int) bool { return r.regions[i].ID < r.regions[j].ID })
	return r, nil
}

// NameOf returns the canonical name for a region id.
func (r *Registry) NameOf(id int) (string, error) {
	name, ok := r.byID[id]
	if !ok {
		return "", &UnknownRegionError{ID: id}
	}
	return name, nil
}

// IDOf returns the region id for a canonical name.
func (r *Registry) IDOf(name string) (int, error) {
	id, ok := r.byName[name]
	if !ok {
		return 0, &UnknownRegionError{Name: name}
	}
	return id, nil
}

// Len returns the number of registered regions.
func (r *Registry) Len() int {
	return len(r.regions)
}

// All returns a copy of the registered regions ordered by id.
func (r *Registry) All() []Region {
	out := make([]Region, len(r.regions))
	copy(out, r.regions)
	return out
}

// ukraine is the NOAA STAR province numbering for country=UKR.
var ukraine = []Region{
	{1, "Cherkasy"}, {2, "Chernihiv"}, {3, "Chernivtsi"}, {4, "Crimea"},
	{5, "Dnipropetrovs'k"}, {6, "Donets'k"}, {7, "Ivano-Frankivs'k"}, {8, "Kharkiv"},
	{9, "Kherson"}, {10, "Khmel'nyts'kyy"}, {11, "Kyiv"}, {12, "Kyiv City"},
	{13, "Kirovohrad"}, {14, "Luhans'k"}, {15, "L'viv"}, {16, "Mykolayiv"},
	{17, "Odessa"}, {18, "Poltava"}, {19, "Rivne"}, {20, "Sevastopol"},
	{21, "Sumy"}, {22, "Ternopil"}, {23, "Transcarpathia"}, {24, "Vinnytsya"},
	{25, "Volyn"}, {26, "Zaporizhzhya"}, {27, "Zhytomyr"},
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of Ukrainian regions. It is built once and
// must not be modified by callers.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := New(ukraine)
		if err != nil {
			panic(fmt.Sprintf("region: invalid built-in table: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}
