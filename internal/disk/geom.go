package disk

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"swap-sentry/internal/swap"
)

// FreeBSDSwapType is the GPT type of a freebsd-swap partition as GEOM
// reports it in rawtype
const FreeBSDSwapType = "516e7cb5-6ecf-11d6-8ff8-00022d09712b"

// CommandRunner runs an external command and returns its output.
// blockops.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// BSDInventory answers inventory queries from the GEOM configuration mesh
// (sysctl kern.geom.confxml)
type BSDInventory struct {
	runner     CommandRunner
	sysctl     string
	extraTypes []string
	listSwaps  SwapLister
}

// BSDOptions configures a BSDInventory
type BSDOptions struct {
	Sysctl     string
	ExtraTypes []string
	ListSwaps  SwapLister
}

func NewBSDInventory(runner CommandRunner, opts BSDOptions) *BSDInventory {
	inv := &BSDInventory{
		runner:     runner,
		sysctl:     opts.Sysctl,
		extraTypes: opts.ExtraTypes,
		listSwaps:  opts.ListSwaps,
	}
	if inv.sysctl == "" {
		inv.sysctl = "sysctl"
	}
	if inv.listSwaps == nil {
		inv.listSwaps = mem.SwapDevicesWithContext
	}
	return inv
}

type geomMesh struct {
	XMLName xml.Name    `xml:"mesh"`
	Classes []geomClass `xml:"class"`
}

type geomClass struct {
	ID    string     `xml:"id,attr"`
	Name  string     `xml:"name"`
	Geoms []geomGeom `xml:"geom"`
}

type geomGeom struct {
	ID        string         `xml:"id,attr"`
	Name      string         `xml:"name"`
	Consumers []geomConsumer `xml:"consumer"`
	Providers []geomProvider `xml:"provider"`
}

type geomConsumer struct {
	ID       string  `xml:"id,attr"`
	Provider geomRef `xml:"provider"`
}

type geomRef struct {
	Ref string `xml:"ref,attr"`
}

type geomProvider struct {
	ID     string `xml:"id,attr"`
	Name   string `xml:"name"`
	Config struct {
		Index   int    `xml:"index"`
		Type    string `xml:"type"`
		RawType string `xml:"rawtype"`
	} `xml:"config"`
}

// mesh is a decoded GEOM mesh with lookup indexes
type mesh struct {
	classes   map[string]geomClass
	providers map[string]geomProvider
	// eli maps the id of a provider to the name of the ELI provider on top of it
	eli map[string]string
}

func (b *BSDInventory) loadMesh(ctx context.Context) (*mesh, error) {
	out, err := b.runner.Run(ctx, b.sysctl, "-n", "kern.geom.confxml")
	if err != nil {
		return nil, fmt.Errorf("read geom mesh: %w", err)
	}
	return parseMesh(out)
}

func parseMesh(data []byte) (*mesh, error) {
	var raw geomMesh
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode geom mesh: %w", err)
	}

	m := &mesh{
		classes:   make(map[string]geomClass),
		providers: make(map[string]geomProvider),
		eli:       make(map[string]string),
	}
	for _, c := range raw.Classes {
		m.classes[c.Name] = c
		for _, g := range c.Geoms {
			for _, p := range g.Providers {
				m.providers[p.ID] = p
			}
		}
	}
	for _, g := range m.classes["ELI"].Geoms {
		if len(g.Consumers) == 0 || len(g.Providers) == 0 {
			continue
		}
		m.eli[g.Consumers[0].Provider.Ref] = g.Providers[0].Name
	}
	return m, nil
}

// Partitions returns the partitions GEOM PART exposes for disk
func (b *BSDInventory) Partitions(ctx context.Context, disk string) ([]swap.Partition, error) {
	m, err := b.loadMesh(ctx)
	if err != nil {
		return nil, err
	}

	for _, g := range m.classes["PART"].Geoms {
		if g.Name != disk {
			continue
		}
		providers := append([]geomProvider(nil), g.Providers...)
		sort.Slice(providers, func(i, j int) bool {
			return providers[i].Config.Index < providers[j].Config.Index
		})

		out := make([]swap.Partition, 0, len(providers))
		for _, p := range providers {
			out = append(out, swap.Partition{
				ID:                p.ID,
				Path:              "/dev/" + p.Name,
				Type:              strings.ToLower(p.Config.RawType),
				EncryptedProvider: m.eli[p.ID],
			})
		}
		return out, nil
	}
	return nil, nil
}

func (b *BSDInventory) ValidSwapPartitionTypes(ctx context.Context) ([]string, error) {
	types := []string{FreeBSDSwapType}
	for _, t := range b.extraTypes {
		types = append(types, strings.ToLower(t))
	}
	return types, nil
}

// SwapDevices lists active swap spelled without the /dev/ prefix, the way
// swapinfo prints it
func (b *BSDInventory) SwapDevices(ctx context.Context) ([]string, error) {
	devices, err := b.listSwaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list swap devices: %w", err)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, strings.TrimPrefix(d.Name, "/dev/"))
	}
	return names, nil
}

// Mirrors lists gmirror devices with their member providers
func (b *BSDInventory) Mirrors(ctx context.Context) ([]swap.Mirror, error) {
	m, err := b.loadMesh(ctx)
	if err != nil {
		return nil, err
	}

	var mirrors []swap.Mirror
	for _, g := range m.classes["MIRROR"].Geoms {
		// the synchronization geom of a mirror has no provider
		if len(g.Providers) == 0 {
			continue
		}
		prov := g.Providers[0]
		mirror := swap.Mirror{
			Name:              g.Name,
			RealPath:          "/dev/" + prov.Name,
			EncryptedProvider: m.eli[prov.ID],
		}
		for _, c := range g.Consumers {
			mirror.Providers = append(mirror.Providers, swap.Provider{
				ID:   c.Provider.Ref,
				Name: m.providers[c.Provider.Ref].Name,
			})
		}
		mirrors = append(mirrors, mirror)
	}
	return mirrors, nil
}
