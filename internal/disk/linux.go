package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/prometheus/procfs"
	"github.com/shirou/gopsutil/v3/mem"

	"swap-sentry/internal/swap"
)

// LinuxSwapType is the GPT partition type GUID of Linux swap
const LinuxSwapType = string(gpt.LinuxSwap)

// TableEntry is one used GPT entry
type TableEntry struct {
	Start uint64 // first sector, in 512-byte units
	Type  string // upper case type GUID
}

// TableReader reads the partition table of a whole-disk device node
type TableReader func(devPath string) ([]TableEntry, error)

// SwapLister returns the currently active swap devices
type SwapLister func(ctx context.Context) ([]*mem.SwapDevice, error)

// LinuxInventory answers inventory queries from GPT tables, sysfs, /proc/mdstat
// and /proc/swaps
type LinuxInventory struct {
	devRoot    string
	procRoot   string
	sys        sysBlock
	extraTypes []string
	readTable  TableReader
	listSwaps  SwapLister
}

// LinuxOptions configures a LinuxInventory; zero values use the live system
type LinuxOptions struct {
	DevRoot    string
	SysRoot    string
	ProcRoot   string
	ExtraTypes []string
	ReadTable  TableReader
	ListSwaps  SwapLister
}

func NewLinuxInventory(opts LinuxOptions) *LinuxInventory {
	inv := &LinuxInventory{
		devRoot:    opts.DevRoot,
		procRoot:   opts.ProcRoot,
		sys:        sysBlock{root: opts.SysRoot},
		extraTypes: opts.ExtraTypes,
		readTable:  opts.ReadTable,
		listSwaps:  opts.ListSwaps,
	}
	if inv.devRoot == "" {
		inv.devRoot = "/dev"
	}
	if inv.procRoot == "" {
		inv.procRoot = procfs.DefaultMountPoint
	}
	if inv.sys.root == "" {
		inv.sys.root = "/sys"
	}
	if inv.readTable == nil {
		inv.readTable = readGPT
	}
	if inv.listSwaps == nil {
		inv.listSwaps = mem.SwapDevicesWithContext
	}
	return inv
}

// Partitions maps the GPT entries of disk onto kernel partition names by
// start sector. A missing disk or a disk without GPT has no partitions.
func (l *LinuxInventory) Partitions(ctx context.Context, disk string) ([]swap.Partition, error) {
	devPath := filepath.Join(l.devRoot, disk)
	if _, err := os.Stat(devPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	kparts, err := l.sys.partitions(disk)
	if err != nil {
		return nil, fmt.Errorf("list kernel partitions of %s: %w", disk, err)
	}
	if len(kparts) == 0 {
		return nil, nil
	}

	entries, err := l.readTable(devPath)
	if err != nil {
		if errors.Is(err, errNotGPT) {
			return nil, nil
		}
		return nil, fmt.Errorf("read partition table of %s: %w", disk, err)
	}
	types := make(map[uint64]string, len(entries))
	for _, e := range entries {
		types[e.Start] = e.Type
	}

	var out []swap.Partition
	for _, kp := range kparts {
		typ, ok := types[kp.Start]
		if !ok {
			continue
		}
		crypt, err := l.sys.cryptHolder(kp.Name)
		if err != nil {
			return nil, fmt.Errorf("inspect holders of %s: %w", kp.Name, err)
		}
		out = append(out, swap.Partition{
			ID:                kp.Name,
			Path:              filepath.Join("/dev", kp.Name),
			Type:              typ,
			EncryptedProvider: crypt,
		})
	}
	return out, nil
}

func (l *LinuxInventory) ValidSwapPartitionTypes(ctx context.Context) ([]string, error) {
	types := []string{LinuxSwapType}
	for _, t := range l.extraTypes {
		types = append(types, strings.ToUpper(t))
	}
	return types, nil
}

// SwapDevices lists active swap. dm-N entries are also reported under their
// /dev/mapper name, which is how encryption layers are identified.
func (l *LinuxInventory) SwapDevices(ctx context.Context) ([]string, error) {
	devices, err := l.listSwaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list swap devices: %w", err)
	}

	var names []string
	for _, d := range devices {
		names = append(names, d.Name)
		base := filepath.Base(d.Name)
		if !strings.HasPrefix(base, "dm-") {
			continue
		}
		if mapping, err := l.sys.mapperName(base); err == nil && mapping != "" {
			names = append(names, "/dev/mapper/"+mapping)
		}
	}
	return names, nil
}

// Mirrors lists the active raid1 md arrays
func (l *LinuxInventory) Mirrors(ctx context.Context) ([]swap.Mirror, error) {
	if _, err := os.Stat(filepath.Join(l.procRoot, "mdstat")); errors.Is(err, os.ErrNotExist) {
		// md driver not loaded
		return nil, nil
	}
	fs, err := procfs.NewFS(l.procRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	arrays, err := fs.MDStat()
	if err != nil {
		return nil, fmt.Errorf("read mdstat: %w", err)
	}

	var mirrors []swap.Mirror
	for _, a := range arrays {
		level, err := l.sys.mdLevel(a.Name)
		if err != nil || level != "raid1" {
			continue
		}
		crypt, err := l.sys.cryptHolder(a.Name)
		if err != nil {
			return nil, fmt.Errorf("inspect holders of %s: %w", a.Name, err)
		}
		m := swap.Mirror{
			Name:              a.Name,
			RealPath:          filepath.Join("/dev", a.Name),
			EncryptedProvider: crypt,
		}
		for _, dev := range a.Devices {
			m.Providers = append(m.Providers, swap.Provider{ID: dev, Name: dev})
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, nil
}

var errNotGPT = errors.New("partition table is not GPT")

// readGPT opens devPath read-only and returns its used GPT entries. A
// readable table of another kind yields errNotGPT.
func readGPT(devPath string) ([]TableEntry, error) {
	d, err := diskfs.Open(devPath, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = d.Close()
	}()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("read partition table: %w", err)
	}
	gptTable, ok := table.(*gpt.Table)
	if !ok {
		return nil, errNotGPT
	}
	return gptEntries(gptTable, d.LogicalBlocksize), nil
}

// gptEntries converts the used entries of table to 512-byte sector units
func gptEntries(table *gpt.Table, logicalBlocksize int64) []TableEntry {
	sectorFactor := uint64(logicalBlocksize) / 512
	if sectorFactor == 0 {
		sectorFactor = 1
	}

	var entries []TableEntry
	for _, p := range table.Partitions {
		if p == nil || (p.Start == 0 && p.Size == 0) || p.Type == gpt.Unused {
			continue
		}
		entries = append(entries, TableEntry{
			Start: p.Start * sectorFactor,
			Type:  strings.ToUpper(string(p.Type)),
		})
	}
	return entries
}
