package disk

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// sysBlock reads the sysfs block device tree rooted at root (normally /sys)
type sysBlock struct {
	root string
}

func (s sysBlock) classPath(name string, elem ...string) string {
	return filepath.Join(append([]string{s.root, "class", "block", name}, elem...)...)
}

func (s sysBlock) readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// kernelPartition is a partition as the kernel names it
type kernelPartition struct {
	Name  string
	Start uint64 // in 512-byte sectors
}

// partitions lists the kernel partitions of disk ordered by start sector
func (s sysBlock) partitions(disk string) ([]kernelPartition, error) {
	entries, err := os.ReadDir(s.classPath(disk))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var parts []kernelPartition
	for _, e := range entries {
		// partitions are the children carrying a "partition" attribute
		if _, err := os.Stat(s.classPath(disk, e.Name(), "partition")); err != nil {
			continue
		}
		raw, err := s.readString(s.classPath(disk, e.Name(), "start"))
		if err != nil {
			return nil, err
		}
		start, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		parts = append(parts, kernelPartition{Name: e.Name(), Start: start})
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Start < parts[j].Start })
	return parts, nil
}

// cryptHolder returns the /dev/mapper path of the dm-crypt device stacked on
// name, or "" when there is none.
func (s sysBlock) cryptHolder(name string) (string, error) {
	entries, err := os.ReadDir(s.classPath(name, "holders"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	for _, e := range entries {
		uuid, err := s.readString(s.classPath(e.Name(), "dm", "uuid"))
		if err != nil {
			continue
		}
		if !strings.HasPrefix(uuid, "CRYPT-") {
			continue
		}
		mapping, err := s.mapperName(e.Name())
		if err != nil {
			return "", err
		}
		return "/dev/mapper/" + mapping, nil
	}
	return "", nil
}

// mapperName returns the device-mapper name of a dm-N device
func (s sysBlock) mapperName(dm string) (string, error) {
	return s.readString(s.classPath(dm, "dm", "name"))
}

// mdLevel returns the RAID level of an md array ("raid1", ...)
func (s sysBlock) mdLevel(md string) (string, error) {
	return s.readString(s.classPath(md, "md", "level"))
}
