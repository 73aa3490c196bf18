package resourceguard

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// cgroupCPU samples container-relative CPU usage by reading cgroup v2
// accounting files directly, normalized to the container's CPU quota
// so "75%" means 75% of what this instance was actually allocated.
type cgroupCPU struct {
	mu          sync.Mutex
	path        string
	allocated   float64
	lastUsec    uint64
	lastSampled time.Time
}

func newCgroupCPU() (*cgroupCPU, error) {
	path, err := detectCgroupV2Path()
	if err != nil {
		return nil, err
	}

	allocated, err := readCPUAllocation(path)
	if err != nil {
		return nil, err
	}

	usage, err := readCPUUsageUsec(path)
	if err != nil {
		return nil, err
	}

	return &cgroupCPU{
		path:        path,
		allocated:   allocated,
		lastUsec:    usage,
		lastSampled: time.Now(),
	}, nil
}

// percent returns CPU usage as a percentage of this cgroup's
// allocation since the previous call.
func (c *cgroupCPU) percent() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	usage, err := readCPUUsageUsec(c.path)
	if err != nil {
		return 0, err
	}

	elapsedUsec := now.Sub(c.lastSampled).Microseconds()
	if elapsedUsec <= 0 {
		return 0, fmt.Errorf("resourceguard: sample interval too small")
	}

	deltaUsec := usage - c.lastUsec
	raw := (float64(deltaUsec) / float64(elapsedUsec)) * 100
	percent := raw / c.allocated

	c.lastUsec = usage
	c.lastSampled = now
	return percent, nil
}

func detectCgroupV2Path() (string, error) {
	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) != 3 {
			continue
		}
		if parts[0] == "0" && parts[1] == "" {
			return "/sys/fs/cgroup" + parts[2], nil
		}
	}
	return "", fmt.Errorf("resourceguard: cgroup v2 hierarchy not found")
}

func readCPUAllocation(path string) (float64, error) {
	data, err := os.ReadFile(path + "/cpu.max")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, fmt.Errorf("resourceguard: unexpected cpu.max format %q", string(data))
	}
	if fields[0] == "max" {
		return 0, fmt.Errorf("resourceguard: no cpu.max quota set")
	}

	quota, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	period, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, err
	}
	if period == 0 {
		return 0, fmt.Errorf("resourceguard: cpu.max period is zero")
	}
	return quota / period, nil
}

func readCPUUsageUsec(path string) (uint64, error) {
	file, err := os.Open(path + "/cpu.stat")
	if err != nil {
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "usage_usec ") {
			fields := strings.Fields(line)
			if len(fields) == 2 {
				return strconv.ParseUint(fields[1], 10, 64)
			}
		}
	}
	return 0, fmt.Errorf("resourceguard: usage_usec not found in cpu.stat")
}
