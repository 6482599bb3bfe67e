package builtin

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"jarvis/tools"
)

func systemTools(d Deps) []tools.Definition {
	return []tools.Definition{
		{
			Name:        "get_system_information",
			Description: "Retrieves key system hardware and OS information.",
			Category:    categorySystemInfo,
			Schema:      tools.NewSchema(),
			Func: func(context.Context, tools.Args) (any, error) {
				return SystemInfo(), nil
			},
		},
		{
			Name:        "get_process_list",
			Description: "Lists the top running processes sorted by memory usage.",
			Category:    categorySystemInfo,
			Schema: tools.NewSchema(
				tools.Optional("limit", tools.TypeInteger, "Number of processes to return.", 15),
			),
			Func: func(ctx context.Context, args tools.Args) (any, error) {
				return ProcessList(ctx, args.Int("limit"))
			},
		},
	}
}

// SystemInfo is a point-in-time view of the host. Fields that cannot be
// read on this platform are left empty.
func SystemInfo() map[string]any {
	host, _ := os.Hostname()
	info := map[string]any{
		"System":     runtime.GOOS + "/" + runtime.GOARCH,
		"Node Name":  host,
		"CPU Cores":  fmt.Sprintf("%d logical", runtime.NumCPU()),
		"Go Version": runtime.Version(),
	}
	if mem, err := readMeminfo(); err == nil {
		total, avail := mem["MemTotal"], mem["MemAvailable"]
		info["Total RAM"] = fmt.Sprintf("%.2f GB", kbToGB(total))
		info["Available RAM"] = fmt.Sprintf("%.2f GB", kbToGB(avail))
		if total > 0 {
			info["RAM Usage"] = fmt.Sprintf("%.1f%%", 100*float64(total-avail)/float64(total))
		}
	}
	if load, err := os.ReadFile("/proc/loadavg"); err == nil {
		if f := strings.Fields(string(load)); len(f) >= 3 {
			info["Load Average"] = strings.Join(f[:3], " ")
		}
	}
	var st syscall.Statfs_t
	if home, err := os.UserHomeDir(); err == nil && syscall.Statfs(home, &st) == nil {
		total := float64(st.Blocks) * float64(st.Bsize)
		free := float64(st.Bavail) * float64(st.Bsize)
		if total > 0 {
			info["Disk Usage"] = fmt.Sprintf("%.1f%% of %.1f GB", 100*(total-free)/total, total/(1<<30))
		}
	}
	return info
}

func kbToGB(kb uint64) float64 { return float64(kb) / (1 << 20) }

func readMeminfo() (map[string]uint64, error) {
	b, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		key, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		f := strings.Fields(rest)
		if len(f) == 0 {
			continue
		}
		if v, err := strconv.ParseUint(f[0], 10, 64); err == nil {
			out[key] = v
		}
	}
	return out, sc.Err()
}

// Process is one row of get_process_list.
type Process struct {
	PID           int    `json:"pid"`
	Name          string `json:"name"`
	User          string `json:"user"`
	CPUPercent    string `json:"cpu_percent"`
	MemoryPercent string `json:"memory_percent"`
	mem           float64
}

// ProcessList returns the top processes by memory use.
func ProcessList(ctx context.Context, limit int) ([]Process, error) {
	if limit <= 0 {
		limit = 15
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "ps", "-axo", "pid=,user=,%cpu=,%mem=,comm=")
	cmd.Stdout = &stdout
	cmd.Env = tools.SafeEnvironment()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	procs := parsePS(stdout.String())
	sort.SliceStable(procs, func(i, j int) bool { return procs[i].mem > procs[j].mem })
	if len(procs) > limit {
		procs = procs[:limit]
	}
	return procs, nil
}

func parsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 5 {
			continue
		}
		pid, err := strconv.Atoi(f[0])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(f[2], 64)
		mem, _ := strconv.ParseFloat(f[3], 64)
		procs = append(procs, Process{
			PID:           pid,
			User:          f[1],
			CPUPercent:    fmt.Sprintf("%.2f%%", cpu),
			MemoryPercent: fmt.Sprintf("%.2f%%", mem),
			Name:          strings.Join(f[4:], " "),
			mem:           mem,
		})
	}
	return procs
}
