package accel

import (
	"strings"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	xcpu "golang.org/x/sys/cpu"
)

// SystemMemory returns total and available host memory in bytes. Both are
// zero when the host cannot be queried.
func SystemMemory() (total, available uint64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0
	}
	return vm.Total, vm.Available
}

func cpuModel() string {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return "unknown"
	}
	return strings.TrimSpace(infos[0].ModelName)
}

// Features lists the matrix extensions of the host CPU.
type Features struct {
	AMXTile    bool
	AMXBF16    bool
	AVX512BF16 bool
}

func DetectFeatures() Features {
	return Features{
		AMXTile:    xcpu.X86.HasAMXTile,
		AMXBF16:    xcpu.X86.HasAMXBF16,
		AVX512BF16: xcpu.X86.HasAVX512BF16,
	}
}

// SupportsAMX reports whether bf16 tile instructions are usable.
func (f Features) SupportsAMX() bool {
	return f.AMXTile && f.AMXBF16
}

func (f Features) String() string {
	var names []string
	if f.AMXTile {
		names = append(names, "amx-tile")
	}
	if f.AMXBF16 {
		names = append(names, "amx-bf16")
	}
	if f.AVX512BF16 {
		names = append(names, "avx512-bf16")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
