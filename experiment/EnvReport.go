package experiment

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// EnvReport returns a one-line description of the execution
// environment, logged at the start of a run.
func EnvReport() string {
	return fmt.Sprintf(
		"cpu: %v | logical cores: %v | avx2: %v | avx512f: %v | "+
			"gomaxprocs: %v",
		cpuid.CPU.BrandName,
		cpuid.CPU.LogicalCores,
		cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.AVX512F),
		runtime.GOMAXPROCS(0),
	)
}
