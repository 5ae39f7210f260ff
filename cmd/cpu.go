package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/klauspost/cpuid/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List the CPU features relevant to build and traversal performance.
func ListCPUFeatures(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	cpu := cpuid.CPU
	var simd []string
	for _, feature := range []cpuid.FeatureID{cpuid.SSE4, cpuid.SSE42, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.F16C, cpuid.AVX512F, cpuid.ASIMD} {
		if cpu.Has(feature) {
			simd = append(simd, feature.String())
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Brand", cpu.BrandName})
	table.Append([]string{"Vendor", cpu.VendorString})
	table.Append([]string{"Physical cores", fmt.Sprint(cpu.PhysicalCores)})
	table.Append([]string{"Logical cores", fmt.Sprint(cpu.LogicalCores)})
	table.Append([]string{"Threads per core", fmt.Sprint(cpu.ThreadsPerCore)})
	table.Append([]string{"Cache line", bvh.FormatSize(cpu.CacheLine)})
	table.Append([]string{"L1D / L2 / L3", fmt.Sprintf("%s / %s / %s", cacheSize(cpu.Cache.L1D), cacheSize(cpu.Cache.L2), cacheSize(cpu.Cache.L3))})
	table.Append([]string{"SIMD", strings.Join(simd, " ")})
	table.SetFooter([]string{"Default workers", fmt.Sprint(bvh.DefaultWorkers())})
	table.Render()

	logger.Noticef("cpu features:\n%s", buf.String())
	return nil
}

func cacheSize(size int) string {
	if size <= 0 {
		return "n/a"
	}
	return bvh.FormatSize(size)
}
