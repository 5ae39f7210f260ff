package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/achilleasa/widebvh/asset/archive"
	"github.com/achilleasa/widebvh/asset/mesh"
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/config"
	"github.com/achilleasa/widebvh/cwbvh"
	"github.com/achilleasa/widebvh/tracer"
	"github.com/achilleasa/widebvh/types"
	"github.com/achilleasa/widebvh/wide"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
	"gonum.org/v1/gonum/stat"
)

type benchLayout struct {
	name        string
	intersector bvh.Intersector
}

type benchResult struct {
	name string

	// Per frame samples.
	frameMs     []float64
	stepsPerRay []float64

	hits       int
	mismatches int
}

// Trace primary rays against every hierarchy layout and compare the results.
func Bench(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 1 {
		return errors.New("missing mesh or archive file argument")
	}
	if w, h := ctx.Int("width"), ctx.Int("height"); w > 0 && h > 0 {
		cfg.Bench.Width, cfg.Bench.Height = w, h
	}
	if addr := ctx.String("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	binary, compressed, bounds, err := loadBenchInput(runCtx, cfg, ctx.Args().First())
	if err != nil {
		return err
	}
	wideTree := wide.NewWithOptions(cfg.Pipeline.Wide)
	if err = wideTree.Convert(binary); err != nil {
		return err
	}

	layouts := []benchLayout{
		{"binary", binary},
		{"wide", wideTree},
		{"cwbvh", compressed},
	}
	reference := tracer.NewFrame(tracer.FitCamera(bounds, 45), uint32(cfg.Bench.Width), uint32(cfg.Bench.Height))

	var results []benchResult
	var baseline *tracer.Frame
	for _, layout := range layouts {
		res, frame, err := benchLayoutFrames(runCtx, cfg.Bench, layout, reference)
		if err != nil {
			return err
		}
		if baseline == nil {
			baseline = frame
		}
		res.mismatches = baseline.Mismatches(frame)
		results = append(results, res)
	}

	logger.Noticef("benchmark results:\n%s", benchTable(results, len(reference.Rays)))
	for _, res := range results {
		if res.mismatches != 0 {
			return fmt.Errorf("%s: %d rays disagree with the binary tree", res.name, res.mismatches)
		}
	}
	return nil
}

// Load the hierarchies from an archive or build them from a mesh.
func loadBenchInput(ctx context.Context, cfg config.Config, file string) (*bvh.BVH, *cwbvh.BVH, types.AABB, error) {
	bounds := types.EmptyAABB()
	if strings.HasSuffix(file, ".zip") {
		a, err := archive.Load(file)
		if err != nil {
			return nil, nil, bounds, err
		}
		return a.Binary, a.Compressed, a.Binary.Nodes()[0].Bounds(), nil
	}

	m, err := mesh.Load(file)
	if err != nil {
		return nil, nil, bounds, err
	}
	binary, compressed, err := buildAll(ctx, cfg, m)
	return binary, compressed, m.Bounds, err
}

func benchLayoutFrames(ctx context.Context, cfg config.Bench, layout benchLayout, reference *tracer.Frame) (benchResult, *tracer.Frame, error) {
	tracers := make([]tracer.Tracer, cfg.Tracers)
	for idx := range tracers {
		tracers[idx] = tracer.NewCPUTracer(fmt.Sprintf("%s-%d", layout.name, idx), layout.intersector, 1)
	}
	pool := tracer.NewPool(tracers...)

	res := benchResult{name: layout.name}
	var frame *tracer.Frame
	for i := 0; i < cfg.Frames; i++ {
		frame = reference.Clone()
		fs, err := pool.Trace(ctx, frame, tracer.Closest)
		if err != nil {
			return res, nil, err
		}

		totals := fs.Totals()
		res.frameMs = append(res.frameMs, float64(fs.FrameTime.Nanoseconds())/1e6)
		res.stepsPerRay = append(res.stepsPerRay, float64(totals.Steps)/float64(totals.Rays))
		res.hits = int(totals.Hits)
		logger.Debugf("%s frame %d: %v", layout.name, i, fs.Blocks)
	}
	return res, frame, nil
}

func benchTable(results []benchResult, rayCount int) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Layout", "Frame (ms)", "MRays/s", "Steps/ray", "Hits", "Mismatches"})
	for _, res := range results {
		frameMean, frameStd := stat.MeanStdDev(res.frameMs, nil)
		mrays := 0.0
		if frameMean > 0 {
			mrays = float64(rayCount) / (frameMean * 1e3)
		}
		table.Append([]string{
			res.name,
			fmt.Sprintf("%.2f ± %.2f", frameMean, frameStd),
			fmt.Sprintf("%.2f", mrays),
			fmt.Sprintf("%.1f", stat.Mean(res.stepsPerRay, nil)),
			fmt.Sprint(res.hits),
			fmt.Sprint(res.mismatches),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Rays", fmt.Sprint(rayCount)})
	table.Render()
	return buf.String()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Noticef("serving metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("metrics endpoint: %s", err)
		}
	}()
}
