package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/achilleasa/widebvh/asset/archive"
	"github.com/achilleasa/widebvh/asset/mesh"
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/config"
	"github.com/achilleasa/widebvh/cwbvh"
	"github.com/achilleasa/widebvh/wide"
	"github.com/urfave/cli"
)

// Build hierarchies for each mesh argument and write them to zip archives.
func BuildArchive(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() == 0 {
		return errors.New("missing mesh file argument")
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		meshFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(meshFile, ".obj") {
			logger.Warningf("skipping unsupported file %s", meshFile)
			continue
		}

		m, err := mesh.Load(meshFile)
		if err != nil {
			return err
		}
		binary, compressed, err := buildAll(context.Background(), cfg, m)
		if err != nil {
			return err
		}

		wideTree := wide.NewWithOptions(cfg.Pipeline.Wide)
		if err = wideTree.Convert(binary); err != nil {
			return err
		}
		logger.Noticef("binary tree:\n%s", binary.Stats())
		logger.Noticef("wide tree:\n%s", wideTree.Stats())
		logger.Noticef("compressed wide tree:\n%s", compressed.Stats())

		zipFile := strings.TrimSuffix(meshFile, ".obj") + ".zip"
		if idx == 0 && ctx.String("out") != "" {
			zipFile = ctx.String("out")
		}
		if err = archive.WriteFile(zipFile, archive.New(m.Name, binary, compressed, cfg.Pipeline.Wide)); err != nil {
			return err
		}
	}

	return nil
}

// Build the binary and compressed hierarchies for a mesh.
func buildAll(ctx context.Context, cfg config.Config, m *mesh.Mesh) (*bvh.BVH, *cwbvh.BVH, error) {
	binary := bvh.NewWithOptions(cfg.Pipeline.Build)
	var err error
	if cfg.Pipeline.SpatialSplits {
		err = binary.BuildHQContext(ctx, m.Store)
	} else {
		err = binary.BuildContext(ctx, m.Store)
	}
	if err != nil {
		return nil, nil, err
	}

	compressed := cwbvh.NewWithOptions(cfg.Pipeline)
	if err = compressed.BuildContext(ctx, m.Store); err != nil {
		return nil, nil, err
	}
	return binary, compressed, nil
}
