package main

import (
	"os"

	"github.com/achilleasa/widebvh/cmd"
	"github.com/achilleasa/widebvh/log"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "widebvh"
	app.Usage = "build and benchmark wide bounding volume hierarchies"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load settings from a YAML file",
		},
		cli.IntFlag{
			Name:  "workers, w",
			Usage: "number of build workers; defaults to the logical core count",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build hierarchies for wavefront obj meshes and store them in zip archives",
			Description: `
Parse a triangle mesh from a wavefront obj file, build a binary SAH tree and a
compressed 8-wide tree over it and print statistics for each layout.

The trees are then written to a zip archive next to the mesh which can be
supplied as an argument to the info and bench commands.`,
			ArgsUsage: "mesh_file1.obj mesh_file2.obj ...",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "spatial",
					Usage: "use spatial splits for the binary tree",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "archive filename for the first mesh",
				},
			},
			Action: cmd.BuildArchive,
		},
		{
			Name:      "info",
			Usage:     "display archive information",
			ArgsUsage: "archive.zip",
			Action:    cmd.ShowArchiveInfo,
		},
		{
			Name:  "bench",
			Usage: "trace primary rays against every layout",
			Description: `
Trace a grid of primary rays from a camera fitted to the mesh bounds against the
binary, wide and compressed wide trees, check that all layouts report the same
hits and print timing statistics.`,
			ArgsUsage: "mesh.obj|archive.zip",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "spatial",
					Usage: "use spatial splits when building from a mesh",
				},
				cli.IntFlag{
					Name:  "width",
					Usage: "ray grid width",
				},
				cli.IntFlag{
					Name:  "height",
					Usage: "ray grid height",
				},
				cli.StringFlag{
					Name:  "metrics-addr",
					Usage: "expose prometheus metrics on this address",
				},
			},
			Action: cmd.Bench,
		},
		{
			Name:   "cpu-features",
			Usage:  "list cpu features and the default worker count",
			Action: cmd.ListCPUFeatures,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("widebvh").Errorf("error: %s", err.Error())
		os.Exit(1)
	}
}
