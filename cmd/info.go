package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achilleasa/widebvh/asset/archive"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display archive contents.
func ShowArchiveInfo(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing archive file argument")
	}

	archiveFile := ctx.Args().First()
	if !strings.HasSuffix(archiveFile, ".zip") {
		return errors.New("only archives with a .zip extension are supported")
	}

	a, err := archive.Load(archiveFile)
	if err != nil {
		return err
	}

	logger.Noticef("archive information:\n%s", manifestTable(a.Manifest))
	logger.Noticef("binary tree:\n%s", a.Binary.Stats())
	logger.Noticef("compressed wide tree:\n%s", a.Compressed.Stats())
	return nil
}

func manifestTable(m archive.Manifest) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Name", m.Name})
	table.Append([]string{"Created", m.Created.Format(time.RFC3339)})
	table.Append([]string{"Tree ID", m.TreeID.String()})
	table.Append([]string{"Triangles", fmt.Sprint(m.Triangles)})
	table.Append([]string{"Refittable", fmt.Sprint(m.Refittable)})
	table.Append([]string{"Bins", fmt.Sprint(m.BuildOptions.Bins)})
	table.Append([]string{"Max leaf size", fmt.Sprint(m.BuildOptions.MaxLeafSize)})
	table.Append([]string{"Wide node/slot cost", fmt.Sprintf("%g / %g", m.WideOptions.NodeCost, m.WideOptions.SlotCost)})
	table.SetFooter([]string{"Format", fmt.Sprintf("v%d (layout v%d)", m.FormatVersion, m.LayoutVersion)})
	table.Render()
	return buf.String()
}
