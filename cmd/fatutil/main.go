// Command fatutil inspects and extracts files from a FAT12/16/32 image
// without mounting it into the host filesystem, mirroring the way
// dargueta-disko's own cmd/main.go wraps its library in a small urfave/cli
// front end.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gofatfs/fatfs/bytesource"
	"github.com/gofatfs/fatfs/engine"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "fatutil",
		Usage: "Inspect and extract files from a FAT12/16/32 disk image",
		Commands: []*cli.Command{
			{
				Name:      "mount",
				Usage:     "Mount an image read-only and report whether it parses cleanly",
				ArgsUsage: "IMAGE",
				Action:    mountImage,
			},
			{
				Name:      "stat",
				Usage:     "Print the image's volume statistics",
				ArgsUsage: "IMAGE",
				Action:    statImage,
			},
			{
				Name:      "ls",
				Usage:     "List a directory's contents",
				ArgsUsage: "IMAGE [PATH]",
				Action:    lsImage,
			},
			{
				Name:      "cat",
				Usage:     "Write a file's contents to stdout",
				ArgsUsage: "IMAGE PATH",
				Action:    catImage,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func openVolume(imagePath string) (*engine.Volume, func() error, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, nil, err
	}

	vol, err := engine.Mount(bytesource.FromReadWriteSeeker(f), engine.MountOptions{})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return vol, f.Close, nil
}

func mountImage(c *cli.Context) error {
	imagePath := c.Args().First()
	if imagePath == "" {
		return cli.Exit("usage: fatutil mount IMAGE", 1)
	}

	vol, closeFile, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer closeFile()
	defer vol.Close()

	geo := vol.Geometry()
	fmt.Printf("%s: variant=%s bytesPerCluster=%d totalClusters=%d\n", imagePath, geo.Variant, geo.BytesPerCluster, geo.TotalClusters)
	return nil
}

func statImage(c *cli.Context) error {
	imagePath := c.Args().First()
	if imagePath == "" {
		return cli.Exit("usage: fatutil stat IMAGE", 1)
	}

	vol, closeFile, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer closeFile()
	defer vol.Close()

	stats, err := vol.Stat()
	if err != nil {
		return err
	}

	fmt.Printf("label:           %s\n", stats.Label)
	fmt.Printf("block size:      %d\n", stats.BlockSize)
	fmt.Printf("total blocks:    %d\n", stats.TotalBlocks)
	fmt.Printf("free blocks:     %d\n", stats.BlocksFree)
	fmt.Printf("max name length: %d\n", stats.MaxNameLength)
	return nil
}

func lsImage(c *cli.Context) error {
	imagePath := c.Args().Get(0)
	if imagePath == "" {
		return cli.Exit("usage: fatutil ls IMAGE [PATH]", 1)
	}
	path := c.Args().Get(1)
	if path == "" {
		path = "/"
	}

	vol, closeFile, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer closeFile()
	defer vol.Close()

	entries, err := vol.ReadDir(path)
	if err != nil {
		return err
	}

	for _, dirent := range entries {
		name := dirent.ShortName
		if dirent.LongName != "" {
			name = dirent.LongName
		}
		kind := "f"
		if dirent.IsDir() {
			kind = "d"
		}
		fmt.Printf("%s %10d %s\n", kind, dirent.SizeBytes, name)
	}
	return nil
}

func catImage(c *cli.Context) error {
	imagePath := c.Args().Get(0)
	path := c.Args().Get(1)
	if imagePath == "" || path == "" {
		return cli.Exit("usage: fatutil cat IMAGE PATH", 1)
	}

	vol, closeFile, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer closeFile()
	defer vol.Close()

	handle, err := vol.OpenFile(path, false)
	if err != nil {
		return err
	}
	defer handle.Close()

	sink := bytesource.NewGrowableSink()
	if _, err := io.Copy(sink, handle); err != nil {
		return err
	}

	_, err = os.Stdout.Write(sink.Bytes())
	return err
}
