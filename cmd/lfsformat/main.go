package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/dsoprea/go-lfs"
)

type rootParameters struct {
	Filepath     string `short:"f" long:"filepath" description:"File-path of the image to format" required:"true"`
	SizeInBytes  int64  `short:"s" long:"size" description:"Size, in bytes, to create or resize the image to (an existing file is truncated or extended to it)"`
	VolumeName   string `short:"n" long:"name" description:"Volume name" default:"LFS VOLUME"`
	Quiet        bool   `short:"q" long:"quiet" description:"Suppress the progress bar"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.OpenFile(rootArguments.Filepath, os.O_RDWR|os.O_CREATE, 0644)
	log.PanicIf(err)

	defer f.Close()

	if rootArguments.SizeInBytes > 0 {
		err = f.Truncate(rootArguments.SizeInBytes)
		log.PanicIf(err)
	}

	info, err := f.Stat()
	log.PanicIf(err)

	totalSectors := uint64(info.Size()) / lfs.SectorSize

	bd := lfs.NewFileBlockDevice(f, 0)

	var onProgress lfs.FormatProgressFunc

	if rootArguments.Quiet != true {
		progress := mpb.New(mpb.WithWidth(64))

		bar := progress.AddBar(
			int64(totalSectors),
			mpb.PrependDecorators(decor.Name("format")),
			mpb.AppendDecorators(decor.Percentage()),
		)

		var lastWritten int64

		onProgress = func(sectorsWritten, totalSectors uint64) {
			bar.SetTotal(int64(totalSectors), false)
			bar.IncrInt64(int64(sectorsWritten) - lastWritten)
			lastWritten = int64(sectorsWritten)
		}

		defer progress.Wait()
	}

	sb, err := lfs.Format(bd, totalSectors, rootArguments.VolumeName, onProgress)
	log.PanicIf(err)

	fmt.Printf("formatted volume %q (%s)\n", sb.VolumeNameString(), humanize.Bytes(uint64(info.Size())))
}
