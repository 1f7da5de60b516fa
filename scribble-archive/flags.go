package scribblearchive

import (
	"github.com/urfave/cli/v2"

	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

var ArchiveOpts struct {
	Bucket string
	OutDir string
}

var BucketFlag = scribblecli.StringFlag("archive-bucket", "The bucket to archive snapshots to; empty disables archiving", &ArchiveOpts.Bucket)
var OutDirFlag = scribblecli.StringFlag("archive-out-dir", "The directory to archive snapshots to, when running in dry mode", &ArchiveOpts.OutDir)

var ArchiveFlags = []cli.Flag{
	BucketFlag,
	OutDirFlag,
}
