package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jdiez/ngsutils/internal/align"
	"github.com/jdiez/ngsutils/internal/fileutil"
	"github.com/jdiez/ngsutils/internal/gtf"
	"github.com/jdiez/ngsutils/internal/model"
)

type countFlags struct {
	gtfPath       string
	exonPath      string
	binSize       int
	bedPath       string
	repeatPath    string
	repeatFamPath string

	output    string
	stranded  bool
	uniq      bool
	multiple  string
	norm      string
	fpkm      bool
	coverage  bool
	whitelist string
	blacklist string
	revRead2  bool
	startOnly bool
	quiet     bool
}

func newCountCmd() *cobra.Command {
	var flags countFlags

	cmd := &cobra.Command{
		Use:   "count [flags] <input.bam>",
		Short: "Count reads overlapping regions from a region model",
		Long: `Count reads overlapping regions from one region model:

  --gtf        whole genes from a GTF annotation
  --exon       per-exon splicing regions from a GTF annotation
  --bin        fixed-width genome windows
  --bed        arbitrary intervals from a BED file
  --repeat     individual RepeatMasker elements
  --repeatfam  RepeatMasker families, aggregated genome-wide

The BAM input must be coordinate-sorted and indexed (.bai).`,
		Example: `  bamcount count --gtf genes.gtf input.bam
  bamcount count --exon genes.gtf --stranded input.bam
  bamcount count --bin 10000 --norm all -o bins.txt input.bam
  bamcount count --repeatfam rmsk.out --norm mapped --fpkm input.bam`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd, &flags)
			return runCount(&flags, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.gtfPath, "gtf", "", "Gene model: GTF annotation file")
	fs.StringVar(&flags.exonPath, "exon", "", "Exon model: GTF annotation file")
	fs.IntVar(&flags.binSize, "bin", 0, "Bin model: window size in bases")
	fs.StringVar(&flags.bedPath, "bed", "", "BED model: interval file")
	fs.StringVar(&flags.repeatPath, "repeat", "", "Repeat model: RepeatMasker output file")
	fs.StringVar(&flags.repeatFamPath, "repeatfam", "", "Repeat-family model: RepeatMasker output file")

	fs.StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	fs.BoolVar(&flags.stranded, "stranded", false, "Only count reads on the same strand as the region")
	fs.BoolVar(&flags.uniq, "uniq", false, "Only count uniquely-mapped reads (NH/IH == 1)")
	fs.StringVar(&flags.multiple, "multiple", model.MultipleComplete, "Overlap policy: complete or partial")
	fs.StringVar(&flags.norm, "norm", "", "Normalization basis: all or mapped")
	fs.BoolVar(&flags.fpkm, "fpkm", false, "Add a length-normalized RPKM column (requires --norm)")
	fs.BoolVar(&flags.coverage, "coverage", false, "Report mean per-base coverage instead of counts")
	fs.StringVar(&flags.whitelist, "whitelist", "", "File of read names to include")
	fs.StringVar(&flags.blacklist, "blacklist", "", "File of read names to exclude")
	fs.BoolVar(&flags.revRead2, "rev-read2", false, "Invert the strand of second mates in stranded counting")
	fs.BoolVar(&flags.startOnly, "startonly", false, "Count a read only where its 5' base falls")
	fs.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress progress and info output")

	return cmd
}

// applyConfigDefaults fills flags the user did not set from the viper config
// (~/.bamcount.yaml or BAMCOUNT_* environment).
func applyConfigDefaults(cmd *cobra.Command, flags *countFlags) {
	if !cmd.Flags().Changed("norm") && viper.IsSet("count.norm") {
		flags.norm = viper.GetString("count.norm")
	}
	if !cmd.Flags().Changed("multiple") && viper.IsSet("count.multiple") {
		flags.multiple = viper.GetString("count.multiple")
	}
	if !cmd.Flags().Changed("stranded") && viper.IsSet("count.stranded") {
		flags.stranded = viper.GetBool("count.stranded")
	}
	if !cmd.Flags().Changed("fpkm") && viper.IsSet("count.fpkm") {
		flags.fpkm = viper.GetBool("count.fpkm")
	}
}

func runCount(flags *countFlags, bamPath string) error {
	logger, err := buildLogger(flags.quiet)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer logger.Sync()

	src, err := align.OpenBAM(bamPath)
	if err != nil {
		return err
	}
	defer src.Close()

	m, err := buildModel(flags, src, logger)
	if err != nil {
		return err
	}

	opts := model.Options{
		Stranded:  flags.stranded,
		Coverage:  flags.coverage,
		UniqOnly:  flags.uniq,
		FPKM:      flags.fpkm,
		Norm:      flags.norm,
		Multiple:  flags.multiple,
		RevRead2:  flags.revRead2,
		StartOnly: flags.startOnly,
		Quiet:     flags.quiet,
		Logger:    logger,
	}
	if flags.whitelist != "" {
		names, err := fileutil.ReadLines(flags.whitelist)
		if err != nil {
			return fmt.Errorf("read whitelist: %w", err)
		}
		opts.Whitelist = names
	}
	if flags.blacklist != "" {
		names, err := fileutil.ReadLines(flags.blacklist)
		if err != nil {
			return fmt.Errorf("read blacklist: %w", err)
		}
		opts.Blacklist = names
	}

	var out io.Writer = os.Stdout
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	return model.Count(m, src, opts, out)
}

// buildModel selects the region model from the mutually-exclusive model
// flags.
func buildModel(flags *countFlags, src *align.BAMSource, logger *zap.Logger) (model.Model, error) {
	selected := 0
	for _, set := range []bool{
		flags.gtfPath != "",
		flags.exonPath != "",
		flags.binSize > 0,
		flags.bedPath != "",
		flags.repeatPath != "",
		flags.repeatFamPath != "",
	} {
		if set {
			selected++
		}
	}
	if selected != 1 {
		return nil, errors.New("exactly one of --gtf, --exon, --bin, --bed, --repeat, --repeatfam is required")
	}

	switch {
	case flags.gtfPath != "":
		annotation, err := gtf.Load(flags.gtfPath, gtf.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return model.NewGeneModel(annotation, flags.gtfPath, flags.quiet), nil
	case flags.exonPath != "":
		annotation, err := gtf.Load(flags.exonPath, gtf.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return model.NewExonModel(annotation, flags.exonPath, flags.quiet), nil
	case flags.binSize > 0:
		return model.NewBinModel(flags.binSize, src.References(), flags.stranded, flags.quiet), nil
	case flags.bedPath != "":
		return model.NewBEDModel(flags.bedPath), nil
	case flags.repeatPath != "":
		return model.NewRepeatModel(flags.repeatPath), nil
	default:
		return model.NewRepeatFamilyModel(flags.repeatFamPath), nil
	}
}
